package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cota-capital/internal/archive"
	"cota-capital/internal/audit"
	"cota-capital/internal/config"
	"cota-capital/internal/logging"
	"cota-capital/internal/notify"
	"cota-capital/internal/observability/metrics"
	"cota-capital/internal/spreadsheet"
	stmtapp "cota-capital/internal/statement/application"
	stmtinterfaces "cota-capital/internal/statement/interfaces"
	"cota-capital/internal/warehouse"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "cota-capital",
		Short:         "Monthly capital-share statement batch",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(), newScheduleCommand(), newRecipientsCommand(), newArchiveCommand(),
		newPreviewCommand(), newStatusCommand())
	return root
}

func newRunCommand() *cobra.Command {
	var opts stmtapp.RunOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate, archive and announce the statements once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("delete-originals") {
				opts.DeleteOriginals = cfg.Output.DeleteOriginals
			}
			a, err := bootstrap(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("bootstrap failed")
				return err
			}
			defer a.Close()

			report, err := a.runner.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.SkipArchive, "skip-archive", false, "do not zip administrator folders")
	cmd.Flags().BoolVar(&opts.SkipEmail, "skip-email", false, "do not send the notification email")
	cmd.Flags().BoolVar(&opts.DeleteOriginals, "delete-originals", false, "remove folders after zipping (default from ARCHIVE_DELETE_ORIGINALS)")
	return cmd
}

func newScheduleCommand() *cobra.Command {
	var opts stmtapp.RunOptions
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the statement batch on the configured cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			opts.DeleteOriginals = cfg.Output.DeleteOriginals
			a, err := bootstrap(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("bootstrap failed")
				return err
			}
			defer a.Close()

			scheduler, err := stmtapp.NewScheduler(a.runner, cfg.Schedule.Cron, cfg.Schedule.Timezone, opts, logger)
			if err != nil {
				return err
			}
			return scheduler.Start(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&opts.SkipEmail, "skip-email", false, "do not send the notification email")
	return cmd
}

func newRecipientsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recipients",
		Short: "Consolidate the sources and print the notification recipients",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			a, err := bootstrap(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.consolidator.Consolidate(cmd.Context())
			if err != nil {
				return err
			}
			for _, addr := range notify.Recipients(result.Records) {
				fmt.Fprintln(cmd.OutOrStdout(), addr)
			}
			return nil
		},
	}
}

func newPreviewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <account>",
		Short: "Consolidate the sources and print one statement as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			a, err := bootstrap(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.consolidator.Consolidate(cmd.Context())
			if err != nil {
				return err
			}
			account := spreadsheet.NormalizeAccountID(args[0])
			for _, record := range result.Records {
				if record.AccountID != account {
					continue
				}
				for _, line := range stmtinterfaces.ComposeStatement(record, layoutFromConfig(cfg.Layout)) {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			}
			return fmt.Errorf("account %s not found in consolidated records", account)
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Print a run recorded in the run ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("status: DATABASE_URL is not set")
			}
			db, err := sql.Open("pgx", cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("db open: %w", err)
			}
			defer db.Close()

			run, err := audit.NewRepository(db).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
}

func newArchiveCommand() *cobra.Command {
	var (
		base           string
		deleteOriginal bool
	)
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Zip every administrator folder under the output base",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Read()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
			if base == "" {
				base = cfg.Output.Base
			}
			archives, err := archive.NewArchiver(logger).ZipAll(base, deleteOriginal)
			if err != nil {
				return err
			}
			for _, path := range archives {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "output base folder (default OUTPUT_BASE)")
	cmd.Flags().BoolVar(&deleteOriginal, "delete-originals", false, "remove folders after zipping")
	return cmd
}

func setup() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return cfg, logger, err
	}
	return cfg, logger, nil
}

type app struct {
	consolidator *stmtapp.Consolidator
	runner       *stmtapp.Runner
	closers      []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

func bootstrap(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		a.closers = append(a.closers, db)
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("db ping: %w", err)
		}
	}
	metrics.Init(db, logger)

	querier, err := newQuerier(ctx, cfg.Warehouse, logger, a)
	if err != nil {
		return nil, err
	}

	var refresher spreadsheet.Refresher = spreadsheet.NoopRefresher{}
	if cfg.Index.RefreshCommand != "" {
		cr, err := spreadsheet.NewCommandRefresher(cfg.Index.RefreshCommand, cfg.Index.SettleDelay, cfg.Index.SaveDelay, logger)
		if err != nil {
			return nil, err
		}
		refresher = cr
	}
	loader := spreadsheet.NewLoader(refresher, cfg.Index.Sheet, logger)

	a.consolidator, err = stmtapp.NewConsolidator(querier, loader, stmtapp.ConsolidatorConfig{
		Statement:   cfg.Warehouse.Statement,
		IndexPath:   cfg.Index.Path,
		MaxAttempts: cfg.Warehouse.MaxAttempts,
	}, logger)
	if err != nil {
		return nil, err
	}

	renderer, err := stmtinterfaces.NewPDFRenderer(cfg.Output.Base, layoutFromConfig(cfg.Layout), logger)
	if err != nil {
		return nil, err
	}

	opts := []stmtapp.RunnerOption{
		stmtapp.WithSummaryWriter(renderer),
		stmtapp.WithArchiver(archive.NewArchiver(logger)),
	}
	if repo := audit.NewRepository(db); repo != nil {
		opts = append(opts, stmtapp.WithLedger(repo))
	}
	notifier, err := newNotifier(ctx, cfg.Mail, logger)
	if err != nil {
		return nil, err
	}
	if notifier != nil {
		opts = append(opts, stmtapp.WithNotifier(notifier))
	}

	a.runner, err = stmtapp.NewRunner(a.consolidator, renderer, stmtapp.RunnerConfig{
		OutputBase:     cfg.Output.Base,
		PushgatewayURL: cfg.PushgatewayURL,
	}, logger, opts...)
	if err != nil {
		return nil, err
	}
	ok = true
	return a, nil
}

func layoutFromConfig(cfg config.LayoutConfig) stmtinterfaces.Layout {
	return stmtinterfaces.Layout{
		CompanyName:     cfg.CompanyName,
		StateCode:       cfg.StateCode,
		OmbudsmanPhone:  cfg.OmbudsmanPhone,
		FooterText:      cfg.FooterText,
		BackgroundImage: cfg.BackgroundImage,
	}
}

func newQuerier(ctx context.Context, cfg config.WarehouseConfig, logger zerolog.Logger, a *app) (warehouse.Querier, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		client, err := warehouse.OpenSQLClient(ctx, cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		return client, nil
	default:
		return warehouse.NewClient(cfg.Endpoint, cfg.Token, cfg.WarehouseID,
			warehouse.WithBackoffUnit(cfg.BackoffUnit),
			warehouse.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			warehouse.WithLogger(logger),
		)
	}
}

func newNotifier(ctx context.Context, cfg config.MailConfig, logger zerolog.Logger) (*notify.Notifier, error) {
	var sender notify.Sender
	switch cfg.Provider {
	case config.MailNone:
		return nil, nil
	case config.MailSES:
		ses, err := notify.NewSESSender(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		sender = ses
	default:
		smtp, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, err
		}
		sender = smtp
	}
	return notify.NewNotifier(sender, nil, notify.Config{
		From:    cfg.From,
		Subject: cfg.Subject,
		Contact: cfg.Contact,
	}, logger)
}

func printRun(w io.Writer, run audit.Run) {
	fmt.Fprintf(w, "run %s: %s\n", run.ID, run.Status)
	fmt.Fprintf(w, "  started:  %s\n", run.StartedAt.Format(time.RFC3339))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(w, "  finished: %s\n", run.FinishedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "  records=%d statements=%d archives=%d recipients=%d warnings=%d email_sent=%t\n",
		run.Records, run.Statements, run.Archives, run.Recipients, run.Warnings, run.EmailSent)
	if run.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", run.Error)
	}
}

func printReport(w io.Writer, report stmtapp.RunReport) {
	fmt.Fprintf(w, "run %s: %d records, %d statements, %d archives, %d warnings (%s)\n",
		report.RunID, report.Records, report.Statements, len(report.Archives), report.Warnings, report.Duration().Round(time.Millisecond))
	for _, branch := range report.Branches {
		fmt.Fprintf(w, "  UA%02d: %d\n", branch.Branch, branch.Count)
	}
	switch {
	case report.EmailSent:
		fmt.Fprintf(w, "email sent to %d recipients\n", len(report.Recipients))
	case report.EmailError != "":
		fmt.Fprintf(w, "email not sent: %s\n", report.EmailError)
	}
}
