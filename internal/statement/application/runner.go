package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cota-capital/internal/audit"
	"cota-capital/internal/logging"
	"cota-capital/internal/notify"
	"cota-capital/internal/observability/metrics"
	statement "cota-capital/internal/statement/domain"
)

const (
	stageConsolidate = "consolidate"
	stageRender      = "render"
	stageSummary     = "summary"
	stageArchive     = "archive"
	stageNotify      = "notify"
)

// RecordSource produces the consolidated records of a run.
type RecordSource interface {
	Consolidate(ctx context.Context) (Consolidation, error)
}

// Renderer writes statement files.
type Renderer interface {
	Render(ctx context.Context, records []statement.AccountRecord) (statement.RenderSummary, error)
}

// SummaryWriter persists the render summary.
type SummaryWriter interface {
	WriteSummary(summary statement.RenderSummary) (string, error)
}

// Archiver compresses the output tree.
type Archiver interface {
	ZipAll(base string, deleteOriginal bool) ([]string, error)
}

// Notifier emails the run recipients.
type Notifier interface {
	Notify(ctx context.Context, records []statement.AccountRecord) ([]string, error)
}

// RunOptions tunes a single run.
type RunOptions struct {
	SkipArchive     bool
	SkipEmail       bool
	DeleteOriginals bool
}

// RunReport is the outcome of a run.
type RunReport struct {
	RunID       string
	Records     int
	Statements  int
	Branches    []statement.BranchCount
	SummaryPath string
	Archives    []string
	Recipients  []string
	EmailSent   bool
	EmailError  string
	Warnings    int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration returns the wall time of the run.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunnerConfig holds run-wide settings.
type RunnerConfig struct {
	OutputBase     string
	PushgatewayURL string
}

// Runner executes the statement pipeline: consolidate, render, summarize, archive, notify.
type Runner struct {
	source   RecordSource
	renderer Renderer
	summary  SummaryWriter
	archiver Archiver
	notifier Notifier
	ledger   audit.Ledger
	cfg      RunnerConfig
	clock    func() time.Time
	logger   zerolog.Logger
}

// RunnerOption configures optional collaborators.
type RunnerOption func(*Runner)

// WithSummaryWriter writes the summary workbook after rendering.
func WithSummaryWriter(w SummaryWriter) RunnerOption {
	return func(r *Runner) { r.summary = w }
}

// WithArchiver compresses administrator folders after rendering.
func WithArchiver(a Archiver) RunnerOption {
	return func(r *Runner) { r.archiver = a }
}

// WithNotifier sends the notification email.
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithLedger records runs in the audit ledger.
func WithLedger(l audit.Ledger) RunnerOption {
	return func(r *Runner) { r.ledger = l }
}

// NewRunner constructs a Runner.
func NewRunner(source RecordSource, renderer Renderer, cfg RunnerConfig, logger zerolog.Logger, opts ...RunnerOption) (*Runner, error) {
	if source == nil {
		return nil, errors.New("statement runner: nil record source")
	}
	if renderer == nil {
		return nil, errors.New("statement runner: nil renderer")
	}
	if cfg.OutputBase == "" {
		return nil, errors.New("statement runner: empty output base")
	}
	r := &Runner{
		source:   source,
		renderer: renderer,
		cfg:      cfg,
		clock:    time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes one pipeline pass. Failures before the notification stage abort the run;
// a failed notification is recorded in the report and does not fail the run.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (RunReport, error) {
	if r == nil {
		return RunReport{}, errors.New("statement runner: nil")
	}
	report := RunReport{RunID: uuid.NewString(), StartedAt: r.clock().UTC()}
	log := r.logger.With().Str("run_id", report.RunID).Logger()
	ctx = logging.WithContext(ctx, log)
	log.Info().Str("event", "run_start").Msg("statement run started")
	if r.ledger != nil {
		if err := r.ledger.Start(ctx, report.RunID, report.StartedAt); err != nil {
			log.Warn().Err(err).Msg("run ledger start failed")
		}
	}

	var consolidation Consolidation
	err := r.stage(stageConsolidate, func() error {
		var err error
		consolidation, err = r.source.Consolidate(ctx)
		return err
	})
	if err != nil {
		return r.fail(ctx, log, report, stageConsolidate, err)
	}
	records := consolidation.Records
	report.Records = len(records)
	report.Warnings = consolidation.Warnings
	for _, record := range records {
		if !record.Reconciles() {
			report.Warnings++
			log.Warn().
				Str("account", record.AccountID).
				Str("movement", record.MonthlyMovement.String()).
				Str("itemized", record.MovementTotal().String()).
				Msg("movements do not reconcile with monthly movement")
		}
	}

	var summary statement.RenderSummary
	err = r.stage(stageRender, func() error {
		var err error
		summary, err = r.renderer.Render(ctx, records)
		return err
	})
	if err != nil {
		return r.fail(ctx, log, report, stageRender, err)
	}
	report.Statements = summary.Total()
	report.Branches = summary.Branches
	for _, branch := range summary.Branches {
		metrics.AddStatements(branch.Branch, branch.Count)
	}

	if r.summary != nil {
		err = r.stage(stageSummary, func() error {
			var err error
			report.SummaryPath, err = r.summary.WriteSummary(summary)
			return err
		})
		if err != nil {
			return r.fail(ctx, log, report, stageSummary, err)
		}
	}

	if r.archiver != nil && !opts.SkipArchive {
		err = r.stage(stageArchive, func() error {
			var err error
			report.Archives, err = r.archiver.ZipAll(r.cfg.OutputBase, opts.DeleteOriginals)
			return err
		})
		if err != nil {
			return r.fail(ctx, log, report, stageArchive, err)
		}
	}

	if r.notifier != nil && !opts.SkipEmail {
		err = r.stage(stageNotify, func() error {
			var err error
			report.Recipients, err = r.notifier.Notify(ctx, records)
			return err
		})
		metrics.IncNotification(err)
		switch {
		case err == nil:
			report.EmailSent = true
			log.Info().Int("recipients", len(report.Recipients)).Msg("notification sent")
		case errors.Is(err, notify.ErrNoRecipients):
			report.EmailError = err.Error()
			log.Warn().Msg("no recipients; notification skipped")
		default:
			report.EmailError = err.Error()
			log.Error().Err(err).Msg("notification failed")
		}
	}

	report.FinishedAt = r.clock().UTC()
	metrics.AddWarnings(report.Warnings)
	metrics.ObserveRun(nil, report.Duration(), report.FinishedAt)
	r.finish(ctx, log, report, audit.StatusSucceeded, report.EmailError)
	log.Info().
		Str("event", "run_finish").
		Int("records", report.Records).
		Int("statements", report.Statements).
		Int("archives", len(report.Archives)).
		Int("warnings", report.Warnings).
		Bool("email_sent", report.EmailSent).
		Dur("duration", report.Duration()).
		Msg("statement run finished")
	return report, nil
}

func (r *Runner) stage(name string, fn func() error) error {
	started := time.Now()
	err := fn()
	metrics.ObserveStage(name, err, time.Since(started))
	return err
}

func (r *Runner) fail(ctx context.Context, log zerolog.Logger, report RunReport, stage string, err error) (RunReport, error) {
	report.FinishedAt = r.clock().UTC()
	metrics.ObserveRun(err, report.Duration(), report.FinishedAt)
	log.Error().Err(err).Str("event", "run_failed").Str("stage", stage).Msg("statement run failed")
	r.finish(ctx, log, report, audit.StatusFailed, err.Error())
	return report, fmt.Errorf("%s: %w", stage, err)
}

func (r *Runner) finish(ctx context.Context, log zerolog.Logger, report RunReport, status, errMsg string) {
	if r.cfg.PushgatewayURL != "" {
		if err := metrics.Push(ctx, r.cfg.PushgatewayURL); err != nil {
			log.Warn().Err(err).Msg("metrics push failed")
		}
	}
	if r.ledger == nil {
		return
	}
	err := r.ledger.Finish(ctx, audit.Run{
		ID:         report.RunID,
		Status:     status,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Records:    report.Records,
		Statements: report.Statements,
		Archives:   len(report.Archives),
		Recipients: len(report.Recipients),
		EmailSent:  report.EmailSent,
		Warnings:   report.Warnings,
		Error:      errMsg,
	})
	if err != nil {
		log.Warn().Err(err).Msg("run ledger finish failed")
	}
}
