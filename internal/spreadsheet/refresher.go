package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrRefreshFailed is returned when the workbook could not be refreshed.
var ErrRefreshFailed = errors.New("spreadsheet: refresh failed")

// Refresher brings a workbook's embedded data query up to date before it is read.
type Refresher interface {
	Refresh(ctx context.Context, path string) error
}

// NoopRefresher is used when the workbook is already a direct data export.
type NoopRefresher struct{}

// Refresh does nothing.
func (NoopRefresher) Refresh(context.Context, string) error { return nil }

// CommandRefresher runs an external program that opens the workbook, refreshes its queries,
// saves and closes it. "{path}" in the arguments is replaced by the workbook path.
type CommandRefresher struct {
	Name        string
	Args        []string
	SettleDelay time.Duration
	SaveDelay   time.Duration
	Logger      zerolog.Logger

	run   func(ctx context.Context, name string, args ...string) ([]byte, error)
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCommandRefresher parses a command line such as `soffice --headless --convert-to xlsx {path}`.
func NewCommandRefresher(commandLine string, settle, save time.Duration, logger zerolog.Logger) (*CommandRefresher, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("spreadsheet: empty refresh command")
	}
	return &CommandRefresher{
		Name:        fields[0],
		Args:        fields[1:],
		SettleDelay: settle,
		SaveDelay:   save,
		Logger:      logger,
	}, nil
}

// Refresh runs the command and waits the configured settle times around it.
func (r *CommandRefresher) Refresh(ctx context.Context, path string) error {
	if r == nil || r.Name == "" {
		return fmt.Errorf("%w: no command", ErrRefreshFailed)
	}
	run := r.run
	if run == nil {
		run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		}
	}
	sleep := r.sleep
	if sleep == nil {
		sleep = waitContext
	}

	args := make([]string, len(r.Args))
	for i, arg := range r.Args {
		args[i] = strings.ReplaceAll(arg, "{path}", path)
	}

	r.Logger.Info().Str("workbook", path).Str("command", r.Name).Msg("refreshing workbook")
	if err := sleep(ctx, r.SettleDelay); err != nil {
		return err
	}
	out, err := run(ctx, r.Name, args...)
	if err != nil {
		return fmt.Errorf("%w: %v: %s", ErrRefreshFailed, err, strings.TrimSpace(string(out)))
	}
	if err := sleep(ctx, r.SaveDelay); err != nil {
		return err
	}
	return nil
}

func waitContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
