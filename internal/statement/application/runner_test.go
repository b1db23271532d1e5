package application

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cota-capital/internal/audit"
	"cota-capital/internal/logging"
	"cota-capital/internal/notify"
	statement "cota-capital/internal/statement/domain"
)

type stubSource struct {
	result Consolidation
	err    error
	ctx    context.Context
}

func (s *stubSource) Consolidate(ctx context.Context) (Consolidation, error) {
	s.ctx = ctx
	return s.result, s.err
}

type stubRenderer struct {
	calls int
	err   error
}

func (s *stubRenderer) Render(_ context.Context, records []statement.AccountRecord) (statement.RenderSummary, error) {
	s.calls++
	var summary statement.RenderSummary
	if s.err != nil {
		return summary, s.err
	}
	for _, r := range records {
		summary.Add(statement.GeneratedStatement{Branch: r.Branch, Administrator: r.Administrator, AccountID: r.AccountID})
	}
	return summary, nil
}

type stubSummary struct{ path string }

func (s stubSummary) WriteSummary(statement.RenderSummary) (string, error) {
	return s.path, nil
}

type stubArchiver struct {
	calls  int
	delete bool
	base   string
}

func (s *stubArchiver) ZipAll(base string, deleteOriginal bool) ([]string, error) {
	s.calls++
	s.base = base
	s.delete = deleteOriginal
	return []string{base + "/UA01/Extratos de Cota Capital/ADM.zip"}, nil
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Notify(_ context.Context, records []statement.AccountRecord) ([]string, error) {
	s.calls++
	if s.err != nil {
		return []string{"a@x.com"}, s.err
	}
	return []string{"a@x.com", "b@x.com"}, nil
}

type memoryLedger struct {
	started  []string
	finished []audit.Run
}

func (m *memoryLedger) Start(_ context.Context, runID string, _ time.Time) error {
	m.started = append(m.started, runID)
	return nil
}

func (m *memoryLedger) Finish(_ context.Context, run audit.Run) error {
	m.finished = append(m.finished, run)
	return nil
}

func runnerRecords() []statement.AccountRecord {
	return []statement.AccountRecord{
		{AccountID: "00123-4", Branch: 1, Administrator: "ADM", CapitalBalance: decimal.NewFromInt(100), MonthlyMovement: decimal.NewFromInt(10),
			Movements: []statement.Movement{{Amount: decimal.NewFromInt(10)}}},
		{AccountID: "00456-7", Branch: 2, Administrator: "ADM", CapitalBalance: decimal.NewFromInt(50), MonthlyMovement: decimal.NewFromInt(5)},
	}
}

func TestRunnerRunsAllStages(t *testing.T) {
	renderer := &stubRenderer{}
	archiver := &stubArchiver{}
	notifier := &stubNotifier{}
	ledger := &memoryLedger{}
	source := &stubSource{result: Consolidation{Records: runnerRecords(), Warnings: 2}}

	runner, err := NewRunner(source, renderer, RunnerConfig{OutputBase: "/out"}, zerolog.Nop(),
		WithSummaryWriter(stubSummary{path: "/out/resumo.xlsx"}),
		WithArchiver(archiver),
		WithNotifier(notifier),
		WithLedger(ledger),
	)
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	report, err := runner.Run(context.Background(), RunOptions{DeleteOriginals: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.RunID == "" || report.Records != 2 || report.Statements != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	// two coercion warnings plus one unreconciled record
	if report.Warnings != 3 {
		t.Fatalf("expected 3 warnings, got %d", report.Warnings)
	}
	if report.SummaryPath != "/out/resumo.xlsx" || len(report.Archives) != 1 {
		t.Fatalf("unexpected outputs %+v", report)
	}
	if archiver.base != "/out" || !archiver.delete {
		t.Fatalf("archiver got base=%s delete=%v", archiver.base, archiver.delete)
	}
	if !report.EmailSent || len(report.Recipients) != 2 {
		t.Fatalf("expected email sent to 2 recipients: %+v", report)
	}
	if len(ledger.started) != 1 || len(ledger.finished) != 1 || ledger.finished[0].Status != audit.StatusSucceeded {
		t.Fatalf("unexpected ledger %+v", ledger)
	}
	if ledger.finished[0].ID != report.RunID || ledger.finished[0].Statements != 2 {
		t.Fatalf("ledger row does not match report: %+v", ledger.finished[0])
	}
}

func TestRunnerPassesRunLoggerThroughContext(t *testing.T) {
	var buf bytes.Buffer
	source := &stubSource{result: Consolidation{Records: runnerRecords()}}
	runner, err := NewRunner(source, &stubRenderer{}, RunnerConfig{OutputBase: "/out"}, zerolog.New(&buf))
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	report, err := runner.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	buf.Reset()
	logger := logging.FromContext(source.ctx, zerolog.Nop())
	logger.Info().Msg("stage line")
	if !strings.Contains(buf.String(), `"run_id":"`+report.RunID+`"`) {
		t.Fatalf("stage logger is not run-scoped: %s", buf.String())
	}
}

func TestRunnerEmailFailureDoesNotFailRun(t *testing.T) {
	ledger := &memoryLedger{}
	notifier := &stubNotifier{err: errors.New("smtp: 535 auth failed")}
	runner, _ := NewRunner(&stubSource{result: Consolidation{Records: runnerRecords()}}, &stubRenderer{}, RunnerConfig{OutputBase: "/out"}, zerolog.Nop(),
		WithNotifier(notifier), WithLedger(ledger))

	report, err := runner.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("email failure must not fail the run: %v", err)
	}
	if report.EmailSent || report.EmailError == "" || report.Statements != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if ledger.finished[0].Status != audit.StatusSucceeded || ledger.finished[0].Error == "" {
		t.Fatalf("ledger should record the delivery error: %+v", ledger.finished[0])
	}
}

func TestRunnerNoRecipients(t *testing.T) {
	notifier := &stubNotifier{err: notify.ErrNoRecipients}
	runner, _ := NewRunner(&stubSource{result: Consolidation{Records: runnerRecords()}}, &stubRenderer{}, RunnerConfig{OutputBase: "/out"}, zerolog.Nop(),
		WithNotifier(notifier))
	report, err := runner.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.EmailSent {
		t.Fatalf("nothing should be sent")
	}
}

func TestRunnerConsolidationFailureAborts(t *testing.T) {
	boom := errors.New("warehouse down")
	renderer := &stubRenderer{}
	ledger := &memoryLedger{}
	runner, _ := NewRunner(&stubSource{err: boom}, renderer, RunnerConfig{OutputBase: "/out"}, zerolog.Nop(), WithLedger(ledger))

	_, err := runner.Run(context.Background(), RunOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected consolidation error, got %v", err)
	}
	if renderer.calls != 0 {
		t.Fatalf("renderer should not run after a failed consolidation")
	}
	if ledger.finished[0].Status != audit.StatusFailed {
		t.Fatalf("expected failed ledger row, got %+v", ledger.finished[0])
	}
}

func TestRunnerRenderFailureSkipsLaterStages(t *testing.T) {
	archiver := &stubArchiver{}
	notifier := &stubNotifier{}
	runner, _ := NewRunner(&stubSource{result: Consolidation{Records: runnerRecords()}}, &stubRenderer{err: errors.New("disk full")},
		RunnerConfig{OutputBase: "/out"}, zerolog.Nop(), WithArchiver(archiver), WithNotifier(notifier))

	if _, err := runner.Run(context.Background(), RunOptions{}); err == nil {
		t.Fatalf("expected render error")
	}
	if archiver.calls != 0 || notifier.calls != 0 {
		t.Fatalf("later stages ran after render failure")
	}
}

func TestRunnerSkipOptions(t *testing.T) {
	archiver := &stubArchiver{}
	notifier := &stubNotifier{}
	runner, _ := NewRunner(&stubSource{result: Consolidation{Records: runnerRecords()}}, &stubRenderer{},
		RunnerConfig{OutputBase: "/out"}, zerolog.Nop(), WithArchiver(archiver), WithNotifier(notifier))

	report, err := runner.Run(context.Background(), RunOptions{SkipArchive: true, SkipEmail: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if archiver.calls != 0 || notifier.calls != 0 || report.EmailSent {
		t.Fatalf("skipped stages ran")
	}
}

func TestNewRunnerValidates(t *testing.T) {
	if _, err := NewRunner(nil, &stubRenderer{}, RunnerConfig{OutputBase: "/out"}, zerolog.Nop()); err == nil {
		t.Fatalf("expected nil source error")
	}
	if _, err := NewRunner(&stubSource{}, &stubRenderer{}, RunnerConfig{}, zerolog.Nop()); err == nil {
		t.Fatalf("expected empty output base error")
	}
}
