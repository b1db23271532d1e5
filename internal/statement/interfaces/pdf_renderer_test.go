package interfaces

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"cota-capital/internal/logging"
	statement "cota-capital/internal/statement/domain"
)

func TestOutputPath(t *testing.T) {
	got := OutputPath("/base", sampleRecord(t))
	want := filepath.Join("/base", "UA04", "Extratos de Cota Capital", "ADM CENTRO", "00123-4.pdf")
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	base := t.TempDir()
	r, err := NewPDFRenderer(base, testLayout(), zerolog.Nop())
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	records := []statement.AccountRecord{sampleRecord(t)}

	summary, err := r.Render(context.Background(), records)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if summary.Total() != 1 || summary.Branches[0].Branch != 4 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	path := OutputPath(base, records[0])
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(first, []byte("%PDF-")) {
		t.Fatalf("output is not a pdf")
	}

	if _, err := r.Render(context.Background(), records); err != nil {
		t.Fatalf("second render: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf again: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("re-render changed the file")
	}
}

func TestRenderCountsPerBranchAndAdministrator(t *testing.T) {
	base := t.TempDir()
	r, _ := NewPDFRenderer(base, testLayout(), zerolog.Nop())
	a := sampleRecord(t)
	b := sampleRecord(t)
	b.AccountID = "00456-7"
	c := sampleRecord(t)
	c.AccountID = "00789-0"
	c.Branch = 12
	c.Administrator = "ADM SUL"

	summary, err := r.Render(context.Background(), []statement.AccountRecord{a, b, c})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(summary.Branches) != 2 || summary.Branches[0].Count != 2 || summary.Branches[1].Count != 1 {
		t.Fatalf("unexpected counts %+v", summary.Branches)
	}
	if _, err := os.Stat(filepath.Join(base, "UA12", statementsFolder, "ADM SUL", "00789-0.pdf")); err != nil {
		t.Fatalf("expected branch 12 statement: %v", err)
	}
}

func TestNewPDFRendererFillsBlankLayout(t *testing.T) {
	r, err := NewPDFRenderer(t.TempDir(), Layout{OmbudsmanPhone: "0800 000 0000"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	want := DefaultLayout()
	want.OmbudsmanPhone = "0800 000 0000"
	if r.layout != want {
		t.Fatalf("expected %+v, got %+v", want, r.layout)
	}
}

func TestRenderLogsWithContextLogger(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewPDFRenderer(t.TempDir(), testLayout(), zerolog.Nop())
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	ctx := logging.WithContext(context.Background(), zerolog.New(&buf).With().Str("run_id", "run-3").Logger())
	if _, err := r.Render(ctx, []statement.AccountRecord{sampleRecord(t)}); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"branch":"UA04"`) || !strings.Contains(out, `"run_id":"run-3"`) {
		t.Fatalf("expected run-scoped branch log, got %s", out)
	}
}

func TestRenderRejectsMissingAdministrator(t *testing.T) {
	r, _ := NewPDFRenderer(t.TempDir(), testLayout(), zerolog.Nop())
	record := sampleRecord(t)
	record.Administrator = ""
	if _, err := r.Render(context.Background(), []statement.AccountRecord{record}); !errors.Is(err, statement.ErrEmptyAdministrator) {
		t.Fatalf("expected ErrEmptyAdministrator, got %v", err)
	}
}

func TestRenderStopsOnCancelledContext(t *testing.T) {
	r, _ := NewPDFRenderer(t.TempDir(), testLayout(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Render(ctx, []statement.AccountRecord{sampleRecord(t)}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBuildPDFWithBackground(t *testing.T) {
	dir := t.TempDir()
	bg := filepath.Join(dir, "background.png")
	if err := imaging.Save(imaging.New(40, 20, color.NRGBA{R: 200, G: 230, B: 200, A: 255}), bg); err != nil {
		t.Fatalf("save background: %v", err)
	}
	layout := testLayout()
	layout.BackgroundImage = bg
	r, err := NewPDFRenderer(dir, layout, zerolog.Nop())
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	if r.bgWidth != 40 || r.bgHeight != 20 {
		t.Fatalf("unexpected background size %dx%d", r.bgWidth, r.bgHeight)
	}
	data, err := r.BuildPDF(sampleRecord(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !bytes.Contains(data, []byte("/Subtype /Image")) {
		t.Fatalf("background image not embedded")
	}
}

func TestNewPDFRendererMissingBackground(t *testing.T) {
	layout := testLayout()
	layout.BackgroundImage = filepath.Join(t.TempDir(), "missing.png")
	if _, err := NewPDFRenderer(t.TempDir(), layout, zerolog.Nop()); err == nil {
		t.Fatalf("expected background load error")
	}
}

func TestWriteSummaryWorkbook(t *testing.T) {
	base := t.TempDir()
	r, _ := NewPDFRenderer(base, testLayout(), zerolog.Nop())
	a := sampleRecord(t)
	b := sampleRecord(t)
	b.AccountID = "00456-7"
	summary, err := r.Render(context.Background(), []statement.AccountRecord{a, b})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	path, err := r.WriteSummary(summary)
	if err != nil {
		t.Fatalf("write summary: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open summary: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(statementsSheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 || rows[1][0] != "UA04" || rows[2][2] != "00456-7" {
		t.Fatalf("unexpected statement rows %v", rows)
	}
	totals, err := f.GetRows(branchesSheet)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if len(totals) != 2 || totals[1][1] != "ADM CENTRO" || totals[1][2] != "2" || totals[1][3] != "2000" {
		t.Fatalf("unexpected totals %v", totals)
	}
}
