package interfaces

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog"

	"cota-capital/internal/logging"
	statement "cota-capital/internal/statement/domain"
)

const (
	statementsFolder = "Extratos de Cota Capital"

	marginLeft       = 50.0
	marginTop        = 90.0
	lineSpacing      = 10.0
	separatorSpacing = 5.0
	footerOffset     = 30.0
	ruleWidth        = 0.3

	bodyFont       = "Courier"
	bodyFontSize   = 6.5
	footerFontSize = 9.0

	backgroundName = "background"
	// A4 at 200 dpi; larger backgrounds are downscaled before embedding.
	backgroundMaxWidth  = 1654
	backgroundMaxHeight = 2339
)

var dashPattern = []float64{3, 3}

// PDFRenderer writes one single-page statement per account record.
type PDFRenderer struct {
	basePath   string
	layout     Layout
	background []byte
	bgWidth    int
	bgHeight   int
	logger     zerolog.Logger
}

// NewPDFRenderer constructs a renderer writing under basePath. Blank layout names fall back to
// DefaultLayout. The background image, when set, is decoded once here.
func NewPDFRenderer(basePath string, layout Layout, logger zerolog.Logger) (*PDFRenderer, error) {
	if basePath == "" {
		return nil, errors.New("pdf renderer: empty base path")
	}
	defaults := DefaultLayout()
	if layout.CompanyName == "" {
		layout.CompanyName = defaults.CompanyName
	}
	if layout.StateCode == "" {
		layout.StateCode = defaults.StateCode
	}
	if layout.FooterText == "" {
		layout.FooterText = defaults.FooterText
	}
	r := &PDFRenderer{basePath: basePath, layout: layout, logger: logger}
	if layout.BackgroundImage != "" {
		if err := r.loadBackground(layout.BackgroundImage); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// OutputPath returns {base}/UA{branch:02d}/Extratos de Cota Capital/{administrator}/{account}.pdf.
func OutputPath(base string, record statement.AccountRecord) string {
	return filepath.Join(base, fmt.Sprintf("UA%02d", record.Branch), statementsFolder,
		safeName(record.Administrator), safeName(record.AccountID)+".pdf")
}

// Render writes one PDF per record and returns per-branch and per-administrator counts.
// Existing files are overwritten.
func (r *PDFRenderer) Render(ctx context.Context, records []statement.AccountRecord) (statement.RenderSummary, error) {
	log := logging.FromContext(ctx, r.logger)
	var summary statement.RenderSummary
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if record.AccountID == "" {
			return summary, statement.ErrEmptyAccountID
		}
		if record.Administrator == "" {
			return summary, fmt.Errorf("account %s: %w", record.AccountID, statement.ErrEmptyAdministrator)
		}
		path := OutputPath(r.basePath, record)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return summary, fmt.Errorf("pdf renderer: %w", err)
		}
		data, err := r.BuildPDF(record)
		if err != nil {
			return summary, fmt.Errorf("pdf renderer: account %s: %w", record.AccountID, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return summary, fmt.Errorf("pdf renderer: %w", err)
		}
		summary.Add(statement.GeneratedStatement{
			Branch:        record.Branch,
			Administrator: record.Administrator,
			AccountID:     record.AccountID,
			HolderName:    record.HolderName,
			Opening:       record.OpeningBalance(),
			Closing:       record.CapitalBalance,
			Movements:     len(record.Movements),
			Path:          path,
		})
	}
	for _, branch := range summary.Branches {
		admins := make([]string, 0, len(branch.Administrators))
		for _, adm := range branch.Administrators {
			admins = append(admins, fmt.Sprintf("%s: %d", adm.Administrator, adm.Count))
		}
		log.Info().
			Str("branch", fmt.Sprintf("UA%02d", branch.Branch)).
			Int("statements", branch.Count).
			Str("administrators", strings.Join(admins, ", ")).
			Msg("statements generated")
	}
	return summary, nil
}

// BuildPDF renders a statement. Output is byte-identical for identical records.
func (r *PDFRenderer) BuildPDF(record statement.AccountRecord) ([]byte, error) {
	pdf := gofpdf.New("P", "pt", "A4", "")
	stamp := record.StatementDate
	if stamp.IsZero() {
		stamp = time.Unix(0, 0).UTC()
	}
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)
	pdf.SetCatalogSort(true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Extrato de Cota Capital "+record.AccountID, true)
	pdf.AddPage()

	width, height := pdf.GetPageSize()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if r.background != nil {
		r.drawBackground(pdf, width, height)
	}

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(ruleWidth)
	pdf.SetFont(bodyFont, "", bodyFontSize)
	pdf.SetTextColor(0, 0, 0)

	for _, el := range composePage(record, r.layout) {
		switch el.kind {
		case ruleElement:
			pdf.SetDashPattern(dashPattern, 0)
			pdf.Line(marginLeft, el.top, width-marginLeft, el.top)
			pdf.SetDashPattern([]float64{}, 0)
		case textElement:
			pdf.Text(marginLeft, el.top, tr(el.text))
		case centeredElement:
			s := tr(el.text)
			pdf.Text((width-pdf.GetStringWidth(s))/2, el.top, s)
		case footerElement:
			pdf.SetFont(bodyFont, "I", footerFontSize)
			pdf.SetTextColor(128, 128, 128)
			s := tr(el.text)
			pdf.Text(width-marginLeft-pdf.GetStringWidth(s), height-el.top, s)
			pdf.SetFont(bodyFont, "", bodyFontSize)
			pdf.SetTextColor(0, 0, 0)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) loadBackground(path string) error {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("pdf renderer: background: %w", err)
	}
	img = imaging.Fit(img, backgroundMaxWidth, backgroundMaxHeight, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return fmt.Errorf("pdf renderer: background: %w", err)
	}
	r.background = buf.Bytes()
	r.bgWidth, r.bgHeight = boundsSize(img)
	return nil
}

// drawBackground scales the image to the page preserving aspect ratio and centers it.
func (r *PDFRenderer) drawBackground(pdf *gofpdf.Fpdf, width, height float64) {
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(backgroundName, opts, bytes.NewReader(r.background))
	scale := width / float64(r.bgWidth)
	if s := height / float64(r.bgHeight); s < scale {
		scale = s
	}
	w, h := float64(r.bgWidth)*scale, float64(r.bgHeight)*scale
	pdf.ImageOptions(backgroundName, (width-w)/2, (height-h)/2, w, h, false, opts, 0, "")
}

func boundsSize(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

// safeName keeps a value usable as a single path element.
func safeName(s string) string {
	s = strings.TrimSpace(s)
	return strings.NewReplacer("/", "-", "\\", "-").Replace(s)
}
