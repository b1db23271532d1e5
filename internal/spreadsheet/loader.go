package spreadsheet

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"cota-capital/internal/dataset"
)

// AccountColumn is the key column shared with the warehouse table.
const AccountColumn = "conta"

// ErrEmptyWorkbook is returned when the selected sheet has no header row.
var ErrEmptyWorkbook = errors.New("spreadsheet: empty workbook")

// Loader refreshes and reads the account index workbook.
type Loader struct {
	refresher Refresher
	sheet     string
	logger    zerolog.Logger
}

// NewLoader constructs a loader. A nil refresher reads the workbook as-is.
func NewLoader(refresher Refresher, sheet string, logger zerolog.Logger) *Loader {
	if refresher == nil {
		refresher = NoopRefresher{}
	}
	return &Loader{refresher: refresher, sheet: sheet, logger: logger}
}

// Load refreshes the workbook at path, reads it and normalizes the account column.
func (l *Loader) Load(ctx context.Context, path string) (*dataset.Table, error) {
	if path == "" {
		return nil, errors.New("spreadsheet: empty path")
	}
	if err := l.refresher.Refresh(ctx, path); err != nil {
		return nil, err
	}
	table, err := ReadWorkbook(path, l.sheet)
	if err != nil {
		return nil, err
	}
	if err := NormalizeAccounts(table, AccountColumn); err != nil {
		return nil, err
	}
	l.logger.Info().Str("workbook", path).Int("rows", table.Len()).Int("columns", len(table.Columns)).Msg("index workbook loaded")
	return table, nil
}

// ReadWorkbook reads a sheet (first sheet when empty) using its first row as header.
func ReadWorkbook(path, sheet string) (*dataset.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyWorkbook
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("spreadsheet: read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyWorkbook
	}
	table := dataset.New(rows[0], nil)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		table.Append(row)
	}
	return table, nil
}

// NormalizeAccounts rewrites column in place with NormalizeAccountID.
func NormalizeAccounts(table *dataset.Table, column string) error {
	idx, err := table.Index(column)
	if err != nil {
		return fmt.Errorf("spreadsheet: %s: %w", column, err)
	}
	for _, row := range table.Rows {
		row[idx] = NormalizeAccountID(row[idx])
	}
	return nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
