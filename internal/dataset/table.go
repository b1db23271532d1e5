package dataset

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrColumnNotFound is returned when a column lookup fails.
var ErrColumnNotFound = errors.New("dataset: column not found")

// Table is a tabular result with named columns. Missing cells read as "".
type Table struct {
	Columns []string
	Rows    [][]string
}

// New constructs a table, padding or truncating rows to the column count.
func New(columns []string, rows [][]string) *Table {
	t := &Table{Columns: append([]string(nil), columns...)}
	for _, row := range rows {
		t.Append(row)
	}
	return t
}

// Append adds a row sized to the table's columns.
func (t *Table) Append(row []string) {
	fixed := make([]string, len(t.Columns))
	copy(fixed, row)
	t.Rows = append(t.Rows, fixed)
}

// Len returns the row count.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of a column. Names are compared case- and accent-insensitively,
// so "agência", "Agencia" and "AGENCIA" resolve to the same column.
func (t *Table) Index(name string) (int, error) {
	if t == nil {
		return -1, ErrColumnNotFound
	}
	want := FoldHeader(name)
	for i, col := range t.Columns {
		if FoldHeader(col) == want {
			return i, nil
		}
	}
	return -1, ErrColumnNotFound
}

// Value returns the cell at row/column, or "" when either is unknown.
func (t *Table) Value(row int, name string) string {
	idx, err := t.Index(name)
	if err != nil || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][idx]
}

// RowMap returns a row keyed by folded column name.
func (t *Table) RowMap(row int) map[string]string {
	out := make(map[string]string, len(t.Columns))
	if row < 0 || row >= len(t.Rows) {
		return out
	}
	for i, col := range t.Columns {
		out[FoldHeader(col)] = t.Rows[row][i]
	}
	return out
}

// FoldHeader lower-cases, trims and strips diacritics from a column name.
func FoldHeader(name string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
