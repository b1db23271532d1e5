package application

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"cota-capital/internal/dataset"
	statement "cota-capital/internal/statement/domain"
)

// Column names shared by the warehouse result and the index workbook.
const (
	ColumnAccount       = "conta"
	ColumnBranch        = "agência"
	ColumnAdministrator = "administradora"
	ColumnHolderName    = "nome"
	ColumnAddress       = "endereco_completo"
	ColumnMunicipality  = "municipio"
	ColumnCapital       = "capital_social"
	ColumnMovement      = "movimentacao"
	ColumnEmissionDate  = "data_emissao"
	ColumnMovements     = "tipo_valor_data_movimentacao"
	ColumnEmail         = "email"
)

var dateLayouts = []string{
	"02/01/2006",
	"02/01/2006 15:04:05",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// mapRecord turns a merged row keyed by folded column names into a typed record.
// Unparseable values degrade to zero values; each degradation is reported as a warning.
func mapRecord(row map[string]string, runDate time.Time) (statement.AccountRecord, []string) {
	get := func(column string) string {
		return strings.TrimSpace(row[dataset.FoldHeader(column)])
	}
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	record := statement.AccountRecord{
		AccountID:     get(ColumnAccount),
		Administrator: get(ColumnAdministrator),
		HolderName:    get(ColumnHolderName),
		Address:       get(ColumnAddress),
		Municipality:  get(ColumnMunicipality),
		Email:         get(ColumnEmail),
	}

	branch, ok := parseBranch(get(ColumnBranch))
	if !ok {
		warn("%s: unparseable value %q", ColumnBranch, get(ColumnBranch))
	}
	record.Branch = branch

	capital, ok := parseDecimal(get(ColumnCapital))
	if !ok {
		warn("%s: unparseable value %q", ColumnCapital, get(ColumnCapital))
	}
	record.CapitalBalance = capital

	movement, ok := parseDecimal(get(ColumnMovement))
	if !ok {
		warn("%s: unparseable value %q", ColumnMovement, get(ColumnMovement))
	}
	record.MonthlyMovement = movement

	rawDate := get(ColumnEmissionDate)
	date, ok := parseDate(rawDate)
	if !ok {
		warn("%s: unparseable value %q, using run date", ColumnEmissionDate, rawDate)
		date = time.Date(runDate.Year(), runDate.Month(), runDate.Day(), 0, 0, 0, 0, time.UTC)
	}
	record.StatementDate = date
	record.EmissionLabel = date.Format("02/01/2006")

	movements, err := parseMovements(get(ColumnMovements))
	if err != nil {
		warn("%s: %v", ColumnMovements, err)
	}
	record.Movements = movements

	return record, warnings
}

// parseDecimal accepts "1234.56" and "1.234,56". Blank is zero without complaint.
func parseDecimal(raw string) (decimal.Decimal, bool) {
	value := strings.TrimSpace(raw)
	if value == "" || isNullLiteral(value) {
		return decimal.Zero, true
	}
	if d, err := decimal.NewFromString(value); err == nil {
		return d, true
	}
	if strings.Contains(value, ",") {
		local := strings.ReplaceAll(strings.ReplaceAll(value, ".", ""), ",", ".")
		if d, err := decimal.NewFromString(local); err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}

func parseBranch(raw string) (int, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

// parseDate accepts the textual layouts the sources emit and Excel serial day numbers.
func parseDate(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

type movementJSON struct {
	Date   json.RawMessage `json:"data_transacao"`
	Type   json.RawMessage `json:"tipo_movimento"`
	Amount json.RawMessage `json:"valor_transacao"`
}

// parseMovements decodes the JSON-encoded movement list. Malformed input yields no movements.
func parseMovements(raw string) ([]statement.Movement, error) {
	value := strings.TrimSpace(raw)
	if value == "" || isNullLiteral(value) {
		return nil, nil
	}
	var items []movementJSON
	if err := json.Unmarshal([]byte(value), &items); err != nil {
		return nil, fmt.Errorf("malformed movement list: %v", err)
	}
	movements := make([]statement.Movement, 0, len(items))
	var bad []string
	for _, item := range items {
		rawAmount := rawText(item.Amount)
		amount, ok := parseDecimal(rawAmount)
		if !ok {
			bad = append(bad, rawAmount)
		}
		movements = append(movements, statement.Movement{
			Date:      rawText(item.Date),
			Type:      rawText(item.Type),
			Amount:    amount,
			RawAmount: rawAmount,
		})
	}
	if len(bad) > 0 {
		return movements, fmt.Errorf("unparseable amounts %v treated as zero", bad)
	}
	return movements, nil
}

// rawText returns a JSON scalar as printed: strings unquoted, numbers verbatim, null empty.
func rawText(raw json.RawMessage) string {
	value := strings.TrimSpace(string(raw))
	if value == "" || value == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return value
}

func isNullLiteral(value string) bool {
	switch strings.ToLower(value) {
	case "null", "none", "nan", "nat":
		return true
	}
	return false
}
