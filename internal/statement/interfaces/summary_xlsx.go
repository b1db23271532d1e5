package interfaces

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	statement "cota-capital/internal/statement/domain"
)

// SummaryFileName is the workbook written at the output root after rendering.
const SummaryFileName = "resumo.xlsx"

const (
	statementsSheet = "extratos"
	branchesSheet   = "agencias"
)

// BuildSummaryXLSX lists every generated statement and the per-branch totals.
func BuildSummaryXLSX(summary statement.RenderSummary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", statementsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(branchesSheet); err != nil {
		return nil, err
	}

	headers := []any{"Agência", "Administradora", "Conta", "Nome", "Saldo Anterior", "Saldo Atual", "Movimentações", "Arquivo"}
	if err := f.SetSheetRow(statementsSheet, "A1", &headers); err != nil {
		return nil, err
	}
	for i, s := range summary.Statements {
		row := []any{
			fmt.Sprintf("UA%02d", s.Branch),
			s.Administrator,
			s.AccountID,
			s.HolderName,
			s.Opening.Round(2).InexactFloat64(),
			s.Closing.Round(2).InexactFloat64(),
			s.Movements,
			s.Path,
		}
		if err := f.SetSheetRow(statementsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	totals := branchTotals(summary)
	_ = f.SetCellValue(branchesSheet, "A1", "Agência")
	_ = f.SetCellValue(branchesSheet, "B1", "Administradora")
	_ = f.SetCellValue(branchesSheet, "C1", "Extratos")
	_ = f.SetCellValue(branchesSheet, "D1", "Saldo Total")
	row := 2
	for _, branch := range summary.Branches {
		for _, adm := range branch.Administrators {
			_ = f.SetCellValue(branchesSheet, fmt.Sprintf("A%d", row), fmt.Sprintf("UA%02d", branch.Branch))
			_ = f.SetCellValue(branchesSheet, fmt.Sprintf("B%d", row), adm.Administrator)
			_ = f.SetCellValue(branchesSheet, fmt.Sprintf("C%d", row), adm.Count)
			_ = f.SetCellValue(branchesSheet, fmt.Sprintf("D%d", row), totals[totalKey{branch.Branch, adm.Administrator}].Round(2).InexactFloat64())
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteSummary writes the summary workbook at the output root and returns its path.
func (r *PDFRenderer) WriteSummary(summary statement.RenderSummary) (string, error) {
	data, err := BuildSummaryXLSX(summary)
	if err != nil {
		return "", fmt.Errorf("summary workbook: %w", err)
	}
	if err := os.MkdirAll(r.basePath, 0o755); err != nil {
		return "", fmt.Errorf("summary workbook: %w", err)
	}
	path := filepath.Join(r.basePath, SummaryFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("summary workbook: %w", err)
	}
	return path, nil
}

type totalKey struct {
	branch        int
	administrator string
}

func branchTotals(summary statement.RenderSummary) map[totalKey]decimal.Decimal {
	out := make(map[totalKey]decimal.Decimal)
	for _, s := range summary.Statements {
		k := totalKey{s.Branch, s.Administrator}
		out[k] = out[k].Add(s.Closing)
	}
	return out
}
