package interfaces

import (
	"fmt"
	"strings"

	statement "cota-capital/internal/statement/domain"
)

const (
	dateLayout = "02/01/2006"

	emptyMonthText = "NENHUMA MOVIMENTACAO REGISTRADA NESTE MES."

	// Column grid of the statement body, in Courier characters.
	gridFormat       = "%-30s%-40s%17s%17s%23s"
	emptyMonthFormat = "%-30s%-42s%15s%17s%23s"
	closingFormat    = "%-30s%-40s%17s%-17s%23s"
)

// Layout holds the fixed texts printed on every statement.
type Layout struct {
	CompanyName     string
	StateCode       string
	OmbudsmanPhone  string
	FooterText      string
	BackgroundImage string
}

// DefaultLayout returns the layout used when no override is configured.
func DefaultLayout() Layout {
	return Layout{
		CompanyName: "SICREDI",
		StateCode:   "SC",
		FooterText:  "Sicredi Vale Litoral - SC",
	}
}

type elementKind int

const (
	textElement elementKind = iota
	ruleElement
	centeredElement
	footerElement
)

// element is one drawing instruction. top is measured from the top edge of the page;
// footer elements are anchored to the bottom edge instead.
type element struct {
	kind elementKind
	top  float64
	text string
}

// ComposeStatement returns the statement text lines in drawing order, footer included.
func ComposeStatement(record statement.AccountRecord, layout Layout) []string {
	var lines []string
	for _, el := range composePage(record, layout) {
		if el.kind != ruleElement {
			lines = append(lines, el.text)
		}
	}
	return lines
}

func composePage(record statement.AccountRecord, layout Layout) []element {
	var (
		els []element
		top = marginTop
	)
	text := func(s string) { els = append(els, element{kind: textElement, top: top, text: s}) }
	rule := func(offset float64) { els = append(els, element{kind: ruleElement, top: top + offset}) }

	rule(0)
	top += lineSpacing
	text(layout.CompanyName + " - EXTRATO DE CONTA CAPITAL")
	top += lineSpacing
	text(fmt.Sprintf("ASSOCIADO...: %s - %s", zeroFill(record.AccountID, 10), record.HolderName))
	top += lineSpacing
	text("ENDERECO....: " + record.Address)
	top += lineSpacing
	text(fmt.Sprintf("CIDADE......: %s - %s", record.Municipality, layout.StateCode))
	top += lineSpacing
	start, end := record.Period()
	text(fmt.Sprintf("%-30s%90s",
		fmt.Sprintf("PERIODO.....: %s a %s", start.Format(dateLayout), end.Format(dateLayout)),
		"EMISSAO: "+record.EmissionLabel))

	top += separatorSpacing
	rule(0)
	top += lineSpacing
	text(fmt.Sprintf(gridFormat, "DATA", "HISTORICO", "DEBITO", "CREDITO", "SALDO (R$)"))
	top += lineSpacing
	rule(-separatorSpacing)

	top += separatorSpacing
	text(fmt.Sprintf(gridFormat, "", "SALDO ANTERIOR", "", "", statement.FormatAmount(record.OpeningBalance())))

	top += lineSpacing
	if len(record.Movements) > 0 {
		running := record.RunningBalances()
		for i, mov := range record.Movements {
			text(fmt.Sprintf(gridFormat, mov.Date, mov.Type, "", mov.RawAmount, statement.FormatAmount(running[i])))
			top += lineSpacing
		}
	} else {
		text(fmt.Sprintf(emptyMonthFormat, "", emptyMonthText, "", "", ""))
	}

	top += separatorSpacing
	rule(0)
	top += lineSpacing
	text(fmt.Sprintf(closingFormat, "", "", "", "SALDO ATUAL (R$):", statement.FormatAmount(record.CapitalBalance)))
	top += lineSpacing
	rule(-separatorSpacing)

	top += separatorSpacing
	els = append(els, element{kind: centeredElement, top: top, text: fmt.Sprintf("Ouvidoria %s - %s", layout.CompanyName, layout.OmbudsmanPhone)})
	els = append(els, element{kind: footerElement, top: footerOffset, text: layout.FooterText})
	return els
}

// zeroFill left-pads s with zeros to width.
func zeroFill(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
