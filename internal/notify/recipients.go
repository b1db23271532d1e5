package notify

import (
	"strings"

	statement "cota-capital/internal/statement/domain"
)

// Recipients collects the notification addresses of records. Cells may hold several
// addresses separated by ',' or ';'. Blanks are dropped and duplicates keep their first position.
func Recipients(records []statement.AccountRecord) []string {
	cells := make([]string, 0, len(records))
	for _, r := range records {
		cells = append(cells, r.Email)
	}
	return SplitAddresses(cells)
}

// SplitAddresses flattens address cells into a deduplicated list.
func SplitAddresses(cells []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, cell := range cells {
		for _, addr := range strings.FieldsFunc(cell, func(r rune) bool { return r == ',' || r == ';' }) {
			addr = strings.TrimSpace(addr)
			if addr == "" {
				continue
			}
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}
