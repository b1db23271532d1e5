package spreadsheet

import (
	"strconv"
	"strings"
)

// NormalizeAccountID renders an account key as zero-padded digits with a hyphen before the
// check digit: "1234" -> "00123-4". Already-canonical keys are returned unchanged.
func NormalizeAccountID(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && f == float64(int64(f)) && !strings.Contains(value, "-") {
		value = strconv.FormatInt(int64(f), 10)
	}
	var digits strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return ""
	}
	if len(d) < 6 {
		d = strings.Repeat("0", 6-len(d)) + d
	}
	return d[:len(d)-1] + "-" + d[len(d)-1:]
}
