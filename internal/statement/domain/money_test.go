package statement

import "testing"

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"0":           "0,00",
		"800":         "800,00",
		"1234.5":      "1.234,50",
		"1234567.891": "1.234.567,89",
		"-1500.25":    "-1.500,25",
		"-0.001":      "0,00",
		"999.999":     "1.000,00",
	}
	for in, want := range cases {
		if got := FormatAmount(dec(t, in)); got != want {
			t.Fatalf("FormatAmount(%s) = %s, want %s", in, got, want)
		}
	}
}
