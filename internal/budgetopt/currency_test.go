package budgetopt

import "testing"

func TestFormatUSD(t *testing.T) {
	cases := map[float64]string{
		100:  "$100.00",
		95.5: "$95.50",
		0:    "$0.00",
	}
	for amount, want := range cases {
		if got := formatUSD(amount); got != want {
			t.Errorf("formatUSD(%v) = %q, want %q", amount, got, want)
		}
	}
}
