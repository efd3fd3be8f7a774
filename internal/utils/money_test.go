package utils

import "testing"

func TestFormatMinorUnits(t *testing.T) {
	cases := []struct {
		amount   int64
		currency string
		want     string
	}{
		{5000, "brl", "R$ 50,00"},
		{5000, "BRL", "R$ 50,00"},
		{1999, "usd", "$ 19.99"},
		{5, "brl", "R$ 0,05"},
		{0, "brl", "R$ 0,00"},
		{-2550, "brl", "-R$ 25,50"},
		{100, "gbp", "GBP 1.00"},
	}

	for _, tc := range cases {
		if got := FormatMinorUnits(tc.amount, tc.currency); got != tc.want {
			t.Fatalf("FormatMinorUnits(%d, %q) = %q; want %q", tc.amount, tc.currency, got, tc.want)
		}
	}
}
