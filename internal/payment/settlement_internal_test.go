package payment

import "testing"

func TestProductNameStripsSizeSuffix(t *testing.T) {
	cases := map[string]string{
		"Chilisaus Hoodie (XL)":   "Chilisaus Hoodie",
		"Chilisaus T-Shirt (2XL)": "Chilisaus T-Shirt",
		"Inferno Drops 200ml":     "Inferno Drops 200ml",
		"(Plain)":                 "(Plain)",
	}
	for in, want := range cases {
		if got := productName(in); got != want {
			t.Fatalf("productName(%q) = %q, want %q", in, got, want)
		}
	}
}
