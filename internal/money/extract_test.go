package money

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"$1,234.56 and $5", "1239.56"},
		{"no money here", "0"},
		{"", "0"},
		{"$50", "50"},
		{"closed $ 20 today", "20"},
		{"$10.5 + $0.25", "10.75"},
		{"$1.500", "1.5"},    // third decimal is not part of the token
		{"$0.001", "0"},      // reads as $0.00
		{"$1,2345", "1234"},  // grouped prefix wins, trailing digit ignored
		{"$12,000,000", "12000000"},
		{"5 dollars, $", "0"},
		{"$$7", "7"},
		{"$0.10$0.20", "0.3"},
	}
	for _, tc := range cases {
		got := Extract(tc.in)
		want := decimal.RequireFromString(tc.want)
		if !got.Equal(want) {
			t.Fatalf("Extract(%q) = %s; want %s", tc.in, got, want)
		}
	}
}

func TestExtract_RoundsToCents(t *testing.T) {
	got := Extract("$0.99 $0.01 $100.10")
	if !got.Equal(decimal.RequireFromString("101.10")) {
		t.Fatalf("unexpected total %s", got)
	}
	if got.StringFixed(2) != "101.10" {
		t.Fatalf("unexpected fixed rendering %s", got.StringFixed(2))
	}
}

func TestMatches(t *testing.T) {
	got := Matches("sold $1,000 then $25.5, no $x")
	want := []string{"1,000", "25.5"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Matches = %v; want %v", got, want)
	}
	if m := Matches("nothing"); len(m) != 0 {
		t.Fatalf("expected no matches, got %v", m)
	}
}

func TestFormat(t *testing.T) {
	cases := map[string]string{
		"0":          "$0.00",
		"5":          "$5.00",
		"1239.56":    "$1,239.56",
		"1234567.8":  "$1,234,567.80",
		"0.005":      "$0.01",
		"-42.1":      "-$42.10",
		"999999.999": "$1,000,000.00",
	}
	for in, want := range cases {
		if got := Format(decimal.RequireFromString(in)); got != want {
			t.Fatalf("Format(%s) = %q; want %q", in, got, want)
		}
	}
}
