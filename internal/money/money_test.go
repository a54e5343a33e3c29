package money

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	cases := []struct {
		raw  string
		want Money
		err  error
	}{
		{raw: "150", want: 15_000},
		{raw: " 0.5 ", want: 50},
		{raw: "99.99", want: 9_999},
		{raw: "1e2", want: 10_000},
		{raw: "", err: ErrNotNumeric},
		{raw: "abc", err: ErrNotNumeric},
		{raw: "0", err: ErrNotPositive},
		{raw: "-10", err: ErrNotPositive},
		{raw: "1.005", err: ErrTooPrecise},
		{raw: "99999999999999999999", err: ErrTooLarge},
	}
	for _, tc := range cases {
		got, err := Parse(tc.raw)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("Parse(%q): expected %v, got %v", tc.raw, tc.err, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q): expected %d, got %d", tc.raw, tc.want, got)
		}
	}
}

func TestMulRateRoundsHalfUp(t *testing.T) {
	rate := decimal.RequireFromString("0.005")
	if got := Money(100).MulRate(rate); got != 1 {
		t.Fatalf("expected 0.5 cent to round up to 1, got %d", got)
	}
	if got := Money(99).MulRate(rate); got != 0 {
		t.Fatalf("expected 0.495 cent to round down to 0, got %d", got)
	}
	if got := FromUnits(1000).MulRate(rate); got != 500 {
		t.Fatalf("expected 500 cents, got %d", got)
	}
}

func TestInputAcceptsNumberAndString(t *testing.T) {
	var body struct {
		A Input `json:"a"`
		B Input `json:"b"`
		C Input `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.5, "b": "7", "c": true}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.A != "12.5" || body.B != "7" {
		t.Fatalf("unexpected inputs: %+v", body)
	}
	if _, err := Parse(string(body.C)); !errors.Is(err, ErrNotNumeric) {
		t.Fatalf("expected boolean amount to be rejected, got %v", err)
	}
}

func TestMarshalJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Amount: 4_550})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"amount":"45.50"}` {
		t.Fatalf("unexpected json %s", out)
	}
}
