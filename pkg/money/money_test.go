package money

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMultiply(t *testing.T) {
	got, err := Multiply(100, 5)
	if err != nil {
		t.Fatalf("Multiply: %v", err)
	}
	if got != 500 {
		t.Fatalf("expected 500, got %d", got)
	}
	if got.String() != "5.00" {
		t.Fatalf("expected 5.00, got %s", got.String())
	}

	if _, err := Multiply(math.MaxInt64/2, 3); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := Multiply(-1, 3); err == nil {
		t.Fatal("expected negative operand error")
	}
}

func TestFromDecimal(t *testing.T) {
	if got := FromDecimal(decimal.RequireFromString("12.345")); got != 1235 {
		t.Fatalf("expected 1235, got %d", got)
	}
	if got := FromDecimal(decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2"))); got != 30 {
		t.Fatalf("expected exact 30 cents, got %d", got)
	}
}

func TestAverage(t *testing.T) {
	if got := Average(0, 0); !got.Equal(decimal.Zero) {
		t.Fatalf("expected zero, got %s", got)
	}
	if got := Average(14, 3).StringFixed(2); got != "4.67" {
		t.Fatalf("expected 4.67, got %s", got)
	}
}
