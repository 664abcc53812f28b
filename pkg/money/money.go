// Package money keeps amounts as integer minor units and only converts to
// decimal for presentation.
package money

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Cents is an amount in the currency's minor unit.
type Cents int64

// ErrOverflow is returned when a multiplication would not fit in int64.
var ErrOverflow = fmt.Errorf("money: amount overflows int64")

// Multiply returns unitCents × quantity, failing on overflow.
func Multiply(unitCents int64, quantity int64) (Cents, error) {
	if unitCents < 0 || quantity < 0 {
		return 0, fmt.Errorf("money: negative operand")
	}
	if unitCents != 0 && quantity > math.MaxInt64/unitCents {
		return 0, ErrOverflow
	}
	return Cents(unitCents * quantity), nil
}

// Decimal converts cents into a two-place decimal (e.g. 500 -> 5.00).
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount with exactly two decimal places.
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// FromDecimal converts a decimal major-unit amount into cents, rounding half away from zero.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Shift(2).Round(0).IntPart())
}

// Average returns sum/count rounded to two places; zero when count is zero.
func Average(sum, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(count), 2)
}
