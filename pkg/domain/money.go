package domain

import (
	"encoding/json"
	"fmt"
	"math"

	dErrors "dealdesk/pkg/domain-errors"
)

// Money is an amount in the currency's minor unit (cents). Integer cents
// avoid float drift in rule evaluation; conversion happens only at the
// JSON boundary.
type Money int64

// NewMoneyFromDollars converts a dollar amount to Money, rejecting NaN,
// infinities and negative amounts.
func NewMoneyFromDollars(dollars float64) (Money, error) {
	if math.IsNaN(dollars) || math.IsInf(dollars, 0) {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount must be a finite number")
	}
	if dollars < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount cannot be negative")
	}
	return Money(math.Round(dollars * 100)), nil
}

// Dollars returns the amount in whole currency units.
func (m Money) Dollars() float64 { return float64(m) / 100 }

// MulRatio multiplies by a ratio and rounds down to the nearest cent.
// Rounding down is the conservative direction for a buyer-side threshold.
func (m Money) MulRatio(ratio float64) Money {
	return Money(math.Floor(float64(m) * ratio))
}

func (m Money) String() string {
	return fmt.Sprintf("$%.2f", m.Dollars())
}

// MarshalJSON emits the amount in whole currency units.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Dollars())
}

// UnmarshalJSON accepts a dollar amount. Negative values are allowed here
// because derived fields (margins) can be negative; input validation for
// prices happens in the request types.
func (m *Money) UnmarshalJSON(data []byte) error {
	var dollars float64
	if err := json.Unmarshal(data, &dollars); err != nil {
		return err
	}
	if math.IsNaN(dollars) || math.IsInf(dollars, 0) {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be a finite number")
	}
	*m = Money(math.Round(dollars * 100))
	return nil
}
