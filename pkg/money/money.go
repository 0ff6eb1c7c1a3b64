package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a monetary value in minor units (cents). All ledger math is
// integer math; decimal strings exist only at the API boundary.
type Amount int64

const Zero Amount = 0

var ErrInvalidAmount = errors.New("invalid_money_amount")

// Parse reads a decimal string like "277.78" or "-10" into minor units. At
// most two fraction digits are accepted.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalidAmount
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" && frac == "" {
		return Zero, ErrInvalidAmount
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return Zero, ErrInvalidAmount
	}
	// Only bare digits on either side of the point; a stray sign in the
	// fraction would otherwise parse as a different amount.
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return Zero, ErrInvalidAmount
	}
	for len(frac) < 2 {
		frac += "0"
	}

	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	minor := int64(0)
	if frac != "00" {
		minor, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return Zero, ErrInvalidAmount
		}
	}

	value := major*100 + minor
	if negative {
		value = -value
	}
	return Amount(value), nil
}

// FromMajor converts whole currency units to an Amount.
func FromMajor(major int64) Amount {
	return Amount(major * 100)
}

func (a Amount) Add(b Amount) Amount { return a + b }

func (a Amount) Sub(b Amount) Amount { return a - b }

func (a Amount) MulInt(n int) Amount { return a * Amount(n) }

// DivRound divides the amount into n parts, rounding half away from zero.
func (a Amount) DivRound(n int) Amount {
	if n == 0 {
		return Zero
	}
	num, den := int64(a), int64(n)
	q := num / den
	r := num % den
	if r == 0 {
		return Amount(q)
	}
	if abs(r)*2 >= abs(den) {
		if (num < 0) != (den < 0) {
			q--
		} else {
			q++
		}
	}
	return Amount(q)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Percent returns bps basis points of the amount, rounded half away from
// zero. 500 bps of 50000 is 2500.
func (a Amount) Percent(bps int64) Amount {
	num := int64(a) * bps
	q := num / 10000
	r := num % 10000
	if r >= 5000 {
		q++
	} else if r <= -5000 {
		q--
	}
	return Amount(q)
}

func (a Amount) IsPositive() bool { return a > 0 }

func (a Amount) IsNegative() bool { return a < 0 }

// String renders the amount as a plain decimal, e.g. "277.78" or "-0.05".
func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON emits the decimal string form.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(a.String())), nil
}

// UnmarshalJSON accepts both the decimal string form and a bare integer of
// minor units.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(s); err == nil {
		parsed, err := Parse(unquoted)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	}
	minor, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ErrInvalidAmount
	}
	*a = Amount(minor)
	return nil
}
