package token

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
)

// Amount is a count of token units. It is stored natively and rendered as a
// decimal string at every text or JSON boundary.
type Amount uint64

// MaxAmount is the largest representable amount.
const MaxAmount = Amount(math.MaxUint64)

// ParseAmount parses a base-10 unsigned integer.
func ParseAmount(s string) (Amount, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Amount(v), nil
}

// String renders the amount in base 10.
func (a Amount) String() string { return strconv.FormatUint(uint64(a), 10) }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a == 0 }

// Add returns a+b or ErrAmountOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, ErrAmountOverflow
	}
	return Amount(sum), nil
}

// Sub returns a-b. The caller guarantees b <= a.
func (a Amount) Sub(b Amount) Amount {
	if b > a {
		panic(fmt.Sprintf("token: amount underflow %d - %d", a, b))
	}
	return a - b
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
