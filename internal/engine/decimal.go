package engine

import (
	"fmt"
	"math/big"
	"strings"
)

// Slopes and scheduled slope deltas are fixed-point decimals with 18
// fractional digits, held as value*1e18 in a big.Int. Biases are plain
// unsigned integers. Both are bounded to 128 bits; crossing that bound is
// ErrArithmeticOverflow, never silent wraparound.

var (
	decScale   = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	decHalf    = new(big.Int).Rsh(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil), 1)
	maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// Dec is a non-negative fixed-point decimal with 18 fractional digits.
// The zero value is decimal zero.
type Dec struct {
	i *big.Int
}

// ZeroDec returns decimal zero.
func ZeroDec() Dec {
	return Dec{i: new(big.Int)}
}

// DecFromRatio builds num/den, truncated to 18 fractional digits.
func DecFromRatio(num, den *big.Int) (Dec, error) {
	if den.Sign() == 0 {
		return Dec{}, fmt.Errorf("decimal ratio: %w: zero denominator", ErrArithmeticOverflow)
	}
	if num.Sign() < 0 || den.Sign() < 0 {
		return Dec{}, fmt.Errorf("decimal ratio: %w: negative operand", ErrArithmeticOverflow)
	}
	v := new(big.Int).Mul(num, decScale)
	v.Quo(v, den)
	if v.Cmp(maxUint128) > 0 {
		return Dec{}, fmt.Errorf("decimal ratio %s/%s: %w", num, den, ErrArithmeticOverflow)
	}
	return Dec{i: v}, nil
}

// DecFromScaled parses the raw scaled integer form produced by Scaled.
func DecFromScaled(s string) (Dec, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return Dec{}, fmt.Errorf("parse decimal %q", s)
	}
	return Dec{i: v}, nil
}

func (d Dec) scaled() *big.Int {
	if d.i == nil {
		return new(big.Int)
	}
	return d.i
}

// Scaled returns the raw value*1e18 integer as a string, the storage form.
func (d Dec) Scaled() string {
	return d.scaled().String()
}

// IsZero reports whether d is exactly zero.
func (d Dec) IsZero() bool {
	return d.scaled().Sign() == 0
}

// Cmp compares d and o, returning -1, 0 or 1.
func (d Dec) Cmp(o Dec) int {
	return d.scaled().Cmp(o.scaled())
}

// Add returns d+o, rejecting results beyond the 128-bit bound.
func (d Dec) Add(o Dec) (Dec, error) {
	v := new(big.Int).Add(d.scaled(), o.scaled())
	if v.Cmp(maxUint128) > 0 {
		return Dec{}, fmt.Errorf("decimal add: %w", ErrArithmeticOverflow)
	}
	return Dec{i: v}, nil
}

// SubSat returns d-o floored at zero.
func (d Dec) SubSat(o Dec) Dec {
	v := new(big.Int).Sub(d.scaled(), o.scaled())
	if v.Sign() < 0 {
		v.SetInt64(0)
	}
	return Dec{i: v}
}

// MulPeriods multiplies d by a whole number of periods and rounds half-up
// to integer bias units.
func (d Dec) MulPeriods(n uint64) (*big.Int, error) {
	v := new(big.Int).Mul(d.scaled(), new(big.Int).SetUint64(n))
	v.Add(v, decHalf)
	v.Quo(v, decScale)
	if v.Cmp(maxUint128) > 0 {
		return nil, fmt.Errorf("decimal mul by %d: %w", n, ErrArithmeticOverflow)
	}
	return v, nil
}

// String renders d in human decimal form, trailing zeros trimmed.
func (d Dec) String() string {
	whole := new(big.Int)
	frac := new(big.Int)
	whole.QuoRem(d.scaled(), decScale, frac)
	if frac.Sign() == 0 {
		return whole.String()
	}
	fs := strings.TrimRight(fmt.Sprintf("%018s", frac.String()), "0")
	return whole.String() + "." + fs
}

// ParseBias parses a stored bias string.
func ParseBias(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("parse bias %q", s)
	}
	return v, nil
}

// addBias returns a+b, rejecting results beyond the 128-bit bound.
func addBias(a, b *big.Int) (*big.Int, error) {
	v := new(big.Int).Add(a, b)
	if v.Cmp(maxUint128) > 0 {
		return nil, fmt.Errorf("bias add: %w", ErrArithmeticOverflow)
	}
	return v, nil
}

// subBiasSat returns a-b floored at zero.
func subBiasSat(a, b *big.Int) *big.Int {
	v := new(big.Int).Sub(a, b)
	if v.Sign() < 0 {
		v.SetInt64(0)
	}
	return v
}
