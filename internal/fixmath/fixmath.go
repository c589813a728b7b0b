// Package fixmath provides the floor-rounded fixed-point primitives the
// accrual and conversion math is built on. All values live in a signed
// 128-bit envelope; intermediates are computed at arbitrary width and
// narrowed back with an explicit range check.
package fixmath

import (
	"errors"
	"math/big"
)

var (
	// ErrDivisionByZero is returned when a conversion denominator is zero.
	ErrDivisionByZero = errors.New("fixmath: division by zero")
	// ErrOverflow is returned when a narrowed result exceeds the signed
	// 128-bit envelope.
	ErrOverflow = errors.New("fixmath: overflow")
)

var (
	maxValue = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minValue = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// MulDivFloor computes floor(a * b / den). The product is taken at full
// width before dividing, so a and b near the envelope limits cannot
// overflow the intermediate. Rounding is always floor.
func MulDivFloor(a, b, den *big.Int) (*big.Int, error) {
	if den == nil || den.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	wide := new(big.Int).Mul(a, b)
	// big.Int Div is Euclidean: for a positive divisor the quotient is
	// the floor, which is the only divisor sign the protocol produces.
	result := wide.Div(wide, den)
	if err := CheckRange(result); err != nil {
		return nil, err
	}
	return result, nil
}

// CheckRange reports ErrOverflow when v falls outside the signed 128-bit
// envelope.
func CheckRange(v *big.Int) error {
	if v.Cmp(maxValue) > 0 || v.Cmp(minValue) < 0 {
		return ErrOverflow
	}
	return nil
}

// PowerOfTen returns 10^decimals, the fixed-point scalar for a token with
// the given decimal count.
func PowerOfTen(decimals uint32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
