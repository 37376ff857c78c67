// Package fixedpoint converts between decimal amount strings and the integer
// fixed-point values token contracts work with.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedAmount is returned for amounts that are not plain non-negative decimals
// or that cannot be represented at the requested precision.
var ErrMalformedAmount = errors.New("malformed amount")

const maxBits = 256

var amountPattern = regexp.MustCompile(`^[0-9]*\.?[0-9]*$`)

// Validate checks the syntax of an amount without scaling it.
func Validate(amount string) error {
	if amount == "" || amount == "." || !amountPattern.MatchString(amount) {
		return fmt.Errorf("%w: %q", ErrMalformedAmount, amount)
	}
	return nil
}

// Scale returns amount * 10^decimals. Digits beyond the precision must be zero.
func Scale(amount string, decimals uint8) (*big.Int, error) {
	d, err := parse(amount)
	if err != nil {
		return nil, err
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrMalformedAmount, amount, decimals)
	}
	v := shifted.BigInt()
	if v.BitLen() > maxBits {
		return nil, fmt.Errorf("%w: %q overflows uint256", ErrMalformedAmount, amount)
	}
	return v, nil
}

// Descale formats v / 10^decimals. The result always carries a fractional part,
// so 120 units format as "120.0".
func Descale(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0.0"
	}
	return format(decimal.NewFromBigInt(v, -int32(decimals)))
}

// Sum adds decimal amount strings and formats the total like Descale.
func Sum(amounts ...string) (string, error) {
	total := decimal.Zero
	for _, a := range amounts {
		d, err := parse(a)
		if err != nil {
			return "", err
		}
		total = total.Add(d)
	}
	return format(total), nil
}

func parse(amount string) (decimal.Decimal, error) {
	if err := Validate(amount); err != nil {
		return decimal.Decimal{}, err
	}
	if strings.HasPrefix(amount, ".") {
		amount = "0" + amount
	}
	amount = strings.TrimSuffix(amount, ".")
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrMalformedAmount, err)
	}
	return d, nil
}

func format(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
