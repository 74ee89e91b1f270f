// Package rpc (format.go) converts between Ethereum's hex-encoded quantities
// and Go numeric types, and renders wei amounts for humans.
package rpc

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// WeiPerEther is 10^18.
var WeiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

var errEmptyQuantity = errors.New("empty hex quantity")

// ParseQuantity converts a hex quantity such as "0x172721e" to uint64. The
// "0x" prefix is required and at least one digit must follow it. Leading
// zeros are tolerated.
func ParseQuantity(s string) (uint64, error) {
	v, err := ParseQuantityBig(s)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("quantity overflows uint64: %s", s)
	}
	return v.Uint64(), nil
}

// ParseQuantityBig is ParseQuantity without the uint64 bound.
func ParseQuantityBig(s string) (*big.Int, error) {
	digits, ok := strings.CutPrefix(s, "0x")
	if !ok {
		return nil, fmt.Errorf("missing 0x prefix: %q", s)
	}
	if digits == "" {
		return nil, errEmptyQuantity
	}
	// SetString accepts underscores and a sign; a node never emits either.
	for _, c := range digits {
		if !isHexDigit(c) {
			return nil, fmt.Errorf("invalid hex: %q", s)
		}
	}

	v, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex: %q", s)
	}
	return v, nil
}

func isHexDigit(c rune) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// FormatEther renders a wei amount in ether with exact decimal arithmetic and
// trailing fractional zeros removed.
//
// Examples:
//   - 1500000000000000000 -> "1.5"
//   - 10000000000000000000 -> "10"
//   - 1 -> "0.000000000000000001"
//   - 0 -> "0"
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}

	sign := ""
	abs := new(big.Int).Set(wei)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}

	whole, frac := new(big.Int).QuoRem(abs, WeiPerEther, new(big.Int))
	if frac.Sign() == 0 {
		return sign + whole.String()
	}

	fracStr := frac.String()
	fracStr = strings.Repeat("0", 18-len(fracStr)) + fracStr
	return sign + whole.String() + "." + strings.TrimRight(fracStr, "0")
}

// FormatNumber adds thousand separators: 24277510 -> "24,277,510".
func FormatNumber(n uint64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}
