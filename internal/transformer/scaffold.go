package transformer

import (
	"math/big"
	"regexp"
	"strings"
)

const (
	encodedInt   = `(\d+|\(-\d+\))`
	encodedCodes = `\[(?:\d{1,3}(?:, \d{1,3})*)?\]\[::-1\]`
	encodedBytes = `bytes\(` + encodedCodes + `\)`
	encodedText  = encodedBytes + `\.decode\(\)`
)

var (
	formAPattern = regexp.MustCompile(`^\(` + encodedInt + ` - ` + encodedInt + `\)$`)
	formBPattern = regexp.MustCompile(`^\(\(\(\(` + encodedInt + ` \+ ` + encodedInt + `\) // 2\) - ` +
		encodedInt + `\) - ` + encodedInt + `\)$`)
	stringPattern = regexp.MustCompile(`^` + encodedBytes + `(?:\.decode\(\))?$`)
	lookupPattern = regexp.MustCompile(`^getattr\(__import__\(` + encodedText + `\), ` + encodedText +
		`\)\(` + encodedBytes + `\)$`)
)

// IsGenerated reports whether expr is exactly an expression the literal
// encoder or the name indirection emits: an encoded integer, an encoded
// string or bytes value, or a run-time name lookup.
func IsGenerated(expr string) bool {
	switch {
	case strings.HasPrefix(expr, "getattr("):
		return lookupPattern.MatchString(expr)
	case strings.HasPrefix(expr, "bytes("):
		return stringPattern.MatchString(expr)
	case strings.HasPrefix(expr, "(((("):
		return isFormB(formBPattern.FindStringSubmatch(expr))
	case strings.HasPrefix(expr, "("):
		return isFormA(formAPattern.FindStringSubmatch(expr))
	}
	return false
}

// isFormA checks (v*m - v*(m-1)) with m >= 2.
func isFormA(m []string) bool {
	if m == nil {
		return false
	}
	left, right := encodedValue(m[1]), encodedValue(m[2])
	v := new(big.Int).Sub(left, right)
	if v.Sign() == 0 {
		return left.Sign() == 0
	}
	mult, rem := new(big.Int).QuoRem(left, v, new(big.Int))
	return rem.Sign() == 0 && mult.Cmp(big.NewInt(2)) >= 0
}

// isFormB checks ((((2n + 2vt) // 2) - n) - v(t-1)) with t in the
// encoder's range.
func isFormB(m []string) bool {
	if m == nil {
		return false
	}
	a, b, n, d := encodedValue(m[1]), encodedValue(m[2]), encodedValue(m[3]), encodedValue(m[4])
	if a.Cmp(new(big.Int).Lsh(n, 1)) != 0 || b.Bit(0) != 0 {
		return false
	}
	half := new(big.Int).Rsh(b, 1)
	v := new(big.Int).Sub(half, d)
	if v.Sign() == 0 {
		return half.Sign() == 0
	}
	t, rem := new(big.Int).QuoRem(half, v, new(big.Int))
	if rem.Sign() != 0 || t.Cmp(big.NewInt(minFormBT)) < 0 || t.Cmp(big.NewInt(maxFormBT)) > 0 {
		return false
	}
	return d.Cmp(new(big.Int).Mul(v, new(big.Int).Sub(t, big.NewInt(1)))) == 0
}

func encodedValue(text string) *big.Int {
	v, _ := new(big.Int).SetString(strings.Trim(text, "()"), 10)
	return v
}
