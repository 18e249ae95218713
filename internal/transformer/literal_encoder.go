package transformer

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"math/rand"
	"strconv"
	"strings"
)

/*
Literal Encoding Overview:
--------------------------
Integer, string and bytes constants are replaced with expressions that
evaluate to the same value at run time.

Integers use one of two arithmetic identities, chosen at random per literal:

	Form A: (v*m) - (v*(m-1))                                  m in [2^16, 2^63-1]
	Form B: ((((n*2) + (v*2*t)) // 2) - n) - (v*(t-1))         n in [2^16, 2^63-1], t in [50, 500]

The products are computed here with math/big and emitted as literals, so a
reader sees only large numbers and operators. Form B's dividend is always
even, the floor division is exact for every sign of v.

Strings become bytes([<utf-8 codes reversed>][::-1]).decode() and bytes
literals bytes([<codes reversed>][::-1]).
*/

// ErrEncodingOverflow is returned when no form fits the configured integer width.
var ErrEncodingOverflow = errors.New("encoded integer exceeds host integer width")

const (
	multiplierFloor = 1 << 16
	minFormBT       = 50
	maxFormBT       = 500
	maxResamples    = 8
)

// LiteralEncoder rewrites constants into equivalent expressions.
type LiteralEncoder struct {
	// MaxIntBits bounds every emitted literal and intermediate value to a
	// signed integer of that many bits. Zero means unbounded, which is what
	// Python's own integers are.
	MaxIntBits int
	random     *rand.Rand
}

// NewLiteralEncoder returns an encoder drawing from rng.
func NewLiteralEncoder(rng *rand.Rand) *LiteralEncoder {
	return &LiteralEncoder{random: rng}
}

// EncodeInt returns a parenthesized expression equal to v.
func (e *LiteralEncoder) EncodeInt(v *big.Int) (string, error) {
	useA := e.random.Intn(2) == 0
	if e.MaxIntBits <= 0 {
		if useA {
			return e.formA(v, e.sampleMultiplier(math.MaxInt64)), nil
		}
		return e.formB(v, e.sampleMultiplier(math.MaxInt64), e.sampleT()), nil
	}

	if !e.fits(v) {
		return "", fmt.Errorf("%w: literal %s needs %d bits", ErrEncodingOverflow, v.String(), v.BitLen()+1)
	}
	upper := int64(math.MaxInt64)
	for attempt := 0; attempt <= maxResamples; attempt++ {
		m := e.sampleMultiplier(upper)
		t := e.sampleT()
		for _, a := range []bool{useA, !useA} {
			if a && e.formAFits(v, m) {
				return e.formA(v, m), nil
			}
			if !a && e.formBFits(v, m, t) {
				return e.formB(v, m, t), nil
			}
		}
		// Shrink the multiplier range so the products have room.
		budget := e.MaxIntBits - v.BitLen() - 3 - attempt
		if budget < 2 {
			break
		}
		if budget < 63 {
			upper = int64(1) << uint(budget)
		}
	}
	return "", fmt.Errorf("%w: no encoding of %s fits in %d bits", ErrEncodingOverflow, v.String(), e.MaxIntBits)
}

// EncodeIntLiteral encodes the source text of a Python integer literal. It
// returns false for literals it leaves alone, such as imaginary numbers.
func (e *LiteralEncoder) EncodeIntLiteral(text string) (string, bool, error) {
	v, ok := ParseIntLiteral(text)
	if !ok {
		return "", false, nil
	}
	out, err := e.EncodeInt(v)
	if err != nil {
		return "", false, err
	}
	return out, true, nil
}

// EncodeString returns an expression evaluating to the str whose UTF-8
// encoding is value.
func (e *LiteralEncoder) EncodeString(value []byte) string {
	return "bytes([" + reversedCodes(value) + "][::-1]).decode()"
}

// EncodeBytes returns an expression evaluating to the bytes value.
func (e *LiteralEncoder) EncodeBytes(value []byte) string {
	return "bytes([" + reversedCodes(value) + "][::-1])"
}

// EncodeLiteral decodes a string or bytes literal and encodes its value.
func (e *LiteralEncoder) EncodeLiteral(lit StringLiteral) string {
	if lit.Bytes {
		return e.EncodeBytes(lit.Value)
	}
	return e.EncodeString(lit.Value)
}

func (e *LiteralEncoder) formA(v *big.Int, m int64) string {
	bm := big.NewInt(m)
	left := new(big.Int).Mul(v, bm)
	right := new(big.Int).Mul(v, bm.Sub(bm, big.NewInt(1)))
	return "(" + intLiteral(left) + " - " + intLiteral(right) + ")"
}

func (e *LiteralEncoder) formB(v *big.Int, n, t int64) string {
	bn := big.NewInt(n)
	a := new(big.Int).Lsh(bn, 1)
	b := new(big.Int).Mul(v, big.NewInt(2*t))
	d := new(big.Int).Mul(v, big.NewInt(t-1))
	return "((((" + intLiteral(a) + " + " + intLiteral(b) + ") // 2) - " + intLiteral(bn) + ") - " + intLiteral(d) + ")"
}

func (e *LiteralEncoder) formAFits(v *big.Int, m int64) bool {
	left := new(big.Int).Mul(v, big.NewInt(m))
	right := new(big.Int).Mul(v, big.NewInt(m-1))
	return e.fits(left) && e.fits(right)
}

func (e *LiteralEncoder) formBFits(v *big.Int, n, t int64) bool {
	a := new(big.Int).Lsh(big.NewInt(n), 1)
	b := new(big.Int).Mul(v, big.NewInt(2*t))
	sum := new(big.Int).Add(a, b)
	half := new(big.Int).Rsh(sum, 1)
	return e.fits(a) && e.fits(b) && e.fits(sum) && e.fits(half.Sub(half, big.NewInt(n)))
}

func (e *LiteralEncoder) fits(x *big.Int) bool {
	// Signed width: BitLen of the magnitude plus the sign bit.
	return x.BitLen()+1 <= e.MaxIntBits
}

func (e *LiteralEncoder) sampleMultiplier(upper int64) int64 {
	lower := int64(multiplierFloor)
	if upper <= lower {
		lower = 2
		if upper <= lower {
			return lower
		}
	}
	return lower + e.random.Int63n(upper-lower+1)
}

func (e *LiteralEncoder) sampleT() int64 {
	return minFormBT + e.random.Int63n(maxFormBT-minFormBT+1)
}

// ParseIntLiteral parses a Python integer literal. Imaginary and legacy
// long suffixes are rejected.
func ParseIntLiteral(text string) (*big.Int, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(text), "_", "")
	if s == "" {
		return nil, false
	}
	switch s[len(s)-1] {
	case 'j', 'J', 'l', 'L':
		return nil, false
	}
	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			base, s = 16, s[2:]
		case 'o', 'O':
			base, s = 8, s[2:]
		case 'b', 'B':
			base, s = 2, s[2:]
		}
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, false
	}
	return v, true
}

func intLiteral(x *big.Int) string {
	if x.Sign() < 0 {
		return "(" + x.String() + ")"
	}
	return x.String()
}

func reversedCodes(value []byte) string {
	var sb strings.Builder
	sb.Grow(len(value) * 4)
	for i := len(value) - 1; i >= 0; i-- {
		if i != len(value)-1 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(int(value[i])))
	}
	return sb.String()
}
