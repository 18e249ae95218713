package scrambler

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/unicode/rangetable"
)

// Charset selects the runes generated identifiers are built from.
type Charset string

const (
	// CharsetUnicode uses every rune that is on its own a valid Python identifier.
	CharsetUnicode Charset = "unicode"
	// CharsetASCII restricts identifiers to [A-Za-z_].
	CharsetASCII Charset = "ascii"
)

const asciiIdentifierChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_"

// UnicodeVersion is the newest Unicode version generated identifiers draw
// from. Python 3.9 and 3.10 ship Unicode 13.0 and reject later characters
// as non-printable, so runes assigned after it are left out.
const UnicodeVersion = "13.0.0"

var (
	unicodeOnce  sync.Once
	unicodeRunes []rune

	assignedOnce sync.Once
	assigned     *unicode.RangeTable
)

// ParseCharset validates a charset name. The empty string selects CharsetUnicode.
func ParseCharset(name string) (Charset, error) {
	switch Charset(strings.ToLower(strings.TrimSpace(name))) {
	case "", CharsetUnicode:
		return CharsetUnicode, nil
	case CharsetASCII:
		return CharsetASCII, nil
	}
	return "", fmt.Errorf("unknown identifier charset %q (want %q or %q)", name, CharsetUnicode, CharsetASCII)
}

// Runes returns the rune table for cs. The unicode table is computed once
// per process and shared read-only afterwards.
func Runes(cs Charset) []rune {
	if cs == CharsetASCII {
		return []rune(asciiIdentifierChars)
	}
	unicodeOnce.Do(func() {
		for r := rune(0); r <= unicode.MaxRune; r++ {
			if IsIdentifierRune(r) {
				unicodeRunes = append(unicodeRunes, r)
			}
		}
	})
	return unicodeRunes
}

// IsIdentifierRune reports whether the one-rune string r is a Python
// identifier on every supported interpreter. Python accepts XID_Start
// characters and '_' at the start of a name and NFKC-normalizes names while
// parsing, so only runes that are stable under NFKC, and that never compose
// with the rune before them, keep their identity inside a generated name.
// Runes assigned after UnicodeVersion are rejected.
func IsIdentifierRune(r rune) bool {
	if r == '_' {
		return true
	}
	if !unicode.In(r, unicode.L, unicode.Nl, unicode.Other_ID_Start) {
		return false
	}
	if !unicode.Is(assignedRunes(), r) {
		return false
	}
	if unicode.In(r, unicode.Pattern_Syntax, unicode.Pattern_White_Space) {
		return false
	}
	s := string(r)
	if norm.NFKC.String(s) != s {
		return false
	}
	// Conjoining jamo vowels and finals compose with the rune before them.
	return norm.NFKC.PropertiesString(s).BoundaryBefore()
}

func assignedRunes() *unicode.RangeTable {
	assignedOnce.Do(func() {
		assigned = rangetable.Assigned(UnicodeVersion)
		if assigned == nil {
			// Tables predating that version: ASCII letters are always safe.
			assigned = rangetable.New([]rune(asciiIdentifierChars)...)
		}
	})
	return assigned
}

// RandomString returns a string of length uniform in [minLen,maxLen] whose
// runes are drawn uniformly from runes.
func RandomString(rng *rand.Rand, runes []rune, minLen, maxLen int) string {
	length := minLen
	if maxLen > minLen {
		length += rng.Intn(maxLen - minLen + 1)
	}
	var sb strings.Builder
	sb.Grow(length * 3)
	for i := 0; i < length; i++ {
		sb.WriteRune(runes[rng.Intn(len(runes))])
	}
	return sb.String()
}
