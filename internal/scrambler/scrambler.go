// Package scrambler owns the alias registry that maps original Python
// identifiers to generated ones, plus the generator behind it.
package scrambler

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

const (
	// DefaultMinLength and DefaultMaxLength bound generated alias lengths in runes.
	DefaultMinLength = 10
	DefaultMaxLength = 25

	maxRegenAttempts = 1 << 16
)

// ErrExhausted is returned when no unused alias could be generated.
var ErrExhausted = errors.New("alias generation exhausted")

// Settings configures a Scrambler.
type Settings struct {
	Charset   Charset
	MinLength int
	MaxLength int
	// Reserved names are never produced as aliases. Protected names go here.
	Reserved []string
}

// Scrambler is an injective original -> alias registry, stable for one run.
// It is not safe for concurrent use; every obfuscation run owns one.
type Scrambler struct {
	rng       *rand.Rand
	runes     []rune
	minLength int
	maxLength int
	reserved  map[string]bool

	scrambleMap  map[string]string // original -> alias
	rScrambleMap map[string]string // alias -> original
}

// NewScrambler creates an empty registry drawing randomness from rng.
func NewScrambler(rng *rand.Rand, settings Settings) (*Scrambler, error) {
	if rng == nil {
		return nil, fmt.Errorf("scrambler needs a random source")
	}
	cs, err := ParseCharset(string(settings.Charset))
	if err != nil {
		return nil, err
	}
	s := &Scrambler{
		rng:          rng,
		runes:        Runes(cs),
		minLength:    settings.MinLength,
		maxLength:    settings.MaxLength,
		reserved:     make(map[string]bool, len(settings.Reserved)),
		scrambleMap:  make(map[string]string),
		rScrambleMap: make(map[string]string),
	}
	if s.minLength <= 0 {
		s.minLength = DefaultMinLength
	}
	if s.maxLength <= 0 {
		s.maxLength = DefaultMaxLength
	}
	if s.maxLength < s.minLength {
		s.maxLength = s.minLength
	}
	for _, name := range settings.Reserved {
		s.reserved[name] = true
	}
	return s, nil
}

// Reserve adds names that must never be produced as aliases.
func (s *Scrambler) Reserve(names ...string) {
	for _, name := range names {
		s.reserved[name] = true
	}
}

// Scramble returns the alias for original, generating one on first use.
// Repeated calls with the same original return the same alias.
func (s *Scrambler) Scramble(original string) (string, error) {
	if alias, ok := s.scrambleMap[original]; ok {
		return alias, nil
	}
	for attempt := 0; attempt < maxRegenAttempts; attempt++ {
		candidate := RandomString(s.rng, s.runes, s.minLength, s.maxLength)
		if s.reserved[candidate] || IsKeyword(candidate) {
			continue
		}
		if _, taken := s.rScrambleMap[candidate]; taken {
			continue
		}
		if _, taken := s.scrambleMap[candidate]; taken {
			// An original name that is still waiting for its alias.
			continue
		}
		s.scrambleMap[original] = candidate
		s.rScrambleMap[candidate] = original
		return candidate, nil
	}
	return "", fmt.Errorf("%w: no unused alias for %q after %d attempts", ErrExhausted, original, maxRegenAttempts)
}

// LookupObfuscated returns the alias recorded for original, if any.
func (s *Scrambler) LookupObfuscated(original string) (string, bool) {
	alias, ok := s.scrambleMap[original]
	return alias, ok
}

// Unscramble returns the original name behind alias, if any.
func (s *Scrambler) Unscramble(alias string) (string, bool) {
	original, ok := s.rScrambleMap[alias]
	return original, ok
}

// Len returns the number of registered aliases.
func (s *Scrambler) Len() int { return len(s.scrambleMap) }

// Originals returns the registered original names in sorted order.
func (s *Scrambler) Originals() []string {
	out := make([]string, 0, len(s.scrambleMap))
	for k := range s.scrambleMap {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
