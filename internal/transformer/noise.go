package transformer

import (
	"context"
	"math/rand"
	"strings"

	"github.com/whit3rabbit/pymixer/internal/pytree"
	"github.com/whit3rabbit/pymixer/internal/scrambler"
)

const (
	DefaultNoiseProbability = 0.7
	minNoiseTokens          = 7
	maxNoiseTokens          = 55
	minNoiseTokenLen        = 2
	maxNoiseTokenLen        = 10
)

// NoiseInjector scatters comment lines of random identifier-charset tokens
// above source lines.
type NoiseInjector struct {
	Probability float64
	runes       []rune
	random      *rand.Rand
	injected    int
}

// NewNoiseInjector returns an injector using the given charset runes.
func NewNoiseInjector(rng *rand.Rand, runes []rune) *NoiseInjector {
	return &NoiseInjector{Probability: DefaultNoiseProbability, runes: runes, random: rng}
}

// Injected returns how many comment lines the last Inject call added.
func (n *NoiseInjector) Injected() int { return n.injected }

// Inject walks the lines from the last to the second and, with the
// configured probability, puts a noise comment above each one. The first
// line never gets noise. Lines starting inside a multi-line string or
// continuing a backslash-terminated line are left alone since a comment
// there would change the program. Comment lines, noise from earlier passes
// included, get none either.
func (n *NoiseInjector) Inject(ctx context.Context, src string) (string, error) {
	tree, err := pytree.Parse(ctx, src)
	if err != nil {
		return "", err
	}
	rows := pytree.MultilineStringRows(tree.Root)
	tree.Close()

	n.injected = 0
	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines)*2)
	// Built back to front, reversed at the end.
	for i := len(lines) - 1; i >= 0; i-- {
		out = append(out, lines[i])
		if i == 0 || rows.StartsInside(i) || strings.HasSuffix(lines[i-1], "\\") {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "#") {
			continue
		}
		if n.random.Float64() < n.Probability {
			out = append(out, leadingWhitespace(lines[i])+n.comment())
			n.injected++
		}
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return strings.Join(out, "\n"), nil
}

func (n *NoiseInjector) comment() string {
	count := minNoiseTokens + n.random.Intn(maxNoiseTokens-minNoiseTokens+1)
	tokens := make([]string, count)
	for i := range tokens {
		tokens[i] = scrambler.RandomString(n.random, n.runes, minNoiseTokenLen, maxNoiseTokenLen)
	}
	return "# " + strings.Join(tokens, " ")
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
