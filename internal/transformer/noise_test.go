package transformer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/scrambler"
)

func newTestNoise(probability float64) *NoiseInjector {
	n := NewNoiseInjector(newTestRand(), scrambler.Runes(scrambler.CharsetASCII))
	n.Probability = probability
	return n
}

func TestNoiseSkipsStringInteriors(t *testing.T) {
	src := Watermark + "\ns = \"\"\"a\nb\nc\"\"\"\nx = 1\n"
	n := newTestNoise(1.0)

	out, err := n.Inject(context.Background(), src)
	require.NoError(t, err)
	requireParses(t, out)

	assert.True(t, strings.HasPrefix(out, Watermark+"\n#"), "first line never gets noise above it")
	assert.Contains(t, out, "\"\"\"a\nb\nc\"\"\"\n")
	assert.Equal(t, 3, n.Injected())
	assert.Equal(t, 3, strings.Count(out, "\n# "))
}

func TestNoiseCommentShape(t *testing.T) {
	src := Watermark + "\ndef f():\n    return 1\n"
	n := newTestNoise(1.0)

	out, err := n.Inject(context.Background(), src)
	require.NoError(t, err)
	requireParses(t, out)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, Watermark, lines[0])
	assert.True(t, strings.HasPrefix(lines[3], "    # "), "noise is indented like the line below it: %q", lines[3])

	for _, line := range []string{lines[1], lines[3], lines[5]} {
		tokens := strings.Fields(strings.TrimSpace(line))[1:]
		assert.GreaterOrEqual(t, len(tokens), minNoiseTokens)
		assert.LessOrEqual(t, len(tokens), maxNoiseTokens)
		for _, tok := range tokens {
			assert.GreaterOrEqual(t, len(tok), minNoiseTokenLen)
			assert.LessOrEqual(t, len(tok), maxNoiseTokenLen)
		}
	}
}

func TestNoiseSkipsBackslashContinuation(t *testing.T) {
	src := Watermark + "\nx = 1 + \\\n    2\n"
	n := newTestNoise(1.0)

	out, err := n.Inject(context.Background(), src)
	require.NoError(t, err)
	requireParses(t, out)
	assert.Contains(t, out, "x = 1 + \\\n    2")
}

func TestNoiseProbabilityZero(t *testing.T) {
	src := Watermark + "\nx = 1\ny = 2\n"
	n := newTestNoise(0)

	out, err := n.Inject(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, src, out)
	assert.Equal(t, 0, n.Injected())
}

func TestNoiseLeavesCommentLinesAlone(t *testing.T) {
	src := Watermark + "\nx = 1\ny = 2"
	n := newTestNoise(1.0)

	once, err := n.Inject(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, 2, n.Injected())

	twice, err := n.Inject(context.Background(), once)
	require.NoError(t, err)
	requireParses(t, twice)
	assert.Equal(t, 2, n.Injected(), "a second pass adds noise above code lines only")
	assert.Equal(t, 4, strings.Count(twice, "\n# "))
}
