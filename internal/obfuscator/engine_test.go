package obfuscator_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/obfuscator"
	"github.com/whit3rabbit/pymixer/internal/pytree"
	"github.com/whit3rabbit/pymixer/internal/scrambler"
	"github.com/whit3rabbit/pymixer/internal/transformer"
)

const addSource = "def add(a, b):\n    \"\"\"adds\"\"\"\n    return a + b\n"

func obfuscate(t *testing.T, src string, includeImports bool, recursion int, opts ...obfuscator.Option) (string, *obfuscator.Engine) {
	t.Helper()
	e, err := obfuscator.New(src, includeImports, recursion, opts...)
	require.NoError(t, err)
	out, err := e.Obfuscate(context.Background())
	require.NoError(t, err)

	tree, err := pytree.Parse(context.Background(), out)
	require.NoError(t, err, "output does not parse:\n%s", out)
	tree.Close()
	return out, e
}

func TestEngineWatermarkFirst(t *testing.T) {
	for recursion := 1; recursion <= 3; recursion++ {
		out, e := obfuscate(t, addSource, false, recursion, obfuscator.WithSeed(int64(recursion)))

		assert.True(t, strings.HasPrefix(out, transformer.Watermark+"\n"), "recursion %d:\n%s", recursion, out)
		assert.NotContains(t, out, `"""adds"""`)
		assert.NotContains(t, out, "def add(")
		assert.Len(t, e.Report().Layers, 3*recursion)
	}
}

func TestEngineInvalidArguments(t *testing.T) {
	_, err := obfuscator.New(addSource, false, 0)
	assert.True(t, errors.Is(err, obfuscator.ErrInvalidArgument))

	_, err = obfuscator.New(addSource, false, -2)
	assert.True(t, errors.Is(err, obfuscator.ErrInvalidArgument))

	_, err = obfuscator.New(addSource, false, 1, obfuscator.WithCharset("klingon"))
	assert.True(t, errors.Is(err, obfuscator.ErrInvalidArgument))
}

func TestEngineRunsOnce(t *testing.T) {
	e, err := obfuscator.New(addSource, false, 1)
	require.NoError(t, err)
	assert.Nil(t, e.Aliases())

	_, err = e.Obfuscate(context.Background())
	require.NoError(t, err)
	_, err = e.Obfuscate(context.Background())
	assert.True(t, errors.Is(err, obfuscator.ErrEngineUsed))
}

func TestEngineParseError(t *testing.T) {
	e, err := obfuscator.New("def broken(:\n    pass\n", false, 1)
	require.NoError(t, err)

	out, err := e.Obfuscate(context.Background())
	require.Error(t, err)
	assert.Empty(t, out)
	assert.True(t, errors.Is(err, obfuscator.ErrParse))

	var perr *obfuscator.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Error(), "syntax")
}

func TestEngineCanceledContext(t *testing.T) {
	e, err := obfuscator.New(addSource, false, 2)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := e.Obfuscate(ctx)
	assert.Empty(t, out)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestEngineSeededDeterminism(t *testing.T) {
	src := "import math\nclass Circle:\n    def __init__(self, r):\n        self.r = r\n    def area(self):\n        return math.pi * self.r ** 2\nprint(Circle(2).area())\n"

	first, _ := obfuscate(t, src, true, 2, obfuscator.WithSeed(1234))
	second, _ := obfuscate(t, src, true, 2, obfuscator.WithSeed(1234))
	other, _ := obfuscate(t, src, true, 2, obfuscator.WithSeed(4321))

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
}

func TestEngineAliasesResolveToOutput(t *testing.T) {
	src := "def total(values):\n    acc = 0\n    for v in values:\n        acc += v\n    return acc\n"
	out, e := obfuscate(t, src, false, 3, obfuscator.WithSeed(9), obfuscator.WithCharset(scrambler.CharsetASCII))

	aliases := e.Aliases()
	for _, name := range []string{"total", "values", "acc", "v"} {
		alias, ok := aliases[name]
		require.True(t, ok, "%s has no alias", name)
		assert.Contains(t, out, alias)
	}
	// Intermediate aliases from earlier rename layers are not originals.
	assert.Len(t, aliases, 4)
}

func TestEngineIncludeImports(t *testing.T) {
	src := "from __future__ import annotations\nimport os\nfrom os import path as p\nprint(os.sep, p.sep)\n"
	out, e := obfuscate(t, src, true, 1, obfuscator.WithSeed(5))

	// Noise comments may sit between the lines checked here.
	lines := lo.Filter(strings.Split(out, "\n"), func(line string, _ int) bool {
		return !strings.HasPrefix(line, "#")
	})
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, transformer.Watermark, lines[0])
	assert.Equal(t, "from __future__ import annotations", lines[1])
	// Records sort longest first and are prepended one by one, so the
	// shortest record ends up on top.
	assert.Equal(t, "import os", lines[2])
	assert.Equal(t, "from os import path as p", lines[3])
	assert.Equal(t, 3, e.Report().Imports)
}

func TestEngineWithoutImportsKeepsWatermarkFirst(t *testing.T) {
	src := "import os\nprint(os.sep)\n"
	out, _ := obfuscate(t, src, false, 1, obfuscator.WithSeed(5))
	assert.True(t, strings.HasPrefix(out, transformer.Watermark+"\n"))
	assert.Equal(t, 1, strings.Count(out, "import os"))
}

func TestEngineProtectsExtraNames(t *testing.T) {
	src := "handler = 1\nprint(handler)\n"
	out, e := obfuscate(t, src, false, 1, obfuscator.WithSeed(3), obfuscator.WithExtraProtected("handler"))

	assert.Contains(t, out, "handler = ")
	_, renamed := e.Aliases()["handler"]
	assert.False(t, renamed)
}

func TestEngineReport(t *testing.T) {
	src := "# note\nx = 1\n\"\"\"doc\"\"\"\nprint(x)\n"
	_, e := obfuscate(t, src, false, 1, obfuscator.WithSeed(11), obfuscator.WithNoiseProbability(1))

	r := e.Report()
	assert.Equal(t, int64(11), r.Seed)
	assert.Equal(t, 1, r.CommentsRemoved)
	assert.Equal(t, 1, r.DocsReplaced)
	assert.Equal(t, 1, r.Rename.Indirected)
	assert.Greater(t, r.NoiseLines, 0)
	assert.Equal(t, obfuscator.LayerFinalize, r.Layers[len(r.Layers)-1])
	assert.Equal(t, 1, r.Aliases, "only x is renamed")
	assert.Len(t, e.Aliases(), r.Aliases)
}

func TestEngineGrowsLinearlyWithRecursion(t *testing.T) {
	src := "def scale(values, factor):\n    return [v * factor + 1 for v in values]\nprint(scale([1, 2, 3], 2), 'done')\n"
	codeSize := func(out string) int {
		size := 0
		for _, line := range strings.Split(out, "\n") {
			if !strings.HasPrefix(strings.TrimSpace(line), "#") {
				size += len(line)
			}
		}
		return size
	}

	once, single := obfuscate(t, src, false, 1, obfuscator.WithSeed(5))
	four, quad := obfuscate(t, src, false, 4, obfuscator.WithSeed(5))

	assert.Equal(t, single.Report().Rename.Indirected, quad.Report().Rename.Indirected,
		"later rename layers leave generated lookups alone")
	assert.Equal(t, single.Report().Rename.Integers, quad.Report().Rename.Integers)
	assert.Less(t, codeSize(four), 2*codeSize(once), "code beyond noise comments must not compound per layer")
}
