package semantics_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/obfuscator"
	"github.com/whit3rabbit/pymixer/internal/transformer"
	"github.com/whit3rabbit/pymixer/tests/internal"
)

func testConfig(seed int64, recursion int, includeImports bool, charset string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Silent = true
	cfg.Obfuscation.Seed = seed
	cfg.Obfuscation.Recursion = recursion
	cfg.Obfuscation.IncludeImports = includeImports
	cfg.Obfuscation.Charset = charset
	return cfg
}

func TestSemanticEquivalence(t *testing.T) {
	runner := internal.NewPyRunner(t)
	runner.SkipIfPythonNotAvailable()

	testCases := []struct {
		name           string
		seed           int64
		recursion      int
		includeImports bool
		charset        string
	}{
		{"SingleCycle", 1, 1, false, "unicode"},
		{"SingleCycleAscii", 2, 1, false, "ascii"},
		{"TwoCycles", 3, 2, false, "unicode"},
		{"ThreeCyclesWithImports", 4, 3, true, "unicode"},
		{"WithImportsAscii", 5, 1, true, "ascii"},
	}

	files, err := filepath.Glob(filepath.Join("testdata", "*.py"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		for _, tc := range testCases {
			t.Run(fmt.Sprintf("%s/%s", filepath.Base(file), tc.name), func(t *testing.T) {
				r := internal.NewPyRunner(t)
				cfg := testConfig(tc.seed, tc.recursion, tc.includeImports, tc.charset)

				original, obfuscated, code, err := r.IntegrationTest(file, cfg)
				require.NoError(t, err, "both versions should run")
				assert.Equal(t, original, obfuscated, "obfuscated program should print the same output")
				assertWatermarkPlacement(t, code, tc.includeImports)
			})
		}
	}
}

// assertWatermarkPlacement checks the watermark opens the output, or only
// follows re-injected import lines when imports were included.
func assertWatermarkPlacement(t *testing.T, code string, includeImports bool) {
	t.Helper()
	lines := strings.Split(code, "\n")
	at := -1
	for i, line := range lines {
		if line == transformer.Watermark {
			at = i
			break
		}
	}
	require.GreaterOrEqual(t, at, 0, "watermark missing:\n%s", code)
	if !includeImports {
		assert.Equal(t, 0, at, "watermark must be the first line")
		return
	}
	for _, line := range lines[:at] {
		assert.True(t, strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "from "),
			"only re-injected imports may precede the watermark, got %q", line)
	}
}

// TestAddScenario obfuscates a small function with its docstring and calls
// the result.
func TestAddScenario(t *testing.T) {
	const src = "def add(a, b):\n    \"\"\"adds\"\"\"\n    return a + b"

	engine, err := obfuscator.New(src, false, 1)
	require.NoError(t, err)
	out, err := engine.Obfuscate(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, transformer.Watermark+"\n"), "watermark is the first statement")
	assert.NotContains(t, out, `"""adds"""`)
	assert.NotContains(t, out, `"adds"`)

	runner := internal.NewPyRunner(t)
	runner.SkipIfPythonNotAvailable()

	alias := engine.Aliases()["add"]
	require.NotEmpty(t, alias)
	script := filepath.Join(t.TempDir(), "add.py")
	require.NoError(t, os.WriteFile(script, []byte(out+"\nprint("+alias+"(2, 3))\n"), 0644))

	output, err := exec.Command(runner.Python, script).CombinedOutput()
	require.NoError(t, err, string(output))
	assert.Equal(t, "5\n", string(output))
}

// TestTracebackConditions checks that raised exceptions keep their type and
// message.
func TestTracebackConditions(t *testing.T) {
	runner := internal.NewPyRunner(t)
	runner.SkipIfPythonNotAvailable()

	script := filepath.Join(t.TempDir(), "raises.py")
	src := "def check(value):\n    if value < 0:\n        raise KeyError('negative: %d' % value)\n    return value\n\ncheck(1)\ncheck(-4)\n"
	require.NoError(t, os.WriteFile(script, []byte(src), 0644))

	obfuscatedFile, _, err := runner.ObfuscateFile(script, testConfig(9, 2, false, "unicode"))
	require.NoError(t, err)
	original, err := runner.RunPython(script)
	assert.Error(t, err)
	obfuscated, err := runner.RunPython(obfuscatedFile)
	assert.Error(t, err)
	assert.Contains(t, original, "KeyError: 'negative: -4'")
	assert.Contains(t, obfuscated, "KeyError: 'negative: -4'")
}
