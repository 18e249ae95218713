package transformer

import (
	"context"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/pytree"
	"github.com/whit3rabbit/pymixer/internal/scrambler"
)

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

// requireParses fails the test when src is not valid Python.
func requireParses(t *testing.T, src string) {
	t.Helper()
	tree, err := pytree.Parse(context.Background(), src)
	require.NoError(t, err, "output does not parse:\n%s", src)
	tree.Close()
}

var (
	pythonOnce      sync.Once
	pythonAvailable bool
)

// validatePythonSyntax compiles src with python3 3.10 or newer when it is
// installed, catching what the grammar accepts but the compiler rejects.
func validatePythonSyntax(t *testing.T, src string) {
	t.Helper()
	pythonOnce.Do(func() {
		err := exec.Command("python3", "-c", "import sys; sys.exit(sys.version_info < (3, 10))").Run()
		pythonAvailable = err == nil
	})
	if !pythonAvailable {
		return
	}

	file := filepath.Join(t.TempDir(), "check.py")
	require.NoError(t, os.WriteFile(file, []byte(src), 0644))

	cmd := exec.Command("python3", "-c", "import sys; compile(open(sys.argv[1], encoding='utf-8').read(), sys.argv[1], 'exec')", file)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "Python syntax validation failed:\nCode:\n%s\nOutput: %s", src, string(output))
}

// newTestRenamer builds a renamer protecting the default built-ins plus extra names.
func newTestRenamer(t *testing.T, extra ...string) (*Renamer, *scrambler.Scrambler) {
	t.Helper()
	rng := newTestRand()
	protected := make(map[string]bool)
	for _, name := range scrambler.DefaultBuiltins() {
		protected[name] = true
	}
	for _, name := range extra {
		protected[name] = true
	}
	reserved := make([]string, 0, len(protected))
	for name := range protected {
		reserved = append(reserved, name)
	}
	reg, err := scrambler.NewScrambler(rng, scrambler.Settings{Charset: scrambler.CharsetASCII, Reserved: reserved})
	require.NoError(t, err)
	return NewRenamer(reg, NewLiteralEncoder(rng), protected), reg
}
