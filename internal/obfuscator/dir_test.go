package obfuscator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/obfuscator"
	"github.com/whit3rabbit/pymixer/internal/scrambler"
	"github.com/whit3rabbit/pymixer/internal/transformer"
)

// createTempFile writes content to name under dir, creating parents.
func createTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestContext(t *testing.T, target string) *obfuscator.ObfuscationContext {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Silent = true
	cfg.TargetDirectory = target
	cfg.Obfuscation.Seed = 77
	cfg.Obfuscation.Charset = "ascii"
	octx, err := obfuscator.NewObfuscationContext(cfg)
	require.NoError(t, err)
	return octx
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	path := createTempFile(t, dir, "main.py", "def greet(who):\n    return 'hi ' + who\nprint(greet('bob'))\n")
	octx := newTestContext(t, "")

	out, err := obfuscator.ProcessFile(context.Background(), path, octx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, transformer.Watermark+"\n"))
	assert.NotContains(t, out, "greet")

	aliases, ok := octx.Aliases(path)
	require.True(t, ok)
	assert.Contains(t, aliases, "greet")
	assert.Contains(t, aliases, "who")
	assert.Equal(t, []string{path}, octx.Processed())

	mapPath := filepath.Join(dir, "maps", "main.aliases.yaml")
	require.NoError(t, octx.SaveAliases(path, mapPath))
	m, err := scrambler.LoadAliasMap(mapPath)
	require.NoError(t, err)
	assert.Equal(t, aliases, m.Aliases)
	assert.Equal(t, "greet", m.Reverse()[aliases["greet"]])
}

func TestProcessFileErrors(t *testing.T) {
	octx := newTestContext(t, "")

	_, err := obfuscator.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.py"), octx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := createTempFile(t, t.TempDir(), "bad.py", "class :\n")
	_, err = obfuscator.ProcessFile(context.Background(), bad, octx)
	assert.True(t, errors.Is(err, obfuscator.ErrParse))
}

func TestNewObfuscationContextValidates(t *testing.T) {
	_, err := obfuscator.NewObfuscationContext(nil)
	assert.True(t, errors.Is(err, obfuscator.ErrInvalidArgument))

	cfg := config.DefaultConfig()
	cfg.Obfuscation.Recursion = 0
	_, err = obfuscator.NewObfuscationContext(cfg)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestProcessDirectory(t *testing.T) {
	sourceDir := t.TempDir()
	targetDir := filepath.Join(t.TempDir(), "out")
	createTempFile(t, sourceDir, "app.py", "def main():\n    return 1\n")
	createTempFile(t, sourceDir, "pkg/util.py", "# helper\nVALUE = 'x'\n")
	createTempFile(t, sourceDir, "pkg/data.json", `{"a": 1}`)
	createTempFile(t, sourceDir, "pkg/__pycache__/util.cpython-312.pyc", "junk")
	createTempFile(t, sourceDir, "vendor/lib.py", "import os\n")

	octx := newTestContext(t, targetDir)
	octx.Config.KeepPaths = []string{"vendor"}

	report, err := obfuscator.ProcessDirectory(context.Background(), sourceDir, octx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Obfuscated)
	assert.Equal(t, 1, report.Copied)
	assert.Equal(t, 1, report.Kept)
	assert.Equal(t, 1, report.Skipped)

	obfuscated := filepath.Join(targetDir, obfuscator.ObfuscatedDir)
	util, err := os.ReadFile(filepath.Join(obfuscated, "pkg", "util.py"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(util), transformer.Watermark+"\n"))
	assert.NotContains(t, string(util), "# helper")

	data, err := os.ReadFile(filepath.Join(obfuscated, "pkg", "data.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, string(data))

	assert.NoDirExists(t, filepath.Join(obfuscated, "pkg", "__pycache__"))
	assert.FileExists(t, filepath.Join(targetDir, "vendor", "lib.py"), "kept paths go to the target root")
	assert.FileExists(t, filepath.Join(targetDir, obfuscator.ContextDir, "app.py"+obfuscator.AliasMapSuffix))
	assert.FileExists(t, filepath.Join(targetDir, obfuscator.ContextDir, "pkg", "util.py"+obfuscator.AliasMapSuffix))
}

func TestProcessDirectorySkipsNewerTargets(t *testing.T) {
	sourceDir := t.TempDir()
	targetDir := t.TempDir()
	createTempFile(t, sourceDir, "a.py", "x = 1\n")

	octx := newTestContext(t, targetDir)
	_, err := obfuscator.ProcessDirectory(context.Background(), sourceDir, octx)
	require.NoError(t, err)

	report, err := obfuscator.ProcessDirectory(context.Background(), sourceDir, newTestContext(t, targetDir))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Obfuscated)
	assert.Equal(t, 1, report.Skipped)
}

func TestProcessDirectoryCollectsErrors(t *testing.T) {
	sourceDir := t.TempDir()
	createTempFile(t, sourceDir, "good.py", "x = 1\n")
	createTempFile(t, sourceDir, "bad.py", "def (:\n")

	octx := newTestContext(t, t.TempDir())
	octx.Config.AbortOnError = false
	report, err := obfuscator.ProcessDirectory(context.Background(), sourceDir, octx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, obfuscator.ErrParse))
	assert.Len(t, report.Errors, 1)
	assert.Equal(t, 1, report.Obfuscated)

	octx = newTestContext(t, t.TempDir())
	octx.Config.AbortOnError = true
	report, err = obfuscator.ProcessDirectory(context.Background(), sourceDir, octx)
	require.Error(t, err)
	assert.Len(t, report.Errors, 1)
	// bad.py sorts first, the walk stops there.
	assert.Equal(t, 0, report.Obfuscated)
}

func TestProcessDirectoryRequiresTarget(t *testing.T) {
	_, err := obfuscator.ProcessDirectory(context.Background(), t.TempDir(), newTestContext(t, ""))
	assert.True(t, errors.Is(err, obfuscator.ErrInvalidArgument))
}

func TestProcessDirectorySymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping symlink tests on Windows")
	}
	sourceDir := t.TempDir()
	targetDir := t.TempDir()
	createTempFile(t, sourceDir, "real.py", "x = 1\n")
	require.NoError(t, os.Symlink("real.py", filepath.Join(sourceDir, "link.py")))

	report, err := obfuscator.ProcessDirectory(context.Background(), sourceDir, newTestContext(t, targetDir))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Obfuscated)
	assert.Equal(t, 1, report.Copied)

	dest, err := os.Readlink(filepath.Join(targetDir, obfuscator.ObfuscatedDir, "link.py"))
	require.NoError(t, err)
	assert.Equal(t, "real.py", dest)
}
