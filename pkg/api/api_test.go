package api

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/obfuscator"
	"github.com/whit3rabbit/pymixer/internal/scrambler"
	"github.com/whit3rabbit/pymixer/internal/transformer"
)

const sampleCode = `import math

def area(radius):
    """Area of a circle."""
    return math.pi * radius ** 2

print(area(2))
`

func newTestObfuscator(t *testing.T, overrides map[string]interface{}) *Obfuscator {
	t.Helper()
	if overrides == nil {
		overrides = map[string]interface{}{}
	}
	overrides["seed"] = 99
	obf, err := NewObfuscator(Options{Silent: true, ConfigOverrides: overrides})
	require.NoError(t, err)
	return obf
}

func TestNewObfuscator(t *testing.T) {
	obf, err := NewObfuscator(Options{})
	require.NoError(t, err, "default config should be used")
	require.NotNil(t, obf.Context)
	require.NotNil(t, obf.Config)

	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("silent: true\nobfuscation:\n  recursion: 2\n"), 0644))

	obf, err = NewObfuscator(Options{ConfigPath: configPath, Recursion: 4, IncludeImports: true})
	require.NoError(t, err)
	assert.True(t, obf.Config.Silent)
	assert.Equal(t, 4, obf.Config.Obfuscation.Recursion)
	assert.True(t, obf.Config.Obfuscation.IncludeImports)

	_, err = NewObfuscator(Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestConfigOverrides(t *testing.T) {
	obf, err := NewObfuscator(Options{ConfigOverrides: map[string]interface{}{
		"recursion":       "3",
		"include-imports": "true",
		"seed":            42,
		"charset":         "ascii",
		"max_int_bits":    64.0,
		"extra_protected": []interface{}{"app", "settings"},
	}})
	require.NoError(t, err)

	ob := obf.Config.Obfuscation
	assert.Equal(t, 3, ob.Recursion)
	assert.True(t, ob.IncludeImports)
	assert.Equal(t, int64(42), ob.Seed)
	assert.Equal(t, "ascii", ob.Charset)
	assert.Equal(t, 64, ob.MaxIntBits)
	assert.Equal(t, []string{"app", "settings"}, ob.ExtraProtected)

	_, err = NewObfuscator(Options{ConfigOverrides: map[string]interface{}{"colour": "red"}})
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = NewObfuscator(Options{ConfigOverrides: map[string]interface{}{"recursion": "many"}})
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = NewObfuscator(Options{ConfigOverrides: map[string]interface{}{"recursion": 0}})
	assert.Error(t, err)
}

func TestObfuscateCode(t *testing.T) {
	obf := newTestObfuscator(t, map[string]interface{}{"charset": "ascii"})

	out, err := obf.ObfuscateCode(sampleCode)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, transformer.Watermark+"\n"))
	assert.NotContains(t, out, "Area of a circle")
	assert.NotContains(t, out, "def area(")

	alias, err := obf.LookupObfuscatedName("<code>", "area")
	require.NoError(t, err)
	assert.Contains(t, out, "def "+alias+"(")

	_, err = obf.LookupObfuscatedName("<code>", "math")
	assert.Error(t, err, "imported names are never aliased")
	_, err = obf.LookupObfuscatedName("other.py", "area")
	assert.Error(t, err)

	_, err = obf.ObfuscateCode("def broken(:\n")
	assert.True(t, errors.Is(err, ErrParse))
}

func TestObfuscateFileToFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.py")
	output := filepath.Join(dir, "nested", "out.py")
	require.NoError(t, os.WriteFile(input, []byte(sampleCode), 0644))

	obf := newTestObfuscator(t, nil)
	require.NoError(t, obf.ObfuscateFileToFile(input, output))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), transformer.Watermark+"\n"))

	mapPath := filepath.Join(dir, "in.aliases.yaml")
	require.NoError(t, obf.SaveAliasMap(input, mapPath))
	m, err := scrambler.LoadAliasMap(mapPath)
	require.NoError(t, err)
	assert.Equal(t, input, m.Source)
	assert.Contains(t, m.Aliases, "radius")

	err = obf.ObfuscateFileToFile(filepath.Join(dir, "missing.py"), output)
	assert.Error(t, err)
}

func TestObfuscateDirectory(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "dist")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "lib"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.py"), []byte(sampleCode), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "lib", "helpers.py"), []byte("def twice(x):\n    return x * 2\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "README.md"), []byte("# readme\n"), 0644))

	obf := newTestObfuscator(t, nil)
	require.NoError(t, obf.ObfuscateDirectory(src, out))

	main, err := os.ReadFile(filepath.Join(out, obfuscator.ObfuscatedDir, "main.py"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(main), transformer.Watermark+"\n"))
	assert.FileExists(t, filepath.Join(out, obfuscator.ObfuscatedDir, "lib", "helpers.py"))
	assert.FileExists(t, filepath.Join(out, obfuscator.ObfuscatedDir, "README.md"))

	alias, err := obf.LookupObfuscatedName(filepath.Join(src, "lib", "helpers.py"), "twice")
	require.NoError(t, err)
	assert.NotEmpty(t, alias)

	err = obf.ObfuscateDirectory(filepath.Join(src, "main.py"), out)
	assert.Error(t, err, "a file is not a directory")
}
