// Package internal holds helpers shared by the integration tests.
package internal

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/obfuscator"
)

// PyRunner provides utilities for running Python in integration tests
type PyRunner struct {
	T      *testing.T
	Python string
}

// NewPyRunner creates a new Python runner for integration tests
func NewPyRunner(t *testing.T) *PyRunner {
	return &PyRunner{T: t, Python: "python3"}
}

// SkipIfPythonNotAvailable skips the test if python3 is not installed or
// older than 3.9, the first release accepting any expression as a decorator.
func (r *PyRunner) SkipIfPythonNotAvailable() {
	if _, err := exec.LookPath(r.Python); err != nil {
		r.T.Skip("python3 not available, skipping integration test")
	}
	if err := exec.Command(r.Python, "-c", "import sys; sys.exit(sys.version_info < (3, 9))").Run(); err != nil {
		r.T.Skip("python3 older than 3.9, skipping integration test")
	}
}

// RunPython executes a Python file and returns its combined output
func (r *PyRunner) RunPython(file string) (string, error) {
	r.T.Helper()
	cmd := exec.Command(r.Python, file)
	cmd.Env = append(os.Environ(), "PYTHONHASHSEED=0", "PYTHONDONTWRITEBYTECODE=1")
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// ObfuscateFile obfuscates a Python file with the given configuration and
// writes the output to a temporary file
func (r *PyRunner) ObfuscateFile(inputFile string, cfg *config.Config) (string, string, error) {
	r.T.Helper()

	octx, err := obfuscator.NewObfuscationContext(cfg)
	if err != nil {
		return "", "", err
	}
	obfuscated, err := obfuscator.ProcessFile(context.Background(), inputFile, octx)
	if err != nil {
		return "", "", err
	}

	outputFile := filepath.Join(r.T.TempDir(), "obfuscated_"+filepath.Base(inputFile))
	if err := os.WriteFile(outputFile, []byte(obfuscated), 0644); err != nil {
		return "", "", err
	}
	return outputFile, obfuscated, nil
}

// CompareRuns runs both the original and the obfuscated file and returns
// their outputs
func (r *PyRunner) CompareRuns(originalFile, obfuscatedFile string) (string, string, error) {
	r.T.Helper()

	originalOutput, err := r.RunPython(originalFile)
	if err != nil {
		r.T.Logf("original output:\n%s", originalOutput)
		return "", "", err
	}
	obfuscatedOutput, err := r.RunPython(obfuscatedFile)
	if err != nil {
		r.T.Logf("obfuscated output:\n%s", obfuscatedOutput)
		return "", "", err
	}
	return originalOutput, obfuscatedOutput, nil
}

// IntegrationTest obfuscates inputFile with cfg and runs both versions,
// returning the original output, the obfuscated output and the obfuscated code
func (r *PyRunner) IntegrationTest(inputFile string, cfg *config.Config) (string, string, string, error) {
	r.T.Helper()
	r.SkipIfPythonNotAvailable()

	absPath, err := filepath.Abs(inputFile)
	require.NoError(r.T, err, "Error getting absolute path")

	obfuscatedFile, obfuscatedCode, err := r.ObfuscateFile(absPath, cfg)
	if err != nil {
		return "", "", "", err
	}
	originalOutput, obfuscatedOutput, err := r.CompareRuns(absPath, obfuscatedFile)
	if err != nil {
		return "", "", "", err
	}
	return originalOutput, obfuscatedOutput, obfuscatedCode, nil
}
