// Package api provides the public API for using pymixer as a library.
//
// It obfuscates Python source held in strings, single files and whole
// directory trees with the same engine the command line tool runs.
//
// Basic usage example:
//
//	obf, err := api.NewObfuscator(api.Options{Recursion: 2})
//	if err != nil {
//	    log.Fatalf("Failed to create obfuscator: %v", err)
//	}
//
//	result, err := obf.ObfuscateCode("print('Hello World')")
//	if err != nil {
//	    log.Fatalf("Failed to obfuscate code: %v", err)
//	}
//
//	fmt.Println(result) // Prints obfuscated Python code
package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"

	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/obfuscator"
)

// Errors callers can match with errors.Is.
var (
	ErrParse            = obfuscator.ErrParse
	ErrInvalidArgument  = obfuscator.ErrInvalidArgument
	ErrEncodingOverflow = obfuscator.ErrEncodingOverflow
	ErrGeneration       = obfuscator.ErrGeneration
)

// Obfuscator wraps the configuration and the context shared by every call.
type Obfuscator struct {
	// Context records the alias maps of every processed input.
	Context *obfuscator.ObfuscationContext
	// Config holds the configuration settings for obfuscation.
	Config *config.Config
}

// Options represents configuration options for creating a new Obfuscator.
type Options struct {
	// ConfigPath is the path to a YAML configuration file.
	// If empty, ./config.yaml is used when present, defaults otherwise.
	ConfigPath string

	// Silent suppresses informational messages during obfuscation.
	Silent bool

	// Recursion overrides the configured number of layer cycles when positive.
	Recursion int

	// IncludeImports re-prepends harvested imports to every output when true.
	IncludeImports bool

	// ConfigOverrides sets obfuscation keys by name, e.g. "seed", "charset",
	// "max_int_bits", "keep_members" or "extra_protected". Values are
	// converted loosely, so "3" works for an integer key.
	ConfigOverrides map[string]interface{}
}

// NewObfuscator creates a new Obfuscator instance using the provided options.
// It returns an error when the configuration cannot be loaded, an override
// is unknown or cannot be converted, or the resulting settings are invalid.
func NewObfuscator(options Options) (*Obfuscator, error) {
	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if options.Silent {
		cfg.Silent = true
	}
	if options.Recursion > 0 {
		cfg.Obfuscation.Recursion = options.Recursion
	}
	if options.IncludeImports {
		cfg.Obfuscation.IncludeImports = true
	}
	if err := applyOverrides(cfg, options.ConfigOverrides); err != nil {
		return nil, err
	}
	config.SetupLogging(cfg)

	octx, err := obfuscator.NewObfuscationContext(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create obfuscation context: %w", err)
	}
	return &Obfuscator{Context: octx, Config: cfg}, nil
}

// applyOverrides converts each override value to the type of its key.
func applyOverrides(cfg *config.Config, overrides map[string]interface{}) error {
	ob := &cfg.Obfuscation
	for key, value := range overrides {
		var err error
		switch strings.ToLower(strings.ReplaceAll(key, "-", "_")) {
		case "recursion":
			ob.Recursion, err = cast.ToIntE(value)
		case "include_imports":
			ob.IncludeImports, err = cast.ToBoolE(value)
		case "seed":
			ob.Seed, err = cast.ToInt64E(value)
		case "charset":
			ob.Charset, err = cast.ToStringE(value)
		case "max_int_bits":
			ob.MaxIntBits, err = cast.ToIntE(value)
		case "keep_members":
			ob.KeepMembers, err = cast.ToBoolE(value)
		case "builtins":
			ob.Builtins, err = cast.ToStringSliceE(value)
		case "extra_protected":
			ob.ExtraProtected, err = cast.ToStringSliceE(value)
		case "silent":
			cfg.Silent, err = cast.ToBoolE(value)
		case "abort_on_error":
			cfg.AbortOnError, err = cast.ToBoolE(value)
		default:
			return fmt.Errorf("%w: unknown config override %q", ErrInvalidArgument, key)
		}
		if err != nil {
			return fmt.Errorf("%w: config override %q: %v", ErrInvalidArgument, key, err)
		}
	}
	return nil
}

// ObfuscateCode obfuscates a string of Python code and returns the result.
func (o *Obfuscator) ObfuscateCode(code string) (string, error) {
	return o.ObfuscateCodeContext(context.Background(), code)
}

// ObfuscateCodeContext is ObfuscateCode with caller-driven cancellation.
func (o *Obfuscator) ObfuscateCodeContext(ctx context.Context, code string) (string, error) {
	result, err := o.Context.ObfuscateSource(ctx, "<code>", code)
	if err != nil {
		return "", fmt.Errorf("failed to obfuscate code: %w", err)
	}
	return result, nil
}

// ObfuscateFile obfuscates a Python file and returns the obfuscated code.
func (o *Obfuscator) ObfuscateFile(filePath string) (string, error) {
	result, err := obfuscator.ProcessFile(context.Background(), filePath, o.Context)
	if err != nil {
		return "", fmt.Errorf("failed to obfuscate file %s: %w", filePath, err)
	}
	return result, nil
}

// ObfuscateFileToFile obfuscates a Python file and writes the result to
// outputPath, creating its directory if needed.
func (o *Obfuscator) ObfuscateFileToFile(inputPath, outputPath string) error {
	result, err := o.ObfuscateFile(inputPath)
	if err != nil {
		return err
	}
	outputDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	if err := os.WriteFile(outputPath, []byte(result), 0644); err != nil {
		return fmt.Errorf("failed to write to output file %s: %w", outputPath, err)
	}
	return nil
}

// ObfuscateDirectory obfuscates every Python file under inputDir into
// outputDir/obfuscated, copying other files and keeping the directory
// layout. Alias maps go to outputDir/context when enabled in the config.
func (o *Obfuscator) ObfuscateDirectory(inputDir, outputDir string) error {
	inputInfo, err := os.Stat(inputDir)
	if err != nil {
		return fmt.Errorf("failed to stat input directory %s: %w", inputDir, err)
	}
	if !inputInfo.IsDir() {
		return fmt.Errorf("input path %s is not a directory", inputDir)
	}

	o.Config.TargetDirectory = outputDir
	if _, err := obfuscator.ProcessDirectory(context.Background(), inputDir, o.Context); err != nil {
		return err
	}
	return nil
}

// LookupObfuscatedName returns the alias an original name received in the
// given processed input. Use "<code>" for sources passed to ObfuscateCode.
func (o *Obfuscator) LookupObfuscatedName(source, name string) (string, error) {
	aliases, ok := o.Context.Aliases(source)
	if !ok {
		return "", fmt.Errorf("no obfuscation recorded for %s", source)
	}
	alias, found := aliases[name]
	if !found {
		return "", fmt.Errorf("name not found in context: %s", name)
	}
	return alias, nil
}

// SaveAliasMap writes the alias map of a processed input to path, for use
// with the whatis command.
func (o *Obfuscator) SaveAliasMap(source, path string) error {
	return o.Context.SaveAliases(source, path)
}
