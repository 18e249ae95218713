package obfuscator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/scrambler"
)

// ObfuscationContext carries the configuration through a file or directory
// run and keeps the alias maps of every processed file.
type ObfuscationContext struct {
	Config *config.Config
	Silent bool // Inherited from config for convenience

	aliases map[string]map[string]string // source path -> original -> alias
}

// NewObfuscationContext validates cfg and creates a context for it.
func NewObfuscationContext(cfg *config.Config) (*ObfuscationContext, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil configuration", ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ObfuscationContext{
		Config:  cfg,
		Silent:  cfg.Silent,
		aliases: make(map[string]map[string]string),
	}, nil
}

// EngineOptions translates the configuration into engine options.
func (octx *ObfuscationContext) EngineOptions() []Option {
	ob := octx.Config.Obfuscation
	return []Option{
		WithSeed(ob.Seed),
		WithBuiltins(ob.Builtins),
		WithExtraProtected(ob.ExtraProtected...),
		WithCharset(scrambler.Charset(ob.Charset)),
		WithMaxIntBits(ob.MaxIntBits),
		WithKeepMembers(ob.KeepMembers),
	}
}

// ObfuscateSource runs a fresh engine over src. name only labels log lines
// and the alias map.
func (octx *ObfuscationContext) ObfuscateSource(ctx context.Context, name, src string) (string, error) {
	ob := octx.Config.Obfuscation
	engine, err := New(src, ob.IncludeImports, ob.Recursion, octx.EngineOptions()...)
	if err != nil {
		return "", err
	}
	out, err := engine.Obfuscate(ctx)
	if err != nil {
		return "", err
	}
	octx.aliases[name] = engine.Aliases()

	r := engine.Report()
	if !octx.Silent {
		logx.Infof("obfuscated %s: %d layers, %d names renamed, %d protected references, %d literals encoded, %d noise lines",
			name, len(r.Layers), r.Rename.Renamed, r.Rename.Indirected, r.Rename.Strings+r.Rename.Integers, r.NoiseLines)
	}
	return out, nil
}

// Aliases returns the alias map recorded for a processed file.
func (octx *ObfuscationContext) Aliases(name string) (map[string]string, bool) {
	m, ok := octx.aliases[name]
	return m, ok
}

// Processed returns the names of every processed input in sorted order.
func (octx *ObfuscationContext) Processed() []string {
	names := make([]string, 0, len(octx.aliases))
	for name := range octx.aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SaveAliases writes the alias map recorded for name to path.
func (octx *ObfuscationContext) SaveAliases(name, path string) error {
	m, ok := octx.aliases[name]
	if !ok {
		return fmt.Errorf("no alias map recorded for %s", name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating directory for alias map %s: %w", path, err)
	}
	return scrambler.SaveAliasMap(path, name, m)
}

// ProcessFile reads filePath and returns its obfuscated text.
func ProcessFile(ctx context.Context, filePath string, octx *ObfuscationContext) (string, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		// Return error without printing here, let caller handle reporting.
		return "", fmt.Errorf("error reading file %s: %w", filePath, err)
	}
	out, err := octx.ObfuscateSource(ctx, filePath, string(src))
	if err != nil {
		return "", fmt.Errorf("obfuscating %s: %w", filePath, err)
	}
	return out, nil
}
