package scrambler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const aliasMapVersion = "pymixer-aliases-v1"

// AliasMap is the on-disk form of a registry snapshot, written next to an
// obfuscated file so aliases can be traced back later.
type AliasMap struct {
	Version string            `yaml:"version"`
	Source  string            `yaml:"source,omitempty"`
	Aliases map[string]string `yaml:"aliases"`
}

// Reverse returns the alias -> original view of the map.
func (m *AliasMap) Reverse() map[string]string {
	out := make(map[string]string, len(m.Aliases))
	for original, alias := range m.Aliases {
		out[alias] = original
	}
	return out
}

// SaveAliasMap writes aliases to filePath as YAML.
func SaveAliasMap(filePath, source string, aliases map[string]string) error {
	data, err := yaml.Marshal(&AliasMap{Version: aliasMapVersion, Source: source, Aliases: aliases})
	if err != nil {
		return fmt.Errorf("failed to encode alias map: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write alias map to file %s: %w", filePath, err)
	}
	return nil
}

// LoadAliasMap reads an alias map written by SaveAliasMap.
func LoadAliasMap(filePath string) (*AliasMap, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias map file %s: %w", filePath, err)
	}
	var m AliasMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode alias map from file %s: %w", filePath, err)
	}
	if m.Version != aliasMapVersion {
		return nil, fmt.Errorf("incompatible alias map version: file has '%s', expected '%s'", m.Version, aliasMapVersion)
	}
	if m.Aliases == nil {
		m.Aliases = make(map[string]string)
	}
	return &m, nil
}
