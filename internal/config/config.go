// Package config loads pymixer settings from a YAML file, PYMIXER_ environment
// variables and defaults, and sets up logging from them.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/zeromicro/go-zero/core/logx"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when no --config flag is given. A missing default
// file is not an error.
const DefaultConfigFile = "config.yaml"

// EnvPrefix namespaces environment overrides, e.g. PYMIXER_OBFUSCATION_RECURSION.
const EnvPrefix = "PYMIXER"

// ErrInvalidConfig marks values that passed decoding but cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// ObfuscationConfig holds the engine settings.
type ObfuscationConfig struct {
	Recursion      int  `yaml:"recursion" mapstructure:"recursion"`
	IncludeImports bool `yaml:"include_imports" mapstructure:"include_imports"`
	// Seed makes runs reproducible. Zero draws a fresh seed per run.
	Seed    int64  `yaml:"seed" mapstructure:"seed"`
	Charset string `yaml:"charset" mapstructure:"charset"`
	// MaxIntBits bounds encoded integer literals, 0 means unbounded.
	MaxIntBits  int  `yaml:"max_int_bits" mapstructure:"max_int_bits"`
	KeepMembers bool `yaml:"keep_members" mapstructure:"keep_members"`
	// Builtins replaces the default protected built-in set when non-empty.
	Builtins       []string `yaml:"builtins,omitempty" mapstructure:"builtins"`
	ExtraProtected []string `yaml:"extra_protected,omitempty" mapstructure:"extra_protected"`
}

// BotConfig holds the chat bot settings. An empty RedisAddr keeps sessions
// in process memory.
type BotConfig struct {
	CredentialsFile string        `yaml:"credentials_file" mapstructure:"credentials_file"`
	RedisAddr       string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password,omitempty" mapstructure:"redis_password"`
	RedisDB         int           `yaml:"redis_db" mapstructure:"redis_db"`
	SessionTTL      time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
	InlineLimit     int           `yaml:"inline_limit" mapstructure:"inline_limit"`
	MaxRecursion    int           `yaml:"max_recursion" mapstructure:"max_recursion"`
	MaxSourceBytes  int           `yaml:"max_source_bytes" mapstructure:"max_source_bytes"`
	PollTimeout     int           `yaml:"poll_timeout" mapstructure:"poll_timeout"`
}

// Config holds all configuration settings.
type Config struct {
	SourceDirectory string `yaml:"source_directory,omitempty" mapstructure:"source_directory"`
	TargetDirectory string `yaml:"target_directory,omitempty" mapstructure:"target_directory"`

	Silent       bool `yaml:"silent" mapstructure:"silent"`
	AbortOnError bool `yaml:"abort_on_error" mapstructure:"abort_on_error"`
	DebugMode    bool `yaml:"debug_mode" mapstructure:"debug_mode"`

	PythonExtensions []string `yaml:"python_extensions" mapstructure:"python_extensions"`
	// SkipPaths are glob patterns never copied to the target.
	SkipPaths []string `yaml:"skip" mapstructure:"skip"`
	// KeepPaths are glob patterns copied without obfuscating.
	KeepPaths      []string `yaml:"keep" mapstructure:"keep"`
	WriteAliasMaps bool     `yaml:"write_alias_maps" mapstructure:"write_alias_maps"`

	Obfuscation ObfuscationConfig `yaml:"obfuscation" mapstructure:"obfuscation"`
	Bot         BotConfig         `yaml:"bot" mapstructure:"bot"`
}

// Viper keys are lowercase and dotted for nested structs.
var defaults = map[string]interface{}{
	"silent":                      false,
	"abort_on_error":              true,
	"debug_mode":                  false,
	"python_extensions":           []string{"py", "pyw"},
	"skip":                        []string{"*.pyc", "__pycache__", ".git", "*.bak"},
	"keep":                        []string{},
	"write_alias_maps":            true,
	"obfuscation.recursion":       1,
	"obfuscation.include_imports": false,
	"obfuscation.seed":            0,
	"obfuscation.charset":         "unicode",
	"obfuscation.max_int_bits":    0,
	"obfuscation.keep_members":    false,
	"bot.credentials_file":        "config.json",
	"bot.redis_addr":              "",
	"bot.redis_password":          "",
	"bot.redis_db":                0,
	"bot.session_ttl":             "24h",
	"bot.inline_limit":            4000,
	"bot.max_recursion":           5,
	"bot.max_source_bytes":        512 * 1024,
	"bot.poll_timeout":            60,
}

// DefaultConfig returns a configuration with default settings.
func DefaultConfig() *Config {
	return &Config{
		AbortOnError:     true,
		PythonExtensions: []string{"py", "pyw"},
		SkipPaths:        []string{"*.pyc", "__pycache__", ".git", "*.bak"},
		KeepPaths:        []string{},
		WriteAliasMaps:   true,
		Obfuscation: ObfuscationConfig{
			Recursion: 1,
			Charset:   "unicode",
		},
		Bot: BotConfig{
			CredentialsFile: "config.json",
			SessionTTL:      24 * time.Hour,
			InlineLimit:     4000,
			MaxRecursion:    5,
			MaxSourceBytes:  512 * 1024,
			PollTimeout:     60,
		},
	}
}

// LoadConfig reads configuration from file and environment variables on top
// of the defaults. An empty configPath means DefaultConfigFile, which may be
// absent; an explicitly named file must exist.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigFile
	}
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
		logx.Infof("loaded configuration from %s", configPath)
	} else if os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("specified config file not found: %s", configPath)
		}
	} else {
		return nil, fmt.Errorf("error checking config file %s: %w", configPath, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding configuration: %w", err)
	}
	if cfg.TargetDirectory != "" {
		cfg.TargetDirectory = filepath.Clean(cfg.TargetDirectory)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes the default configuration to configPath.
func SaveConfig(configPath string) error {
	yamlData, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshalling default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating directory for config file %s: %w", configPath, err)
	}
	if err := os.WriteFile(configPath, yamlData, 0644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configPath, err)
	}
	logx.Infof("saved default configuration to %s", configPath)
	return nil
}

// Validate rejects settings the engine or the bot cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Obfuscation.Recursion < 1:
		return fmt.Errorf("%w: obfuscation.recursion must be at least 1, got %d", ErrInvalidConfig, c.Obfuscation.Recursion)
	case c.Obfuscation.MaxIntBits != 0 && c.Obfuscation.MaxIntBits < 32:
		return fmt.Errorf("%w: obfuscation.max_int_bits must be 0 or at least 32, got %d", ErrInvalidConfig, c.Obfuscation.MaxIntBits)
	case c.Bot.InlineLimit < 1:
		return fmt.Errorf("%w: bot.inline_limit must be positive", ErrInvalidConfig)
	case c.Bot.MaxRecursion < 1:
		return fmt.Errorf("%w: bot.max_recursion must be at least 1", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Obfuscation.Charset) {
	case "", "unicode", "ascii":
	default:
		return fmt.Errorf("%w: unknown charset %q", ErrInvalidConfig, c.Obfuscation.Charset)
	}
	return nil
}

// LogLevel is the logx level the settings ask for.
func (c *Config) LogLevel() uint32 {
	switch {
	case c.Silent:
		return logx.ErrorLevel
	case c.DebugMode:
		return logx.DebugLevel
	default:
		return logx.InfoLevel
	}
}

// SetupLogging points logx at the console once and applies the level.
// It may be called again after flags change the settings.
func SetupLogging(c *Config) {
	logx.MustSetup(logx.LogConf{
		ServiceName: "pymixer",
		Mode:        "console",
		Encoding:    "plain",
		Level:       "info",
		Stat:        false,
	})
	logx.DisableStat()
	logx.SetLevel(c.LogLevel())
}
