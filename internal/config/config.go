// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"firestige.xyz/pcapfix/internal/capture"
	"firestige.xyz/pcapfix/internal/checksum"
	"firestige.xyz/pcapfix/internal/core"
)

// Config represents the complete configuration.
// Maps to the `pcapfix:` root key in YAML.
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Checksum ChecksumConfig `mapstructure:"checksum" yaml:"checksum"`
	Filter   FilterConfig   `mapstructure:"filter" yaml:"filter"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Progress bool           `mapstructure:"progress" yaml:"progress"` // progress bar on stderr
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string           `mapstructure:"level" yaml:"level"`             // debug / info / warn / error
	Format     string           `mapstructure:"format" yaml:"format"`           // text / json / pattern
	Pattern    string           `mapstructure:"pattern" yaml:"pattern"`         // used when format is pattern
	TimeFormat string           `mapstructure:"time_format" yaml:"time_format"` // Go layout for %time
	File       FileOutputConfig `mapstructure:"file" yaml:"file"`
}

// FileOutputConfig configures the rotated log file written next to stderr.
type FileOutputConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// ─── Processing ───

// PipelineConfig controls frame processing.
type PipelineConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"` // 0 = GOMAXPROCS, 1 = sequential
}

// ChecksumConfig selects the layers whose checksums are rewritten.
type ChecksumConfig struct {
	Layers []string `mapstructure:"layers" yaml:"layers"` // empty = all
}

// FilterConfig restricts normalization to frames accepted by a BPF program.
// Rejected frames are copied unchanged.
type FilterConfig struct {
	BPFFile    string `mapstructure:"bpf_file" yaml:"bpf_file"`     // tcpdump -ddd / -dd output
	Expression string `mapstructure:"expression" yaml:"expression"` // needs a libpcap build
}

// ─── Outputs ───

// OutputConfig controls the written capture file.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"` // auto / pcap / pcapng
}

// ReportConfig controls the diagnostics report.
type ReportConfig struct {
	Path string `mapstructure:"path" yaml:"path"` // empty = no report
}

// MetricsConfig controls Prometheus metrics of a run.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"` // written at the end of the run; empty = disabled
	Listen   string `mapstructure:"listen" yaml:"listen"`     // serve /metrics during the run; empty = disabled
	Path     string `mapstructure:"path" yaml:"path"`
}

// ─── Loading ───

const rootKey = "pcapfix"

// configRoot is the top-level wrapper matching the YAML structure `pcapfix: ...`.
type configRoot struct {
	Pcapfix Config `mapstructure:"pcapfix" yaml:"pcapfix"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":        "log.level",
	"log-format":       "log.format",
	"workers":          "pipeline.workers",
	"layers":           "checksum.layers",
	"filter-file":      "filter.bpf_file",
	"filter":           "filter.expression",
	"format":           "output.format",
	"report":           "report.path",
	"metrics-textfile": "metrics.textfile",
	"metrics-listen":   "metrics.listen",
	"progress":         "progress",
}

// Load builds the configuration from defaults, the optional YAML file at path,
// PCAPFIX_* environment variables and the flags in fs that were set explicitly.
// Either path or fs may be empty.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// "pcapfix.log.level" → PCAPFIX_LOG_LEVEL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, err
		}
	}

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Pcapfix

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file, environment or flags are given.
func Default() *Config {
	cfg, err := Load("", nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(rootKey+"."+key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// setDefaults sets default values for configuration.
// All keys use the "pcapfix." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("pcapfix.log.level", "info")
	v.SetDefault("pcapfix.log.format", "text")
	v.SetDefault("pcapfix.log.pattern", "%time [%level] %msg %field%n")
	v.SetDefault("pcapfix.log.time_format", "2006-01-02 15:04:05.000")
	v.SetDefault("pcapfix.log.file.enabled", false)
	v.SetDefault("pcapfix.log.file.path", "pcapfix.log")
	v.SetDefault("pcapfix.log.file.max_size_mb", 100)
	v.SetDefault("pcapfix.log.file.max_backups", 5)
	v.SetDefault("pcapfix.log.file.max_age_days", 30)
	v.SetDefault("pcapfix.log.file.compress", true)

	// Processing defaults
	v.SetDefault("pcapfix.pipeline.workers", 1)
	v.SetDefault("pcapfix.checksum.layers", []string{})
	v.SetDefault("pcapfix.filter.bpf_file", "")
	v.SetDefault("pcapfix.filter.expression", "")

	// Output defaults
	v.SetDefault("pcapfix.output.format", string(capture.FormatAuto))
	v.SetDefault("pcapfix.report.path", "")
	v.SetDefault("pcapfix.metrics.textfile", "")
	v.SetDefault("pcapfix.metrics.listen", "")
	v.SetDefault("pcapfix.metrics.path", "/metrics")
	v.SetDefault("pcapfix.progress", false)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error): %w", cfg.Log.Level, core.ErrConfigInvalid)
	}
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	switch cfg.Log.Format {
	case "text", "json":
	case "pattern":
		if cfg.Log.Pattern == "" {
			return fmt.Errorf("log.pattern is required when log.format=pattern: %w", core.ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("invalid log format: %s (must be text/json/pattern): %w", cfg.Log.Format, core.ErrConfigInvalid)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("log.file.path is required when log.file.enabled=true: %w", core.ErrConfigInvalid)
	}

	// ── Pipeline ──
	if cfg.Pipeline.Workers < 0 {
		return fmt.Errorf("invalid pipeline.workers: %d (must be >= 0): %w", cfg.Pipeline.Workers, core.ErrConfigInvalid)
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = runtime.GOMAXPROCS(0)
	}

	// ── Checksum layers ──
	if _, err := checksum.ParseLayers(cfg.Checksum.Layers); err != nil {
		return fmt.Errorf("invalid checksum.layers: %v: %w", err, core.ErrConfigInvalid)
	}

	// ── Filter ──
	if cfg.Filter.BPFFile != "" && cfg.Filter.Expression != "" {
		return fmt.Errorf("filter.bpf_file and filter.expression are mutually exclusive: %w", core.ErrConfigInvalid)
	}

	// ── Output format ──
	format, err := capture.ParseFormat(cfg.Output.Format)
	if err != nil {
		return fmt.Errorf("invalid output.format: %v: %w", err, core.ErrConfigInvalid)
	}
	cfg.Output.Format = string(format)

	return nil
}

// ChecksumOptions returns the engine options for the configured layers.
func (cfg *Config) ChecksumOptions() checksum.Options {
	opts, _ := checksum.ParseLayers(cfg.Checksum.Layers)
	return opts
}

// OutputFormat returns the configured capture format.
func (cfg *Config) OutputFormat() capture.Format {
	return capture.Format(cfg.Output.Format)
}
