// Package config loads and validates the run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidThumbHeight = errors.New("thumbnail height must be positive")
	ErrInvalidBackend     = errors.New("unknown comparison backend")
	ErrInvalidWorkers     = errors.New("workers must not be negative")
	ErrNoExtensions       = errors.New("at least one image extension is required")
	ErrEmptyReportRoot    = errors.New("report root must not be empty")
)

// Backend names.
const (
	BackendPixel = "pixel"
	BackendFlip  = "flip"
)

// Default configuration values.
const (
	DefaultReportRoot  = "./imdirdiff-out"
	DefaultThumbHeight = 80
	DefaultThumbSuffix = "sm.jpg"
	DefaultFlipBinary  = "flip"
	DefaultLogFile     = "imdirdiff.log"
	defaultWorkers     = 1
	envPrefix          = "IMDIRDIFF"
	configName         = "imdirdiff"
)

// DefaultExtensions is the raster-image allow-list.
var DefaultExtensions = []string{"gif", "jpg", "jpeg", "png", "webp"}

// Config holds all configuration for a run.
type Config struct {
	Index   IndexConfig   `mapstructure:"index"`
	Compare CompareConfig `mapstructure:"compare"`
	Report  ReportConfig  `mapstructure:"report"`
	Logging LoggingConfig `mapstructure:"logging"`
	History HistoryConfig `mapstructure:"history"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// IndexConfig controls directory indexing.
type IndexConfig struct {
	Extensions []string `mapstructure:"extensions"`
}

// CompareConfig selects and tunes the comparison backend.
type CompareConfig struct {
	Backend string     `mapstructure:"backend"`
	Workers int        `mapstructure:"workers"`
	Flip    FlipConfig `mapstructure:"flip"`
}

// FlipConfig configures the external perceptual-diff tool.
type FlipConfig struct {
	Executable string `mapstructure:"executable"`
}

// ReportConfig controls the report root and its artifacts.
type ReportConfig struct {
	Root          string `mapstructure:"root"`
	Title         string `mapstructure:"title"`
	ThumbHeight   int    `mapstructure:"thumb_height"`
	ThumbSuffix   string `mapstructure:"thumb_suffix"`
	SkipUnchanged bool   `mapstructure:"skip_unchanged"`
	CopyUnmatched bool   `mapstructure:"copy_unmatched"`
}

// LoggingConfig controls the debug log.
type LoggingConfig struct {
	Debug bool   `mapstructure:"debug"`
	File  string `mapstructure:"file"`
	JSON  bool   `mapstructure:"json"`
}

// HistoryConfig points at the run-history database. Empty disables it.
type HistoryConfig struct {
	Database string `mapstructure:"database"`
}

// MetricsConfig points at the Prometheus textfile. Empty disables it.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Load reads configuration from defaults, an optional file, .env and the
// environment. An empty configPath searches the standard locations.
func Load(configPath string) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	readErr := v.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := v.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Index: IndexConfig{Extensions: append([]string(nil), DefaultExtensions...)},
		Compare: CompareConfig{
			Backend: BackendPixel,
			Workers: defaultWorkers,
			Flip:    FlipConfig{Executable: DefaultFlipBinary},
		},
		Report: ReportConfig{
			Root:        DefaultReportRoot,
			ThumbHeight: DefaultThumbHeight,
			ThumbSuffix: DefaultThumbSuffix,
		},
		Logging: LoggingConfig{File: DefaultLogFile},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("index.extensions", d.Index.Extensions)

	v.SetDefault("compare.backend", d.Compare.Backend)
	v.SetDefault("compare.workers", d.Compare.Workers)
	v.SetDefault("compare.flip.executable", d.Compare.Flip.Executable)

	v.SetDefault("report.root", d.Report.Root)
	v.SetDefault("report.title", "")
	v.SetDefault("report.thumb_height", d.Report.ThumbHeight)
	v.SetDefault("report.thumb_suffix", d.Report.ThumbSuffix)
	v.SetDefault("report.skip_unchanged", false)
	v.SetDefault("report.copy_unmatched", false)

	v.SetDefault("logging.debug", false)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.json", false)

	v.SetDefault("history.database", "")
	v.SetDefault("metrics.textfile", "")
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	if len(c.Index.Extensions) == 0 {
		return ErrNoExtensions
	}

	switch c.Compare.Backend {
	case BackendPixel, BackendFlip:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Compare.Backend)
	}

	if c.Compare.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Compare.Workers)
	}

	if c.Report.ThumbHeight <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThumbHeight, c.Report.ThumbHeight)
	}

	if strings.TrimSpace(c.Report.Root) == "" {
		return ErrEmptyReportRoot
	}

	return nil
}

// NormalizedExtensions returns the allow-list lower-cased and without dots.
func (c IndexConfig) NormalizedExtensions() []string {
	out := make([]string, 0, len(c.Extensions))
	for _, ext := range c.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}
