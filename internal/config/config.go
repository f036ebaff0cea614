package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/logging"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/scope"
)

// Supported collector services.
const (
	ServiceELBv2 = "elbv2"
	ServiceVPC   = "vpc"
)

// Services lists every service the collect command knows, in run order.
var Services = []string{ServiceELBv2, ServiceVPC}

// Ways of interpreting scan.resources.
const (
	MatchARN = "arn"
	MatchCEL = "cel"
)

// EnvPrefix prefixes every environment override, e.g. INV_AWS_PROFILE.
const EnvPrefix = "INV"

// ErrConfigExists is returned by Write when the file is present and force
// was not requested.
var ErrConfigExists = errors.New("config file already exists")

// Config is the top-level application configuration.
// It is loaded from ~/.config/cloud-inventory/config.yaml and INV_*
// environment variables; command-line flags override both.
type Config struct {
	AWS       AWSConfig       `yaml:"aws"       mapstructure:"aws"`
	Scan      ScanConfig      `yaml:"scan"      mapstructure:"scan"`
	Log       LogConfig       `yaml:"log"       mapstructure:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// AWSConfig selects the identity and regions to inventory.
type AWSConfig struct {
	// Profile is the shared-config profile. Empty uses the default chain.
	Profile string `yaml:"profile" mapstructure:"profile"`

	// Regions restricts collection. Empty means every enabled region.
	Regions []string `yaml:"regions" mapstructure:"regions"`

	// EndpointURL overrides every service endpoint, e.g. for LocalStack.
	EndpointURL string `yaml:"endpoint_url" mapstructure:"endpoint_url"`
}

// ScanConfig controls what is collected and how hard the engine pushes.
type ScanConfig struct {
	// Services selects collectors. Empty runs all of them.
	Services []string `yaml:"services" mapstructure:"services"`

	// Resources is the identifier allow-list. Empty keeps everything.
	Resources []string `yaml:"resources" mapstructure:"resources"`

	// Match selects how Resources entries are read: "arn" for ids and
	// ARNs, "cel" for boolean expressions over id.
	Match string `yaml:"match" mapstructure:"match"`

	// Concurrency caps units in flight per pass. 0 is one per region.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`

	// UnitTimeout bounds each regional unit. 0 disables it.
	UnitTimeout time.Duration `yaml:"unit_timeout" mapstructure:"unit_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"  mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type TelemetryConfig struct {
	// Endpoint is an OTLP HTTP URL. Empty discards spans.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		AWS:  AWSConfig{Regions: []string{}},
		Scan: ScanConfig{Services: []string{}, Resources: []string{}, Match: MatchARN, UnitTimeout: 2 * time.Minute},
		Log:  LogConfig{Level: "info", Format: string(logging.FormatText)},
	}
}

// Validate rejects values the engine cannot honour.
func (c *Config) Validate() error {
	var errs []error
	for _, s := range c.Scan.Services {
		if !slices.Contains(Services, s) {
			errs = append(errs, fmt.Errorf("scan.services: unknown service %q (known: %s)", s, strings.Join(Services, ", ")))
		}
	}
	switch c.Scan.Match {
	case MatchARN, "":
	case MatchCEL:
		if m, err := scope.NewCELMatcher(); err != nil {
			errs = append(errs, err)
		} else {
			for _, r := range c.Scan.Resources {
				if err := m.Compile(r); err != nil {
					errs = append(errs, fmt.Errorf("scan.resources: %w", err))
				}
			}
		}
	default:
		errs = append(errs, fmt.Errorf("scan.match: unknown mode %q (known: %s, %s)", c.Scan.Match, MatchARN, MatchCEL))
	}
	if c.Scan.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("scan.concurrency must be >= 0, got %d", c.Scan.Concurrency))
	}
	if c.Scan.UnitTimeout < 0 {
		errs = append(errs, fmt.Errorf("scan.unit_timeout must be >= 0, got %s", c.Scan.UnitTimeout))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch logging.Format(c.Log.Format) {
	case logging.FormatJSON, logging.FormatText, "":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// EnabledServices returns the services to run, all of them when none are
// selected.
func (c *Config) EnabledServices() []string {
	if len(c.Scan.Services) == 0 {
		return slices.Clone(Services)
	}
	return c.Scan.Services
}

// ResourceFilter returns the scope.Filter for scan.match.
func (c *Config) ResourceFilter() (scope.Filter, error) {
	if c.Scan.Match == MatchCEL {
		return scope.NewCELMatcher()
	}
	return scope.ARNMatcher{}, nil
}

// Loader is the interface for reading Config.
type Loader interface {
	// Load reads, parses, and validates the configuration.
	Load() (*Config, error)

	// ConfigPath returns the absolute path to the configuration file.
	ConfigPath() string
}

// DefaultPath returns ~/.config/cloud-inventory/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "cloud-inventory", "config.yaml"), nil
}

// FileLoader reads a YAML file through viper and layers INV_* environment
// variables on top. A missing file is not an error.
type FileLoader struct {
	path string
}

// NewFileLoader returns a loader for path, or for DefaultPath when empty.
func NewFileLoader(path string) (*FileLoader, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &FileLoader{path: path}, nil
}

func (l *FileLoader) ConfigPath() string { return l.path }

func (l *FileLoader) Load() (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetConfigFile(l.path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(l.path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", l.path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config %s: %w", l.path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", l.path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", l.path, err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("aws.profile", d.AWS.Profile)
	v.SetDefault("aws.regions", d.AWS.Regions)
	v.SetDefault("aws.endpoint_url", d.AWS.EndpointURL)
	v.SetDefault("scan.services", d.Scan.Services)
	v.SetDefault("scan.resources", d.Scan.Resources)
	v.SetDefault("scan.match", d.Scan.Match)
	v.SetDefault("scan.concurrency", d.Scan.Concurrency)
	v.SetDefault("scan.unit_timeout", d.Scan.UnitTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
}

// Write saves cfg as YAML at path with owner-only permissions. An existing
// file is kept unless force is set.
func Write(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
