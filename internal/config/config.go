package config

import (
	"time"

	"github.com/egresslab/gwrotor/internal/manager"
)

// Default configuration values.
const (
	// DefaultWorkers is the default provisioning worker pool width.
	DefaultWorkers = 4

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default logging format.
	DefaultLogFormat = "json"

	// DefaultAdminListen is the default admin server listen address.
	DefaultAdminListen = ":8080"
)

// Config is the top-level gwrotor configuration.
type Config struct {
	// TargetBaseURL is the origin all gateways route to. Required.
	TargetBaseURL string `yaml:"targetBaseURL" json:"targetBaseURL"`

	// Regions lists provider regions or named groups (default, us,
	// eu, asia, all). Accepts a single scalar or a list in YAML.
	Regions RegionList `yaml:"regions" json:"regions"`

	// GatewaysPerRegion is the desired pool size per region.
	GatewaysPerRegion int `yaml:"gatewaysPerRegion" json:"gatewaysPerRegion"`

	// ReuseGateways keeps gateways alive at teardown.
	ReuseGateways bool `yaml:"reuseGateways" json:"reuseGateways"`

	// UniqueNames appends a random suffix to created gateway names.
	UniqueNames bool `yaml:"uniqueNames" json:"uniqueNames"`

	// HostHeader overrides the X-Host value sent with routed
	// requests. Default is the host of TargetBaseURL.
	HostHeader string `yaml:"hostHeader" json:"hostHeader"`

	// Workers is the provisioning worker pool width. Zero means the
	// default; a negative value selects one goroutine per gateway.
	Workers int `yaml:"workers" json:"workers"`

	// PaginationLimit is the page size for gateway discovery listings.
	PaginationLimit int `yaml:"paginationLimit" json:"paginationLimit"`

	// DeleteMaxRetries caps rate-limited delete retries.
	DeleteMaxRetries int `yaml:"deleteMaxRetries" json:"deleteMaxRetries"`

	// DeleteBackoff is the wait between rate-limited delete attempts.
	DeleteBackoff Duration `yaml:"deleteBackoff" json:"deleteBackoff"`

	// Debug enables per-request rewrite logging.
	Debug bool `yaml:"debug" json:"debug"`

	Secrets SecretsConfig `yaml:"secrets" json:"secrets"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Admin   AdminConfig   `yaml:"admin" json:"admin"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// SecretsConfig selects where cloud credentials come from.
type SecretsConfig struct {
	// Provider is the credential source: "env" (default) or "vault".
	Provider string `yaml:"provider" json:"provider"`

	Vault VaultConfig `yaml:"vault" json:"vault"`
}

// VaultConfig configures the Vault credential source.
type VaultConfig struct {
	// Address is the Vault server URL.
	Address string `yaml:"address" json:"address"`

	// Token authenticates against Vault. Usually supplied through
	// ${VAULT_TOKEN} substitution rather than written in the file.
	Token string `yaml:"token" json:"token"`

	// Mount is the KV v2 mount point. Default is "secret".
	Mount string `yaml:"mount" json:"mount"`

	// Path is the secret path under the mount.
	Path string `yaml:"path" json:"path"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// AdminConfig configures the admin HTTP server.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint" json:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
	Insecure     bool    `yaml:"insecure" json:"insecure"`
}

// DefaultConfig returns a configuration with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		GatewaysPerRegion: manager.DefaultGatewaysPerRegion,
		Workers:           DefaultWorkers,
		DeleteMaxRetries:  manager.DefaultDeleteMaxRetries,
		DeleteBackoff:     Duration(manager.DefaultDeleteBackoff),
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Admin: AdminConfig{
			Listen: DefaultAdminListen,
		},
	}
}

// GetGatewaysPerRegion returns the effective desired pool size.
func (c *Config) GetGatewaysPerRegion() int {
	if c == nil || c.GatewaysPerRegion <= 0 {
		return manager.DefaultGatewaysPerRegion
	}
	return c.GatewaysPerRegion
}

// GetWorkers returns the effective worker pool width.
func (c *Config) GetWorkers() int {
	if c == nil || c.Workers == 0 {
		return DefaultWorkers
	}
	return c.Workers
}

// GetDeleteMaxRetries returns the effective delete retry cap.
func (c *Config) GetDeleteMaxRetries() int {
	if c == nil || c.DeleteMaxRetries <= 0 {
		return manager.DefaultDeleteMaxRetries
	}
	return c.DeleteMaxRetries
}

// GetDeleteBackoff returns the effective delete retry backoff.
func (c *Config) GetDeleteBackoff() time.Duration {
	if c == nil || c.DeleteBackoff <= 0 {
		return manager.DefaultDeleteBackoff
	}
	return c.DeleteBackoff.Duration()
}

// GetLogLevel returns the effective log level.
func (c *Config) GetLogLevel() string {
	if c == nil || c.Log.Level == "" {
		return DefaultLogLevel
	}
	return c.Log.Level
}

// GetLogFormat returns the effective log format.
func (c *Config) GetLogFormat() string {
	if c == nil || c.Log.Format == "" {
		return DefaultLogFormat
	}
	return c.Log.Format
}

// GetAdminListen returns the effective admin listen address.
func (c *Config) GetAdminListen() string {
	if c == nil || c.Admin.Listen == "" {
		return DefaultAdminListen
	}
	return c.Admin.Listen
}

// GetSecretsProvider returns the effective credential source name.
func (c *Config) GetSecretsProvider() string {
	if c == nil || c.Secrets.Provider == "" {
		return "env"
	}
	return c.Secrets.Provider
}

// ManagerConfig converts the file configuration into the manager's
// configuration struct.
func (c *Config) ManagerConfig() *manager.Config {
	return &manager.Config{
		TargetBaseURL:     c.TargetBaseURL,
		Regions:           c.Regions,
		GatewaysPerRegion: c.GetGatewaysPerRegion(),
		ReuseGateways:     c.ReuseGateways,
		UniqueNames:       c.UniqueNames,
		DeleteMaxRetries:  c.GetDeleteMaxRetries(),
		DeleteBackoff:     c.GetDeleteBackoff(),
	}
}

// RegionList is a string list that also accepts a single YAML scalar.
type RegionList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *RegionList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		if single == "" {
			*r = nil
		} else {
			*r = RegionList{single}
		}
		return nil
	}

	var many []string
	if err := unmarshal(&many); err != nil {
		return err
	}
	*r = RegionList(many)
	return nil
}
