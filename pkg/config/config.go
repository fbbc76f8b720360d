package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/catalogfs/pkg/catalog/local"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the complete catalogfs configuration.
//
// It covers:
//   - Logging configuration
//   - The catalog to connect to and how to authenticate
//   - Session path handling (mount prefix, catalog root)
//   - The in-process catalog backend (users, metadata and content stores)
//   - FUSE mount options
//   - Metrics exposition
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (CATALOGFS_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. The Config
// struct carries type-specific sections (e.g., content.filesystem,
// content.s3) and only the section matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Catalog describes where and as whom to connect
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`

	// Session controls path normalization
	Session SessionConfig `mapstructure:"session" yaml:"session"`

	// Backend configures the in-process catalog
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`

	// FUSE configures the mount command
	FUSE FUSEConfig `mapstructure:"fuse" yaml:"fuse"`

	// Metrics configures Prometheus exposition
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// CatalogConfig is the connection environment.
type CatalogConfig struct {
	Host string `mapstructure:"host" yaml:"host" validate:"required"`
	Port int    `mapstructure:"port" yaml:"port" validate:"required,gt=0,lte=65535"`
	User string `mapstructure:"user" yaml:"user" validate:"required"`
	Zone string `mapstructure:"zone" yaml:"zone" validate:"required"`

	// DefaultResource is the storage resource new data objects land on
	DefaultResource string `mapstructure:"default_resource" yaml:"default_resource"`

	// Password selects where the login password comes from
	Password PasswordConfig `mapstructure:"password" yaml:"password"`
}

// PasswordConfig selects the password source.
type PasswordConfig struct {
	// Source is one of: config, env, keyring
	Source string `mapstructure:"source" yaml:"source" validate:"required,oneof=config env keyring"`

	// Value is the literal password. Only used when Source = "config"
	Value string `mapstructure:"value" yaml:"value,omitempty"`

	// EnvVar names the variable holding the password. Only used when
	// Source = "env". Default: CATALOGFS_PASSWORD
	EnvVar string `mapstructure:"env_var" yaml:"env_var,omitempty"`

	// KeyringService is the OS keyring service name. Only used when
	// Source = "keyring". Default: catalogfs
	KeyringService string `mapstructure:"keyring_service" yaml:"keyring_service,omitempty"`

	// KeyringKey is the item key. Default: <user>@<zone>
	KeyringKey string `mapstructure:"keyring_key" yaml:"keyring_key,omitempty"`
}

// SessionConfig controls how paths are normalized.
type SessionConfig struct {
	// MountPrefix is stripped from every incoming path. The mount command
	// uses the FUSE mountpoint when this is empty.
	MountPrefix string `mapstructure:"mount_prefix" yaml:"mount_prefix"`

	// CatalogRoot bounds every normalized path
	CatalogRoot string `mapstructure:"catalog_root" yaml:"catalog_root" validate:"required,startswith=/"`
}

// BackendConfig configures the in-process catalog engine.
type BackendConfig struct {
	// Users that may log in. Passwords are bcrypt-hashed at startup.
	Users []local.User `mapstructure:"users" yaml:"users" validate:"dive"`

	// BcryptCost is the hashing cost for plain passwords (4-31)
	BcryptCost int `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost" validate:"gte=4,lte=31"`

	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`
	Content  ContentConfig  `mapstructure:"content" yaml:"content"`

	// GC removes content no entity references any more
	GC GCConfig `mapstructure:"gc" yaml:"gc"`
}

// GCConfig configures the orphaned content collector.
type GCConfig struct {
	// Enabled runs the collector in the background while mounted
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval between background runs
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gte=0"`

	// DryRun only reports what would be deleted
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`
}

// MetadataConfig specifies metadata store configuration.
type MetadataConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`
}

// ContentConfig specifies content store configuration.
type ContentConfig struct {
	// Type specifies which content store implementation to use
	// Valid values: filesystem, memory, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem memory s3"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem,omitempty"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// FUSEConfig configures the FUSE mount.
type FUSEConfig struct {
	// Mountpoint is the local directory to mount on
	Mountpoint string `mapstructure:"mountpoint" yaml:"mountpoint"`

	// AllowOther lets other local users access the mount
	AllowOther bool `mapstructure:"allow_other" yaml:"allow_other"`

	// Debug logs every FUSE request
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port serves /metrics while mounted
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,gt=0,lte=65535"`
}

// envKeys are bound explicitly so that environment overrides apply even
// when the key is absent from the config file.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"catalog.host",
	"catalog.port",
	"catalog.user",
	"catalog.zone",
	"catalog.default_resource",
	"catalog.password.source",
	"catalog.password.value",
	"catalog.password.env_var",
	"catalog.password.keyring_service",
	"catalog.password.keyring_key",
	"session.mount_prefix",
	"session.catalog_root",
	"backend.bcrypt_cost",
	"backend.metadata.type",
	"backend.content.type",
	"backend.gc.enabled",
	"backend.gc.interval",
	"backend.gc.dry_run",
	"fuse.mountpoint",
	"fuse.allow_other",
	"fuse.debug",
	"metrics.enabled",
	"metrics.port",
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	return LoadWithFlags(configPath, nil, nil)
}

// LoadWithFlags is Load with command-line flags layered on top: bindings
// maps config keys (e.g. "logging.level") to flag names in flags. A flag
// only overrides the file and environment when it was set explicitly.
func LoadWithFlags(configPath string, flags *pflag.FlagSet, bindings map[string]string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			return nil, fmt.Errorf("no flag %q to bind to %s", name, key)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: CATALOGFS_CATALOG_HOST=irods.example.org
	v.SetEnvPrefix("CATALOGFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/catalogfs/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is not an error: defaults and environment still apply.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "catalogfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "catalogfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
