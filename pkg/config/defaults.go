package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/catalogfs/pkg/catalog/local"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultHost     = "localhost"
	defaultPort     = 1247
	defaultUser     = "rods"
	defaultZone     = "tempZone"
	defaultResource = "demoResc"

	// DefaultPasswordEnvVar holds the password when password.source is env.
	DefaultPasswordEnvVar = "CATALOGFS_PASSWORD"

	// DefaultKeyringService is the OS keyring service name.
	DefaultKeyringService = "catalogfs"

	defaultMetricsPort = 9090
	defaultGCInterval  = 24 * time.Hour
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are filled in for every store type so that
//     generated config files show them
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyCatalogDefaults(&cfg.Catalog)
	applySessionDefaults(&cfg.Session)
	applyBackendDefaults(&cfg.Backend, &cfg.Catalog)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyCatalogDefaults(cfg *CatalogConfig) {
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.User == "" {
		cfg.User = defaultUser
	}
	if cfg.Zone == "" {
		cfg.Zone = defaultZone
	}
	if cfg.DefaultResource == "" {
		cfg.DefaultResource = defaultResource
	}

	if cfg.Password.Source == "" {
		cfg.Password.Source = "config"
		if cfg.Password.Value == "" {
			cfg.Password.Value = defaultUser
		}
	}
	if cfg.Password.EnvVar == "" {
		cfg.Password.EnvVar = DefaultPasswordEnvVar
	}
	if cfg.Password.KeyringService == "" {
		cfg.Password.KeyringService = DefaultKeyringService
	}
	if cfg.Password.KeyringKey == "" {
		cfg.Password.KeyringKey = cfg.User + "@" + cfg.Zone
	}
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.CatalogRoot == "" {
		cfg.CatalogRoot = "/"
	}
}

// applyBackendDefaults fills in the engine and its stores. With no users
// configured, the catalog user is created with the configured literal
// password so that a fresh install can log in.
func applyBackendDefaults(cfg *BackendConfig, cat *CatalogConfig) {
	if len(cfg.Users) == 0 {
		user := local.User{Name: cat.User}
		if cat.Password.Source == "config" {
			user.Password = cat.Password.Value
		}
		cfg.Users = []local.User{user}
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	if cfg.Metadata.Type == "" {
		cfg.Metadata.Type = "memory"
	}
	if cfg.Metadata.Badger == nil {
		cfg.Metadata.Badger = make(map[string]any)
	}
	if _, ok := cfg.Metadata.Badger["db_path"]; !ok {
		cfg.Metadata.Badger["db_path"] = filepath.Join(getConfigDir(), "metadata")
	}

	if cfg.Content.Type == "" {
		cfg.Content.Type = "memory"
	}
	if cfg.Content.Filesystem == nil {
		cfg.Content.Filesystem = make(map[string]any)
	}
	if _, ok := cfg.Content.Filesystem["path"]; !ok {
		cfg.Content.Filesystem["path"] = "/tmp/catalogfs-content"
	}
	if cfg.Content.S3 == nil {
		cfg.Content.S3 = make(map[string]any)
	}
	if _, ok := cfg.Content.S3["region"]; !ok {
		cfg.Content.S3["region"] = "us-east-1"
	}

	if cfg.GC.Interval == 0 {
		cfg.GC.Interval = defaultGCInterval
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = defaultMetricsPort
	}
}

// GetDefaultConfig returns a Config with every default applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
