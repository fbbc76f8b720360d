package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

// openKeyring opens the OS keyring. Tests replace it with an in-memory
// keyring.
var openKeyring = func(service string) (keyring.Keyring, error) {
	return keyring.Open(keyring.Config{ServiceName: service})
}

// ResolvePassword returns the login password from the configured source.
func ResolvePassword(cfg *PasswordConfig) (string, error) {
	switch cfg.Source {
	case "config":
		return cfg.Value, nil

	case "env":
		password, ok := os.LookupEnv(cfg.EnvVar)
		if !ok {
			return "", fmt.Errorf("password: environment variable %s is not set", cfg.EnvVar)
		}
		return password, nil

	case "keyring":
		ring, err := openKeyring(cfg.KeyringService)
		if err != nil {
			return "", fmt.Errorf("password: open keyring %q: %w", cfg.KeyringService, err)
		}
		item, err := ring.Get(cfg.KeyringKey)
		if err != nil {
			if errors.Is(err, keyring.ErrKeyNotFound) {
				return "", fmt.Errorf("password: no keyring item %q in service %q", cfg.KeyringKey, cfg.KeyringService)
			}
			return "", fmt.Errorf("password: keyring lookup %q: %w", cfg.KeyringKey, err)
		}
		return string(item.Data), nil

	default:
		return "", fmt.Errorf("password: unknown source %q", cfg.Source)
	}
}

// StorePassword saves password in the OS keyring under the configured
// service and key, for use with source = keyring.
func StorePassword(cfg *PasswordConfig, password string) error {
	ring, err := openKeyring(cfg.KeyringService)
	if err != nil {
		return fmt.Errorf("open keyring %q: %w", cfg.KeyringService, err)
	}
	return ring.Set(keyring.Item{
		Key:         cfg.KeyringKey,
		Data:        []byte(password),
		Label:       cfg.KeyringService,
		Description: "catalogfs login for " + cfg.KeyringKey,
	})
}
