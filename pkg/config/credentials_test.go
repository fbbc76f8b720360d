package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/99designs/keyring"
)

// useArrayKeyring swaps the OS keyring for an in-memory one.
func useArrayKeyring(t *testing.T, items ...keyring.Item) *keyring.ArrayKeyring {
	t.Helper()
	ring := keyring.NewArrayKeyring(items)
	prev := openKeyring
	openKeyring = func(string) (keyring.Keyring, error) { return ring, nil }
	t.Cleanup(func() { openKeyring = prev })
	return ring
}

func TestResolvePassword_Config(t *testing.T) {
	got, err := ResolvePassword(&PasswordConfig{Source: "config", Value: "rods"})
	if err != nil {
		t.Fatalf("ResolvePassword failed: %v", err)
	}
	if got != "rods" {
		t.Errorf("Expected literal password, got %q", got)
	}
}

func TestResolvePassword_Env(t *testing.T) {
	t.Setenv("TEST_CATALOGFS_PASSWORD", "from-env")

	got, err := ResolvePassword(&PasswordConfig{Source: "env", EnvVar: "TEST_CATALOGFS_PASSWORD"})
	if err != nil {
		t.Fatalf("ResolvePassword failed: %v", err)
	}
	if got != "from-env" {
		t.Errorf("Expected password from environment, got %q", got)
	}

	_, err = ResolvePassword(&PasswordConfig{Source: "env", EnvVar: "TEST_CATALOGFS_UNSET_VARIABLE"})
	if err == nil || !strings.Contains(err.Error(), "not set") {
		t.Errorf("Expected unset variable error, got %v", err)
	}
}

func TestResolvePassword_Keyring(t *testing.T) {
	useArrayKeyring(t, keyring.Item{Key: "alice@tempZone", Data: []byte("s3cret")})

	got, err := ResolvePassword(&PasswordConfig{Source: "keyring", KeyringService: "catalogfs", KeyringKey: "alice@tempZone"})
	if err != nil {
		t.Fatalf("ResolvePassword failed: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("Expected password from keyring, got %q", got)
	}

	_, err = ResolvePassword(&PasswordConfig{Source: "keyring", KeyringService: "catalogfs", KeyringKey: "bob@tempZone"})
	if err == nil || !strings.Contains(err.Error(), "no keyring item") {
		t.Errorf("Expected missing item error, got %v", err)
	}
}

func TestResolvePassword_KeyringUnavailable(t *testing.T) {
	prev := openKeyring
	openKeyring = func(string) (keyring.Keyring, error) { return nil, errors.New("no backend") }
	t.Cleanup(func() { openKeyring = prev })

	_, err := ResolvePassword(&PasswordConfig{Source: "keyring", KeyringService: "catalogfs", KeyringKey: "k"})
	if err == nil || !strings.Contains(err.Error(), "no backend") {
		t.Errorf("Expected keyring open error, got %v", err)
	}
}

func TestResolvePassword_UnknownSource(t *testing.T) {
	if _, err := ResolvePassword(&PasswordConfig{Source: "vault"}); err == nil {
		t.Error("Expected error for unknown source")
	}
}

func TestStorePassword(t *testing.T) {
	ring := useArrayKeyring(t)
	cfg := &PasswordConfig{Source: "keyring", KeyringService: "catalogfs", KeyringKey: "alice@tempZone"}

	if err := StorePassword(cfg, "stored"); err != nil {
		t.Fatalf("StorePassword failed: %v", err)
	}

	item, err := ring.Get("alice@tempZone")
	if err != nil {
		t.Fatalf("Item not stored: %v", err)
	}
	if string(item.Data) != "stored" {
		t.Errorf("Expected stored password, got %q", item.Data)
	}

	got, err := ResolvePassword(cfg)
	if err != nil || got != "stored" {
		t.Errorf("Expected round trip through keyring, got %q, %v", got, err)
	}
}
