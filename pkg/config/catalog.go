package config

import (
	"context"
	"fmt"

	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/catalog/local"
	"github.com/marmos91/catalogfs/pkg/vfs"
)

// CreateCatalog builds the in-process catalog engine with the configured
// stores and users. The caller owns the engine and must Close it.
func CreateCatalog(ctx context.Context, cfg *Config) (*local.Engine, error) {
	meta, err := CreateMetadataStore(ctx, &cfg.Backend.Metadata)
	if err != nil {
		return nil, err
	}

	store, err := CreateContentStore(ctx, &cfg.Backend.Content)
	if err != nil {
		_ = meta.Close()
		return nil, err
	}

	engine, err := local.NewEngine(ctx, local.Config{
		Zone:            cfg.Catalog.Zone,
		Host:            cfg.Catalog.Host,
		Port:            cfg.Catalog.Port,
		Users:           cfg.Backend.Users,
		DefaultResource: cfg.Catalog.DefaultResource,
		BcryptCost:      cfg.Backend.BcryptCost,
	}, meta, store)
	if err != nil {
		_ = meta.Close()
		return nil, fmt.Errorf("failed to start catalog engine: %w", err)
	}

	logger.Info("Catalog engine ready: zone=%s metadata=%s content=%s users=%d",
		cfg.Catalog.Zone, cfg.Backend.Metadata.Type, cfg.Backend.Content.Type, len(cfg.Backend.Users))
	return engine, nil
}

// Env returns the connection environment described by the catalog section.
func (c *CatalogConfig) Env() catalog.Env {
	return catalog.Env{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Zone:            c.Zone,
		DefaultResource: c.DefaultResource,
	}
}

// EnvSource returns a vfs.EnvSource that resolves the password on every
// connect, so a rotated keyring entry is picked up on reconnect.
func (c *CatalogConfig) EnvSource() vfs.EnvSource {
	return vfs.EnvSourceFunc(func(ctx context.Context) (catalog.Env, catalog.Credentials, error) {
		if err := ctx.Err(); err != nil {
			return catalog.Env{}, catalog.Credentials{}, err
		}

		password, err := ResolvePassword(&c.Password)
		if err != nil {
			return catalog.Env{}, catalog.Credentials{}, err
		}

		return c.Env(), catalog.Credentials{User: c.User, Zone: c.Zone, Password: password}, nil
	})
}

// SessionOptions returns the vfs options for this configuration.
func (c *Config) SessionOptions() vfs.Options {
	return vfs.Options{
		MountPrefix: c.Session.MountPrefix,
		CatalogRoot: c.Session.CatalogRoot,
	}
}
