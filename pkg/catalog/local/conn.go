package local

import (
	"context"

	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/catalog"
	"golang.org/x/crypto/bcrypt"
)

// firstDescriptor matches the catalog service, which never hands out the
// standard stream numbers.
const firstDescriptor catalog.Descriptor = 3

// conn is one client connection. Handles and descriptors are per
// connection and die with it.
type conn struct {
	engine *Engine
	env    catalog.Env

	user          string
	authenticated bool
	closed        bool

	collections    map[catalog.CollectionHandle]*collectionCursor
	nextCollection catalog.CollectionHandle

	objects        map[catalog.Descriptor]*openObject
	nextDescriptor catalog.Descriptor
}

func newConn(e *Engine, env catalog.Env) *conn {
	return &conn{
		engine:         e,
		env:            env,
		collections:    make(map[catalog.CollectionHandle]*collectionCursor),
		nextCollection: 1,
		objects:        make(map[catalog.Descriptor]*openObject),
		nextDescriptor: firstDescriptor,
	}
}

func (c *conn) Authenticate(ctx context.Context, creds catalog.Credentials) error {
	if c.closed {
		return catalog.NewError(catalog.CodeNotConnected, "connection closed", "")
	}
	if err := ctx.Err(); err != nil {
		return catalog.NewError(catalog.CodeConnection, err.Error(), "")
	}

	if creds.Zone != "" && creds.Zone != c.engine.zone {
		return catalog.NewError(catalog.CodeAuthFailed, "unknown zone "+creds.Zone, "")
	}

	hash, ok := c.engine.passwords[creds.User]
	if !ok {
		logger.Debug("authentication failed: unknown user=%s", creds.User)
		return catalog.NewError(catalog.CodeAuthFailed, "invalid user or password", "")
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(creds.Password)); err != nil {
		logger.Debug("authentication failed: bad password for user=%s", creds.User)
		return catalog.NewError(catalog.CodeAuthFailed, "invalid user or password", "")
	}

	c.user = creds.User
	c.authenticated = true
	logger.Debug("authenticated user=%s zone=%s", c.user, c.engine.zone)
	return nil
}

// Disconnect finalizes every open object and drops every handle. Objects
// that fail to finalize are logged; the connection closes regardless.
func (c *conn) Disconnect(ctx context.Context) error {
	if c.closed {
		return catalog.NewError(catalog.CodeNotConnected, "connection already closed", "")
	}

	for d, obj := range c.objects {
		if err := c.engine.finalize(ctx, obj); err != nil {
			logger.Warn("disconnect: finalize descriptor=%d path=%s: %v", d, obj.path, err)
		}
	}

	c.objects = nil
	c.collections = nil
	c.closed = true
	c.authenticated = false

	logger.Debug("catalog disconnect: user=%s", c.user)
	return nil
}

// ready guards every call that needs an authenticated, open connection.
func (c *conn) ready(ctx context.Context) error {
	if c.closed {
		return catalog.NewError(catalog.CodeNotConnected, "connection closed", "")
	}
	if !c.authenticated {
		return catalog.NewError(catalog.CodeNotConnected, "not authenticated", "")
	}
	if err := ctx.Err(); err != nil {
		return catalog.NewError(catalog.CodeConnection, err.Error(), "")
	}
	return nil
}

func (c *conn) Stat(ctx context.Context, p string) (*catalog.EntityMetadata, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}

	entity, err := c.engine.meta.Get(ctx, p)
	if err != nil {
		return nil, fromStoreError(err, p)
	}
	return entity.Metadata(), nil
}
