// Package local implements catalog.Catalog in process.
//
// The engine keeps the namespace in a metadata.Store and data object bytes in
// a content.Store, so the same code runs fully in memory (tests), on local
// disk (badger + fs) or against object storage (badger + s3). Connections,
// authentication, collection handles and descriptors are engine concerns and
// never reach the stores.
package local

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/content"
	"github.com/marmos91/catalogfs/pkg/metadata"
	"golang.org/x/crypto/bcrypt"
)

// systemOwner owns the collections the engine creates on its own.
const systemOwner = "catalogfs"

// User is an account allowed to authenticate.
type User struct {
	Name string `mapstructure:"name" yaml:"name" validate:"required"`

	// Password is hashed with bcrypt when the engine starts. Ignored when
	// PasswordHash is set.
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// PasswordHash is a bcrypt hash, for configs that must not hold the
	// plain password.
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash,omitempty"`
}

// Config configures an Engine.
type Config struct {
	// Zone is the single zone the engine serves.
	Zone string

	// Host and Port are what clients must present in catalog.Env. An empty
	// Host accepts any.
	Host string
	Port int

	Users []User

	// DefaultResource is stamped on data objects opened without a
	// resource hint.
	DefaultResource string

	// BcryptCost is used when hashing plain passwords. Zero means
	// bcrypt.DefaultCost.
	BcryptCost int
}

// Engine is an in-process catalog.
//
// Thread Safety:
// An Engine may be shared by many connections. Namespace mutations (create,
// remove, finalize on close) are serialized with one mutex so check-then-act
// sequences see a consistent store.
type Engine struct {
	meta    metadata.Store
	content content.Store

	zone            string
	host            string
	port            int
	defaultResource string

	// passwords maps user name to bcrypt hash
	passwords map[string][]byte

	mu     sync.Mutex
	closed bool

	now func() time.Time
}

// NewEngine builds an engine over the given stores and bootstraps the zone
// skeleton: /, /<zone>, /<zone>/home and /<zone>/home/<user> for every
// configured user. Bootstrapping is idempotent, so a persistent store can be
// reopened with the same config.
func NewEngine(ctx context.Context, cfg Config, meta metadata.Store, store content.Store) (*Engine, error) {
	if cfg.Zone == "" {
		return nil, fmt.Errorf("zone is required")
	}
	if meta == nil || store == nil {
		return nil, fmt.Errorf("metadata and content stores are required")
	}

	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	passwords := make(map[string][]byte, len(cfg.Users))
	for _, u := range cfg.Users {
		if u.Name == "" {
			return nil, fmt.Errorf("user with empty name")
		}
		if u.PasswordHash != "" {
			passwords[u.Name] = []byte(u.PasswordHash)
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", u.Name, err)
		}
		passwords[u.Name] = hash
	}

	e := &Engine{
		meta:            meta,
		content:         store,
		zone:            cfg.Zone,
		host:            cfg.Host,
		port:            cfg.Port,
		defaultResource: cfg.DefaultResource,
		passwords:       passwords,
		now:             time.Now,
	}

	if err := e.bootstrap(ctx, cfg.Users); err != nil {
		return nil, err
	}

	logger.Info("local catalog ready: zone=%s users=%d", e.zone, len(passwords))
	return e, nil
}

func (e *Engine) bootstrap(ctx context.Context, users []User) error {
	home := "/" + e.zone + "/home"
	for _, p := range []string{"/", "/" + e.zone, home} {
		if err := e.ensureCollection(ctx, p, systemOwner); err != nil {
			return err
		}
	}
	for _, u := range users {
		if err := e.ensureCollection(ctx, home+"/"+u.Name, u.Name); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) ensureCollection(ctx context.Context, p, owner string) error {
	err := e.meta.Create(ctx, e.newEntity(p, catalog.KindCollection, 0755, owner))
	if err != nil && !metadata.IsAlreadyExists(err) {
		return fmt.Errorf("bootstrap %s: %w", p, err)
	}
	return nil
}

func (e *Engine) newEntity(p string, kind catalog.Kind, mode uint32, owner string) *metadata.Entity {
	now := e.now()
	return &metadata.Entity{
		Path:       p,
		Kind:       kind,
		Mode:       mode,
		OwnerName:  owner,
		OwnerZone:  e.zone,
		CreatedAt:  now,
		ModifiedAt: now,
		RemoteID:   uuid.NewString(),
	}
}

// Connect implements catalog.Catalog.
func (e *Engine) Connect(ctx context.Context, env catalog.Env) (catalog.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, catalog.NewError(catalog.CodeConnection, err.Error(), "")
	}

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, catalog.NewError(catalog.CodeConnection, "catalog is shut down", "")
	}

	if e.host != "" && (env.Host != e.host || (e.port != 0 && env.Port != e.port)) {
		return nil, catalog.NewError(catalog.CodeConnection,
			fmt.Sprintf("no catalog listening at %s:%d", env.Host, env.Port), "")
	}
	if env.Zone != e.zone {
		return nil, catalog.NewError(catalog.CodeConnection, "unknown zone "+env.Zone, "")
	}

	logger.Debug("catalog connect: host=%s port=%d user=%s zone=%s", env.Host, env.Port, env.User, env.Zone)
	return newConn(e, env), nil
}

// Close stops accepting connections and closes the metadata store.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	return e.meta.Close()
}

// Stores returns the engine's metadata and content stores, for maintenance
// such as garbage collection. Entity creation writes metadata before
// content, so a reader that lists content before scanning metadata never
// sees live content as unreferenced.
func (e *Engine) Stores() (metadata.Store, content.Store) {
	return e.meta, e.content
}

// fromStoreError maps store errors onto the catalog taxonomy.
func fromStoreError(err error, p string) error {
	if err == nil {
		return nil
	}

	var serr *metadata.StoreError
	if errors.As(err, &serr) {
		switch serr.Code {
		case metadata.ErrNotFound:
			return catalog.NewError(catalog.CodeNotFound, serr.Message, p)
		case metadata.ErrAlreadyExists:
			return catalog.NewError(catalog.CodeAlreadyExists, serr.Message, p)
		case metadata.ErrNotCollection:
			return catalog.NewError(catalog.CodeNotDirectory, serr.Message, p)
		case metadata.ErrInvalidArgument:
			return catalog.NewError(catalog.CodeInvalidArgument, serr.Message, p)
		}
	}

	return &catalog.Error{Code: catalog.CodeIO, Message: err.Error(), Path: p}
}
