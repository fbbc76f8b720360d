// Package catalog defines the boundary between the filesystem bridge and a
// remote hierarchical object catalog.
//
// The catalog is a namespace of collections (directories) and data objects
// (files). It is reached only through a connection handle: the bridge never
// sees the catalog's storage, only the primitives listed on Conn. Everything
// the bridge knows about paths, ids and descriptors flows through this
// package's types.
//
// Implementations:
//   - pkg/catalog/local: in-process catalog over pluggable metadata and
//     content stores
package catalog

import (
	"context"
	"time"
)

// Catalog establishes connections to a catalog service.
type Catalog interface {
	// Connect opens a transport-level connection described by env.
	// The returned connection is not authenticated yet.
	//
	// Returns a *Error with CodeConnection when the service is unreachable.
	Connect(ctx context.Context, env Env) (Conn, error)
}

// Conn is one connection to the catalog.
//
// Every call blocks until the catalog answers. A Conn is owned by a single
// session and is not safe for concurrent use.
type Conn interface {
	// Authenticate logs the connection in as env.User. Every other call
	// except Disconnect fails with CodeNotConnected until this succeeds.
	Authenticate(ctx context.Context, creds Credentials) error

	// Disconnect releases the connection and every handle opened on it.
	Disconnect(ctx context.Context) error

	// Stat returns metadata for the entity at path.
	// Returns CodeNotFound when nothing lives there.
	Stat(ctx context.Context, path string) (*EntityMetadata, error)

	// CountWherePathEquals returns the number of collections whose path
	// equals path (0 or 1).
	CountWherePathEquals(ctx context.Context, path string) (int64, error)

	// Query runs a general catalog query and returns one value per row.
	// For Count queries the single row holds the decimal count.
	Query(ctx context.Context, q Query) ([]string, error)

	// OpenCollection opens a collection for sequential enumeration.
	OpenCollection(ctx context.Context, path string) (CollectionHandle, error)

	// ReadNext returns the next entry of an open collection, or
	// ErrEndOfCollection once every entry has been returned.
	ReadNext(ctx context.Context, h CollectionHandle) (*Entry, error)

	// CloseCollection releases a collection handle.
	CloseCollection(ctx context.Context, h CollectionHandle) error

	MakeCollection(ctx context.Context, path string) error
	RemoveCollection(ctx context.Context, path string) error

	// OpenObject opens (optionally creating) a data object. flags use the
	// os.O_* values; resourceHint names the storage resource new objects
	// should land on and may be empty.
	OpenObject(ctx context.Context, path string, flags int, mode uint32, resourceHint string) (Descriptor, error)

	// WriteObject writes data at the descriptor's current offset and
	// returns the number of bytes written.
	WriteObject(ctx context.Context, d Descriptor, data []byte) (int, error)

	CloseObject(ctx context.Context, d Descriptor) error
}

// Env describes where and as whom to connect.
type Env struct {
	Host            string
	Port            int
	User            string
	Zone            string
	DefaultResource string
}

// HomePath returns the home collection of the environment's user:
// /<zone>/home/<user>.
func (e Env) HomePath() string {
	return "/" + e.Zone + "/home/" + e.User
}

// Credentials authenticate a connection.
type Credentials struct {
	User     string
	Zone     string
	Password string
}

// HomePath returns the home collection of the authenticating user:
// /<zone>/home/<user>.
func (c Credentials) HomePath() string {
	return "/" + c.Zone + "/home/" + c.User
}

// Kind tells collections and data objects apart.
type Kind uint32

const (
	KindUnknown Kind = iota
	KindDataObject
	KindCollection
)

func (k Kind) String() string {
	switch k {
	case KindDataObject:
		return "data_object"
	case KindCollection:
		return "collection"
	default:
		return "unknown"
	}
}

// EntityMetadata is what Stat reports about a catalog entity.
type EntityMetadata struct {
	Size       int64
	Kind       Kind
	Mode       uint32
	OwnerName  string
	OwnerZone  string
	CreatedAt  time.Time
	ModifiedAt time.Time

	// RemoteID is the catalog's own identifier. It is opaque and may be
	// large or non-numeric; callers must not treat it as an inode number.
	RemoteID string

	// Checksum of a data object's content, empty for collections.
	Checksum string

	// Resource is the storage resource holding a data object.
	Resource string
}

// Entry is one element of an open collection.
//
// Data objects carry their bare name; sub-collections carry their full path
// in Path and an empty Name, matching how the catalog reports them.
type Entry struct {
	Kind Kind
	Name string
	Path string
}

// CollectionHandle identifies an open collection on a connection.
type CollectionHandle int

// Descriptor identifies an open data object on a connection.
type Descriptor int
