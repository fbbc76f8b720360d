package badger

import (
	"bytes"
	"fmt"
	"time"

	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/metadata"
	xdr "github.com/rasky/go-xdr/xdr2"
)

// entityRecord is the on-disk form of an Entity.
//
// Records are XDR-encoded: fixed field order, 4-byte aligned, no field
// names. New fields may only be appended, and decoding must tolerate
// records written before they existed.
type entityRecord struct {
	Path       string
	Kind       uint32
	Size       int64
	Mode       uint32
	OwnerName  string
	OwnerZone  string
	CreatedAt  int64 // unix nanoseconds, 0 = unset
	ModifiedAt int64
	RemoteID   string
	ContentID  string
	Checksum   string
	Resource   string
}

func encodeEntity(e *metadata.Entity) ([]byte, error) {
	rec := entityRecord{
		Path:       e.Path,
		Kind:       uint32(e.Kind),
		Size:       e.Size,
		Mode:       e.Mode,
		OwnerName:  e.OwnerName,
		OwnerZone:  e.OwnerZone,
		CreatedAt:  toNanos(e.CreatedAt),
		ModifiedAt: toNanos(e.ModifiedAt),
		RemoteID:   e.RemoteID,
		ContentID:  e.ContentID,
		Checksum:   e.Checksum,
		Resource:   e.Resource,
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &rec); err != nil {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrIOError,
			Message: fmt.Sprintf("encode entity: %v", err),
			Path:    e.Path,
		}
	}
	return buf.Bytes(), nil
}

func decodeEntity(data []byte) (*metadata.Entity, error) {
	var rec entityRecord
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &rec); err != nil {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrIOError,
			Message: fmt.Sprintf("decode entity: %v", err),
		}
	}

	return &metadata.Entity{
		Path:       rec.Path,
		Kind:       catalog.Kind(rec.Kind),
		Size:       rec.Size,
		Mode:       rec.Mode,
		OwnerName:  rec.OwnerName,
		OwnerZone:  rec.OwnerZone,
		CreatedAt:  fromNanos(rec.CreatedAt),
		ModifiedAt: fromNanos(rec.ModifiedAt),
		RemoteID:   rec.RemoteID,
		ContentID:  rec.ContentID,
		Checksum:   rec.Checksum,
		Resource:   rec.Resource,
	}, nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
