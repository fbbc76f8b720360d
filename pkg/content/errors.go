package content

import "errors"

// Standard content store errors.
//
// Implementations wrap these with fmt.Errorf("...: %w", ...) so callers can
// match them with errors.Is.
var (
	// ErrContentNotFound indicates the content doesn't exist
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidOffset indicates a negative write offset
	ErrInvalidOffset = errors.New("invalid offset")

	// ErrInvalidContentID indicates an empty or malformed content ID
	ErrInvalidContentID = errors.New("invalid content ID")

	// ErrUnavailable indicates the backing storage can't be reached
	ErrUnavailable = errors.New("storage unavailable")
)

// Validate rejects arguments no backend accepts: an empty ID or a negative
// offset.
func Validate(id ContentID, offset int64) error {
	if id == "" {
		return ErrInvalidContentID
	}
	if offset < 0 {
		return ErrInvalidOffset
	}
	return nil
}
