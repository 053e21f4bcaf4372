package interfaces

import "context"

// BlobStore persists a single document. Writes replace the whole document and
// must never leave a partially written value visible to readers.
type BlobStore interface {
	// ReadAll returns the document and true, or nil and false when none exists.
	ReadAll(ctx context.Context) ([]byte, bool, error)

	// WriteAll replaces the document.
	WriteAll(ctx context.Context, data []byte) error

	Close() error
}
