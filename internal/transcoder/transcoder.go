package transcoder

import (
	"context"
	"errors"
)

var (
	// ErrResourceNotFound is returned when reading a name that was never staged.
	ErrResourceNotFound = errors.New("staged resource not found")

	// ErrInvalidResourceName is returned for names that are empty or contain path elements.
	ErrInvalidResourceName = errors.New("invalid staged resource name")
)

// Transcoder is the capability the conversion engine drives.
// It owns a private staging namespace in which byte blobs are held under
// plain names while a single job runs.
//
// An instance is not safe for overlapping jobs: staging names are not
// namespaced per job, so callers must run at most one job at a time per instance.
type Transcoder interface {
	// WriteResource stores data under name in the staging namespace,
	// replacing any previous content.
	WriteResource(ctx context.Context, name string, data []byte) error

	// Execute runs the transcoder with the given argument list.
	// Names in args refer to staged resources.
	Execute(ctx context.Context, args []string) error

	// ReadResource returns the bytes stored under name.
	// Returns ErrResourceNotFound if nothing is staged under that name.
	ReadResource(ctx context.Context, name string) ([]byte, error)

	// DeleteResource removes name from the staging namespace.
	// Deleting a name that does not exist returns nil.
	DeleteResource(ctx context.Context, name string) error
}
