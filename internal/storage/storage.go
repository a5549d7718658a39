// Package storage provides temporary file storage for pipeline intermediates
// and optional S3 delivery of final outputs. The Storage interface is the
// port; LocalStorage and S3Storage are the adapters.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for pipeline file storage. Temporary files
// hold downloaded and intermediate media during a single run; they are always
// purged before the run's result is reported.
type Storage interface {
	// SaveTemp streams data into a new temporary file named after the hint
	// and returns its path.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// TempPath returns a path inside the temporary area for the given file
	// name without creating the file. Used by external tools that create
	// their own outputs.
	TempPath(name string) string

	// Open opens a stored file for reading. The caller closes the returned
	// ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the given temporary files, continuing past
	// individual failures and returning the first error encountered.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 uploads data under the given key and returns the object
	// URL. Returns ErrS3NotConfigured when no S3 backend is configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
