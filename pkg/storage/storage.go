// Package storage keeps uploaded import files on disk for the lifetime of
// an import session.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a stored file does not exist.
var ErrNotFound = errors.New("stored file not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"`
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the file operations the import flow needs.
type Storage interface {
	// Upload stores a file and returns its metadata
	Upload(ctx context.Context, userID uuid.UUID, filename, contentType string, r io.Reader) (*FileInfo, error)

	// Open returns a reader for a stored file
	Open(ctx context.Context, userID, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Delete removes a file; deleting a missing file is not an error
	Delete(ctx context.Context, userID, fileID uuid.UUID) error

	// Prune removes files created before cutoff and returns how many went
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}
