// Package storage defines the Storage interface used to archive run
// transcripts after a verification run.
//
// Backends register themselves with the factory from an init() function in
// their own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.ArtifactsConfig) (storage.Storage, error) {
//	        return New(&cfg.MyBackend)
//	    })
//	}
//
// The command imports each backend with a blank import to trigger init().
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for all artifact backends
type Storage interface {
	// Upload stores the object under key and returns its size and checksum
	Upload(ctx context.Context, key string, reader io.Reader, size int64) (*UploadResult, error)

	// Download retrieves an object
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is stored under key
	Exists(ctx context.Context, key string) (bool, error)
}

// UploadResult contains information about an uploaded object
type UploadResult struct {
	// Key is the storage key the object was stored under
	Key string

	// Size is the object size in bytes
	Size int64

	// Checksum is the SHA256 hash of the object contents
	Checksum string
}
