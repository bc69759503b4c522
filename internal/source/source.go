// Package source defines the contract between the sync orchestrator and
// an external content source.  Implementations must be side-effect-free
// on the source and safely repeatable: the orchestrator re-lists every
// folder on every cycle and re-fetches files on retry.
package source

import (
	"context"
	"time"
)

// FileMetadata describes one externally hosted file as reported by a
// folder listing.  ModifiedTime is the source's own clock; change
// detection trusts it as-is.
type FileMetadata struct {
	ID            string
	Name          string
	MIMEType      string
	ModifiedTime  time.Time
	Size          int64
	ViewLink      string
	DownloadLink  string
	ThumbnailLink string
}

// Source lists and fetches externally hosted content.  Fetch returns
// raw bytes; Export returns a converted representation for source-native
// types that have no raw form (e.g. hosted spreadsheets as CSV).
type Source interface {
	// List returns the current files of one external folder.
	List(ctx context.Context, folderID string) ([]FileMetadata, error)
	// Get refetches fresh metadata for one file, used by the retry pass.
	Get(ctx context.Context, fileID string) (*FileMetadata, error)
	// Fetch downloads a file's raw content.
	Fetch(ctx context.Context, fileID string) ([]byte, error)
	// Export converts a source-native file to the given MIME type.
	Export(ctx context.Context, fileID, mimeType string) ([]byte, error)
}
