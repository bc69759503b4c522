// internal/source/googledrive/drive.go
//
// Google Drive implementation of source.Source.
//
// Context
// -------
// Each tenant authenticates with its own service-account key file; the
// orchestrator caches one Adapter per tenant across cycles.  All calls
// are read-only (drive.readonly scope) and repeatable, which the
// reconciliation loop relies on: listing the same folder twice must
// observe the source unchanged.
//
// Workflow
// --------
//  1. New reads the key file, builds a JWT config, and wires the
//     authenticated http.Client into a Drive service.
//  2. List pages through `'<id>' in parents and trashed = false` with an
//     explicit field mask so responses stay small.
//  3. Fetch downloads raw media; Export converts Google-native types
//     (Sheets → text/csv, Docs → text/plain) that have no raw form.
//
// Notes
// -----
// • Drive reports modifiedTime as RFC 3339; parse failures leave the
//   zero time, which change detection treats as "always process".
package googledrive

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/yanizio/portalsync/internal/source"
)

const listFields = "nextPageToken, files(id, name, mimeType, modifiedTime, size, webViewLink, webContentLink, thumbnailLink)"
const getFields = "id, name, mimeType, modifiedTime, size, webViewLink, webContentLink, thumbnailLink"

const defaultPageSize = 100

// Adapter implements source.Source against the Drive v3 API.
type Adapter struct {
	service  *drive.Service
	pageSize int64
}

var _ source.Source = (*Adapter)(nil)

// New builds a read-only Drive adapter from a service-account key file.
// pageSize bounds each listing page; values below 1 use the default.
func New(ctx context.Context, credentialFile string, pageSize int) (*Adapter, error) {
	key, err := os.ReadFile(credentialFile)
	if err != nil {
		return nil, fmt.Errorf("read service-account key: %w", err)
	}
	cfg, err := google.JWTConfigFromJSON(key, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse service-account key: %w", err)
	}
	srv, err := drive.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("build drive service: %w", err)
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return &Adapter{service: srv, pageSize: int64(pageSize)}, nil
}

// List returns every non-trashed file in the folder, following
// pagination until the listing is complete.
func (a *Adapter) List(ctx context.Context, folderID string) ([]source.FileMetadata, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", folderID)

	var files []source.FileMetadata
	pageToken := ""
	for {
		call := a.service.Files.List().
			Q(q).
			Fields(googleapi.Field(listFields)).
			PageSize(a.pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		r, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list folder %s: %w", folderID, err)
		}
		for _, f := range r.Files {
			files = append(files, toMetadata(f))
		}
		if r.NextPageToken == "" {
			return files, nil
		}
		pageToken = r.NextPageToken
	}
}

// Get refetches fresh metadata for one file.
func (a *Adapter) Get(ctx context.Context, fileID string) (*source.FileMetadata, error) {
	f, err := a.service.Files.Get(fileID).
		Fields(googleapi.Field(getFields)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", fileID, err)
	}
	md := toMetadata(f)
	return &md, nil
}

// Fetch downloads a file's raw content.
func (a *Adapter) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := a.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", fileID, err)
	}
	return content, nil
}

// Export converts a Google-native file (Sheets, Docs) to the requested
// MIME type.
func (a *Adapter) Export(ctx context.Context, fileID, mimeType string) ([]byte, error) {
	resp, err := a.service.Files.Export(fileID, mimeType).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("export file %s as %s: %w", fileID, mimeType, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read export %s: %w", fileID, err)
	}
	return content, nil
}

func toMetadata(f *drive.File) source.FileMetadata {
	modTime, _ := time.Parse(time.RFC3339, f.ModifiedTime)
	return source.FileMetadata{
		ID:            f.Id,
		Name:          f.Name,
		MIMEType:      f.MimeType,
		ModifiedTime:  modTime,
		Size:          f.Size,
		ViewLink:      f.WebViewLink,
		DownloadLink:  f.WebContentLink,
		ThumbnailLink: f.ThumbnailLink,
	}
}
