package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// ArchiveSummary reports what one archival run uploaded.
type ArchiveSummary struct {
	Opportunities int
	Plans         int
	Executions    int
	Objects       []string
}

// Archiver serializes rows older than a cutoff to blob storage. Deleting the
// archived rows from the primary store is a separate, explicit step taken
// after the upload succeeds.
type Archiver interface {
	ArchiveBefore(ctx context.Context, cutoff time.Time) (ArchiveSummary, error)
}
