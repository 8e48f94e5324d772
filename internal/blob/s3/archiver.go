package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// OpportunityArchiveStore is the slice of the opportunity store the archiver
// needs. The full stores satisfy it implicitly.
type OpportunityArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// PlanArchiveStore is the slice of the plan store the archiver needs.
type PlanArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Plan, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ExecutionArchiveStore is the slice of the execution store the archiver
// needs.
type ExecutionArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Execution, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Archiver implements domain.Archiver by querying the stores for rows older
// than a cutoff, serializing them to JSONL, and uploading the files to blob
// storage partitioned by year-month.
//
// Deletion of archived rows from the primary store is intentionally a
// separate step (DeleteArchived), taken only after the upload succeeded.
type Archiver struct {
	writer domain.BlobWriter
	opps   OpportunityArchiveStore
	plans  PlanArchiveStore
	execs  ExecutionArchiveStore
	audit  domain.AuditStore
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, opps OpportunityArchiveStore, plans PlanArchiveStore, execs ExecutionArchiveStore, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer: writer,
		opps:   opps,
		plans:  plans,
		execs:  execs,
		audit:  audit,
	}
}

// ArchiveBefore uploads every opportunity, plan, and execution older than
// cutoff as JSONL objects and returns what was written. Tables with no rows
// older than the cutoff produce no object.
func (a *Archiver) ArchiveBefore(ctx context.Context, cutoff time.Time) (domain.ArchiveSummary, error) {
	var summary domain.ArchiveSummary

	opps, err := a.opps.ListBefore(ctx, cutoff)
	if err != nil {
		return summary, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) > 0 {
		path, err := upload(ctx, a.writer, "opportunities", cutoff, opps)
		if err != nil {
			return summary, err
		}
		summary.Opportunities = len(opps)
		summary.Objects = append(summary.Objects, path)
	}

	plans, err := a.plans.ListBefore(ctx, cutoff)
	if err != nil {
		return summary, fmt.Errorf("s3blob: archive plans query: %w", err)
	}
	if len(plans) > 0 {
		path, err := upload(ctx, a.writer, "plans", cutoff, plans)
		if err != nil {
			return summary, err
		}
		summary.Plans = len(plans)
		summary.Objects = append(summary.Objects, path)
	}

	execs, err := a.execs.ListBefore(ctx, cutoff)
	if err != nil {
		return summary, fmt.Errorf("s3blob: archive executions query: %w", err)
	}
	if len(execs) > 0 {
		path, err := upload(ctx, a.writer, "executions", cutoff, execs)
		if err != nil {
			return summary, err
		}
		summary.Executions = len(execs)
		summary.Objects = append(summary.Objects, path)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive_uploaded", map[string]any{
			"cutoff":        cutoff.Format(time.RFC3339),
			"opportunities": summary.Opportunities,
			"plans":         summary.Plans,
			"executions":    summary.Executions,
			"objects":       summary.Objects,
		}); err != nil {
			return summary, fmt.Errorf("s3blob: archive audit log: %w", err)
		}
	}

	return summary, nil
}

// DeleteArchived removes rows older than cutoff from the primary stores.
// Call it only after ArchiveBefore succeeded for the same cutoff.
func (a *Archiver) DeleteArchived(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64

	n, err := a.execs.DeleteBefore(ctx, cutoff)
	if err != nil {
		return total, fmt.Errorf("s3blob: delete executions: %w", err)
	}
	total += n

	n, err = a.plans.DeleteBefore(ctx, cutoff)
	if err != nil {
		return total, fmt.Errorf("s3blob: delete plans: %w", err)
	}
	total += n

	n, err = a.opps.DeleteBefore(ctx, cutoff)
	if err != nil {
		return total, fmt.Errorf("s3blob: delete opportunities: %w", err)
	}
	total += n

	return total, nil
}

func upload[T any](ctx context.Context, writer domain.BlobWriter, kind string, cutoff time.Time, records []T) (string, error) {
	buf, err := marshalJSONL(records)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	path := archivePath(kind, cutoff)
	if err := writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}
	return path, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/opportunities/2026-08.jsonl
//	archive/plans/2026-08.jsonl
//	archive/executions/2026-08.jsonl
func archivePath(kind string, cutoff time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, cutoff.Format("2006-01"))
}

// marshalJSONL serialises a slice as newline-delimited JSON, one compact
// object per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
