package s3blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/store/memory"
)

// captureWriter records uploads in memory.
type captureWriter struct {
	objects map[string][]byte
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{objects: make(map[string][]byte)}
}

func (w *captureWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(data); err != nil {
		return err
	}
	w.objects[path] = buf.Bytes()
	return nil
}

func (w *captureWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return w.Put(ctx, path, data, "")
}

func TestArchiveBeforeUploadsOldRows(t *testing.T) {
	ctx := context.Background()
	opps := memory.NewOpportunityStore()
	plans := memory.NewPlanStore()
	execs := memory.NewExecutionStore()
	audit := memory.NewAuditStore()
	writer := newCaptureWriter()

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	old := cutoff.Add(-24 * time.Hour)
	fresh := cutoff.Add(24 * time.Hour)

	require.NoError(t, opps.Insert(ctx, domain.Opportunity{
		ID: "old-opp", Token: "WETH", VenueA: "uniswap_v3", VenueB: "sushiswap",
		PriceA: 2485.50, PriceB: 2510.25, SpreadBps: 99.6,
		Status: domain.OpportunityDismissed, DetectedAt: old,
	}))
	require.NoError(t, opps.Insert(ctx, domain.Opportunity{
		ID: "fresh-opp", Token: "WETH", VenueA: "uniswap_v3", VenueB: "sushiswap",
		PriceA: 2485.50, PriceB: 2510.25, SpreadBps: 99.6,
		Status: domain.OpportunityDetected, DetectedAt: fresh,
	}))
	require.NoError(t, execs.Insert(ctx, domain.Execution{
		ID: "old-exec", PlanID: "p1", Status: domain.ExecutionCompleted,
		ExpectedProfit: 100, ActualProfit: 95, CreatedAt: old,
	}))

	arch := NewArchiver(writer, opps, plans, execs, audit)
	summary, err := arch.ArchiveBefore(ctx, cutoff)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Opportunities)
	assert.Equal(t, 0, summary.Plans)
	assert.Equal(t, 1, summary.Executions)
	assert.ElementsMatch(t, []string{
		"archive/opportunities/2026-08.jsonl",
		"archive/executions/2026-08.jsonl",
	}, summary.Objects)

	body := string(writer.objects["archive/opportunities/2026-08.jsonl"])
	assert.Contains(t, body, "old-opp")
	assert.NotContains(t, body, "fresh-opp")
	assert.True(t, strings.HasSuffix(body, "\n"), "jsonl objects end with a newline")

	entries, _ := audit.List(ctx, domain.ListOpts{Limit: 5})
	require.Len(t, entries, 1)
	assert.Equal(t, "archive_uploaded", entries[0].Event)
}

func TestArchiveBeforeEmptySkipsUpload(t *testing.T) {
	ctx := context.Background()
	writer := newCaptureWriter()

	arch := NewArchiver(writer, memory.NewOpportunityStore(), memory.NewPlanStore(), memory.NewExecutionStore(), nil)
	summary, err := arch.ArchiveBefore(ctx, time.Now())
	require.NoError(t, err)

	assert.Empty(t, summary.Objects)
	assert.Empty(t, writer.objects)
}

func TestDeleteArchivedRemovesOldRows(t *testing.T) {
	ctx := context.Background()
	opps := memory.NewOpportunityStore()
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, opps.Insert(ctx, domain.Opportunity{
		ID: "old", Token: "WETH", VenueA: "a", VenueB: "b",
		PriceA: 1, PriceB: 2, Status: domain.OpportunityDismissed,
		DetectedAt: cutoff.Add(-time.Hour),
	}))

	arch := NewArchiver(newCaptureWriter(), opps, memory.NewPlanStore(), memory.NewExecutionStore(), nil)
	n, err := arch.DeleteArchived(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = opps.GetByID(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
