package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

func TestExecutionStore_OneRowPerPlan(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	exec := domain.Execution{
		ID:             "e1",
		PlanID:         "p1",
		SettlementRef:  "settle-1",
		ExpectedProfit: 100,
		ActualProfit:   95,
		ResourceCost:   15,
		Status:         domain.ExecutionCompleted,
		CreatedAt:      time.Now(),
	}
	if err := store.Insert(ctx, exec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// second record for the same plan must be rejected
	dup := exec
	dup.ID = "e2"
	if err := store.Insert(ctx, dup); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("second insert for plan: got %v, want ErrAlreadyExists", err)
	}

	got, err := store.GetByPlanID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByPlanID failed: %v", err)
	}
	if got.ActualProfit != 95 {
		t.Errorf("ActualProfit: got %v, want 95", got.ActualProfit)
	}
}

func TestExecutionStore_Aggregate(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()
	now := time.Now()

	records := []domain.Execution{
		{ID: "e1", PlanID: "p1", ActualProfit: 100, ResourceCost: 15, Status: domain.ExecutionCompleted, CreatedAt: now},
		{ID: "e2", PlanID: "p2", ActualProfit: 50, ResourceCost: 15, Status: domain.ExecutionCompleted, CreatedAt: now},
		{ID: "e3", PlanID: "p3", ResourceCost: 15, Status: domain.ExecutionFailed, FailureReason: "bundle not included", CreatedAt: now},
	}
	for _, e := range records {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert %s: %v", e.ID, err)
		}
	}

	stats, err := store.Aggregate(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if stats.Count != 3 || stats.Completed != 2 || stats.Failed != 1 {
		t.Fatalf("counts: got %+v", stats)
	}
	if stats.TotalProfit != 150 {
		t.Errorf("TotalProfit: got %v, want 150", stats.TotalProfit)
	}
	if stats.AvgProfit != 75 {
		t.Errorf("AvgProfit: got %v, want 75", stats.AvgProfit)
	}
	if stats.TotalCost != 45 {
		t.Errorf("TotalCost: got %v, want 45", stats.TotalCost)
	}
}

func TestAuditStore_LogAndList(t *testing.T) {
	store := NewAuditStore()
	ctx := context.Background()

	if err := store.Log(ctx, "bundle_included", map[string]any{"bundle_id": "b1", "attempts": 3}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := store.Log(ctx, "bundle_failed", map[string]any{"bundle_id": "b2"}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	entries, err := store.List(ctx, domain.ListOpts{Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// newest first
	if entries[0].Event != "bundle_failed" {
		t.Errorf("order: got %s first, want bundle_failed", entries[0].Event)
	}
	if entries[1].Detail["bundle_id"] != "b1" {
		t.Errorf("detail not preserved: %+v", entries[1].Detail)
	}
}
