package processstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hochfrequenz/process-eta/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_UpsertAndGetProcess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2025, 5, 2, 8, 30, 0, 0, time.UTC)
	p := &domain.Process{
		ID:             "p1",
		OwnerID:        "user1",
		Type:           "TRADE",
		Priority:       domain.PriorityHigh,
		StartTime:      start,
		EndTime:        start.Add(300 * time.Second),
		Status:         domain.StatusCompleted,
		StepsCompleted: []string{"INIT", "VERIFY", "EXECUTE"},
		Retries:        2,
		Automated:      true,
		Metadata:       map[string]string{"desk": "fx"},
	}

	if err := store.UpsertProcess(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetProcess(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}

	if got.OwnerID != "user1" || got.Type != "TRADE" {
		t.Errorf("owner/type = %q/%q, want user1/TRADE", got.OwnerID, got.Type)
	}
	if got.Priority != domain.PriorityHigh {
		t.Errorf("Priority = %q, want HIGH", got.Priority)
	}
	if got.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, want COMPLETED", got.Status)
	}
	if !got.StartTime.Equal(p.StartTime) || !got.EndTime.Equal(p.EndTime) {
		t.Errorf("times = %v..%v, want %v..%v", got.StartTime, got.EndTime, p.StartTime, p.EndTime)
	}
	if len(got.StepsCompleted) != 3 || got.StepsCompleted[2] != "EXECUTE" {
		t.Errorf("StepsCompleted = %v", got.StepsCompleted)
	}
	if got.Retries != 2 || !got.Automated {
		t.Errorf("Retries/Automated = %d/%v, want 2/true", got.Retries, got.Automated)
	}
	if got.Metadata["desk"] != "fx" {
		t.Errorf("Metadata = %v, want desk=fx", got.Metadata)
	}
}

func TestStore_UpsertUpdatesExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2025, 5, 2, 8, 30, 0, 0, time.UTC)
	p := &domain.Process{ID: "p1", Status: domain.StatusInProgress, StartTime: start}
	if err := store.UpsertProcess(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetProcess(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.EndTime.IsZero() {
		t.Errorf("EndTime = %v, want zero for in-progress record", got.EndTime)
	}

	p.Status = domain.StatusCompleted
	p.EndTime = start.Add(90 * time.Second)
	if err := store.UpsertProcess(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err = store.GetProcess(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, want COMPLETED", got.Status)
	}
	if got.Duration() != 90*time.Second {
		t.Errorf("Duration = %v, want 1m30s", got.Duration())
	}
}

func TestStore_ListProcesses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC)
	processes := []*domain.Process{
		{ID: "c", Type: "AUDIT", OwnerID: "u1", Status: domain.StatusCompleted, StartTime: base.Add(2 * time.Hour), EndTime: base.Add(3 * time.Hour)},
		{ID: "a", Type: "TRADE", OwnerID: "u1", Status: domain.StatusCompleted, StartTime: base, EndTime: base.Add(time.Hour)},
		{ID: "b", Type: "TRADE", OwnerID: "u2", Status: domain.StatusInProgress, StartTime: base.Add(500 * time.Millisecond)},
	}

	batch, err := store.UpsertProcesses(ctx, processes)
	if err != nil {
		t.Fatal(err)
	}
	if batch == "" {
		t.Error("expected a non-empty import batch ID")
	}

	all, err := store.ListProcesses(ctx, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("All processes count = %d, want 3", len(all))
	}
	// ordered by start time, sub-second precision included
	if all[0].ID != "a" || all[1].ID != "b" || all[2].ID != "c" {
		t.Errorf("order = %s,%s,%s, want a,b,c", all[0].ID, all[1].ID, all[2].ID)
	}

	completed, err := store.ListProcesses(ctx, ListOptions{Status: domain.StatusCompleted})
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 2 {
		t.Errorf("Completed count = %d, want 2", len(completed))
	}

	trades, err := store.ListProcesses(ctx, ListOptions{Type: "TRADE", Owner: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 || trades[0].ID != "a" {
		t.Errorf("TRADE/u1 = %v, want [a]", trades)
	}
}

func TestStore_CountByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	for i, status := range []domain.Status{domain.StatusCompleted, domain.StatusCompleted, domain.StatusFailed, "ODD"} {
		p := &domain.Process{ID: string(rune('a' + i)), Status: status, StartTime: now}
		if err := store.UpsertProcess(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[domain.StatusCompleted] != 2 {
		t.Errorf("COMPLETED = %d, want 2", counts[domain.StatusCompleted])
	}
	if counts[domain.StatusFailed] != 1 || counts["ODD"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetProcess(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProcess(nope) error = %v, want ErrNotFound", err)
	}
}
