package job

import (
	"errors"
	"testing"
	"time"

	"github.com/newthinker/stockscope/internal/core"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore(100, time.Hour)

	job := store.Create("backtest")
	if job.ID == "" {
		t.Error("expected job ID")
	}
	if job.Status != StatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}

	retrieved, err := store.Get(job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.ID != job.ID {
		t.Error("IDs don't match")
	}
}

func TestStore_Update(t *testing.T) {
	store := NewStore(100, time.Hour)
	job := store.Create("backtest")

	err := store.Update(job.ID, func(j *Job) {
		j.Status = StatusComplete
		j.Result = "done"
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := store.Get(job.ID)
	if got.Status != StatusComplete || got.Result != "done" {
		t.Errorf("update not applied: %+v", got)
	}
	if !got.Done() {
		t.Error("complete job should be done")
	}
}

func TestStore_NotFound(t *testing.T) {
	store := NewStore(10, time.Hour)

	if _, err := store.Get("missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	if err := store.Update("missing", func(*Job) {}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestStore_EvictsOldest(t *testing.T) {
	store := NewStore(2, time.Hour)

	first := store.Create("backtest")
	store.Create("backtest")
	store.Create("backtest")

	if store.Len() != 2 {
		t.Errorf("expected 2 jobs, got %d", store.Len())
	}
	if _, err := store.Get(first.ID); err == nil {
		t.Error("oldest job should have been evicted")
	}
}

func TestStore_PrunesFinishedJobsPastTTL(t *testing.T) {
	now := time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC)
	store := NewStore(10, time.Minute)
	store.now = func() time.Time { return now }

	done := store.Create("backtest")
	store.Update(done.ID, func(j *Job) { j.Status = StatusFailed })
	running := store.Create("backtest")
	store.Update(running.ID, func(j *Job) { j.Status = StatusRunning })

	now = now.Add(2 * time.Minute)
	store.Create("backtest")

	if _, err := store.Get(done.ID); err == nil {
		t.Error("finished job past ttl should be pruned")
	}
	if _, err := store.Get(running.ID); err != nil {
		t.Error("running job must survive pruning")
	}
}
