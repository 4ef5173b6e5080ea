package badger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/somnolabs/oneiro/core"
	"github.com/somnolabs/oneiro/storage"
)

func TestJobEnqueueAndGet(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	job := &core.Job{DreamId: 1, MaxAttempts: 3}
	if err := stores.Jobs.EnqueueJob(ctx, job); err != nil {
		t.Fatalf("Failed to enqueue job: %v", err)
	}
	if job.Status != core.JobStatusPending {
		t.Fatalf("Expected pending default, got %v", job.Status)
	}
	if job.ScheduledAt.IsZero() {
		t.Fatal("Expected ScheduledAt default")
	}

	retrieved, err := stores.Jobs.GetJob(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if retrieved.MaxAttempts != 3 {
		t.Fatalf("Expected MaxAttempts 3, got %d", retrieved.MaxAttempts)
	}

	if _, err := stores.Jobs.GetJob(ctx, 99); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestJobEnqueueRejectsActiveDuplicate(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	if err := stores.Jobs.EnqueueJob(ctx, &core.Job{DreamId: 1}); err != nil {
		t.Fatalf("Failed to enqueue job: %v", err)
	}

	err = stores.Jobs.EnqueueJob(ctx, &core.Job{DreamId: 1})
	if !errors.Is(err, storage.ErrJobExists) {
		t.Fatalf("Expected ErrJobExists, got %v", err)
	}

	// A terminal job may be replaced, supporting resubmission.
	job, err := stores.Jobs.GetJob(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	job.Status = core.JobStatusFailed
	if err := stores.Jobs.UpdateJob(ctx, job); err != nil {
		t.Fatalf("Failed to update job: %v", err)
	}

	if err := stores.Jobs.EnqueueJob(ctx, &core.Job{DreamId: 1}); err != nil {
		t.Fatalf("Expected terminal job to be replaceable, got %v", err)
	}

	replaced, err := stores.Jobs.GetJob(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if replaced.Status != core.JobStatusPending {
		t.Fatalf("Expected fresh pending job, got %v", replaced.Status)
	}
	if replaced.Attempts != 0 {
		t.Fatalf("Expected attempt counter reset, got %d", replaced.Attempts)
	}
}

func TestClaimPendingOrderAndDueness(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	jobs := []*core.Job{
		{DreamId: 1, Priority: 0, ScheduledAt: now.Add(-3 * time.Minute)},
		{DreamId: 2, Priority: 5, ScheduledAt: now.Add(-1 * time.Minute)},
		{DreamId: 3, Priority: 5, ScheduledAt: now.Add(-2 * time.Minute)},
		{DreamId: 4, Priority: 9, ScheduledAt: now.Add(time.Hour)}, // not due
	}
	for _, job := range jobs {
		if err := stores.Jobs.EnqueueJob(ctx, job); err != nil {
			t.Fatalf("Failed to enqueue job %d: %v", job.DreamId, err)
		}
	}

	claimed, err := stores.Jobs.ClaimPending(ctx, now, 10)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if len(claimed) != 3 {
		t.Fatalf("Expected 3 due jobs, got %d", len(claimed))
	}

	// Priority descending, then earlier ScheduledAt first.
	wantOrder := []core.ID{3, 2, 1}
	for i, job := range claimed {
		if job.DreamId != wantOrder[i] {
			t.Fatalf("Expected claim order %v, got dream %d at position %d", wantOrder, job.DreamId, i)
		}
		if job.Status != core.JobStatusProcessing {
			t.Fatalf("Expected claimed job to be processing, got %v", job.Status)
		}
		if job.Attempts != 1 {
			t.Fatalf("Expected attempts incremented at claim, got %d", job.Attempts)
		}
		if job.StartedAt.IsZero() {
			t.Fatal("Expected StartedAt set at claim")
		}
	}

	// Nothing left to claim; job 4 is still in the future.
	claimed, err = stores.Jobs.ClaimPending(ctx, now, 10)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if len(claimed) != 0 {
		t.Fatalf("Expected no claimable jobs, got %d", len(claimed))
	}
}

func TestClaimPendingLimit(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	for i := 1; i <= 5; i++ {
		if err := stores.Jobs.EnqueueJob(ctx, &core.Job{DreamId: core.ID(i), ScheduledAt: now.Add(-time.Minute)}); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}

	claimed, err := stores.Jobs.ClaimPending(ctx, now, 2)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("Expected 2 claims, got %d", len(claimed))
	}

	claimed, err = stores.Jobs.ClaimPending(ctx, now, 0)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if len(claimed) != 0 {
		t.Fatalf("Expected no claims with zero limit, got %d", len(claimed))
	}
}

func TestClaimPendingConcurrentWorkers(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	const jobCount = 20
	for i := 1; i <= jobCount; i++ {
		if err := stores.Jobs.EnqueueJob(ctx, &core.Job{DreamId: core.ID(i), ScheduledAt: now.Add(-time.Minute)}); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}

	// Many workers race for the same pool of jobs. Each job must be
	// claimed exactly once across all of them.
	const workers = 8
	var mu sync.Mutex
	counts := make(map[core.ID]int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				claimed, err := stores.Jobs.ClaimPending(ctx, now, 3)
				if err != nil {
					t.Errorf("claim failed: %v", err)
					return
				}
				if len(claimed) == 0 {
					return
				}
				mu.Lock()
				for _, job := range claimed {
					counts[job.DreamId]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(counts) != jobCount {
		t.Fatalf("Expected all %d jobs claimed, got %d", jobCount, len(counts))
	}
	for dreamId, n := range counts {
		if n != 1 {
			t.Fatalf("Dream %d claimed %d times", dreamId, n)
		}
	}
}

func TestResetStale(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	if err := stores.Jobs.EnqueueJob(ctx, &core.Job{DreamId: 1, ScheduledAt: now.Add(-time.Minute)}); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	claimed, err := stores.Jobs.ClaimPending(ctx, now, 1)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("Expected 1 claim, got %d", len(claimed))
	}

	// Cutoff before the claim: nothing is stale.
	reset, err := stores.Jobs.ResetStale(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}
	if reset != 0 {
		t.Fatalf("Expected no resets, got %d", reset)
	}

	// Cutoff after the claim: the stuck job comes back.
	reset, err = stores.Jobs.ResetStale(ctx, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}
	if reset != 1 {
		t.Fatalf("Expected 1 reset, got %d", reset)
	}

	job, err := stores.Jobs.GetJob(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if job.Status != core.JobStatusPending {
		t.Fatalf("Expected pending after reset, got %v", job.Status)
	}
	if !job.StartedAt.IsZero() {
		t.Fatal("Expected StartedAt cleared")
	}
	if job.Attempts != 1 {
		t.Fatalf("Expected attempt count preserved, got %d", job.Attempts)
	}

	// Second sweep with the same cutoff is a no-op.
	reset, err = stores.Jobs.ResetStale(ctx, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}
	if reset != 0 {
		t.Fatalf("Expected idempotent sweep, got %d resets", reset)
	}
}
