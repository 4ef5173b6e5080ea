package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/somnolabs/oneiro/core"
	badgerstore "github.com/somnolabs/oneiro/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// processorFunc adapts a function to the Processor interface.
type processorFunc func(ctx context.Context, dreamId core.ID) error

func (f processorFunc) Process(ctx context.Context, dreamId core.ID) error {
	return f(ctx, dreamId)
}

// recordingObserver captures lifecycle notifications for assertions.
type recordingObserver struct {
	mu        sync.Mutex
	completed []core.ID
	skipped   []core.ID
	failed    []core.ID
	retries   []bool
	done      chan struct{}
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{done: make(chan struct{}, 16)}
}

func (o *recordingObserver) JobCompleted(job *core.Job) {
	o.mu.Lock()
	o.completed = append(o.completed, job.DreamId)
	o.mu.Unlock()
	o.done <- struct{}{}
}

func (o *recordingObserver) DreamSkipped(job *core.Job, reason error) {
	o.mu.Lock()
	o.skipped = append(o.skipped, job.DreamId)
	o.mu.Unlock()
	o.done <- struct{}{}
}

func (o *recordingObserver) JobFailed(job *core.Job, err error, willRetry bool) {
	o.mu.Lock()
	o.failed = append(o.failed, job.DreamId)
	o.retries = append(o.retries, willRetry)
	o.mu.Unlock()
	o.done <- struct{}{}
}

func (o *recordingObserver) wait(t *testing.T) {
	t.Helper()
	select {
	case <-o.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job outcome")
	}
}

func testConfig() *Config {
	config := DefaultConfig()
	config.MaxConcurrentJobs = 2
	config.PollingInterval = 10 * time.Millisecond
	config.CleanupInterval = time.Hour
	config.BackoffBase = time.Minute
	config.BackoffCap = 60 * time.Minute
	return config
}

func newTestScheduler(t *testing.T, proc Processor, observer Observer) (*Scheduler, *badgerstore.Stores) {
	t.Helper()

	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	opts := []Option{}
	if observer != nil {
		opts = append(opts, WithObserver(observer))
	}

	scheduler, err := NewScheduler(stores.Jobs, stores.Dreams, proc, testConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(scheduler.Release)
	return scheduler, stores
}

func addPendingDream(t *testing.T, stores *badgerstore.Stores) *core.Dream {
	t.Helper()
	text := strings.Repeat("a recurring dream about unfinished houses ", 5)
	dream, err := stores.Dreams.AddDream(context.Background(), &core.Dream{
		Text:   text + t.Name(),
		Status: core.DreamStatusPending,
	})
	require.NoError(t, err)
	return dream
}

// claimOne claims the single due job, failing the test if none is due.
func claimOne(t *testing.T, stores *badgerstore.Stores, now time.Time) *core.Job {
	t.Helper()
	claimed, err := stores.Jobs.ClaimPending(context.Background(), now, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	return claimed[0]
}

func TestNewSchedulerValidation(t *testing.T) {
	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ok := processorFunc(func(context.Context, core.ID) error { return nil })

	_, err = NewScheduler(nil, stores.Dreams, ok, nil)
	assert.ErrorIs(t, err, ErrJobStoreRequired)

	_, err = NewScheduler(stores.Jobs, nil, ok, nil)
	assert.ErrorIs(t, err, ErrDreamStoreRequired)

	_, err = NewScheduler(stores.Jobs, stores.Dreams, nil, nil)
	assert.ErrorIs(t, err, ErrProcessorRequired)
}

func TestRunJobSuccessFirstAttempt(t *testing.T) {
	ctx := context.Background()
	observer := newRecordingObserver()
	proc := processorFunc(func(context.Context, core.ID) error { return nil })
	scheduler, stores := newTestScheduler(t, proc, observer)

	dream := addPendingDream(t, stores)
	require.NoError(t, scheduler.Enqueue(ctx, dream.Id, 0))

	job := claimOne(t, stores, time.Now().UTC())
	scheduler.runJob(ctx, job)

	stored, err := stores.Jobs.GetJob(ctx, dream.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.False(t, stored.CompletedAt.IsZero())
	assert.Empty(t, stored.LastError)

	updated, err := stores.Dreams.GetDream(ctx, dream.Id)
	require.NoError(t, err)
	assert.Equal(t, core.DreamStatusCompleted, updated.Status)

	assert.Equal(t, []core.ID{dream.Id}, observer.completed)
}

func TestRunJobMarksDreamProcessing(t *testing.T) {
	ctx := context.Background()
	var stores *badgerstore.Stores
	var observed core.DreamStatus
	proc := processorFunc(func(ctx context.Context, dreamId core.ID) error {
		dream, err := stores.Dreams.GetDream(ctx, dreamId)
		if err != nil {
			return err
		}
		observed = dream.Status
		return nil
	})
	scheduler, s := newTestScheduler(t, proc, nil)
	stores = s

	dream := addPendingDream(t, stores)
	require.NoError(t, scheduler.Enqueue(ctx, dream.Id, 0))

	job := claimOne(t, stores, time.Now().UTC())
	scheduler.runJob(ctx, job)

	// The dream was visibly in flight while the processor ran.
	assert.Equal(t, core.DreamStatusProcessing, observed)

	updated, err := stores.Dreams.GetDream(ctx, dream.Id)
	require.NoError(t, err)
	assert.Equal(t, core.DreamStatusCompleted, updated.Status)
}

func TestRunJobRetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	observer := newRecordingObserver()
	proc := processorFunc(func(context.Context, core.ID) error {
		return errors.New("embedding host unreachable")
	})
	scheduler, stores := newTestScheduler(t, proc, observer)

	dream := addPendingDream(t, stores)
	require.NoError(t, scheduler.Enqueue(ctx, dream.Id, 0))

	before := time.Now().UTC()
	job := claimOne(t, stores, before)
	scheduler.runJob(ctx, job)

	stored, err := stores.Jobs.GetJob(ctx, dream.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, "embedding host unreachable", stored.LastError)

	// First failure reschedules 2*BackoffBase out.
	assert.False(t, stored.ScheduledAt.Before(before.Add(2*time.Minute)))

	// Not yet due, so it cannot be claimed now.
	claimed, err := stores.Jobs.ClaimPending(ctx, time.Now().UTC(), 1)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	// Second failure doubles the delay.
	job = claimOne(t, stores, stored.ScheduledAt)
	beforeSecond := time.Now().UTC()
	scheduler.runJob(ctx, job)

	stored, err = stores.Jobs.GetJob(ctx, dream.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
	assert.False(t, stored.ScheduledAt.Before(beforeSecond.Add(4*time.Minute)))

	assert.Equal(t, []bool{true, true}, observer.retries)
}

func TestRunJobDeadLettersAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	observer := newRecordingObserver()
	proc := processorFunc(func(context.Context, core.ID) error {
		return errors.New("persistent failure")
	})
	scheduler, stores := newTestScheduler(t, proc, observer)

	dream := addPendingDream(t, stores)
	require.NoError(t, scheduler.Enqueue(ctx, dream.Id, 0))

	farFuture := time.Now().UTC().Add(24 * time.Hour)
	for i := 0; i < 3; i++ {
		job := claimOne(t, stores, farFuture)
		scheduler.runJob(ctx, job)
	}

	stored, err := stores.Jobs.GetJob(ctx, dream.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, stored.Status)
	assert.Equal(t, 3, stored.Attempts)
	assert.Equal(t, "persistent failure", stored.LastError)
	assert.False(t, stored.CompletedAt.IsZero())

	updated, err := stores.Dreams.GetDream(ctx, dream.Id)
	require.NoError(t, err)
	assert.Equal(t, core.DreamStatusFailed, updated.Status)
	assert.Equal(t, "persistent failure", updated.LastError)

	// Dead-lettered jobs never become claimable again.
	claimed, err := stores.Jobs.ClaimPending(ctx, farFuture, 1)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	assert.Equal(t, []bool{true, true, false}, observer.retries)
}

func TestRunJobSkipCompletesWithoutRetry(t *testing.T) {
	ctx := context.Background()
	observer := newRecordingObserver()
	proc := processorFunc(func(context.Context, core.ID) error {
		return core.ErrDreamSkipped
	})
	scheduler, stores := newTestScheduler(t, proc, observer)

	dream := addPendingDream(t, stores)
	require.NoError(t, scheduler.Enqueue(ctx, dream.Id, 0))

	job := claimOne(t, stores, time.Now().UTC())
	scheduler.runJob(ctx, job)

	stored, err := stores.Jobs.GetJob(ctx, dream.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.Attempts)

	updated, err := stores.Dreams.GetDream(ctx, dream.Id)
	require.NoError(t, err)
	assert.Equal(t, core.DreamStatusSkipped, updated.Status)
	assert.NotEmpty(t, updated.LastError)

	assert.Equal(t, []core.ID{dream.Id}, observer.skipped)
	assert.Empty(t, observer.failed)
}

func TestEnqueueRejectsDuplicateActiveJob(t *testing.T) {
	ctx := context.Background()
	proc := processorFunc(func(context.Context, core.ID) error { return nil })
	scheduler, stores := newTestScheduler(t, proc, nil)

	dream := addPendingDream(t, stores)
	require.NoError(t, scheduler.Enqueue(ctx, dream.Id, 0))

	err := scheduler.Enqueue(ctx, dream.Id, 5)
	assert.Error(t, err)
}

func TestPollOnceProcessesDueJobs(t *testing.T) {
	ctx := context.Background()
	observer := newRecordingObserver()
	proc := processorFunc(func(context.Context, core.ID) error { return nil })
	scheduler, stores := newTestScheduler(t, proc, observer)

	first := addPendingDream(t, stores)
	require.NoError(t, scheduler.Enqueue(ctx, first.Id, 0))

	require.NoError(t, scheduler.pollOnce(ctx))
	observer.wait(t)

	stored, err := stores.Jobs.GetJob(ctx, first.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, stored.Status)
}

func TestSweepOnceResetsStaleJobs(t *testing.T) {
	ctx := context.Background()
	proc := processorFunc(func(context.Context, core.ID) error { return nil })
	scheduler, stores := newTestScheduler(t, proc, nil)

	dream := addPendingDream(t, stores)
	require.NoError(t, scheduler.Enqueue(ctx, dream.Id, 0))

	// Claim but never finish, simulating a crashed worker.
	job := claimOne(t, stores, time.Now().UTC())
	require.Equal(t, core.JobStatusProcessing, job.Status)

	// Nothing stale yet relative to the configured timeout.
	require.NoError(t, scheduler.sweepOnce(ctx))
	stored, err := stores.Jobs.GetJob(ctx, dream.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusProcessing, stored.Status)

	// Force the cutoff past the claim time.
	reset, err := stores.Jobs.ResetStale(ctx, time.Now().UTC().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	stored, err = stores.Jobs.GetJob(ctx, dream.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, stored.Status)
	assert.True(t, stored.StartedAt.IsZero())
	// Attempt accounting survives the reset.
	assert.Equal(t, 1, stored.Attempts)

	// Sweeping again is a no-op.
	reset, err = stores.Jobs.ResetStale(ctx, time.Now().UTC().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0, reset)
}

func TestInFlightJobSurvivesShutdown(t *testing.T) {
	outer, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	observer := newRecordingObserver()
	proc := processorFunc(func(ctx context.Context, _ core.ID) error {
		close(started)
		<-outer.Done()
		// The job context must not observe the shutdown; returning its
		// error here would otherwise burn an attempt.
		return ctx.Err()
	})
	scheduler, stores := newTestScheduler(t, proc, observer)

	dream := addPendingDream(t, stores)
	require.NoError(t, scheduler.Enqueue(context.Background(), dream.Id, 0))

	require.NoError(t, scheduler.pollOnce(outer))

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job was never started")
	}
	cancel()
	observer.wait(t)

	stored, err := stores.Jobs.GetJob(context.Background(), dream.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.Attempts)

	updated, err := stores.Dreams.GetDream(context.Background(), dream.Id)
	require.NoError(t, err)
	assert.Equal(t, core.DreamStatusCompleted, updated.Status)

	assert.Equal(t, []core.ID{dream.Id}, observer.completed)
	assert.Empty(t, observer.failed)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	proc := processorFunc(func(context.Context, core.ID) error { return nil })
	scheduler, _ := newTestScheduler(t, proc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- scheduler.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestPriorityOrdersClaims(t *testing.T) {
	ctx := context.Background()
	proc := processorFunc(func(context.Context, core.ID) error { return nil })
	scheduler, stores := newTestScheduler(t, proc, nil)

	low := addPendingDream(t, stores)
	require.NoError(t, scheduler.Enqueue(ctx, low.Id, 0))

	high, err := stores.Dreams.AddDream(ctx, &core.Dream{
		Text:   strings.Repeat("urgent nightmare about deadlines ", 6),
		Status: core.DreamStatusPending,
	})
	require.NoError(t, err)
	require.NoError(t, scheduler.Enqueue(ctx, high.Id, 10))

	job := claimOne(t, stores, time.Now().UTC())
	assert.Equal(t, high.Id, job.DreamId)
}
