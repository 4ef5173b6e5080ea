package worker

import "github.com/somnolabs/oneiro/core"

// Observer receives job lifecycle notifications from the scheduler.
// Implementations must be safe for concurrent use; callbacks fire from
// worker goroutines.
type Observer interface {
	// JobCompleted fires when a job finishes successfully.
	JobCompleted(job *core.Job)

	// DreamSkipped fires when a job completes because its dream failed
	// validation and was skipped rather than processed.
	DreamSkipped(job *core.Job, reason error)

	// JobFailed fires when an attempt fails. willRetry is false when the
	// job has exhausted its attempt budget and dead-lettered.
	JobFailed(job *core.Job, err error, willRetry bool)
}

// NoopObserver ignores all notifications.
type NoopObserver struct{}

var _ Observer = NoopObserver{}

func (NoopObserver) JobCompleted(*core.Job)           {}
func (NoopObserver) DreamSkipped(*core.Job, error)    {}
func (NoopObserver) JobFailed(*core.Job, error, bool) {}
