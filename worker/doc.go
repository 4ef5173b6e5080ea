// Package worker drives asynchronous dream processing. A Scheduler polls
// the job store for due pending jobs, claims them atomically so that
// concurrent schedulers never process the same dream twice, and runs each
// claimed job on a bounded goroutine pool.
//
// The scheduler owns all status bookkeeping. Processing outcomes map to
// job and dream transitions here, not in the pipeline: success completes
// both, a validation skip completes the job without retry, and transient
// failures reschedule with exponential backoff until the attempt budget is
// exhausted and the job dead-letters as failed.
package worker
