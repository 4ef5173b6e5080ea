// Package pipeline runs the per-dream processing sequence: validate,
// chunk, embed in batches, match themes, persist.
//
// The Processor performs no job or dream status bookkeeping beyond
// persisting results; outcome classification (completed, skipped, retry)
// belongs to the worker that invoked it. Batch failures inside the
// embedding step are contained: a failed batch is logged and skipped, and
// the step escalates only when no batch succeeded at all.
package pipeline
