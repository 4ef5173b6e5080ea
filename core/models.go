package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DreamStatus tracks a dream transcript through the processing pipeline.
type DreamStatus int

const (
	// DreamStatusPending indicates the dream is awaiting processing.
	DreamStatusPending DreamStatus = iota + 1
	// DreamStatusProcessing indicates a worker is currently processing the dream.
	DreamStatusProcessing
	// DreamStatusCompleted indicates processing finished successfully.
	DreamStatusCompleted
	// DreamStatusFailed indicates processing failed terminally.
	DreamStatusFailed
	// DreamStatusSkipped indicates the dream was rejected by validation
	// (too short, unsupported language) and will never be retried.
	DreamStatusSkipped
)

// String returns the lowercase status name.
func (s DreamStatus) String() string {
	switch s {
	case DreamStatusPending:
		return "pending"
	case DreamStatusProcessing:
		return "processing"
	case DreamStatusCompleted:
		return "completed"
	case DreamStatusFailed:
		return "failed"
	case DreamStatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Dream represents a single dream transcript submitted for analysis.
// Status, AttemptCount and LastError are mutated only by the worker.
type Dream struct {
	Id           ID
	Text         string
	Status       DreamStatus
	AttemptCount int
	LastError    string
	SubmittedAt  time.Time
	UpdatedAt    time.Time
}

// Chunk is a bounded, possibly overlapping slice of a dream's text,
// sized to fit the embedder's input limit. Chunks are derived data:
// they are never persisted independently of their embedding.
type Chunk struct {
	DreamId       ID
	Index         int // Zero-based, contiguous 0..TotalChunks-1
	Start         int // Character offset, inclusive
	End           int // Character offset, exclusive
	OverlapPrev   int // Characters shared with the previous chunk
	OverlapNext   int // Characters shared with the next chunk
	TokenEstimate int
	TotalChunks   int // Backfilled once splitting finishes
	Text          string
}

// Embedding is the stored vector for one chunk of a dream.
// Records are keyed by (DreamId, ChunkIndex); reprocessing a dream
// supersedes its prior records.
type Embedding struct {
	DreamId    ID
	ChunkIndex int
	Start      int
	End        int
	Vector     []float32
	Model      string
	LatencyMs  int64
	CreatedAt  time.Time
}

// Theme is a catalog entry dreams are matched against.
// The catalog is externally curated and read-only at pipeline run time.
type Theme struct {
	Code   string
	Label  string
	Vector []float32
}

// ThemeMatch associates a dream with a catalog theme. Score is the
// maximum cosine similarity across the dream's chunks; ChunkIndex
// identifies the contributing chunk.
type ThemeMatch struct {
	DreamId    ID
	Code       string
	Score      float32
	ChunkIndex int
}

// Fragment is a curated knowledge snippet retrievable by theme association.
// Scope is the consumer category the retriever filters on (e.g. "jung").
type Fragment struct {
	Id       ID
	Text     string
	Source   string
	Scope    string
	Metadata map[string]string
	Vector   []float32 // Optional; used by the semantic retrieval tier
}

// FragmentLink associates a fragment with a theme code.
// Scores are precomputed offline, not by this system.
type FragmentLink struct {
	FragmentId ID
	ThemeCode  string
	Score      float32
}

// FragmentHit pairs a fragment with the relevance score that retrieved it.
type FragmentHit struct {
	Fragment *Fragment
	Score    float32
}

// JobStatus tracks a processing job through its state machine.
type JobStatus int

const (
	// JobStatusPending indicates the job is eligible for claiming once
	// ScheduledAt has passed.
	JobStatusPending JobStatus = iota + 1
	// JobStatusProcessing indicates a worker holds the claim.
	JobStatusProcessing
	// JobStatusCompleted is terminal success.
	JobStatusCompleted
	// JobStatusFailed is terminal failure after retry exhaustion.
	JobStatusFailed
)

// String returns the lowercase status name.
func (s JobStatus) String() string {
	switch s {
	case JobStatusPending:
		return "pending"
	case JobStatusProcessing:
		return "processing"
	case JobStatusCompleted:
		return "completed"
	case JobStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job drives the processing of one dream. At most one non-terminal job
// exists per dream at any time; the conditional pending->processing
// transition is the sole concurrency-safety mechanism.
type Job struct {
	DreamId     ID
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	Priority    int
	ScheduledAt time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	LastError   string
}

// Terminal reports whether the job has reached a terminal state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
