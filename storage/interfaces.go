package storage

import (
	"context"
	"time"

	"github.com/somnolabs/oneiro/core"
)

// DreamStore provides operations for dream transcripts and their derived
// processing results. Implementations must be thread-safe and support
// concurrent access.
type DreamStore interface {
	// AddDream stores a new dream. For dreams with Id=0, a deterministic
	// content-based ID is generated. SubmittedAt is set if zero.
	// Returns the dream with ID and timestamps populated.
	AddDream(ctx context.Context, dream *core.Dream) (*core.Dream, error)

	// GetDream retrieves a dream by ID.
	// Returns ErrNotFound if the dream doesn't exist.
	GetDream(ctx context.Context, id core.ID) (*core.Dream, error)

	// UpdateDream updates an existing dream, refreshing UpdatedAt.
	// Returns ErrNotFound if the dream doesn't exist.
	UpdateDream(ctx context.Context, dream *core.Dream) error

	// SetDreamStatus transitions a dream's status and error message,
	// refreshing UpdatedAt. Returns ErrNotFound if the dream doesn't exist.
	SetDreamStatus(ctx context.Context, id core.ID, status core.DreamStatus, lastError string) error

	// PutEmbeddings replaces all stored embeddings for the dream with the
	// given records. Reprocessing a dream therefore supersedes prior
	// records rather than duplicating them.
	PutEmbeddings(ctx context.Context, dreamId core.ID, embeddings []core.Embedding) error

	// GetEmbeddings retrieves all embeddings for a dream, ordered by
	// chunk index. Returns an empty slice when none are stored.
	GetEmbeddings(ctx context.Context, dreamId core.ID) ([]core.Embedding, error)

	// PutThemeMatches replaces the stored theme associations for a dream.
	PutThemeMatches(ctx context.Context, dreamId core.ID, matches []core.ThemeMatch) error

	// GetThemeMatches retrieves the stored theme associations for a
	// dream, ordered by score descending.
	GetThemeMatches(ctx context.Context, dreamId core.ID) ([]core.ThemeMatch, error)

	// Close releases resources held by the store.
	Close() error
}

// JobStore manages processing jobs. The conditional pending->processing
// claim transition is the sole cross-worker synchronization primitive.
type JobStore interface {
	// EnqueueJob inserts a job for its subject dream. Returns
	// ErrJobExists if a non-terminal job for the same dream already
	// exists; a terminal job is overwritten.
	EnqueueJob(ctx context.Context, job *core.Job) error

	// GetJob retrieves the job for a dream.
	// Returns ErrNotFound if no job exists.
	GetJob(ctx context.Context, dreamId core.ID) (*core.Job, error)

	// UpdateJob overwrites the job row for its subject dream.
	UpdateJob(ctx context.Context, job *core.Job) error

	// ClaimPending atomically claims up to limit pending jobs whose
	// ScheduledAt is not after now, ordered by priority descending then
	// ScheduledAt ascending. Each claimed job transitions to processing
	// with Attempts incremented and StartedAt set. Jobs lost to a
	// concurrent claimer are silently skipped.
	ClaimPending(ctx context.Context, now time.Time, limit int) ([]*core.Job, error)

	// ResetStale resets jobs stuck in processing since before cutoff back
	// to pending, returning how many were reset. The operation is
	// idempotent: a job already reset is not touched again.
	ResetStale(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// ThemeStore provides access to the externally curated theme catalog.
// The catalog is read-only at pipeline run time.
type ThemeStore interface {
	// PutThemes inserts or replaces catalog entries.
	PutThemes(ctx context.Context, themes ...core.Theme) error

	// GetTheme retrieves a catalog entry by code.
	// Returns ErrNotFound if the theme doesn't exist.
	GetTheme(ctx context.Context, code string) (*core.Theme, error)

	// GetThemes retrieves the full catalog, ordered by code.
	GetThemes(ctx context.Context) ([]core.Theme, error)

	// Close releases resources held by the store.
	Close() error
}

// FragmentStore provides access to knowledge fragments and their
// precomputed theme associations.
type FragmentStore interface {
	// PutFragments inserts or replaces fragments. Fragments with Id=0
	// receive a deterministic content-based ID.
	PutFragments(ctx context.Context, fragments ...*core.Fragment) error

	// GetFragments retrieves fragments by ID. Missing fragments are
	// omitted without error.
	GetFragments(ctx context.Context, ids ...core.ID) ([]*core.Fragment, error)

	// PutLinks inserts or replaces fragment-theme associations.
	PutLinks(ctx context.Context, links ...core.FragmentLink) error

	// LinksByThemes retrieves all associations for the given theme codes
	// with score >= minScore.
	LinksByThemes(ctx context.Context, codes []string, minScore float32) ([]core.FragmentLink, error)

	// FindSimilar ranks the scope's fragments by cosine similarity
	// against the query vector. Returns hits with similarity >=
	// minSimilarity, highest first, up to limit results. Fragments
	// without a stored vector are skipped. An empty scope matches all
	// fragments.
	FindSimilar(ctx context.Context, scope string, vector []float32, minSimilarity float32, limit int) ([]core.FragmentHit, error)

	// SearchText performs a plain keyword search over fragment text
	// within scope, up to limit results. An empty scope matches all
	// fragments.
	SearchText(ctx context.Context, scope, query string, limit int) ([]*core.Fragment, error)

	// Close releases resources held by the store.
	Close() error
}
