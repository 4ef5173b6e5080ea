package pipeline

import "errors"

var (
	// ErrDreamStoreRequired is returned when a dream store is not provided.
	ErrDreamStoreRequired = errors.New("dream store required")

	// ErrThemeStoreRequired is returned when a theme store is not provided.
	ErrThemeStoreRequired = errors.New("theme store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrNoEmbeddings indicates every batch failed: not a single chunk
	// embedding was produced for the dream.
	ErrNoEmbeddings = errors.New("no embeddings produced")
)
