package retrieval

import "errors"

var (
	// ErrFragmentStoreRequired is returned when a fragment store is not provided.
	ErrFragmentStoreRequired = errors.New("fragment store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmptyQuery is returned when the query text is empty.
	ErrEmptyQuery = errors.New("query must not be empty")
)
