package worker

import "errors"

var (
	// ErrJobStoreRequired is returned when a job store is not provided.
	ErrJobStoreRequired = errors.New("job store required")

	// ErrDreamStoreRequired is returned when a dream store is not provided.
	ErrDreamStoreRequired = errors.New("dream store required")

	// ErrProcessorRequired is returned when a processor is not provided.
	ErrProcessorRequired = errors.New("processor required")
)
