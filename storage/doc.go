// Package storage defines the repository interfaces the pipeline, worker
// and retriever depend on, together with the serialization helpers shared
// by backend implementations.
//
// The only production backend is storage/badger. Interfaces are defined
// here so business logic never imports a concrete backend.
package storage
