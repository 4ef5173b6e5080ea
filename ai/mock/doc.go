// Package mock provides test doubles for the ai package interfaces.
//
// MockEmbedder produces deterministic, hash-derived vectors by default, so
// tests can rely on identical text producing identical embeddings without
// any external service. Custom behavior is injected via function fields.
package mock
