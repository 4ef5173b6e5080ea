// Copyright 2025 Somno Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/somnolabs/oneiro/ai"
	"github.com/somnolabs/oneiro/chunker"
	"github.com/somnolabs/oneiro/core"
	"github.com/somnolabs/oneiro/storage"
	"github.com/somnolabs/oneiro/themes"
)

// Config holds processing parameters for the embedding pipeline.
type Config struct {
	// MinTokensForEmbedding is the minimum estimated token count below
	// which a dream is skipped rather than processed.
	MinTokensForEmbedding int

	// CharsPerToken is the fixed token approximation constant, shared
	// with the chunker configuration.
	CharsPerToken int

	// EmbeddingBatchSize is the number of chunks sent to the embedder in
	// one call.
	EmbeddingBatchSize int

	// BatchDelay is the pacing pause between batches. This is
	// backpressure, not a retry mechanism.
	BatchDelay time.Duration

	// Model is the model/version tag stamped on stored embedding records.
	Model string
}

// DefaultConfig returns processing parameters matched to the default
// chunker configuration.
func DefaultConfig() *Config {
	return &Config{
		MinTokensForEmbedding: 25,
		CharsPerToken:         4,
		EmbeddingBatchSize:    5,
		BatchDelay:            200 * time.Millisecond,
		Model:                 "embeddinggemma",
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MinTokensForEmbedding < 1 {
		return errors.New("pipeline config: MinTokensForEmbedding must be >= 1")
	}
	if c.CharsPerToken < 1 {
		return errors.New("pipeline config: CharsPerToken must be >= 1")
	}
	if c.EmbeddingBatchSize < 1 {
		return errors.New("pipeline config: EmbeddingBatchSize must be >= 1")
	}
	if c.BatchDelay < 0 {
		return errors.New("pipeline config: BatchDelay must be >= 0")
	}
	return nil
}

// Processor runs the full processing sequence for one dream.
type Processor struct {
	dreams   storage.DreamStore
	themeCat storage.ThemeStore
	embedder ai.Embedder
	chunker  *chunker.Chunker
	matcher  *themes.Matcher
	config   *Config
	logger   *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewProcessor creates a processor. A nil config uses DefaultConfig.
func NewProcessor(
	dreams storage.DreamStore,
	themeCat storage.ThemeStore,
	embedder ai.Embedder,
	chk *chunker.Chunker,
	matcher *themes.Matcher,
	config *Config,
	opts ...Option,
) (*Processor, error) {
	if dreams == nil {
		return nil, ErrDreamStoreRequired
	}
	if themeCat == nil {
		return nil, ErrThemeStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if chk == nil {
		return nil, errors.New("chunker required")
	}
	if matcher == nil {
		return nil, errors.New("matcher required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Processor{
		dreams:   dreams,
		themeCat: themeCat,
		embedder: embedder,
		chunker:  chk,
		matcher:  matcher,
		config:   config,
		logger:   slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Process runs chunk -> embed -> match -> persist for one dream.
//
// Validation failures wrap core.ErrDreamSkipped and must not be retried.
// All other errors are transient from the caller's perspective. Process
// does not transition the dream's status; that bookkeeping belongs to the
// worker driving it.
func (p *Processor) Process(ctx context.Context, dreamId core.ID) error {
	dream, err := p.dreams.GetDream(ctx, dreamId)
	if err != nil {
		return fmt.Errorf("loading dream %d: %w", dreamId, err)
	}

	if err := core.ValidateDreamText(dream.Text, p.config.MinTokensForEmbedding, p.config.CharsPerToken); err != nil {
		return err
	}

	chunks, err := p.chunker.Chunk(dream.Id, dream.Text)
	if err != nil {
		return fmt.Errorf("chunking dream %d: %w", dream.Id, err)
	}
	p.logger.Debug("chunked dream", "dreamId", dream.Id, "chunks", len(chunks))

	embeddings, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding dream %d: %w", dream.Id, err)
	}

	catalog, err := p.themeCat.GetThemes(ctx)
	if err != nil {
		return fmt.Errorf("loading theme catalog: %w", err)
	}

	matches := p.matcher.Match(dream.Id, embeddings, catalog)
	p.logger.Info("matched themes", "dreamId", dream.Id,
		"embeddings", len(embeddings), "themes", len(matches))

	if err := p.dreams.PutEmbeddings(ctx, dream.Id, embeddings); err != nil {
		return fmt.Errorf("persisting embeddings for dream %d: %w", dream.Id, err)
	}
	if err := p.dreams.PutThemeMatches(ctx, dream.Id, matches); err != nil {
		return fmt.Errorf("persisting theme matches for dream %d: %w", dream.Id, err)
	}

	return nil
}
