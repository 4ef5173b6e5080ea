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


package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/somnolabs/oneiro/ai"
	"github.com/somnolabs/oneiro/core"
	"github.com/somnolabs/oneiro/storage"
)

// Method identifies which retrieval tier produced a result.
type Method string

const (
	// MethodThemeAssociation means precomputed fragment-theme links answered.
	MethodThemeAssociation Method = "theme_association"
	// MethodSemantic means vector similarity answered.
	MethodSemantic Method = "semantic"
	// MethodLexical means keyword search answered.
	MethodLexical Method = "lexical"
	// MethodNone means every tier came up empty.
	MethodNone Method = "none"
)

// Result holds retrieved fragments and the tier that produced them.
type Result struct {
	Fragments []*core.Fragment
	Method    Method
}

// Config holds retrieval tuning parameters.
type Config struct {
	// SimilarityFloor is the minimum link score for the theme tier.
	SimilarityFloor float32

	// SemanticThreshold is the minimum cosine similarity for the
	// semantic tier. Deliberately stricter than SimilarityFloor: a
	// live vector comparison has no curation backing it up.
	SemanticThreshold float32

	// CandidatePoolSize is how many in-scope linked fragments the theme
	// tier ranks before truncating to MaxResults.
	CandidatePoolSize int

	// MaxResults bounds the fragments returned per query.
	MaxResults int
}

// DefaultConfig returns the standard retrieval configuration.
func DefaultConfig() *Config {
	return &Config{
		SimilarityFloor:   0.30,
		SemanticThreshold: 0.50,
		CandidatePoolSize: 10,
		MaxResults:        5,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SimilarityFloor < 0 || c.SimilarityFloor > 1 {
		return errors.New("retrieval config: SimilarityFloor must be in [0, 1]")
	}
	if c.SemanticThreshold < 0 || c.SemanticThreshold > 1 {
		return errors.New("retrieval config: SemanticThreshold must be in [0, 1]")
	}
	if c.CandidatePoolSize < 1 {
		return errors.New("retrieval config: CandidatePoolSize must be >= 1")
	}
	if c.MaxResults < 1 {
		return errors.New("retrieval config: MaxResults must be >= 1")
	}
	return nil
}

// Retriever answers fragment queries with tiered fallback.
type Retriever struct {
	fragments storage.FragmentStore
	embedder  ai.Embedder
	config    *Config
	logger    *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a retriever. A nil config uses DefaultConfig.
func NewRetriever(
	fragments storage.FragmentStore,
	embedder ai.Embedder,
	config *Config,
	opts ...Option,
) (*Retriever, error) {
	if fragments == nil {
		return nil, ErrFragmentStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	r := &Retriever{
		fragments: fragments,
		embedder:  embedder,
		config:    config,
		logger:    slog.Default().With("component", "retrieval"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Retrieve finds fragments for the query within scope.
func (r *Retriever) Retrieve(ctx context.Context, query string, themeCodes []string, scope string) (*Result, error) {
	return r.RetrieveWithMonitor(ctx, query, themeCodes, scope, nil)
}

// RetrieveWithMonitor finds fragments for the query with monitoring. The
// monitor receives callbacks as each tier runs. themeCodes are the dream's
// matched theme codes; an empty list skips the theme tier entirely.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, query string, themeCodes []string, scope string, monitor RetrievalMonitor) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query, themeCodes)

	if fragments := r.themeTier(ctx, themeCodes, scope, monitor); len(fragments) > 0 {
		result := &Result{Fragments: fragments, Method: MethodThemeAssociation}
		monitor.Finish(result)
		return result, nil
	}

	if fragments := r.semanticTier(ctx, query, scope, monitor); len(fragments) > 0 {
		result := &Result{Fragments: fragments, Method: MethodSemantic}
		monitor.Finish(result)
		return result, nil
	}

	if fragments := r.lexicalTier(ctx, query, scope, monitor); len(fragments) > 0 {
		result := &Result{Fragments: fragments, Method: MethodLexical}
		monitor.Finish(result)
		return result, nil
	}

	result := &Result{Fragments: []*core.Fragment{}, Method: MethodNone}
	monitor.Finish(result)
	return result, nil
}

// themeTier resolves the dream's matched themes to linked fragments. Each
// fragment scores as its best link; ties break by fragment ID.
func (r *Retriever) themeTier(ctx context.Context, themeCodes []string, scope string, monitor RetrievalMonitor) []*core.Fragment {
	if len(themeCodes) == 0 {
		return nil
	}

	links, err := r.fragments.LinksByThemes(ctx, themeCodes, r.config.SimilarityFloor)
	if err != nil {
		r.logger.Warn("theme tier failed, falling through", "err", err)
		monitor.TierSkipped(MethodThemeAssociation, err)
		return nil
	}
	if len(links) == 0 {
		return nil
	}

	// A fragment linked to several matched themes counts once, at its
	// strongest association.
	best := make(map[core.ID]float32)
	for _, link := range links {
		if score, ok := best[link.FragmentId]; !ok || link.Score > score {
			best[link.FragmentId] = link.Score
		}
	}

	ids := make([]core.ID, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}

	candidates, err := r.fragments.GetFragments(ctx, ids...)
	if err != nil {
		r.logger.Warn("theme tier fragment lookup failed, falling through", "err", err)
		monitor.TierSkipped(MethodThemeAssociation, err)
		return nil
	}

	// Scope narrows the candidate set before the pool cut, so an
	// out-of-scope fragment can never crowd out an in-scope one.
	if scope != "" {
		candidates = slices.DeleteFunc(candidates, func(f *core.Fragment) bool {
			return f.Scope != scope
		})
	}

	// GetFragments does not preserve request order; rank by link score.
	slices.SortFunc(candidates, func(a, b *core.Fragment) int {
		if best[a.Id] != best[b.Id] {
			if best[a.Id] > best[b.Id] {
				return -1
			}
			return 1
		}
		if a.Id < b.Id {
			return -1
		}
		if a.Id > b.Id {
			return 1
		}
		return 0
	})
	if len(candidates) > r.config.CandidatePoolSize {
		candidates = candidates[:r.config.CandidatePoolSize]
	}
	if len(candidates) > r.config.MaxResults {
		candidates = candidates[:r.config.MaxResults]
	}

	monitor.AfterThemeTier(candidates)
	return candidates
}

// semanticTier embeds the query and ranks fragments by vector similarity.
func (r *Retriever) semanticTier(ctx context.Context, query, scope string, monitor RetrievalMonitor) []*core.Fragment {
	vector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		r.logger.Warn("semantic tier embedding failed, falling through", "err", err)
		monitor.TierSkipped(MethodSemantic, err)
		return nil
	}

	hits, err := r.fragments.FindSimilar(ctx, scope, vector, r.config.SemanticThreshold, r.config.MaxResults)
	if err != nil {
		r.logger.Warn("semantic tier search failed, falling through", "err", err)
		monitor.TierSkipped(MethodSemantic, err)
		return nil
	}
	monitor.AfterSemanticTier(hits)

	fragments := make([]*core.Fragment, len(hits))
	for i, hit := range hits {
		fragments[i] = hit.Fragment
	}
	return fragments
}

// lexicalTier falls back to plain keyword search.
func (r *Retriever) lexicalTier(ctx context.Context, query, scope string, monitor RetrievalMonitor) []*core.Fragment {
	fragments, err := r.fragments.SearchText(ctx, scope, query, r.config.MaxResults)
	if err != nil {
		r.logger.Warn("lexical tier failed", "err", err)
		monitor.TierSkipped(MethodLexical, err)
		return nil
	}
	monitor.AfterLexicalTier(fragments)
	return fragments
}
