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


// Package themes matches chunk embeddings against the static theme catalog.
//
// A theme is considered present in a dream if any single chunk matches it
// strongly, so scores aggregate by maximum rather than average across chunks.
package themes

import (
	"errors"
	"math"
	"slices"

	"github.com/somnolabs/oneiro/core"
)

const (
	// DefaultThreshold is the standard minimum similarity for a theme
	// match.
	DefaultThreshold float32 = 0.60

	// DefaultTopK is the standard maximum number of themes per dream.
	DefaultTopK = 5
)

// Matcher scores dreams against the theme catalog by cosine similarity.
type Matcher struct {
	threshold float32
	topK      int
}

// NewMatcher creates a matcher.
// threshold: minimum similarity for a (chunk, theme) pair to count.
// topK: maximum number of themes returned per dream.
func NewMatcher(threshold float32, topK int) (*Matcher, error) {
	if threshold < -1 || threshold > 1 {
		return nil, errors.New("themes: threshold must be in [-1, 1]")
	}
	if topK < 1 {
		return nil, errors.New("themes: topK must be >= 1")
	}
	return &Matcher{threshold: threshold, topK: topK}, nil
}

// Match compares every chunk embedding against every catalog theme and
// returns at most topK theme matches, sorted by score descending with ties
// broken by theme code for determinism. Each theme's score is the maximum
// similarity across the dream's chunks. An empty result is a legitimate
// outcome, not an error.
func (m *Matcher) Match(dreamId core.ID, embeddings []core.Embedding, catalog []core.Theme) []core.ThemeMatch {
	best := make(map[string]core.ThemeMatch)

	for _, emb := range embeddings {
		for _, theme := range catalog {
			score := Cosine(emb.Vector, theme.Vector)
			if score < m.threshold {
				continue
			}
			prev, ok := best[theme.Code]
			if !ok || score > prev.Score {
				best[theme.Code] = core.ThemeMatch{
					DreamId:    dreamId,
					Code:       theme.Code,
					Score:      score,
					ChunkIndex: emb.ChunkIndex,
				}
			}
		}
	}

	matches := make([]core.ThemeMatch, 0, len(best))
	for _, match := range best {
		matches = append(matches, match)
	}

	slices.SortFunc(matches, func(a, b core.ThemeMatch) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		if a.Code < b.Code {
			return -1
		}
		if a.Code > b.Code {
			return 1
		}
		return 0
	})

	if len(matches) > m.topK {
		matches = matches[:m.topK]
	}
	return matches
}

// Cosine computes the cosine similarity dot(a,b) / (|a|*|b|).
// The similarity of a zero-norm vector with anything is defined as 0.
func Cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
