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


// Package chunker splits dream transcripts into token-bounded, overlapping
// segments sized to fit the embedding model's input ceiling.
//
// Splitting prefers paragraph boundaries and carries a token-bounded suffix
// of each closed chunk into the next one as backward overlap, so semantic
// continuity survives the cut. Chunking is deterministic: identical text and
// configuration always produce identical boundaries.
package chunker

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/somnolabs/oneiro/core"
)

// Config holds the chunking parameters. All sizes are in estimated tokens;
// character equivalents are derived via CharsPerToken.
type Config struct {
	// MaxTokensPerChunk is the hard ceiling. Text estimated at or below
	// this size is returned as a single chunk.
	MaxTokensPerChunk int

	// ChunkSizeTokens is the target size a chunk is closed at when
	// splitting. Must be <= MaxTokensPerChunk.
	ChunkSizeTokens int

	// OverlapTokens is the suffix of a closed chunk carried into the next
	// chunk. Must be < ChunkSizeTokens.
	OverlapTokens int

	// CharsPerToken is the fixed approximation constant for token
	// estimation.
	CharsPerToken int
}

// DefaultConfig returns chunking parameters tuned for small embedding models.
func DefaultConfig() *Config {
	return &Config{
		MaxTokensPerChunk: 250,
		ChunkSizeTokens:   200,
		OverlapTokens:     25,
		CharsPerToken:     4,
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.CharsPerToken < 1 {
		return errors.New("chunker config: CharsPerToken must be >= 1")
	}
	if c.MaxTokensPerChunk < 1 {
		return errors.New("chunker config: MaxTokensPerChunk must be >= 1")
	}
	if c.ChunkSizeTokens < 1 || c.ChunkSizeTokens > c.MaxTokensPerChunk {
		return errors.New("chunker config: ChunkSizeTokens must be in [1, MaxTokensPerChunk]")
	}
	if c.OverlapTokens < 0 || c.OverlapTokens >= c.ChunkSizeTokens {
		return errors.New("chunker config: OverlapTokens must be in [0, ChunkSizeTokens)")
	}
	return nil
}

// paragraphSep matches blank-line paragraph separators.
var paragraphSep = regexp.MustCompile(`\n[ \t]*\n+`)

// Chunker splits text into ordered, overlapping chunks.
type Chunker struct {
	config *Config
}

// New creates a Chunker with the given configuration.
// A nil config uses DefaultConfig.
func New(config *Config) (*Chunker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: config}, nil
}

// Chunk splits text into ordered chunks for the given dream.
//
// Text estimated at or below MaxTokensPerChunk yields exactly one chunk
// spanning the whole input. Larger text is cut at paragraph boundaries near
// the ChunkSizeTokens target, falling back to a hard character split when a
// single paragraph exceeds the target. Each chunk after the first starts
// OverlapTokens worth of characters before the previous chunk's end, so the
// union of spans minus declared overlaps reconstructs the input exactly.
func (c *Chunker) Chunk(dreamId core.ID, text string) ([]core.Chunk, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: nothing to chunk", core.ErrEmptyText)
	}

	cfg := c.config
	if core.EstimateTokens(text, cfg.CharsPerToken) <= cfg.MaxTokensPerChunk {
		chunk := c.makeChunk(dreamId, text, 0, 0, len(text))
		chunk.TotalChunks = 1
		return []core.Chunk{chunk}, nil
	}

	chunkChars := cfg.ChunkSizeTokens * cfg.CharsPerToken
	overlapChars := cfg.OverlapTokens * cfg.CharsPerToken
	boundaries := paragraphBoundaries(text)

	var chunks []core.Chunk
	start := 0
	for core.EstimateTokens(text[start:], cfg.CharsPerToken) > cfg.MaxTokensPerChunk {
		end := cutPoint(boundaries, start, start+chunkChars)
		chunks = append(chunks, c.makeChunk(dreamId, text, len(chunks), start, end))

		next := end - overlapChars
		if next <= start {
			next = start + 1
		}
		start = next
	}
	chunks = append(chunks, c.makeChunk(dreamId, text, len(chunks), start, len(text)))

	// Backfill totals and neighbor overlaps now that the count is known.
	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
		if i+1 < len(chunks) {
			overlap := chunks[i].End - chunks[i+1].Start
			chunks[i].OverlapNext = overlap
			chunks[i+1].OverlapPrev = overlap
		}
	}

	return chunks, nil
}

func (c *Chunker) makeChunk(dreamId core.ID, text string, index, start, end int) core.Chunk {
	return core.Chunk{
		DreamId:       dreamId,
		Index:         index,
		Start:         start,
		End:           end,
		TokenEstimate: core.EstimateTokens(text[start:end], c.config.CharsPerToken),
		Text:          text[start:end],
	}
}

// paragraphBoundaries returns offsets immediately after each paragraph
// separator, i.e. the positions a chunk may be cut at while keeping the
// separator inside the left-hand chunk.
func paragraphBoundaries(text string) []int {
	matches := paragraphSep.FindAllStringIndex(text, -1)
	boundaries := make([]int, 0, len(matches))
	for _, m := range matches {
		boundaries = append(boundaries, m[1])
	}
	return boundaries
}

// cutPoint picks the furthest paragraph boundary within (start, limit].
// When no boundary fits, the chunk is hard-cut at limit.
func cutPoint(boundaries []int, start, limit int) int {
	cut := -1
	for _, b := range boundaries {
		if b <= start {
			continue
		}
		if b > limit {
			break
		}
		cut = b
	}
	if cut == -1 {
		return limit
	}
	return cut
}
