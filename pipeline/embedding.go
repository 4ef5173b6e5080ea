package pipeline

import (
	"context"
	"time"

	"github.com/somnolabs/oneiro/core"
)

// embedChunks embeds chunks in fixed-size batches. A batch that errors or
// returns the wrong number of vectors is logged and dropped; the remaining
// batches still run. Returns ErrNoEmbeddings only when every batch failed.
func (p *Processor) embedChunks(ctx context.Context, chunks []core.Chunk) ([]core.Embedding, error) {
	embeddings := make([]core.Embedding, 0, len(chunks))
	batchSize := p.config.EmbeddingBatchSize

	for start := 0; start < len(chunks); start += batchSize {
		if start > 0 && p.config.BatchDelay > 0 {
			if err := sleepCtx(ctx, p.config.BatchDelay); err != nil {
				return nil, err
			}
		}

		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		began := time.Now()
		vectors, err := p.embedder.EmbedTexts(ctx, texts)
		latency := time.Since(began)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn("embedding batch failed",
				"dreamId", batch[0].DreamId,
				"batchStart", start,
				"batchSize", len(batch),
				"error", err)
			continue
		}
		if len(vectors) != len(batch) {
			p.logger.Warn("embedding batch returned wrong vector count",
				"dreamId", batch[0].DreamId,
				"batchStart", start,
				"expected", len(batch),
				"got", len(vectors))
			continue
		}

		now := time.Now().UTC()
		perChunk := latency.Milliseconds() / int64(len(batch))
		for i, chunk := range batch {
			embeddings = append(embeddings, core.Embedding{
				DreamId:    chunk.DreamId,
				ChunkIndex: chunk.Index,
				Start:      chunk.Start,
				End:        chunk.End,
				Vector:     vectors[i],
				Model:      p.config.Model,
				LatencyMs:  perChunk,
				CreatedAt:  now,
			})
		}
	}

	if len(embeddings) == 0 && len(chunks) > 0 {
		return nil, ErrNoEmbeddings
	}
	return embeddings, nil
}

// sleepCtx waits for the given duration unless the context is cancelled
// first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
