package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/commonModels"
	"github.com/yixin-zhu/yx-chatbot/internal/faults"
)

// vectorize pairs every unit with its vector, calling the embedder in
// fixed-size batches. A batch that exhausts its retries fails the whole file:
// a partially vectorized document would surface as silent "no match" holes in
// search.
func (p *Processor) vectorize(ctx context.Context, units []commonModels.RetrievalUnit) error {
	batchSize := config.EmbeddingBatchSize

	for i := 0; i < len(units); i += batchSize {
		end := i + batchSize
		if end > len(units) {
			end = len(units)
		}
		batch := units[i:end]

		texts := make([]string, len(batch))
		for j, unit := range batch {
			texts[j] = unit.Content
		}

		vectors, err := p.embedWithRetry(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch at unit %d: %w", batch[0].UnitId, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("%w: got %d vectors for %d units", faults.ErrExternalService, len(vectors), len(batch))
		}

		for j, vector := range vectors {
			//a wrong dimension is a hard failure, never truncated or padded
			if len(vector) != config.EmbeddingDimension {
				return fmt.Errorf("%w: vector dimension %d, expected %d", faults.ErrExternalService, len(vector), config.EmbeddingDimension)
			}
			units[i+j].Vector = vector
		}
	}
	return nil
}

func (p *Processor) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	var err error
	for attempt := 1; attempt <= config.EmbeddingMaxRetries; attempt++ {
		vectors, err = p.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		p.logger.Warn("Embedding batch failed", "attempt", attempt, "batchSize", len(texts), "error", err)
		if attempt < config.EmbeddingMaxRetries {
			select {
			case <-time.After(config.EmbeddingRetryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, err
}
