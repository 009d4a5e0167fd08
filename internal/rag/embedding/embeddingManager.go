package embedding

import "context"

// Embedder produces one vector per input text, in input order. Batch size
// limits and retry budgets are the caller's concern.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
