package openaiEmbedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/faults"
	"github.com/yixin-zhu/yx-chatbot/internal/rag/embedding"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

var logger *logger_i.Logger
var once sync.Once
var embeddingClient *client

// client speaks the OpenAI embeddings wire format, which the configured
// provider (Zhipu by default) is compatible with.
type client struct {
	api   openai.Client
	model string
}

func GetOpenAIEmbeddingClient(modelName string, apiKey string) embedding.Embedder {
	once.Do(func() {
		logger = logger_i.NewLogger("openai_embedding")
		if apiKey == "" {
			logger.Error("Embedding API key is empty")
			return
		}
		api := openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(config.EmbeddingBaseURL()),
		)
		embeddingClient = &client{
			api:   api,
			model: modelName,
		}
		logger.Info("Embedding client created", "model", modelName, "baseURL", config.EmbeddingBaseURL())
	})

	if embeddingClient == nil {
		return nil
	}
	return &client{api: embeddingClient.api, model: embeddingClient.model}
}

func (c *client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))
	if len(texts) == 0 {
		return nil, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, config.EmbeddingCallTimeout)
	defer cancel()

	resp, err := c.api.Embeddings.New(callCtx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openai.EmbeddingModel(c.model),
		Dimensions:     openai.Int(int64(config.EmbeddingDimension)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		log.Error("Embedding call failed", "batchSize", len(texts), "error", err)
		return nil, fmt.Errorf("%w: embedding call: %v", faults.ErrExternalService, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", faults.ErrExternalService, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= int64(len(texts)) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", faults.ErrExternalService, item.Index)
		}
		vector := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vector[i] = float32(v)
		}
		vectors[item.Index] = vector
	}
	return vectors, nil
}
