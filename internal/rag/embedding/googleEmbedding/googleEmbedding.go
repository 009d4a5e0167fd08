package googleEmbedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/faults"
	"github.com/yixin-zhu/yx-chatbot/internal/rag/embedding"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

var logger *logger_i.Logger
var once sync.Once
var embeddingClient *client
var dimension int32 = config.EmbeddingDimension

// Alternate embedder for deployments keyed to Google instead of the
// OpenAI-compatible endpoint. Selected via EMBEDDING_PROVIDER=google.
type client struct {
	genAi *genai.Client
	model string
}

func newGoogleEmbedder(ctx context.Context, modelName string, apikey string) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
	if err != nil {
		logger.Error("Error creating Google Embedding client:", err)
	}
	if c != nil {
		embeddingClient = &client{
			genAi: c,
			model: modelName,
		}
		logger.Info("Google Embedding client created", "model", modelName)
		go closeClient(ctx, embeddingClient)
	}
}

func closeClient(ctx context.Context, embeddingClient *client) {
	<-ctx.Done()
	logger.Info("Closing Google Embedding client")
	embeddingClient.genAi = nil
	embeddingClient.model = ""
}

func GetGoogleEmbeddingClient(ctx context.Context, modelName string, apikey string) embedding.Embedder {
	once.Do(func() {
		logger = logger_i.NewLogger("google_embedding")
		newGoogleEmbedder(ctx, modelName, apikey)
	})

	//if init still fails
	if embeddingClient == nil {
		return nil
	}
	return &client{genAi: embeddingClient.genAi, model: embeddingClient.model}
}

func (c *client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))
	if len(texts) == 0 {
		return nil, nil
	}

	res, err := c.doCall(ctx, getContent(texts))
	if err != nil || res == nil {
		if doRetry(err, log) {
			log.Debug("Retrying in 5 seconds")
			time.Sleep(5 * time.Second)
			res, err = c.doCall(ctx, getContent(texts))
		}
		if err != nil || res == nil {
			log.Error("Error getting Embeddings from Google", "error", err)
			return nil, fmt.Errorf("%w: google embedding call: %v", faults.ErrExternalService, err)
		}
	}

	vectors := make([][]float32, 0, len(res.Embeddings))
	for _, r := range res.Embeddings {
		vectors = append(vectors, r.Values)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", faults.ErrExternalService, len(vectors), len(texts))
	}
	return vectors, nil
}

func (c *client) doCall(ctx context.Context, content []*genai.Content) (*genai.EmbedContentResponse, error) {
	result, err := c.genAi.Models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{OutputDimensionality: &dimension, TaskType: "RETRIEVAL_DOCUMENT"})
	return result, err
}
