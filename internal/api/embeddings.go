package api

import (
	"context"
	"fmt"

	"github.com/lamim/uxie/internal/config"
)

// Embed returns one vector per input, in input order
func (c *Client) Embed(
	ctx context.Context,
	modelCfg config.ModelConfig,
	apiKey string,
	inputs []string,
) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	req := EmbeddingRequest{
		Model:      modelCfg.ModelName,
		Input:      inputs,
		Dimensions: modelCfg.Dimensions,
	}

	var out EmbeddingResponse
	err := c.execute(ctx, modelCfg, func(ctx context.Context) error {
		return c.postJSON(ctx, endpointURL(modelCfg.BaseURL, "embeddings"), apiKey, req, &out)
	})
	if err != nil {
		return nil, err
	}

	if len(out.Data) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(out.Data))
	}

	vectors := make([][]float32, len(inputs))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(inputs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Embedder turns texts into vectors
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// ModelEmbedder binds a Client to one embedding model
type ModelEmbedder struct {
	client *Client
	model  config.ModelConfig
	apiKey string
}

// NewModelEmbedder creates an Embedder for a configured embedding model
func NewModelEmbedder(client *Client, model config.ModelConfig, apiKey string) *ModelEmbedder {
	return &ModelEmbedder{client: client, model: model, apiKey: apiKey}
}

// Embed implements Embedder
func (e *ModelEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return e.client.Embed(ctx, e.model, e.apiKey, inputs)
}
