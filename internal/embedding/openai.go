// Package embedding produces text embeddings through Azure OpenAI or OpenAI.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
)

var (
	// ErrEmptyText is returned before calling the provider with no input
	ErrEmptyText = errors.New("embedding input is empty")

	// ErrEmptyResponse is returned when the provider answers without vectors
	ErrEmptyResponse = errors.New("embedding response has no data")

	// ErrUnknownProvider is returned for an unsupported provider name
	ErrUnknownProvider = errors.New("unknown embedding provider")

	// ErrUnsupportedModel is returned when the openai provider is asked for a
	// model other than text-embedding-ada-002
	ErrUnsupportedModel = errors.New("unsupported embedding model")
)

// DefaultModel is the only embedding model requested from the provider. On
// Azure the deployment name selects the actual deployment.
var DefaultModel = openai.AdaEmbeddingV2

// Config configures the embedding provider.
type Config struct {
	Provider   string        `yaml:"provider"` // azure, openai
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"api_key"`
	APIVersion string        `yaml:"api_version"`
	Deployment string        `yaml:"deployment"` // Azure deployment name; for openai empty or text-embedding-ada-002
	Timeout    time.Duration `yaml:"timeout"`
}

// Embedder is anything that turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder calls the embeddings endpoint of Azure OpenAI or OpenAI.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	var clientConfig openai.ClientConfig

	switch cfg.Provider {
	case ProviderAzure, "":
		clientConfig = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		if cfg.APIVersion != "" {
			clientConfig.APIVersion = cfg.APIVersion
		}
		deployment := cfg.Deployment
		clientConfig.AzureModelMapperFunc = func(string) string { return deployment }
	case ProviderOpenAI:
		if err := CheckOpenAIModel(cfg.Deployment); err != nil {
			return nil, err
		}
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		if cfg.Endpoint != "" {
			clientConfig.BaseURL = cfg.Endpoint
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}

	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	model := cfg.Deployment
	if model == "" {
		model = DefaultModel.String()
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// Embed returns the embedding of text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: DefaultModel,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp.Data[0].Embedding, nil
}

// CheckOpenAIModel rejects models the openai provider cannot request.
func CheckOpenAIModel(model string) error {
	if model != "" && model != DefaultModel.String() {
		return fmt.Errorf("%w: %s (only %s)", ErrUnsupportedModel, model, DefaultModel)
	}
	return nil
}

// Model returns the Azure deployment or the openai model name.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}
