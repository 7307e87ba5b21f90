package ai

import (
	"context"
	"errors"
)

// Encoder maps text into one shared vector space. Vectors from different
// Encoders must not be compared.
type Encoder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client hands out Encoders for match requests.
type Client interface {
	// Prepare returns the Encoder for one request. corpus holds every text
	// the request is going to embed; remote providers ignore it.
	Prepare(ctx context.Context, corpus []string) (Encoder, error)
	// Dim is the vector length, or 0 when it depends on the corpus.
	Dim() int
	Model() string
}

// Provider is enumeration of supported embedding providers
type Provider string

const (
	ProviderTFIDF    Provider = "tfidf"
	ProviderOpenAI   Provider = "openai"
	ProviderVertexAI Provider = "vertexai"
)

// ClientConfig holds configuration for embedding clients
type ClientConfig struct {
	APIKey     string
	EmbedModel string
	Dim        int
	ProjectID  string
	Provider   Provider
	Location   string

	// IDF is an optional reference corpus for the tfidf provider.
	IDF *IDFTable
}

// ParseProvider maps a configured provider name, including the "google"
// alias, onto a Provider.
func ParseProvider(name string) (Provider, error) {
	switch name {
	case "", "tfidf":
		return ProviderTFIDF, nil
	case "openai":
		return ProviderOpenAI, nil
	case "vertexai", "google":
		return ProviderVertexAI, nil
	default:
		return "", errors.New("unsupported provider: " + name)
	}
}

// NewClient creates a new embedding client based on configuration
func NewClient(ctx context.Context, config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderTFIDF:
		return NewTFIDFClient(config.IDF), nil
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderVertexAI:
		return NewVertexAIClient(ctx, config)
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}
