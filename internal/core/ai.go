package core

import "context"

// Embedding provider selectors accepted by the ingestion trigger.
const (
	ProviderHosted = "hosted"
	ProviderLocal  = "local"
)

// AzureDeployment addresses an Azure-style embedding deployment.
type AzureDeployment struct {
	Endpoint   string
	Deployment string
	APIVersion string
	APIKey     string
}

// EmbeddingConfig is resolved once per run and handed to the embedding client.
// Exactly one of APIKey (direct) or Azure is used.
type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Azure      *AzureDeployment
	Dimensions int
}

// Tag identifies the embedding space vectors produced with this config belong to.
// A direct key and an Azure deployment of the same model share a space.
func (c EmbeddingConfig) Tag() string {
	return c.Provider + ":" + c.Model
}

// HasCredentials reports whether the config can authenticate against its endpoint.
func (c EmbeddingConfig) HasCredentials() bool {
	if c.Azure != nil {
		return c.Azure.APIKey != "" && c.Azure.Endpoint != "" && c.Azure.Deployment != ""
	}
	return c.APIKey != ""
}

type EmbeddingProvider interface {
	EmbedBatch(ctx context.Context, texts []string, cfg EmbeddingConfig) ([][]float32, error)
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
