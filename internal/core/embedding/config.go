package embedding

import (
	"fmt"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/models"
)

const defaultAzureAPIVersion = "2024-02-01"

// Defaults are the server-wide credentials user settings fall back to.
type Defaults struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int

	AzureAPIKey     string
	AzureEndpoint   string
	AzureDeployment string
	AzureAPIVersion string
}

func (d Defaults) azureComplete() bool {
	return d.AzureAPIKey != "" && d.AzureEndpoint != "" && d.AzureDeployment != ""
}

// Resolve merges user settings over d for the given provider selector.
// settings may be nil.
func Resolve(selector string, settings *models.UserSettings, d Defaults) (core.EmbeddingConfig, error) {
	switch selector {
	case core.ProviderHosted:
	case core.ProviderLocal:
		return core.EmbeddingConfig{}, fmt.Errorf("%w: local embeddings are not available in this deployment, use %q",
			core.ErrNotSupported, core.ProviderHosted)
	default:
		return core.EmbeddingConfig{}, fmt.Errorf("%w: unknown embedding provider %q", core.ErrInvalidRequest, selector)
	}
	if settings == nil {
		settings = &models.UserSettings{}
	}

	cfg := core.EmbeddingConfig{
		Provider:   core.ProviderHosted,
		Model:      d.Model,
		BaseURL:    d.BaseURL,
		Dimensions: d.Dimensions,
	}

	directKey := firstNonEmpty(settings.OpenAIAPIKey, d.APIKey)
	useAzure := settings.UseAzureOpenAI || (directKey == "" && d.azureComplete())
	if useAzure {
		cfg.Azure = &core.AzureDeployment{
			Endpoint:   firstNonEmpty(settings.AzureOpenAIEndpoint, d.AzureEndpoint),
			Deployment: firstNonEmpty(settings.AzureEmbeddingsID, d.AzureDeployment),
			APIVersion: firstNonEmpty(d.AzureAPIVersion, defaultAzureAPIVersion),
			APIKey:     firstNonEmpty(settings.AzureOpenAIAPIKey, d.AzureAPIKey),
		}
		if !cfg.HasCredentials() {
			return core.EmbeddingConfig{}, fmt.Errorf("%w: Azure OpenAI embeddings need an API key, endpoint and deployment id; configure them or use local embeddings",
				core.ErrMissingCredentials)
		}
		return cfg, nil
	}

	cfg.APIKey = directKey
	if !cfg.HasCredentials() {
		return core.EmbeddingConfig{}, fmt.Errorf("%w: no OpenAI API key configured; configure an API key or use local embeddings",
			core.ErrMissingCredentials)
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
