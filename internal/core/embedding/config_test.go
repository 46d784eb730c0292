package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/models"
)

var defaults = Defaults{Model: "text-embedding-3-small", Dimensions: 1536}

func TestResolveLocalIsNotSupported(t *testing.T) {
	_, err := Resolve(core.ProviderLocal, nil, defaults)
	assert.ErrorIs(t, err, core.ErrNotSupported)
}

func TestResolveUnknownSelector(t *testing.T) {
	_, err := Resolve("gpu-cluster", nil, defaults)
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestResolveMissingKey(t *testing.T) {
	_, err := Resolve(core.ProviderHosted, &models.UserSettings{}, defaults)
	require.ErrorIs(t, err, core.ErrMissingCredentials)
	assert.Contains(t, err.Error(), "use local embeddings")
}

func TestResolveUserKeyOverridesDefault(t *testing.T) {
	d := defaults
	d.APIKey = "server-key"
	cfg, err := Resolve(core.ProviderHosted, &models.UserSettings{OpenAIAPIKey: "user-key"}, d)
	require.NoError(t, err)
	assert.Equal(t, "user-key", cfg.APIKey)
	assert.Nil(t, cfg.Azure)
	assert.Equal(t, "hosted:text-embedding-3-small", cfg.Tag())
	assert.Equal(t, 1536, cfg.Dimensions)
}

func TestResolveServerDefaultKey(t *testing.T) {
	d := defaults
	d.APIKey = "server-key"
	cfg, err := Resolve(core.ProviderHosted, nil, d)
	require.NoError(t, err)
	assert.Equal(t, "server-key", cfg.APIKey)
}

func TestResolveAzureFromSettings(t *testing.T) {
	settings := &models.UserSettings{
		UseAzureOpenAI:      true,
		AzureOpenAIAPIKey:   "az",
		AzureOpenAIEndpoint: "https://team.openai.azure.com",
		AzureEmbeddingsID:   "embeddings",
	}
	cfg, err := Resolve(core.ProviderHosted, settings, defaults)
	require.NoError(t, err)
	require.NotNil(t, cfg.Azure)
	assert.Equal(t, "embeddings", cfg.Azure.Deployment)
	assert.Equal(t, defaultAzureAPIVersion, cfg.Azure.APIVersion)
	assert.Equal(t, "hosted:text-embedding-3-small", cfg.Tag())
}

func TestResolveAzureIncomplete(t *testing.T) {
	settings := &models.UserSettings{UseAzureOpenAI: true, AzureOpenAIAPIKey: "az"}
	_, err := Resolve(core.ProviderHosted, settings, defaults)
	assert.ErrorIs(t, err, core.ErrMissingCredentials)
}

func TestResolveAzureServerDefaultsWhenNoDirectKey(t *testing.T) {
	d := defaults
	d.AzureAPIKey, d.AzureEndpoint, d.AzureDeployment = "az", "https://x.openai.azure.com", "emb"
	cfg, err := Resolve(core.ProviderHosted, nil, d)
	require.NoError(t, err)
	require.NotNil(t, cfg.Azure)
	assert.Equal(t, "emb", cfg.Azure.Deployment)
}
