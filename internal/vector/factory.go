package vector

import (
	"fmt"
	"net/http"
	"time"

	"github.com/localrivet/schemarecall/internal/errortypes"
)

// Provider names accepted by NewEmbedder.
const (
	ProviderMock      = "mock"
	ProviderOpenAI    = "openai"
	ProviderDashScope = "dashscope"
)

// ProviderConfig holds the settings common to all embedding providers.
type ProviderConfig struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
	// Timeout bounds each HTTP round trip when HTTPClient is nil. Zero
	// means no client-side limit.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewEmbedder returns an initialized embedder for the configured provider.
func NewEmbedder(cfg ProviderConfig) (Embedder, error) {
	var opts []Option
	if cfg.Model != "" {
		opts = append(opts, WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.Dimensions > 0 {
		opts = append(opts, WithDimensions(cfg.Dimensions))
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	opts = append(opts, WithHTTPClient(client))

	var emb Embedder
	switch cfg.Provider {
	case ProviderMock, "":
		dim := cfg.Dimensions
		if dim <= 0 {
			dim = DefaultEmbeddingDimensions
		}
		emb = NewMockEmbedder(dim)
	case ProviderOpenAI:
		emb = NewOpenAIEmbedder(cfg.APIKey, opts...)
	case ProviderDashScope:
		emb = NewDashScopeEmbedder(cfg.APIKey, opts...)
	default:
		return nil, errortypes.ConfigError(fmt.Errorf("unknown provider: %s", cfg.Provider), "cannot create embedder")
	}

	if err := emb.Initialize(); err != nil {
		return nil, err
	}
	return emb, nil
}
