package vector

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/localrivet/schemarecall/internal/errortypes"
)

// Embedding models and endpoints known to work with OpenAIEmbedder.
const (
	ModelOpenAI3Small = "text-embedding-3-small"
	ModelOpenAIAda002 = "text-embedding-ada-002"
	ModelDashScopeV3  = "text-embedding-v3"

	OpenAIBaseURL    = "https://api.openai.com/v1"
	DashScopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
)

// ErrMissingAPIKey is returned by Initialize when no credentials are configured.
var ErrMissingAPIKey = errors.New("embedding api key not provided")

type openAIConfig struct {
	name       string
	model      string
	dimensions int
	baseURL    string
	httpClient *http.Client
}

// Option configures an OpenAIEmbedder.
type Option func(*openAIConfig)

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(c *openAIConfig) { c.model = model }
}

// WithDimensions requests a specific output size. Zero leaves the choice to
// the model; fixed-size models such as ada-002 reject the parameter.
func WithDimensions(dim int) Option {
	return func(c *openAIConfig) { c.dimensions = dim }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *openAIConfig) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client. Transport concerns such as TLS
// and proxies belong to the client passed here.
func WithHTTPClient(client *http.Client) Option {
	return func(c *openAIConfig) { c.httpClient = client }
}

// OpenAIEmbedder implements Embedder against any OpenAI-compatible
// embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	apiKey string
	cfg    openAIConfig
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder for the OpenAI embeddings API.
func NewOpenAIEmbedder(apiKey string, opts ...Option) *OpenAIEmbedder {
	return newOpenAICompatible(apiKey, openAIConfig{
		name:       ProviderOpenAI,
		model:      ModelOpenAI3Small,
		baseURL:    OpenAIBaseURL,
		httpClient: http.DefaultClient,
	}, opts)
}

// NewDashScopeEmbedder creates an embedder for Aliyun DashScope's
// OpenAI-compatible mode, defaulting to text-embedding-v3.
func NewDashScopeEmbedder(apiKey string, opts ...Option) *OpenAIEmbedder {
	return newOpenAICompatible(apiKey, openAIConfig{
		name:       ProviderDashScope,
		model:      ModelDashScopeV3,
		baseURL:    DashScopeBaseURL,
		httpClient: http.DefaultClient,
	}, opts)
}

func newOpenAICompatible(apiKey string, cfg openAIConfig, opts []Option) *OpenAIEmbedder {
	for _, o := range opts {
		o(&cfg)
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
		option.WithHTTPClient(cfg.httpClient),
		option.WithMaxRetries(0),
	)

	return &OpenAIEmbedder{
		client: &client,
		apiKey: apiKey,
		cfg:    cfg,
	}
}

// Initialize checks that credentials and a model are configured.
func (o *OpenAIEmbedder) Initialize() error {
	if o.apiKey == "" {
		return errortypes.ConfigError(ErrMissingAPIKey, o.cfg.name+" embedder is not configured")
	}
	if o.cfg.model == "" {
		return errortypes.ConfigError(errors.New("embedding model not set"), o.cfg.name+" embedder is not configured")
	}
	return nil
}

// Name returns the provider name.
func (o *OpenAIEmbedder) Name() string {
	return o.cfg.name
}

// CreateEmbedding performs one embeddings request for text.
func (o *OpenAIEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errortypes.InputError(errors.New("empty input"), "cannot embed empty text")
	}

	params := openai.EmbeddingNewParams{
		Model:          o.cfg.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if o.cfg.dimensions > 0 {
		params.Dimensions = openai.Int(int64(o.cfg.dimensions))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, errortypes.ProviderError(err, o.cfg.name+" embedding request failed").
			WithField("model", o.cfg.model)
	}

	if len(resp.Data) != 1 {
		err := fmt.Errorf("expected 1 embedding, got %d", len(resp.Data))
		return nil, errortypes.ProviderError(err, "malformed "+o.cfg.name+" embedding response")
	}
	if len(resp.Data[0].Embedding) == 0 {
		return nil, errortypes.ProviderError(errors.New("empty embedding"), "malformed "+o.cfg.name+" embedding response")
	}

	return Float64sToFloat32s(resp.Data[0].Embedding), nil
}
