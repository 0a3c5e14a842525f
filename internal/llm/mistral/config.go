package mistral

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/invoice-reader/internal/common"
)

const (
	DefaultBaseURL = "https://api.mistral.ai/v1"
	DefaultModel   = "mistral-large-latest"
)

// Config for the Mistral client.
type Config struct {
	APIKey       string
	BaseURL      string        // default https://api.mistral.ai/v1
	Model        string        // default mistral-large-latest
	Temperature  float32       // 0..1
	Timeout      time.Duration // http client timeout
	StrictSchema bool          // json_schema.strict on structured calls
}

// ConfigFrom maps environment-backed settings onto a client config.
func ConfigFrom(c common.LLMConfig) Config {
	return Config{
		APIKey:       c.APIKey,
		BaseURL:      c.BaseURL,
		Model:        c.Model,
		Temperature:  c.Temperature,
		Timeout:      c.Timeout,
		StrictSchema: true,
	}
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient never reads the environment; a missing key is a configuration error.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, common.NewConfigError("mistral api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

func (c *Client) Model() string { return c.cfg.Model }
