package together

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"promptpix/internal/domain"
	"promptpix/internal/infra"
)

const (
	serviceName    = "Together"
	defaultBaseURL = "https://api.together.xyz"
	defaultModel   = "black-forest-labs/FLUX.1-schnell-Free"
	responseFormat = "b64_json"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("together: api key is required")

// Options configures the Together AI image generation client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Together AI text-to-image endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// generationRequest forwards caller values untouched; absent ones are omitted.
type generationRequest struct {
	Model          string          `json:"model"`
	Prompt         json.RawMessage `json:"prompt,omitempty"`
	Width          json.RawMessage `json:"width,omitempty"`
	Height         json.RawMessage `json:"height,omitempty"`
	Steps          json.RawMessage `json:"steps,omitempty"`
	N              json.RawMessage `json:"n,omitempty"`
	ResponseFormat string          `json:"response_format"`
}

type generationResponse struct {
	ID   string `json:"id"`
	Data []struct {
		Index   int    `json:"index"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Generate requests base64 output for req and returns the first image. The call
// is attempted exactly once.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	payload := generationRequest{
		Model:          c.model,
		Prompt:         req.Prompt,
		Width:          req.Width,
		Height:         req.Height,
		Steps:          req.Steps,
		N:              req.N,
		ResponseFormat: responseFormat,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("together: encode request: %w", err)
	}
	endpoint := c.baseURL + "/v1/images/generations"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("together: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewTransportError(serviceName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewTransportError(serviceName, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var decoded generationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &domain.ContractViolation{Service: serviceName, Detail: "body is not valid JSON"}
	}
	if len(decoded.Data) == 0 {
		return nil, &domain.ContractViolation{Service: serviceName, Detail: "data is empty"}
	}
	image := strings.TrimSpace(decoded.Data[0].B64JSON)
	if image == "" {
		return nil, &domain.ContractViolation{Service: serviceName, Detail: "data[0].b64_json is missing"}
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("generation_id", decoded.ID).
		Int("images", len(decoded.Data)).
		Dur("took", time.Since(start)).
		Msg("together: generated image")
	return &domain.GenerationResult{ImageData: image}, nil
}
