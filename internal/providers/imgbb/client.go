package imgbb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"promptpix/internal/domain"
	"promptpix/internal/infra"
)

const (
	serviceName    = "ImgBB"
	defaultBaseURL = "https://api.imgbb.com"

	// ImgBB accepts expirations between one minute and 180 days.
	minExpiration = 60
	maxExpiration = 15552000
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("imgbb: api key is required")

// Options configures the ImgBB upload client. Expiration is in seconds; zero
// keeps uploads forever.
type Options struct {
	APIKey         string
	BaseURL        string
	Expiration     int
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client uploads base64 images to ImgBB.
type Client struct {
	apiKey     string
	baseURL    string
	expiration int
	httpClient *http.Client
	logger     *infra.Logger
}

type uploadResponse struct {
	Data *struct {
		ID        string `json:"id"`
		URL       string `json:"url"`
		DeleteURL string `json:"delete_url"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
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
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		expiration: clampExpiration(opts.Expiration),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Upload posts the base64 image as a form-encoded body and returns the hosted
// location. The call is attempted exactly once.
func (c *Client) Upload(ctx context.Context, imageBase64 string) (*domain.HostedImage, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	form := url.Values{}
	form.Set("key", c.apiKey)
	form.Set("image", imageBase64)
	if c.expiration > 0 {
		form.Set("expiration", strconv.Itoa(c.expiration))
	}

	endpoint := c.baseURL + "/1/upload"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("imgbb: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

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

	hosted, err := decodeUpload(raw)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("url", hosted.URL).
		Str("delete_url", hosted.DeleteURL).
		Dur("took", time.Since(start)).
		Msg("imgbb: uploaded image")
	return hosted, nil
}

// decodeUpload validates the nested data.url field instead of trusting the shape.
func decodeUpload(raw []byte) (*domain.HostedImage, error) {
	var decoded uploadResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &domain.ContractViolation{Service: serviceName, Detail: "body is not valid JSON"}
	}
	if decoded.Data == nil {
		return nil, &domain.ContractViolation{Service: serviceName, Detail: "data is missing"}
	}
	hostedURL := strings.TrimSpace(decoded.Data.URL)
	if hostedURL == "" {
		return nil, &domain.ContractViolation{Service: serviceName, Detail: "data.url is missing"}
	}
	if parsed, err := url.Parse(hostedURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &domain.ContractViolation{Service: serviceName, Detail: fmt.Sprintf("data.url %q is not an absolute url", hostedURL)}
	}
	return &domain.HostedImage{
		URL:       hostedURL,
		DeleteURL: strings.TrimSpace(decoded.Data.DeleteURL),
	}, nil
}

func clampExpiration(seconds int) int {
	switch {
	case seconds <= 0:
		return 0
	case seconds < minExpiration:
		return minExpiration
	case seconds > maxExpiration:
		return maxExpiration
	default:
		return seconds
	}
}
