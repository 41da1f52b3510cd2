package docutray

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/hashicorp/go-hclog"
)

// Client defaults.
const (
	DefaultBaseURL        = "https://api.docutray.com"
	DefaultTimeout        = 60 * time.Second
	DefaultConnectTimeout = 5 * time.Second
)

// Environment variables read by New.
const (
	// EnvAPIKey supplies the API key when Config.APIKey is empty.
	EnvAPIKey = "DOCUTRAY_API_KEY"

	// EnvLog, when set to any value, enables a debug logger to stderr if no
	// Config.Logger was provided.
	EnvLog = "DOCUTRAY_LOG"
)

// Config holds configuration for the DocuTray client.
type Config struct {
	// APIKey authenticates requests. Falls back to the DOCUTRAY_API_KEY
	// environment variable when empty.
	APIKey string

	// BaseURL overrides the API endpoint (default: https://api.docutray.com).
	BaseURL string

	// Timeout is the per-request HTTP timeout (default: 60s). It covers a
	// single attempt; retries each get a fresh timeout.
	Timeout time.Duration

	// Retry overrides the retry behavior. Nil uses DefaultRetryConfig.
	// Set &RetryConfig{} for no retries at all.
	Retry *RetryConfig

	// HTTPClient replaces the underlying HTTP client. Timeout is ignored
	// when set.
	HTTPClient *http.Client

	// Logger receives structured diagnostics (optional).
	Logger hclog.Logger
}

// Validate checks configuration values the client cannot work with.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, is.URL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// Validate checks the retry configuration. A negative retry count is the
// one thing the transport cannot interpret; everything else has a usable
// zero value.
func (c RetryConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxRetries, validation.Min(0)),
		validation.Field(&c.InitialDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.Multiplier, validation.Min(1.0)),
		validation.Field(&c.JitterMin, validation.Min(0.0)),
		validation.Field(&c.JitterMax, validation.Min(c.JitterMin)),
	)
}

// Client is the DocuTray API client. All methods are safe for concurrent
// use; independent calls share only the pooled HTTP client and read-only
// configuration.
type Client struct {
	Convert        *ConvertService
	Identify       *IdentifyService
	DocumentTypes  *DocumentTypeService
	Steps          *StepService
	KnowledgeBases *KnowledgeBaseService

	transport *transport
	logger    hclog.Logger
}

// New creates a DocuTray client.
func New(config Config) (*Client, error) {
	if config.APIKey == "" {
		config.APIKey = os.Getenv(EnvAPIKey)
	}

	if config.APIKey == "" {
		return nil, &Error{
			Message: "no API key provided; set Config.APIKey or " + EnvAPIKey,
			Err:     ErrAuthentication,
		}
	}

	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	if config.Logger == nil {
		if os.Getenv(EnvLog) != "" {
			config.Logger = hclog.New(&hclog.LoggerOptions{
				Name:  "docutray",
				Level: hclog.Debug,
			})
		} else {
			config.Logger = hclog.NewNullLogger()
		}
	}

	retry := DefaultRetryConfig()
	if config.Retry != nil {
		retry = *config.Retry

		// MaxRetries 0 is meaningful; the remaining zero values are not.
		defaults := DefaultRetryConfig()
		if retry.InitialDelay == 0 {
			retry.InitialDelay = defaults.InitialDelay
		}
		if retry.MaxDelay == 0 {
			retry.MaxDelay = defaults.MaxDelay
		}
		if retry.Multiplier == 0 {
			retry.Multiplier = defaults.Multiplier
		}
		if retry.JitterMin == 0 && retry.JitterMax == 0 {
			retry.JitterMin = defaults.JitterMin
			retry.JitterMax = defaults.JitterMax
		}
		if retry.RetryableStatuses == nil {
			retry.RetryableStatuses = defaults.RetryableStatuses
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry configuration: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		dialer := &net.Dialer{Timeout: DefaultConnectTimeout}
		httpClient = &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         dialer.DialContext,
				ForceAttemptHTTP2:   true,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	logger := config.Logger.Named("docutray")

	client := &Client{
		transport: &transport{
			baseURL:    config.BaseURL,
			apiKey:     config.APIKey,
			httpClient: httpClient,
			retry:      retry,
			logger:     logger.Named("transport"),
			jitter:     rand.Float64,
		},
		logger: logger,
	}

	client.Convert = &ConvertService{client: client}
	client.Identify = &IdentifyService{client: client}
	client.DocumentTypes = &DocumentTypeService{client: client}
	client.Steps = &StepService{client: client}
	client.KnowledgeBases = &KnowledgeBaseService{client: client}

	return client, nil
}

// Close releases idle connections held by the underlying HTTP client.
func (c *Client) Close() {
	c.transport.httpClient.CloseIdleConnections()
}

// BaseURL returns the endpoint the client talks to.
func (c *Client) BaseURL() string {
	return c.transport.baseURL
}

// String describes the client with the API key masked.
func (c *Client) String() string {
	return fmt.Sprintf("docutray.Client(base_url=%s, api_key=%s)", c.transport.baseURL, maskAPIKey(c.transport.apiKey))
}

func (c *Client) do(ctx context.Context, req *request) (*Response, error) {
	return c.transport.do(ctx, req)
}

// maskAPIKey keeps the identifying prefix of a key and hides the rest.
func maskAPIKey(key string) string {
	if len(key) <= 5 {
		return "***"
	}

	return key[:5] + "***"
}
