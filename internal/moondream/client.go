// Package moondream provides an HTTP client for the Moondream visual
// question answering API.
package moondream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Static errors for Moondream client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is provided and the
	// MOONDREAM_API_KEY environment variable is not set.
	ErrAPIKeyNotSet = errors.New("moondream: MOONDREAM_API_KEY environment variable is not set")
	// ErrImageRequired is returned when the image data URI is empty.
	ErrImageRequired = errors.New("moondream: image is required")
	// ErrQuestionRequired is returned when the question is empty.
	ErrQuestionRequired = errors.New("moondream: question is required")
	// ErrEmptyAnswer is returned when the API responds without an answer.
	ErrEmptyAnswer = errors.New("moondream: empty answer in response")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("moondream: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("moondream: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("moondream: request failed")
)

// Client defines the interface for querying the Moondream API.
type Client interface {
	// Query asks a natural-language question about an image. The image is
	// passed as a base64 data URI.
	Query(ctx context.Context, imageDataURI, question string) (answer string, err error)
}

// HTTPClient is the HTTP implementation of the Moondream Client interface.
type HTTPClient struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the Moondream API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = url
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new Moondream HTTP client. The API key can be set via
// the WithAPIKey option; if not provided it is read from the environment
// variable MOONDREAM_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:     "https://api.moondream.ai/v1",
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("MOONDREAM_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// queryRequest is the request body for the /query endpoint.
type queryRequest struct {
	ImageURL string `json:"image_url"`
	Question string `json:"question"`
}

// queryResponse is the response body from the /query endpoint.
type queryResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Answer    string `json:"answer"`
}

// Query asks a natural-language question about an image.
func (c *HTTPClient) Query(ctx context.Context, imageDataURI, question string) (string, error) {
	if imageDataURI == "" {
		return "", ErrImageRequired
	}
	if question == "" {
		return "", ErrQuestionRequired
	}

	body, err := json.Marshal(queryRequest{
		ImageURL: imageDataURI,
		Question: question,
	})
	if err != nil {
		return "", fmt.Errorf("moondream: marshal request: %w", err)
	}

	var resp queryResponse
	if err := c.doRequestWithRetry(ctx, c.baseURL+"/query", body, &resp); err != nil {
		return "", err
	}

	if resp.Answer == "" {
		return "", ErrEmptyAnswer
	}

	return resp.Answer, nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, url string, body []byte, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("moondream: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, url, body, result)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("moondream: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, url string, body []byte, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("moondream: create request: %w", err)
	}

	req.Header.Set("X-Moondream-Auth", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("moondream: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("moondream: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("moondream: unmarshal response: %w", err)
		}
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
