// Package backend is the client for the Finey payment backend, which captures
// deposits and decides between refund and forfeit.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/finey-app/finey/internal/auth"
	"github.com/finey-app/finey/internal/models"
)

// DefaultTimeout is the default timeout for backend requests.
const DefaultTimeout = 10 * time.Second

// APIError is returned for non-2xx backend responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error (%d): %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// Client talks to the backend on behalf of a session.
type Client struct {
	baseURL    string
	appVersion string
	http       *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates a client for baseURL reporting appVersion on every call.
func NewClient(baseURL, appVersion string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appVersion: appVersion,
		http: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type taskRef struct {
	ID string `json:"id"`
}

// AuthorizeDeposit asks the backend to hold the deposit for task id.
func (c *Client) AuthorizeDeposit(ctx context.Context, s *auth.Session, id string) error {
	return c.do(ctx, s, http.MethodPost, "/add-task", taskRef{ID: id}, nil)
}

// MarkTaskComplete reports task id as completed.
func (c *Client) MarkTaskComplete(ctx context.Context, s *auth.Session, id string) error {
	return c.do(ctx, s, http.MethodPost, "/mark-task-as-completed", taskRef{ID: id}, nil)
}

// RefundOrForfeit settles the deposit of task id. The backend decides which.
func (c *Client) RefundOrForfeit(ctx context.Context, s *auth.Session, id string) error {
	return c.do(ctx, s, http.MethodPost, "/refund-task", taskRef{ID: id}, nil)
}

// PaymentMethodsCount returns how many payment methods the user has saved.
func (c *Client) PaymentMethodsCount(ctx context.Context, s *auth.Session) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, s, http.MethodGet, "/payment-methods-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

type providerBody struct {
	Provider models.PaymentProvider `json:"provider"`
}

// PaymentProvider returns the user's payment provider, empty when unset.
func (c *Client) PaymentProvider(ctx context.Context, s *auth.Session) (models.PaymentProvider, error) {
	var resp providerBody
	if err := c.do(ctx, s, http.MethodGet, "/user/payment-provider", nil, &resp); err != nil {
		return models.PaymentProviderNone, err
	}
	return resp.Provider, nil
}

// SetPaymentProvider selects the user's payment provider.
func (c *Client) SetPaymentProvider(ctx context.Context, s *auth.Session, p models.PaymentProvider) error {
	if !p.Valid() {
		return fmt.Errorf("unsupported payment provider %q", p)
	}
	return c.do(ctx, s, http.MethodPost, "/user/payment-provider", providerBody{Provider: p}, nil)
}

// do performs an authenticated request and decodes a JSON response into out
// when out is non-nil.
func (c *Client) do(ctx context.Context, s *auth.Session, method, path string, in, out any) error {
	token, err := s.BearerToken()
	if err != nil {
		return err
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("build request url: %w", err)
	}
	q := u.Query()
	q.Set("appVersion", c.appVersion)
	u.RawQuery = q.Encode()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
