package invoicesvc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"golang.org/x/oauth2"
)

// IdempotencyHeader carries the outbox record id so that retried calls are applied once.
const IdempotencyHeader = "Idempotency-Key"

const maxErrorBody = 512

// Client calls the payables and receivables services.
type Client struct {
	baseURLs map[string]string
	http     *http.Client
}

var _ portssvc.ServiceCaller = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The token source is not applied to it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a caller. A nil token source sends requests without an Authorization header.
func NewClient(payablesURL, receivablesURL string, timeout time.Duration, ts oauth2.TokenSource, opts ...Option) *Client {
	transport := http.DefaultTransport
	if ts != nil {
		transport = &oauth2.Transport{Source: ts, Base: http.DefaultTransport}
	}
	c := &Client{
		baseURLs: map[string]string{
			string(domain.SourcePayables):    strings.TrimRight(payablesURL, "/"),
			string(domain.SourceReceivables): strings.TrimRight(receivablesURL, "/"),
		},
		http: &http.Client{Timeout: timeout, Transport: transport},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call sends req to the service it names. Any non-2xx answer is an error.
func (c *Client) Call(ctx context.Context, req portssvc.ServiceRequest) error {
	base := c.baseURLs[req.Service]
	if base == "" {
		return fmt.Errorf("%w: no base URL configured for service %q", apperrors.ErrNotification, req.Service)
	}

	var body io.Reader
	if len(req.Payload) > 0 {
		body = bytes.NewReader(req.Payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, base+req.Endpoint, body)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", apperrors.ErrNotification, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(IdempotencyHeader, req.IdempotencyKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", apperrors.ErrNotification, req.Method, req.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s %s returned %s: %s", apperrors.ErrNotification,
			req.Method, req.Endpoint, resp.Status, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	slog.DebugContext(ctx, "Invoice service call succeeded", "service", req.Service, "endpoint", req.Endpoint, "status", resp.StatusCode)
	return nil
}
