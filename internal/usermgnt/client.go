// Package usermgnt is the HTTP client for the user management service,
// which owns subscriber (system) records.
package usermgnt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/opencrvs/webhooks/internal/models"
)

// ClientOptions configures the user management client.
type ClientOptions struct {
	// BaseURL is the base URL of the user management service.
	BaseURL string
	// RetryMax is the maximum number of retries (default: 2)
	RetryMax int
	// Timeout is the HTTP client timeout (default: 10 seconds)
	Timeout time.Duration
	// RequestsPerSecond rate limits outbound calls; 0 disables limiting.
	// The dispatcher fetches one system per matching registration, so this
	// bounds fan-out pressure on user management.
	RequestsPerSecond float64
}

// Client fetches subscriber systems from user management.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
}

// NewClient creates a user management client with the given options.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	if opts.RetryMax == 0 {
		opts.RetryMax = 2
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil // log at call sites

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: retryClient,
		limiter:    limiter,
	}
}

// GetSystemBySystemID resolves a system by its internal id (the bearer
// token's subject claim).
func (c *Client) GetSystemBySystemID(ctx context.Context, systemID, authorization string) (*models.System, error) {
	return c.getSystem(ctx, map[string]string{"systemId": systemID}, authorization)
}

// GetSystemByClientID resolves a system by its client id (the registration
// owner key).
func (c *Client) GetSystemByClientID(ctx context.Context, clientID, authorization string) (*models.System, error) {
	return c.getSystem(ctx, map[string]string{"clientId": clientID}, authorization)
}

func (c *Client) getSystem(ctx context.Context, lookup map[string]string, authorization string) (*models.System, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(lookup)
	if err != nil {
		return nil, fmt.Errorf("marshal system lookup: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/getSystem", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authorization)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch system: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return nil, fmt.Errorf("fetch system: user management returned %d: %s", resp.StatusCode, detail)
	}

	var system models.System
	if err := json.NewDecoder(resp.Body).Decode(&system); err != nil {
		return nil, fmt.Errorf("decode system: %w", err)
	}

	return &system, nil
}
