package eia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/02loveslollipop/nuclear-outages/services/connector/config"
	"github.com/02loveslollipop/nuclear-outages/services/connector/models"
)

// AuthError reports rejected or absent upstream credentials. It is never retried.
type AuthError struct {
	StatusCode int
	Reason     string
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return "eia auth: " + e.Reason
	}
	return fmt.Sprintf("eia auth: %s (status %d)", e.Reason, e.StatusCode)
}

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = &AuthError{Reason: "EIA_API_KEY environment variable not set"}

// TransientError is a retryable failure of a single request attempt.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// Page is the result of one fetch. Skipped is set when the page could not be
// obtained after all retries or the payload carried no response envelope.
type Page struct {
	Offset  int
	Records []models.APIRecord
	Skipped bool
	Err     error
}

// Fetcher fetches a single page of upstream records.
type Fetcher interface {
	FetchPage(ctx context.Context, offset, limit int) (Page, error)
}

// Client talks to the EIA v2 API.
type Client struct {
	endpoint   string
	apiKey     string
	http       *http.Client
	maxRetries int
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSleep replaces the backoff sleeper.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// NewClient builds a client from connector configuration.
func NewClient(cfg config.Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if _, err := url.Parse(cfg.Endpoint()); err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	c := &Client{
		endpoint:   cfg.Endpoint(),
		apiKey:     cfg.APIKey,
		http:       &http.Client{Timeout: cfg.RequestTimeout},
		maxRetries: retries,
		retryDelay: cfg.RetryDelay,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchPage requests one page, retrying transient failures with exponential
// backoff. A page that still fails after the last attempt is returned as
// Skipped with a nil error; only auth failures and context cancellation are errors.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) (Page, error) {
	page := Page{Offset: offset}
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		payload, err := c.get(ctx, offset, limit)
		if err == nil {
			if payload.Response == nil {
				log.Printf("offset %d: payload has no response envelope", offset)
				page.Skipped = true
				return page, nil
			}
			page.Records = payload.Response.Data
			return page, nil
		}

		var authErr *AuthError
		if errors.As(err, &authErr) {
			log.Printf("attempt %d: authentication failed, check API key", attempt)
			return page, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return page, ctxErr
		}

		log.Printf("attempt %d: fetch failed (offset %d): %v", attempt, offset, err)
		if attempt == c.maxRetries {
			log.Printf("max retries reached for offset %d, skipping this batch", offset)
			page.Skipped = true
			page.Err = err
			return page, nil
		}

		delay := c.retryDelay * time.Duration(1<<(attempt-1))
		if err := c.sleep(ctx, delay); err != nil {
			return page, err
		}
	}
	page.Skipped = true
	return page, nil
}

func (c *Client) get(ctx context.Context, offset, limit int) (models.PageResponse, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return models.PageResponse{}, err
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return models.PageResponse{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.PageResponse{}, &TransientError{Err: fmt.Errorf("request outages page: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return models.PageResponse{}, &AuthError{StatusCode: resp.StatusCode, Reason: "invalid API credentials"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return models.PageResponse{}, &TransientError{StatusCode: resp.StatusCode}
	}

	var payload models.PageResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.PageResponse{}, &TransientError{Err: fmt.Errorf("decode payload: %w", err)}
	}
	return payload, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
