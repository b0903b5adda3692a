// Package httpjson is the request plumbing shared by the HTTP embedding
// and chat providers.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponse bounds how much of a provider response is read.
const maxResponse = 8 << 20

// NewClient returns an http.Client with the given overall timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// StatusError is returned for any non-200 provider response.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api status %d: %s", e.Provider, e.Code, e.Body)
}

// Post sends in as a JSON body and decodes a 200 response into out. A
// non-empty bearer is sent as an Authorization header.
func Post(ctx context.Context, c *http.Client, provider, url, bearer string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("%s api: %w", provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Provider: provider, Code: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", provider, err)
	}
	return nil
}
