package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// KeyValidator checks a candidate credential against the upstream OCR
// provider. The provider is a black box: only valid / invalid / failed
// comes back, never provider detail.
type KeyValidator interface {
	Validate(ctx context.Context, key string) (bool, error)
}

// httpValidator probes the provider's model listing endpoint, the
// cheapest authenticated call it offers.
type httpValidator struct {
	client  *http.Client
	baseURL string
}

// NewHTTPValidator creates a KeyValidator against baseURL.
func NewHTTPValidator(baseURL string, timeout time.Duration) KeyValidator {
	return &httpValidator{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (v *httpValidator) Validate(ctx context.Context, key string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("x-goog-api-key", key)

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusBadRequest:
		return false, nil
	default:
		return false, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
}
