package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const userAgent = "mangafeed/0.1 (https://github.com/kerbaras/mangafeed)"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// DecodeError wraps a response body that could not be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

type API struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewAPI creates a JSON client allowing perSecond requests per second.
// A non-positive rate disables limiting.
func NewAPI(baseURL string, perSecond float64) *API {
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Every(time.Duration(float64(time.Second) / perSecond))
		burst = max(1, int(perSecond))
	}
	return &API{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (a *API) BaseURL() string {
	return a.baseURL
}

// Get fetches path with params and decodes the JSON body into v.
func (a *API) Get(ctx context.Context, path string, params url.Values, v any) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}
