package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"payloadforge/internal/logging"
)

// maxBodySize bounds a single network document.
const maxBodySize = 16 << 20

// Source is the live documentation endpoint keyed by file name.
type Source interface {
	Fetch(ctx context.Context, filename string) ([]byte, error)
}

// StatusError is a non-200 HTTP response.
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.Code, e.URL, e.Status)
}

// HTTPSource GETs <BaseURL>/<filename>. The caller's context carries the
// per-attempt timeout.
type HTTPSource struct {
	BaseURL   string
	Client    *http.Client
	UserAgent string
}

// NewHTTPSource returns a source using http.DefaultClient.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		BaseURL:   baseURL,
		Client:    http.DefaultClient,
		UserAgent: "payloadforge/1.0",
	}
}

// Fetch retrieves one document.
func (s *HTTPSource) Fetch(ctx context.Context, filename string) ([]byte, error) {
	target, err := url.JoinPath(s.BaseURL, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}
	logging.NetworkDebug("GET %s", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: target}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
