package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/globo/viewer/internal/domain"
)

// BackendError carries the raw text of a non-2xx backend reply
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return e.Body
}

// BackendClient handles communication with the simplify/count service
type BackendClient struct {
	baseURL      string
	simplifyPath string
	countPath    string
	httpClient   *http.Client
}

// NewBackendClient creates a new backend client
func NewBackendClient(baseURL, simplifyPath, countPath string, timeout time.Duration) *BackendClient {
	return &BackendClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		simplifyPath: simplifyPath,
		countPath:    countPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Simplify posts the boundary for simplification at precision
func (b *BackendClient) Simplify(ctx context.Context, precision string, body []byte) (*domain.Document, error) {
	q := url.Values{}
	q.Set("precision", precision)
	return b.post(ctx, b.simplifyPath, q, body)
}

// Count posts the boundary for per-feature event counts in [start, end]
func (b *BackendClient) Count(ctx context.Context, precision, start, end string, body []byte) (*domain.Document, error) {
	q := url.Values{}
	q.Set("precision", precision)
	q.Set("start", start)
	q.Set("end", end)
	return b.post(ctx, b.countPath, q, body)
}

func (b *BackendClient) post(ctx context.Context, path string, q url.Values, body []byte) (*domain.Document, error) {
	endpoint := fmt.Sprintf("%s%s?%s", b.baseURL, path, q.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("backend: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend: request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend: failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &BackendError{Status: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	// The layer manager expects well-formed documents; validate here.
	doc, err := domain.ParseDocument(payload)
	if err != nil {
		return nil, fmt.Errorf("backend: invalid response: %w", err)
	}
	return doc, nil
}
