package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// maxFetchBytes caps how much of a remote document is read. Downloaded
// variables feed prompt text, so anything beyond this is noise.
const maxFetchBytes = 8 << 20

// HTTPRetriever implements Retriever over plain HTTP GET.
type HTTPRetriever struct {
	Client    *http.Client
	UserAgent string
	Log       *zap.Logger
}

// NewHTTPRetriever creates a retriever with a 5-minute per-fetch timeout.
func NewHTTPRetriever(log *zap.Logger) *HTTPRetriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPRetriever{
		Client:    &http.Client{Timeout: 5 * time.Minute},
		UserAgent: "loom/1.0",
		Log:       log,
	}
}

// Fetch retrieves the document at url and returns its body as text.
func (r *HTTPRetriever) Fetch(ctx context.Context, url string) (string, error) {
	r.Log.Debug("fetching source", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &RetrievalError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", r.UserAgent)

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", &RetrievalError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RetrievalError{URL: url, Err: fmt.Errorf("HTTP status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", &RetrievalError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	r.Log.Debug("fetched source", zap.String("url", url), zap.Int("bytes", len(body)))
	return string(body), nil
}
