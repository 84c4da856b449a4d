package vatsim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/unklstewy/vatsim-feeds/pkg/logger"
)

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// validator is implemented by response types with required fields that
// encoding/json cannot enforce on its own.
type validator interface {
	validate() error
}

// fetcher performs the single-GET retrieve/classify/decode protocol shared
// by every client in this package.
type fetcher struct {
	httpClient Doer
	userAgent  string
	log        *logger.Logger
}

// getJSON issues exactly one GET for rawURL and decodes a 2xx body into T.
// query is appended only when non-empty.
func getJSON[T any](ctx context.Context, f *fetcher, rawURL string, query url.Values) (T, error) {
	var zero T

	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return zero, &Error{Kind: KindTransport, URL: rawURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return zero, &Error{Kind: KindTransport, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return zero, &Error{Kind: KindInvalidStatusCode, URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, &Error{Kind: KindTransport, URL: rawURL, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return zero, &Error{Kind: KindDecode, URL: rawURL, Err: err}
	}
	if v, ok := any(&result).(validator); ok {
		if err := v.validate(); err != nil {
			return zero, &Error{Kind: KindDecode, URL: rawURL, Err: err}
		}
	}

	f.log.Debug("fetched feed",
		logger.String("url", rawURL),
		logger.Int("status", resp.StatusCode),
		logger.Int("bytes", len(body)),
	)
	return result, nil
}
