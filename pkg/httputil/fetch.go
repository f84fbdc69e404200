package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/mallows/pkg/observability"
)

// Fetch GETs url and returns the response body. Network errors and
// retryable statuses are tried three times with [Retry]; other non-2xx
// statuses fail on the first attempt.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	return FetchWithRetry(ctx, client, url, 3, time.Second)
}

// FetchWithRetry is [Fetch] with an explicit attempt count and initial delay.
func FetchWithRetry(ctx context.Context, client *http.Client, url string, attempts int, delay time.Duration) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	var body []byte
	err := Retry(ctx, attempts, delay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		hooks := observability.HTTP()
		host, path := req.URL.Host, req.URL.Path
		hooks.OnRequest(ctx, req.Method, host, path)
		start := time.Now()
		resp, err := client.Do(req)
		if err != nil {
			hooks.OnError(ctx, req.Method, host, path, err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &RetryableError{Err: err}
		}
		defer resp.Body.Close()
		hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err := fmt.Errorf("GET %s: %s", url, resp.Status)
			if RetryableStatus(resp.StatusCode) {
				return &RetryableError{Err: err}
			}
			return err
		}
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return &RetryableError{Err: err}
		}
		return nil
	})
	return body, err
}
