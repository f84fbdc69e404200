// Package httputil fetches benchmark archives over HTTP.
//
// [Fetch] downloads a URL into memory and retries transient failures:
// network errors, 429 and 5xx responses are wrapped in [RetryableError] and
// repeated by [Retry] with a doubling delay, any other status fails at once.
//
//	body, err := httputil.Fetch(ctx, http.DefaultClient, url)
//
// [Cache] keeps payloads on disk so re-extracting an archive skips the
// network. A stale entry is still returned, alongside [ErrExpired], which
// lets a caller fall back to it when the server is unreachable:
//
//	data, err := cache.Get(url)
//	if data == nil || errors.Is(err, httputil.ErrExpired) {
//	    if fresh, ferr := httputil.Fetch(ctx, client, url); ferr == nil {
//	        data = fresh
//	        _ = cache.Set(url, data)
//	    }
//	}
package httputil
