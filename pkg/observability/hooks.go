// Package observability provides hooks for metrics and tracing.
//
// Libraries emit events through globally registered hooks; the defaults are
// no-ops, so a library user who registers nothing pays nothing. The command
// line and the API server register [PrometheusHooks] at startup.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    hooks := observability.NewPrometheusHooks(prometheus.DefaultRegisterer)
//	    observability.SetRunHooks(hooks)
//	    observability.SetCacheHooks(hooks)
//	    observability.SetHTTPHooks(hooks)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Run().OnRunStart(ctx, problem, size)
//	// ... optimize ...
//	observability.Run().OnRunComplete(ctx, problem, generations, best, duration, err)
package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// RunHooks receives events from optimizer runs.
type RunHooks interface {
	OnRunStart(ctx context.Context, problem string, size int)
	OnRunComplete(ctx context.Context, problem string, generations int, best float64, duration time.Duration, err error)
	OnShake(ctx context.Context, problem string, generation int)
}

// CacheHooks receives events from the run cache. keyType is "run" or
// "artifact".
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// HTTPHooks receives events from outgoing HTTP requests, such as instance
// downloads. OnError is called for failures without a response.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	OnError(ctx context.Context, method, host, path string, err error)
}

// NoopRunHooks ignores run events.
type NoopRunHooks struct{}

func (NoopRunHooks) OnRunStart(context.Context, string, int)                                {}
func (NoopRunHooks) OnRunComplete(context.Context, string, int, float64, time.Duration, error) {}
func (NoopRunHooks) OnShake(context.Context, string, int)                                   {}

// NoopCacheHooks ignores cache events.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks ignores HTTP events.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// registry is replaced as a whole so readers never see a partial update.
type registry struct {
	run   RunHooks
	cache CacheHooks
	http  HTTPHooks
}

var current atomic.Pointer[registry]

func init() { Reset() }

func update(f func(r *registry)) {
	for {
		old := current.Load()
		next := *old
		f(&next)
		if current.CompareAndSwap(old, &next) {
			return
		}
	}
}

// SetRunHooks registers run hooks. A nil h is ignored.
func SetRunHooks(h RunHooks) {
	if h != nil {
		update(func(r *registry) { r.run = h })
	}
}

// SetCacheHooks registers cache hooks. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	if h != nil {
		update(func(r *registry) { r.cache = h })
	}
}

// SetHTTPHooks registers HTTP hooks. A nil h is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h != nil {
		update(func(r *registry) { r.http = h })
	}
}

// Run returns the registered run hooks.
func Run() RunHooks { return current.Load().run }

// Cache returns the registered cache hooks.
func Cache() CacheHooks { return current.Load().cache }

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks { return current.Load().http }

// Reset restores the no-op hooks.
func Reset() {
	current.Store(&registry{run: NoopRunHooks{}, cache: NoopCacheHooks{}, http: NoopHTTPHooks{}})
}
