package proxy

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	"skyroute-hq/skyroute/pkg/cache"
	"skyroute-hq/skyroute/pkg/convert"
	"skyroute-hq/skyroute/pkg/geo"
	"skyroute-hq/skyroute/pkg/routing"
	"skyroute-hq/skyroute/pkg/stats"
	"skyroute-hq/skyroute/pkg/telemetry/metrics"
	"skyroute-hq/skyroute/pkg/upstream"
)

// Pipeline is the cache-aware fetch pipeline. It is safe for concurrent
// use; per-request state never escapes a request.
type Pipeline struct {
	cache     *cache.Cache
	upstream  upstream.Doer
	converter *convert.Converter
	fallback  *Fallback
	stats     stats.Recorder
	geo       geo.Locator
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// Options wires the pipeline's collaborators. Cache, Upstream, and
// Converter are required; the rest default to no-ops.
type Options struct {
	Cache     *cache.Cache
	Upstream  upstream.Doer
	Converter *convert.Converter
	Fallback  *Fallback
	Stats     stats.Recorder
	Geo       geo.Locator
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

// New constructs a Pipeline. Collaborators are passed explicitly; the
// pipeline holds no package-level state.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		cache:     opts.Cache,
		upstream:  opts.Upstream,
		converter: opts.Converter,
		fallback:  opts.Fallback,
		stats:     opts.Stats,
		geo:       opts.Geo,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}

	if p.fallback == nil {
		p.fallback = &Fallback{}
	}
	if p.stats == nil {
		p.stats = stats.Nop{}
	}
	if p.geo == nil {
		p.geo = geo.Nop{}
	}
	if p.metrics == nil {
		p.metrics = metrics.NewCollector("skyroute")
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "proxy")

	return p
}

// Handler returns the gateway's proxy handler: route lookup against the
// provider, then the fetch pipeline. Unroutable requests get 404.
func (p *Pipeline) Handler(routes *routing.Provider) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routes.Lookup(r.Host, r.URL.Path)
		if route == nil {
			http.NotFound(w, r)
			return
		}
		p.Serve(w, r, route)
	})
}

// Serve runs the fetch pipeline for one request on a resolved route.
func (p *Pipeline) Serve(w http.ResponseWriter, r *http.Request, route *routing.Route) {
	start := time.Now()
	origin := r.Header.Get("Origin")

	// Preflight short-circuit for routes with CORS enabled.
	if r.Method == http.MethodOptions {
		if status, ok := route.CORS.PreflightStatus(); ok {
			route.CORS.Apply(w, origin)
			w.WriteHeader(status)
			p.finish(r, route, "", status, start, "preflight")
			return
		}
	}

	identity := Identity(r)
	target := route.TargetFor(r.URL.Path, r.URL.RawQuery)

	// CacheLookup: GET only.
	if r.Method == http.MethodGet {
		if entry := p.cache.Get(target, r.Method, identity); entry != nil {
			p.metrics.RecordCacheHit()
			p.replayCached(w, route, origin, entry)
			p.finish(r, route, target, entry.StatusCode, start, "cache_hit")
			return
		}
		p.metrics.RecordCacheMiss()
	}

	req, err := p.buildRequest(r, route, target)
	if err != nil {
		p.logger.Warn("failed to read request body", "error", err)
		status := writeRouteError(w, route, origin)
		p.finish(r, route, target, status, start, "request_error")
		return
	}

	// Fetch: first attempt. Transport errors here, before retry
	// applicability is known, map to the route's error response.
	resp, err := p.upstream.Do(r.Context(), req)
	if err != nil {
		p.logger.Warn("upstream transport error", "target", target, "error", err)
		status := writeRouteError(w, route, origin)
		p.finish(r, route, target, status, start, "transport_error")
		return
	}

	// RetryLoop: entered only on rate-limit statuses. The rate-limited
	// body is discarded, never forwarded.
	if isRateLimited(resp.StatusCode) {
		p.logger.Info("upstream rate limited, entering retry loop",
			"target", target, "status", resp.StatusCode)
		discard(resp)

		resp = p.retryLoop(r.Context(), req)
		if resp == nil {
			status := p.serveFallback(w, route, origin)
			p.finish(r, route, target, status, start, "retry_exhausted")
			return
		}
	}

	// ResponseReady: buffer-and-cache for GET 200, stream for the rest.
	if r.Method == http.MethodGet && resp.StatusCode == http.StatusOK {
		status, branch := p.serveBuffered(w, r, route, resp, target, identity, origin)
		p.finish(r, route, target, status, start, branch)
		return
	}

	status, branch := p.serveStream(w, resp, route, origin)
	p.finish(r, route, target, status, start, branch)
}

// buildRequest builds the upstream request: the route's forwarded headers
// plus a buffered body (omitted for GET/HEAD) so retry attempts can resend
// it.
func (p *Pipeline) buildRequest(r *http.Request, route *routing.Route, target string) (upstream.Request, error) {
	req := upstream.Request{
		Method: r.Method,
		URL:    target,
		Header: make(http.Header),
	}

	for _, name := range route.ForwardHeaders {
		if values := r.Header.Values(name); len(values) > 0 {
			req.Header[http.CanonicalHeaderKey(name)] = values
		}
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Body != nil {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return upstream.Request{}, err
		}
		if len(body) > 0 {
			req.Body = bytes.NewReader(body)
			if ct := r.Header.Get("Content-Type"); ct != "" {
				req.Header.Set("Content-Type", ct)
			}
		}
	}

	return req, nil
}

// replayCached writes a cache hit verbatim: stored headers, body bytes, and
// status, with CORS re-applied.
func (p *Pipeline) replayCached(w http.ResponseWriter, route *routing.Route, origin string, entry *cache.Entry) {
	copyHeaders(w.Header(), entry.Header)
	route.CORS.Apply(w, origin)
	w.WriteHeader(entry.StatusCode)
	if _, err := w.Write(entry.Body); err != nil {
		p.logger.Warn("failed to write cached response", "error", err)
	}
}

// finish logs the terminal branch and records metrics and statistics.
func (p *Pipeline) finish(r *http.Request, route *routing.Route, target string, status int, start time.Time, branch string) {
	duration := time.Since(start)

	p.logger.Info("request completed",
		"method", r.Method,
		"path", r.URL.Path,
		"target", target,
		"status", status,
		"duration_ms", duration.Milliseconds(),
		"branch", branch,
	)

	p.metrics.RecordRequest(route.Domain, r.Method, status, duration)

	// Fire-and-forget statistics; never blocks the response path.
	rec := stats.Record{
		Identity:    Identity(r),
		Path:        r.URL.Path,
		Method:      r.Method,
		UserAgent:   r.UserAgent(),
		Duration:    duration,
		Domain:      route.Domain,
		Target:      target,
		RequestType: route.Type,
	}
	ip := clientIP(r)
	go func() {
		if location, ok := p.geo.Locate(ip); ok {
			rec.Location = location
		}
		p.stats.Record(rec)
	}()
}

// discard drains and closes an upstream body so the connection can be
// reused.
func discard(resp *upstream.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// hopByHopHeaders are stripped when replaying upstream headers to the
// client.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Content-Length",
}

// copyHeaders copies src into dst minus hop-by-hop headers.
func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		dst[key] = append([]string(nil), values...)
	}
	for _, name := range hopByHopHeaders {
		dst.Del(name)
	}
}
