package proxy

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"skyroute-hq/skyroute/pkg/cache"
	"skyroute-hq/skyroute/pkg/convert"
	"skyroute-hq/skyroute/pkg/cors"
	"skyroute-hq/skyroute/pkg/routing"
	"skyroute-hq/skyroute/pkg/upstream"
)

// scriptedCall is one canned upstream exchange.
type scriptedCall struct {
	status int
	header http.Header
	body   string
	err    error
}

// scriptedUpstream plays back canned responses and records every request it
// receives. When the script runs out, the last call repeats.
type scriptedUpstream struct {
	mu     sync.Mutex
	script []scriptedCall
	next   int

	requests []upstream.Request
	bodies   []string
}

func (s *scriptedUpstream) Do(_ context.Context, req upstream.Request) (*upstream.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body string
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
	}
	s.requests = append(s.requests, req)
	s.bodies = append(s.bodies, body)

	i := s.next
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.next++

	call := s.script[i]
	if call.err != nil {
		return nil, call.err
	}

	header := call.header
	if header == nil {
		header = http.Header{"Content-Type": []string{"text/plain"}}
	}
	return &upstream.Response{
		StatusCode: call.status,
		Header:     header.Clone(),
		Body:       io.NopCloser(strings.NewReader(call.body)),
	}, nil
}

func (s *scriptedUpstream) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New(cache.Options{
		Directory: t.TempDir(),
		TTL:       time.Hour,
		Logger:    testLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return c
}

func newTestConverter(t *testing.T, rasterizer, compositor string) *convert.Converter {
	t.Helper()
	c, err := convert.New(convert.Options{
		WorkDir:    t.TempDir(),
		Rasterizer: rasterizer,
		Compositor: compositor,
		Logger:     testLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create converter: %v", err)
	}
	return c
}

func newTestPipeline(t *testing.T, doer upstream.Doer) *Pipeline {
	t.Helper()
	return New(Options{
		Cache:     newTestCache(t),
		Upstream:  doer,
		Converter: newTestConverter(t, "pdftoppm", "convert"),
		Fallback:  &Fallback{AssetPath: filepath.Join(t.TempDir(), "missing.png")},
		Logger:    testLogger(),
	})
}

func testRoute() *routing.Route {
	return &routing.Route{
		Domain:     "api.example.com",
		PathPrefix: "/",
		Target:     "http://upstream.internal",
		Type:       "api",
		CORS:       cors.Disabled(),
	}
}

func TestServeCachesSuccessfulGET(t *testing.T) {
	up := &scriptedUpstream{script: []scriptedCall{
		{status: http.StatusOK, body: "payload-one"},
	}}
	p := newTestPipeline(t, up)
	route := testRoute()

	first := httptest.NewRecorder()
	p.Serve(first, httptest.NewRequest(http.MethodGet, "http://api.example.com/data", nil), route)
	if first.Code != http.StatusOK || first.Body.String() != "payload-one" {
		t.Fatalf("first response = %d %q, want 200 %q", first.Code, first.Body.String(), "payload-one")
	}

	second := httptest.NewRecorder()
	p.Serve(second, httptest.NewRequest(http.MethodGet, "http://api.example.com/data", nil), route)
	if second.Code != http.StatusOK || second.Body.String() != "payload-one" {
		t.Fatalf("second response = %d %q, want cached replay", second.Code, second.Body.String())
	}

	if up.callCount() != 1 {
		t.Errorf("upstream calls = %d, want 1 (second request served from cache)", up.callCount())
	}
}

func TestServePartitionsCacheByIdentity(t *testing.T) {
	up := &scriptedUpstream{script: []scriptedCall{
		{status: http.StatusOK, body: "for-alice"},
		{status: http.StatusOK, body: "for-bob"},
	}}
	p := newTestPipeline(t, up)
	route := testRoute()

	serveAs := func(user string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "http://api.example.com/data", nil)
		r.Header.Set(AuthUserHeader, user)
		w := httptest.NewRecorder()
		p.Serve(w, r, route)
		return w
	}

	serveAs("alice")
	got := serveAs("bob")

	if got.Body.String() != "for-bob" {
		t.Errorf("bob got %q, want his own response, not alice's cached one", got.Body.String())
	}
	if up.callCount() != 2 {
		t.Errorf("upstream calls = %d, want 2 (one per identity)", up.callCount())
	}
}

func TestServeNeverCachesNonGET(t *testing.T) {
	up := &scriptedUpstream{script: []scriptedCall{
		{status: http.StatusOK, body: "created"},
	}}
	p := newTestPipeline(t, up)
	route := testRoute()

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "http://api.example.com/items", strings.NewReader(`{"n":1}`))
		r.Header.Set("Content-Type", "application/json")
		p.Serve(w, r, route)
		if w.Code != http.StatusOK {
			t.Fatalf("POST %d: status = %d, want 200", i, w.Code)
		}
	}

	if up.callCount() != 2 {
		t.Errorf("upstream calls = %d, want 2 (POST responses must not be cached)", up.callCount())
	}
	if up.bodies[0] != `{"n":1}` {
		t.Errorf("forwarded body = %q, want request body passed through", up.bodies[0])
	}
}

func TestServeNeverCachesNon200(t *testing.T) {
	up := &scriptedUpstream{script: []scriptedCall{
		{status: http.StatusNotFound, body: "nope"},
	}}
	p := newTestPipeline(t, up)
	route := testRoute()

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		p.Serve(w, httptest.NewRequest(http.MethodGet, "http://api.example.com/gone", nil), route)
		if w.Code != http.StatusNotFound {
			t.Fatalf("request %d: status = %d, want 404 passed through", i, w.Code)
		}
	}

	if up.callCount() != 2 {
		t.Errorf("upstream calls = %d, want 2 (404 responses must not be cached)", up.callCount())
	}
}

func TestServeRetriesRateLimitThenSucceeds(t *testing.T) {
	if testing.Short() {
		t.Skip("retry delay makes this test slow")
	}

	up := &scriptedUpstream{script: []scriptedCall{
		{status: http.StatusTooManyRequests, body: "slow down"},
		{status: http.StatusOK, body: "recovered"},
	}}
	p := newTestPipeline(t, up)
	route := testRoute()

	w := httptest.NewRecorder()
	p.Serve(w, httptest.NewRequest(http.MethodGet, "http://api.example.com/data", nil), route)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 after retry", w.Code)
	}
	if got := w.Body.String(); got != "recovered" {
		t.Errorf("body = %q, want the retried response, never the rate-limit body", got)
	}
	if up.callCount() != 2 {
		t.Errorf("upstream calls = %d, want 2", up.callCount())
	}
}

func TestServeFallsBackWhenRetryBudgetUnavailable(t *testing.T) {
	const upstreamBody = "upstream-ratelimit-body"
	up := &scriptedUpstream{script: []scriptedCall{
		{status: http.StatusTooManyRequests, body: upstreamBody},
	}}
	p := newTestPipeline(t, up)
	route := testRoute()

	// A context that expires before the first retry delay elapses stands
	// in for budget exhaustion without waiting a minute.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "http://api.example.com/data", nil).WithContext(ctx)
	p.Serve(w, r, route)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 fallback", w.Code)
	}
	if got := w.Body.String(); got == "" || strings.Contains(got, upstreamBody) {
		t.Errorf("body = %q, want fallback content, never the upstream rate-limit body", got)
	}
}

func TestServeMapsTransportErrorToRouteOverride(t *testing.T) {
	up := &scriptedUpstream{script: []scriptedCall{
		{err: io.ErrUnexpectedEOF},
	}}
	p := newTestPipeline(t, up)
	route := testRoute()
	route.ErrorOverride = &routing.ErrorOverride{
		Code:    "backend_down",
		Message: "try later",
		Status:  http.StatusBadGateway,
	}

	w := httptest.NewRecorder()
	p.Serve(w, httptest.NewRequest(http.MethodGet, "http://api.example.com/data", nil), route)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want route override 502", w.Code)
	}

	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body.Error.Code != "backend_down" || body.Error.Message != "try later" {
		t.Errorf("error body = %+v, want the route's override", body.Error)
	}
	if body.Error.Route != route.ID() {
		t.Errorf("error route = %q, want %q", body.Error.Route, route.ID())
	}
}

func TestServePreflightShortCircuits(t *testing.T) {
	up := &scriptedUpstream{script: []scriptedCall{
		{status: http.StatusOK, body: "never"},
	}}
	p := newTestPipeline(t, up)
	route := testRoute()
	route.CORS = cors.Permissive()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "http://api.example.com/data", nil)
	r.Header.Set("Origin", "https://app.example.com")
	p.Serve(w, r, route)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want the mirrored origin", got)
	}
	if up.callCount() != 0 {
		t.Errorf("upstream calls = %d, want 0 for preflight", up.callCount())
	}
}

func TestServeForwardsOnlyConfiguredHeaders(t *testing.T) {
	up := &scriptedUpstream{script: []scriptedCall{
		{status: http.StatusOK, body: "ok"},
	}}
	p := newTestPipeline(t, up)
	route := testRoute()
	route.ForwardHeaders = []string{"Authorization"}

	r := httptest.NewRequest(http.MethodGet, "http://api.example.com/data", nil)
	r.Header.Set("Authorization", "Bearer tok")
	r.Header.Set("Cookie", "secret=1")
	p.Serve(httptest.NewRecorder(), r, route)

	sent := up.requests[0].Header
	if got := sent.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("Authorization = %q, want forwarded", got)
	}
	if got := sent.Get("Cookie"); got != "" {
		t.Errorf("Cookie = %q, want unlisted headers stripped", got)
	}
}

func TestServeSurvivesCacheWriteFailure(t *testing.T) {
	up := &scriptedUpstream{script: []scriptedCall{
		{status: http.StatusOK, body: "still served"},
	}}

	dir := t.TempDir()
	c, err := cache.New(cache.Options{Directory: dir, TTL: time.Hour, Logger: testLogger()})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	p := New(Options{
		Cache:     c,
		Upstream:  up,
		Converter: newTestConverter(t, "pdftoppm", "convert"),
		Logger:    testLogger(),
	})

	// Removing the directory makes every Set fail.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("failed to remove cache dir: %v", err)
	}

	w := httptest.NewRecorder()
	p.Serve(w, httptest.NewRequest(http.MethodGet, "http://api.example.com/data", nil), testRoute())

	if w.Code != http.StatusOK || w.Body.String() != "still served" {
		t.Fatalf("response = %d %q, want the upstream response despite the cache failure", w.Code, w.Body.String())
	}
}

func TestServeConvertsPDFOnDemand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub executables require a POSIX shell")
	}

	binDir := t.TempDir()
	rasterizer := writeStubExecutable(t, binDir, "pdftoppm", `
for a in "$@"; do prefix=$a; done
printf 'page-one\n' > "$prefix-1.png"
printf 'page-two\n' > "$prefix-2.png"
`)
	compositor := writeStubExecutable(t, binDir, "convert", `
out=""
for a in "$@"; do out=$a; done
: > "$out"
for a in "$@"; do
  [ "$a" = "-append" ] && continue
  [ "$a" = "$out" ] && continue
  cat "$a" >> "$out"
done
`)

	up := &scriptedUpstream{script: []scriptedCall{
		{
			status: http.StatusOK,
			header: http.Header{"Content-Type": []string{"application/pdf"}},
			body:   "%PDF-1.4 fake document",
		},
	}}
	p := New(Options{
		Cache:     newTestCache(t),
		Upstream:  up,
		Converter: newTestConverter(t, rasterizer, compositor),
		Logger:    testLogger(),
	})
	route := testRoute()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "http://api.example.com/report.pdf?convert=png", nil)
	p.Serve(w, r, route)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%q", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", got)
	}
	if got := w.Body.String(); got != "page-one\npage-two\n" {
		t.Errorf("body = %q, want composited pages in order", got)
	}

	// The converted image, not the PDF, is what gets cached.
	second := httptest.NewRecorder()
	p.Serve(second, httptest.NewRequest(http.MethodGet, "http://api.example.com/report.pdf?convert=png", nil), route)
	if up.callCount() != 1 {
		t.Errorf("upstream calls = %d, want 1", up.callCount())
	}
	if second.Body.String() != "page-one\npage-two\n" {
		t.Errorf("cached body = %q, want the converted image", second.Body.String())
	}
}

func TestServeConversionFailureIsNotCached(t *testing.T) {
	up := &scriptedUpstream{script: []scriptedCall{
		{
			status: http.StatusOK,
			header: http.Header{"Content-Type": []string{"application/pdf"}},
			body:   "%PDF-1.4",
		},
	}}
	// Nonexistent executables make every conversion fail.
	p := New(Options{
		Cache:     newTestCache(t),
		Upstream:  up,
		Converter: newTestConverter(t, filepath.Join(t.TempDir(), "nope"), "convert"),
		Logger:    testLogger(),
	})
	route := testRoute()

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "http://api.example.com/doc?convert=png", nil)
		p.Serve(w, r, route)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("request %d: status = %d, want 500", i, w.Code)
		}
	}

	if up.callCount() != 2 {
		t.Errorf("upstream calls = %d, want 2 (failed conversions must not be cached)", up.callCount())
	}
}

func TestServeRejectsBadDimensionParams(t *testing.T) {
	cases := []struct {
		name  string
		query string
	}{
		{"non-numeric width", "convert=png&width=abc"},
		{"explicit zero width", "convert=png&width=0"},
		{"explicit zero height", "convert=png&height=0"},
		{"negative width", "convert=png&width=-5"},
		{"oversized height", "convert=png&height=10001"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			up := &scriptedUpstream{script: []scriptedCall{
				{status: http.StatusOK, header: http.Header{"Content-Type": []string{"application/pdf"}}, body: "%PDF-1.4"},
			}}
			p := newTestPipeline(t, up)

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "http://api.example.com/doc?"+tc.query, nil)
			p.Serve(w, r, testRoute())

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestHandlerReturns404ForUnknownHost(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	routesYAML := `routes:
  - domain: api.example.com
    path_prefix: /
    target: http://upstream.internal
`
	if err := os.WriteFile(path, []byte(routesYAML), 0o644); err != nil {
		t.Fatalf("failed to write routes file: %v", err)
	}
	provider, err := routing.NewProvider(path)
	if err != nil {
		t.Fatalf("failed to load routes: %v", err)
	}

	up := &scriptedUpstream{script: []scriptedCall{{status: http.StatusOK, body: "ok"}}}
	handler := newTestPipeline(t, up).Handler(provider)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://other.example.com/data", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for an unrouted host", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://api.example.com/data", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for the routed host", w.Code)
	}
}

// writeStubExecutable creates a shell script standing in for an external
// tool.
func writeStubExecutable(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("failed to write stub %s: %v", name, err)
	}
	return path
}
