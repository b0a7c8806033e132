package cache

import (
	"bytes"
	"net/http"
	"testing"
	"time"
)

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	if opts.Directory == "" {
		opts.Directory = t.TempDir()
	}
	if opts.TTL == 0 {
		opts.TTL = time.Hour
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func testEntry(body []byte) *Entry {
	return &Entry{
		StatusCode:  http.StatusOK,
		Header:      http.Header{"Content-Type": {"application/octet-stream"}},
		Body:        body,
		ContentType: "application/octet-stream",
	}
}

func TestRoundTripBinaryFidelity(t *testing.T) {
	c := newTestCache(t, Options{})

	// Regression guard: bodies must survive byte-for-byte, including
	// sequences that are not valid UTF-8.
	body := []byte{0xFF, 0xFE, 0x00, 0x41}
	if err := c.Set("https://api.test/doc", "GET", "user-1", testEntry(body)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got := c.Get("https://api.test/doc", "GET", "user-1")
	if got == nil {
		t.Fatal("Get() = nil, want hit")
	}
	if !bytes.Equal(got.Body, body) {
		t.Errorf("Body = %v, want %v", got.Body, body)
	}
	if got.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", got.StatusCode)
	}
	if got.ContentType != "application/octet-stream" {
		t.Errorf("ContentType = %q", got.ContentType)
	}
}

func TestIdentityPartitioning(t *testing.T) {
	c := newTestCache(t, Options{})

	if err := c.Set("https://api.test/x", "GET", "alice", testEntry([]byte("alice's data"))); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if got := c.Get("https://api.test/x", "GET", "bob"); got != nil {
		t.Error("bob observed alice's cached entry")
	}
	if got := c.Get("https://api.test/x", "GET", "alice"); got == nil {
		t.Error("alice's own entry missing")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t, Options{TTL: 50 * time.Millisecond})

	if err := c.Set("https://api.test/x", "GET", "anon", testEntry([]byte("v"))); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if c.Get("https://api.test/x", "GET", "anon") == nil {
		t.Fatal("entry missing before expiry")
	}

	time.Sleep(80 * time.Millisecond)

	if c.Get("https://api.test/x", "GET", "anon") != nil {
		t.Error("expired entry served")
	}
	if s := c.Stats(); s.Count != 0 {
		t.Errorf("Stats().Count = %d after expiry, want 0", s.Count)
	}
}

func TestPersistenceAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	c1 := newTestCache(t, Options{Directory: dir})
	body := []byte{0x00, 0x01, 0xFE, 0xFF}
	if err := c1.Set("https://api.test/persist", "GET", "anon", testEntry(body)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// A second cache over the same directory simulates a process restart.
	c2 := newTestCache(t, Options{Directory: dir})
	got := c2.Get("https://api.test/persist", "GET", "anon")
	if got == nil {
		t.Fatal("entry lost across restart")
	}
	if !bytes.Equal(got.Body, body) {
		t.Errorf("Body = %v, want %v", got.Body, body)
	}
}

func TestOverwriteSameKey(t *testing.T) {
	c := newTestCache(t, Options{})

	if err := c.Set("https://api.test/x", "GET", "anon", testEntry([]byte("old"))); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Set("https://api.test/x", "GET", "anon", testEntry([]byte("new"))); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got := c.Get("https://api.test/x", "GET", "anon")
	if got == nil || string(got.Body) != "new" {
		t.Errorf("Get() after overwrite = %v, want body \"new\"", got)
	}
	if s := c.Stats(); s.Count != 1 {
		t.Errorf("Stats().Count = %d, want 1", s.Count)
	}
}

func TestEvictionOrder(t *testing.T) {
	c := newTestCache(t, Options{MaxSizeBytes: 10})

	if err := c.Set("https://api.test/a", "GET", "anon", testEntry([]byte("aaaa"))); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Set("https://api.test/b", "GET", "anon", testEntry([]byte("bbbb"))); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Touch a so b becomes the least-recently-accessed entry.
	time.Sleep(10 * time.Millisecond)
	if c.Get("https://api.test/a", "GET", "anon") == nil {
		t.Fatal("a missing")
	}

	// Third entry pushes the total over the bound; b should be evicted.
	if err := c.Set("https://api.test/c", "GET", "anon", testEntry([]byte("cccc"))); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if c.Get("https://api.test/b", "GET", "anon") != nil {
		t.Error("b survived eviction despite being least recently accessed")
	}
	if c.Get("https://api.test/a", "GET", "anon") == nil {
		t.Error("recently accessed a was evicted")
	}
}

func TestClearForIdentity(t *testing.T) {
	c := newTestCache(t, Options{})

	_ = c.Set("https://api.test/1", "GET", "alice", testEntry([]byte("a1")))
	_ = c.Set("https://api.test/2", "GET", "alice", testEntry([]byte("a2")))
	_ = c.Set("https://api.test/1", "GET", "bob", testEntry([]byte("b1")))

	if removed := c.ClearForIdentity("alice"); removed != 2 {
		t.Errorf("ClearForIdentity() = %d, want 2", removed)
	}
	if c.Get("https://api.test/1", "GET", "alice") != nil {
		t.Error("alice entry survived ClearForIdentity")
	}
	if c.Get("https://api.test/1", "GET", "bob") == nil {
		t.Error("bob entry removed by alice's ClearForIdentity")
	}
}

func TestListAndStats(t *testing.T) {
	c := newTestCache(t, Options{})

	_ = c.Set("https://api.test/1", "GET", "alice", testEntry([]byte("aa")))
	_ = c.Set("https://api.test/2", "GET", "bob", testEntry([]byte("bbbb")))

	all := c.ListAll()
	if len(all) != 2 {
		t.Fatalf("ListAll() returned %d entries, want 2", len(all))
	}

	alice := c.ListForIdentity("alice")
	if len(alice) != 1 || alice[0].Identity != "alice" {
		t.Errorf("ListForIdentity(alice) = %v", alice)
	}

	s := c.Stats()
	if s.Count != 2 {
		t.Errorf("Stats().Count = %d, want 2", s.Count)
	}
	if s.TotalSize != 6 {
		t.Errorf("Stats().TotalSize = %d, want 6", s.TotalSize)
	}
	if s.Oldest.IsZero() || s.Newest.IsZero() {
		t.Error("Stats() timestamps not populated")
	}
}

func TestCleanupPurgesExpired(t *testing.T) {
	c := newTestCache(t, Options{TTL: 30 * time.Millisecond})

	_ = c.Set("https://api.test/old", "GET", "anon", testEntry([]byte("x")))
	time.Sleep(50 * time.Millisecond)
	_ = c.Set("https://api.test/fresh", "GET", "anon", testEntry([]byte("y")))

	removed := c.Cleanup()
	if removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
	if c.Get("https://api.test/fresh", "GET", "anon") == nil {
		t.Error("fresh entry removed by cleanup")
	}
}

func TestKeyNormalization(t *testing.T) {
	if Key("HTTPS://API.Test:443/x", "get", "anon") != Key("https://api.test/x", "GET", "anon") {
		t.Error("equivalent targets produced different keys")
	}
	if Key("https://api.test/x", "GET", "alice") == Key("https://api.test/x", "GET", "bob") {
		t.Error("different identities share a key")
	}
}

func TestConcurrentOverwriteNeverTearsBody(t *testing.T) {
	c := newTestCache(t, Options{})

	bodyA := bytes.Repeat([]byte{'a'}, 64*1024)
	bodyB := bytes.Repeat([]byte{'b'}, 128*1024)

	if err := c.Set("https://api.test/hot", "GET", "user-1", testEntry(bodyA)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			body := bodyA
			if i%2 == 0 {
				body = bodyB
			}
			if err := c.Set("https://api.test/hot", "GET", "user-1", testEntry(body)); err != nil {
				t.Errorf("Set() error = %v", err)
				return
			}
		}
	}()

	// Every read must observe one complete record: a whole body from one
	// write, paired with that write's size.
	for i := 0; i < 500; i++ {
		got := c.Get("https://api.test/hot", "GET", "user-1")
		if got == nil {
			continue
		}
		if int64(len(got.Body)) != got.Size {
			t.Fatalf("read %d: body length %d does not match Size %d", i, len(got.Body), got.Size)
		}
		switch len(got.Body) {
		case len(bodyA):
			if !bytes.Equal(got.Body, bodyA) {
				t.Fatalf("read %d: torn body of length %d", i, len(got.Body))
			}
		case len(bodyB):
			if !bytes.Equal(got.Body, bodyB) {
				t.Fatalf("read %d: torn body of length %d", i, len(got.Body))
			}
		default:
			t.Fatalf("read %d: body length %d, want %d or %d", i, len(got.Body), len(bodyA), len(bodyB))
		}
	}

	<-done
}
