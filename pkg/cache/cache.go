package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	metaSuffix = ".json"
	bodySuffix = ".body"
)

// Cache is the disk-backed response cache. All methods are safe for
// concurrent use. Entries are replaced wholesale on Set; only the accounting
// fields (last-accessed, MRU flag) are mutated in place, best-effort.
type Cache struct {
	dir     string
	ttl     time.Duration
	maxSize int64
	logger  *slog.Logger

	mu    sync.RWMutex
	index map[string]*metadata
}

// Options configures a Cache.
type Options struct {
	// Directory is the on-disk record directory. Created if missing.
	Directory string

	// TTL is the entry lifetime from creation. Must be positive.
	TTL time.Duration

	// MaxSizeBytes bounds total body size; zero disables the bound.
	MaxSizeBytes int64

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New opens (or creates) a cache rooted at opts.Directory and loads the
// metadata index from any records persisted by a previous process.
func New(opts Options) (*Cache, error) {
	if opts.Directory == "" {
		return nil, fmt.Errorf("cache directory must not be empty")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("cache TTL must be positive, got %v", opts.TTL)
	}

	if err := os.MkdirAll(opts.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %q: %w", opts.Directory, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		dir:     opts.Directory,
		ttl:     opts.TTL,
		maxSize: opts.MaxSizeBytes,
		logger:  logger.With("component", "cache"),
		index:   make(map[string]*metadata),
	}

	if err := c.loadIndex(); err != nil {
		return nil, err
	}

	return c, nil
}

// loadIndex scans the cache directory and rebuilds the in-memory index.
// Records with unreadable metadata or a missing body file are dropped.
func (c *Cache) loadIndex() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory %q: %w", c.dir, err)
	}

	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, metaSuffix) {
			continue
		}
		key := strings.TrimSuffix(name, metaSuffix)

		data, err := os.ReadFile(filepath.Join(c.dir, name))
		if err != nil {
			c.logger.Warn("dropping unreadable cache record", "key", key, "error", err)
			c.removeFiles(key)
			continue
		}

		var meta metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			c.logger.Warn("dropping corrupt cache record", "key", key, "error", err)
			c.removeFiles(key)
			continue
		}

		if _, err := os.Stat(c.bodyPath(key)); err != nil {
			c.logger.Warn("dropping cache record with missing body", "key", key)
			c.removeFiles(key)
			continue
		}

		c.index[key] = &meta
	}

	c.logger.Info("cache index loaded", "entries", len(c.index), "directory", c.dir)
	return nil
}

// Get returns the cached entry for (target, method, identity), or nil on a
// miss. Expired entries are treated as misses and removed. A hit updates the
// entry's last-accessed timestamp and MRU flag best-effort.
//
// Metadata is snapshotted before the body read and the pair is only returned
// when the body length matches the snapshot, so a concurrent overwrite of
// the same key never yields a mixed record. On a mismatch the read is
// retried against the new record.
func (c *Cache) Get(target, method, identity string) *Entry {
	key := Key(target, method, identity)

	for attempt := 0; attempt < 3; attempt++ {
		c.mu.RLock()
		meta, ok := c.index[key]
		var snapshot metadata
		if ok {
			snapshot = *meta
		}
		c.mu.RUnlock()
		if !ok {
			return nil
		}

		if time.Since(snapshot.CreatedAt) > c.ttl {
			c.Delete(target, method, identity)
			return nil
		}

		body, err := os.ReadFile(c.bodyPath(key))
		if err != nil {
			c.logger.Warn("cache body unreadable, dropping entry", "key", key, "error", err)
			c.Delete(target, method, identity)
			return nil
		}

		// An overwrite landed between the snapshot and the read.
		if int64(len(body)) != snapshot.Size {
			continue
		}

		c.touch(key)

		return &Entry{
			StatusCode:   snapshot.StatusCode,
			Header:       cloneHeader(snapshot.Header),
			Body:         body,
			ContentType:  snapshot.ContentType,
			CreatedAt:    snapshot.CreatedAt,
			LastAccessed: snapshot.LastAccessed,
			Size:         snapshot.Size,
			InMRU:        snapshot.InMRU,
		}
	}

	return nil
}

// touch updates accounting fields for a hit. Failures to persist the updated
// metadata are logged and otherwise ignored; the fields are best-effort.
func (c *Cache) touch(key string) {
	c.mu.Lock()
	meta, ok := c.index[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	meta.LastAccessed = time.Now()
	meta.InMRU = true
	snapshot := *meta
	c.mu.Unlock()

	if err := c.writeMetadata(key, &snapshot); err != nil {
		c.logger.Debug("failed to persist access timestamp", "key", key, "error", err)
	}
}

// Set stores an entry for (target, method, identity), overwriting any prior
// entry for the same key. The body is written as raw bytes. After a
// successful write the size bound is enforced.
func (c *Cache) Set(target, method, identity string, entry *Entry) error {
	key := Key(target, method, identity)

	meta := &metadata{
		Target:      target,
		Method:      strings.ToUpper(method),
		Identity:    identity,
		StatusCode:  entry.StatusCode,
		Header:      entry.Header,
		ContentType: entry.ContentType,
		CreatedAt:   time.Now(),
		Size:        int64(len(entry.Body)),
	}

	if err := c.writeFileAtomic(c.bodyPath(key), entry.Body); err != nil {
		return fmt.Errorf("failed to write cache body for %s %s: %w", method, target, err)
	}
	if err := c.writeMetadata(key, meta); err != nil {
		c.removeFiles(key)
		return fmt.Errorf("failed to write cache metadata for %s %s: %w", method, target, err)
	}

	c.mu.Lock()
	c.index[key] = meta
	c.mu.Unlock()

	c.enforceSizeBound()
	return nil
}

// writeMetadata persists a metadata record atomically via rename.
func (c *Cache) writeMetadata(key string, meta *metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return c.writeFileAtomic(c.metaPath(key), data)
}

// writeFileAtomic writes data to a uniquely named temp file in the cache
// directory and renames it into place, so concurrent readers only ever see
// a complete file.
func (c *Cache) writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, ".write-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Delete removes the entry for (target, method, identity), if present.
func (c *Cache) Delete(target, method, identity string) {
	c.deleteKey(Key(target, method, identity))
}

func (c *Cache) deleteKey(key string) {
	c.mu.Lock()
	delete(c.index, key)
	c.mu.Unlock()
	c.removeFiles(key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.index))
	for key := range c.index {
		keys = append(keys, key)
	}
	c.index = make(map[string]*metadata)
	c.mu.Unlock()

	for _, key := range keys {
		c.removeFiles(key)
	}

	c.logger.Info("cache cleared", "removed", len(keys))
}

// ClearForIdentity removes all entries belonging to one identity.
func (c *Cache) ClearForIdentity(identity string) int {
	c.mu.Lock()
	var keys []string
	for key, meta := range c.index {
		if meta.Identity == identity {
			keys = append(keys, key)
			delete(c.index, key)
		}
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.removeFiles(key)
	}

	c.logger.Info("cache cleared for identity", "identity", identity, "removed", len(keys))
	return len(keys)
}

// Cleanup purges expired entries and enforces the size bound. It returns the
// number of entries removed.
func (c *Cache) Cleanup() int {
	now := time.Now()

	c.mu.Lock()
	var expired []string
	for key, meta := range c.index {
		if now.Sub(meta.CreatedAt) > c.ttl {
			expired = append(expired, key)
			delete(c.index, key)
		}
	}
	c.mu.Unlock()

	for _, key := range expired {
		c.removeFiles(key)
	}

	evicted := c.enforceSizeBound()

	if len(expired)+evicted > 0 {
		c.logger.Info("cache cleanup completed", "expired", len(expired), "evicted", evicted)
	}
	return len(expired) + evicted
}

// enforceSizeBound evicts least-recently-accessed entries until total body
// size fits the bound. Never-accessed entries fall back to their creation
// timestamp for ordering.
func (c *Cache) enforceSizeBound() int {
	if c.maxSize <= 0 {
		return 0
	}

	type candidate struct {
		key      string
		accessed time.Time
		size     int64
	}

	c.mu.Lock()
	var total int64
	candidates := make([]candidate, 0, len(c.index))
	for key, meta := range c.index {
		total += meta.Size
		accessed := meta.LastAccessed
		if accessed.IsZero() {
			accessed = meta.CreatedAt
		}
		candidates = append(candidates, candidate{key: key, accessed: accessed, size: meta.Size})
	}

	if total <= c.maxSize {
		c.mu.Unlock()
		return 0
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].accessed.Before(candidates[j].accessed)
	})

	var evicted []string
	for _, cand := range candidates {
		if total <= c.maxSize {
			break
		}
		total -= cand.size
		delete(c.index, cand.key)
		evicted = append(evicted, cand.key)
	}
	c.mu.Unlock()

	for _, key := range evicted {
		c.removeFiles(key)
	}

	return len(evicted)
}

// ListAll returns metadata for every entry, newest first.
func (c *Cache) ListAll() []Info {
	return c.list(func(*metadata) bool { return true })
}

// ListForIdentity returns metadata for one identity's entries, newest first.
func (c *Cache) ListForIdentity(identity string) []Info {
	return c.list(func(m *metadata) bool { return m.Identity == identity })
}

func (c *Cache) list(keep func(*metadata) bool) []Info {
	c.mu.RLock()
	infos := make([]Info, 0, len(c.index))
	for key, meta := range c.index {
		if !keep(meta) {
			continue
		}
		infos = append(infos, Info{
			Key:          key,
			Target:       meta.Target,
			Method:       meta.Method,
			Identity:     meta.Identity,
			StatusCode:   meta.StatusCode,
			ContentType:  meta.ContentType,
			Size:         meta.Size,
			CreatedAt:    meta.CreatedAt,
			LastAccessed: meta.LastAccessed,
			InMRU:        meta.InMRU,
		})
	}
	c.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos
}

// Stats returns entry count, total body size, and the oldest and newest
// creation timestamps.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{Count: len(c.index)}
	for _, meta := range c.index {
		s.TotalSize += meta.Size
		if s.Oldest.IsZero() || meta.CreatedAt.Before(s.Oldest) {
			s.Oldest = meta.CreatedAt
		}
		if meta.CreatedAt.After(s.Newest) {
			s.Newest = meta.CreatedAt
		}
	}
	return s
}

func (c *Cache) metaPath(key string) string {
	return filepath.Join(c.dir, key+metaSuffix)
}

func (c *Cache) bodyPath(key string) string {
	return filepath.Join(c.dir, key+bodySuffix)
}

// removeFiles deletes both files of a record, best-effort.
func (c *Cache) removeFiles(key string) {
	if err := os.Remove(c.metaPath(key)); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("failed to remove cache metadata file", "key", key, "error", err)
	}
	if err := os.Remove(c.bodyPath(key)); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("failed to remove cache body file", "key", key, "error", err)
	}
}

func cloneHeader(h map[string][]string) http.Header {
	clone := make(http.Header, len(h))
	for k, vs := range h {
		clone[k] = append([]string(nil), vs...)
	}
	return clone
}
