package cache

import (
	"net/http"
	"time"
)

// Entry is one cached response. Body holds the raw response bytes; it is
// persisted verbatim and must never be transcoded through a text encoding.
type Entry struct {
	// StatusCode is the HTTP status to replay.
	StatusCode int

	// Header is the response header map to replay.
	Header http.Header

	// Body is the opaque response body.
	Body []byte

	// ContentType is the response content type.
	ContentType string

	// CreatedAt is when the entry was stored.
	CreatedAt time.Time

	// LastAccessed is updated on every hit. Zero for never-accessed
	// entries.
	LastAccessed time.Time

	// Size is the body length in bytes.
	Size int64

	// InMRU marks recent-use membership; exposed for operational
	// visibility and updated best-effort on each hit.
	InMRU bool
}

// Info describes a cached entry without its body, as returned by the listing
// operations.
type Info struct {
	Key          string    `json:"key"`
	Target       string    `json:"target"`
	Method       string    `json:"method"`
	Identity     string    `json:"identity"`
	StatusCode   int       `json:"status_code"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed,omitzero"`
	InMRU        bool      `json:"in_mru"`
}

// Stats summarizes the cache contents.
type Stats struct {
	Count     int       `json:"count"`
	TotalSize int64     `json:"total_size"`
	Oldest    time.Time `json:"oldest,omitzero"`
	Newest    time.Time `json:"newest,omitzero"`
}

// metadata is the persisted JSON record accompanying a body file.
type metadata struct {
	Target       string              `json:"target"`
	Method       string              `json:"method"`
	Identity     string              `json:"identity"`
	StatusCode   int                 `json:"status_code"`
	Header       map[string][]string `json:"header"`
	ContentType  string              `json:"content_type"`
	CreatedAt    time.Time           `json:"created_at"`
	LastAccessed time.Time           `json:"last_accessed,omitzero"`
	Size         int64               `json:"size"`
	InMRU        bool                `json:"in_mru"`
}
