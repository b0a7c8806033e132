// Package stats defines the statistics recorder contract consumed by the
// fetch pipeline. Aggregation and storage live behind this interface; the
// pipeline invokes it fire-and-forget and never blocks on it.
package stats

import "time"

// Record is one completed request observation.
type Record struct {
	// Identity is the caller's cache-partitioning identity.
	Identity string

	// Location is the caller's geolocation, empty when unknown.
	Location string

	// Path is the inbound request path.
	Path string

	// Method is the HTTP method.
	Method string

	// UserAgent is the inbound User-Agent header.
	UserAgent string

	// Duration is the total request handling time.
	Duration time.Duration

	// Domain is the matched route's domain.
	Domain string

	// Target is the resolved upstream target.
	Target string

	// RequestType is the matched route's type tag.
	RequestType string
}

// Recorder receives request records. Implementations must be safe for
// concurrent use and must not block the caller.
type Recorder interface {
	Record(rec Record)
}

// Nop is a Recorder that discards everything.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(Record) {}
