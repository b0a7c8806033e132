// Package geo defines the geolocation lookup contract consumed by the fetch
// pipeline for statistics enrichment.
package geo

// Locator maps a client IP to a coarse location string. An empty string with
// ok=false means the location is unknown; lookups must never fail a request.
type Locator interface {
	Locate(ip string) (location string, ok bool)
}

// Nop is a Locator that never knows a location.
type Nop struct{}

// Locate implements Locator.
func (Nop) Locate(string) (string, bool) {
	return "", false
}
