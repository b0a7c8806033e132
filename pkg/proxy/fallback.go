package proxy

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"skyroute-hq/skyroute/pkg/routing"
)

// fallbackText is served when the bundled fallback asset is unreadable.
const fallbackText = "Upstream rate limit exceeded. Please try again later.\n"

// Fallback serves the bundled static image returned with status 429 once
// the retry budget is exhausted.
type Fallback struct {
	// AssetPath is the image file read at serve time.
	AssetPath string
}

// Body returns the fallback bytes and content type: the asset byte-for-byte
// when readable, the plain-text substitute otherwise.
func (f *Fallback) Body() ([]byte, string) {
	data, err := os.ReadFile(f.AssetPath)
	if err != nil {
		return []byte(fallbackText), "text/plain; charset=utf-8"
	}
	return data, assetContentType(f.AssetPath)
}

// assetContentType maps the asset's extension to its content type.
func assetContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

// serveFallback responds 429 with the fallback body. The upstream's own
// rate-limit body is never forwarded to the client.
func (p *Pipeline) serveFallback(w http.ResponseWriter, route *routing.Route, origin string) int {
	body, contentType := p.fallback.Body()

	p.metrics.RecordFallback()

	route.CORS.Apply(w, origin)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusTooManyRequests)
	if _, err := w.Write(body); err != nil {
		p.logger.Warn("failed to write fallback response", "error", err)
	}

	return http.StatusTooManyRequests
}
