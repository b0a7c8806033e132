package proxy

import (
	"errors"
	"io"
	"net/http"

	"skyroute-hq/skyroute/pkg/routing"
	"skyroute-hq/skyroute/pkg/upstream"
)

const streamChunkSize = 32 << 10

// serveStream forwards an upstream response without buffering it. The
// first chunk is read before the status line is committed, so an
// immediate upstream read failure can still produce an error response;
// after that, failures can only be logged.
func (p *Pipeline) serveStream(w http.ResponseWriter, resp *upstream.Response, route *routing.Route, origin string) (int, string) {
	defer resp.Body.Close()

	buf := make([]byte, streamChunkSize)
	n, err := resp.Body.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		p.logger.Warn("upstream stream failed before first byte", "error", err)
		return writeRouteError(w, route, origin), "stream_error"
	}
	first := buf[:n]

	copyHeaders(w.Header(), resp.Header)
	route.CORS.Apply(w, origin)
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	write := func(chunk []byte) bool {
		if len(chunk) == 0 {
			return true
		}
		if _, werr := w.Write(chunk); werr != nil {
			p.logger.Warn("client write failed mid-stream", "error", werr)
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	if !write(first) {
		return resp.StatusCode, "stream_aborted"
	}
	if errors.Is(err, io.EOF) {
		return resp.StatusCode, "streamed"
	}

	for {
		n, err = resp.Body.Read(buf)
		if !write(buf[:n]) {
			return resp.StatusCode, "stream_aborted"
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.logger.Warn("upstream stream truncated", "error", err)
				return resp.StatusCode, "stream_truncated"
			}
			return resp.StatusCode, "streamed"
		}
	}
}
