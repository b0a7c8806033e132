package proxy

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"skyroute-hq/skyroute/pkg/cache"
	"skyroute-hq/skyroute/pkg/convert"
	"skyroute-hq/skyroute/pkg/routing"
	"skyroute-hq/skyroute/pkg/upstream"
)

// conversionParams holds the document conversion request parsed from query
// parameters. A nil value means no conversion was requested.
type conversionParams struct {
	Format convert.Format
	Width  int
	Height int
}

// parseConversion reads the convert, width, and height query parameters.
// An absent convert parameter means pass-through; an absent dimension means
// the rasterizer's default, but a supplied dimension must be in range, so
// an explicit 0 is rejected rather than treated as unset.
func parseConversion(r *http.Request) (*conversionParams, error) {
	format := r.URL.Query().Get("convert")
	if format == "" {
		return nil, nil
	}

	params := &conversionParams{Format: convert.Format(format)}

	var err error
	if raw := r.URL.Query().Get("width"); raw != "" {
		params.Width, err = strconv.Atoi(raw)
		if err != nil || params.Width < convert.MinDimension || params.Width > convert.MaxDimension {
			return nil, &badParamError{name: "width", value: raw}
		}
	}
	if raw := r.URL.Query().Get("height"); raw != "" {
		params.Height, err = strconv.Atoi(raw)
		if err != nil || params.Height < convert.MinDimension || params.Height > convert.MaxDimension {
			return nil, &badParamError{name: "height", value: raw}
		}
	}

	return params, nil
}

type badParamError struct {
	name  string
	value string
}

func (e *badParamError) Error() string {
	return "invalid " + e.name + " parameter: " + strconv.Quote(e.value)
}

// serveBuffered handles the GET 200 branch: the upstream body is read in
// full, optionally converted, cached, and then written to the client.
// Returns the status written and the branch name for the terminal log.
func (p *Pipeline) serveBuffered(w http.ResponseWriter, r *http.Request, route *routing.Route, resp *upstream.Response, target, identity, origin string) (int, string) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.Warn("failed to read upstream body", "target", target, "error", err)
		return writeRouteError(w, route, origin), "read_error"
	}

	branch := "fetched"
	contentType := resp.Header.Get("Content-Type")

	params, err := parseConversion(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return http.StatusBadRequest, "bad_request"
	}
	if params != nil {
		start := time.Now()
		result, err := p.converter.Convert(r.Context(), convert.Job{
			PDF:         body,
			ContentType: contentType,
			Format:      params.Format,
			Width:       params.Width,
			Height:      params.Height,
		})
		if err != nil {
			p.metrics.RecordConversion(false, time.Since(start))
			p.logger.Error("document conversion failed", "target", target, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return http.StatusInternalServerError, "conversion_error"
		}
		p.metrics.RecordConversion(true, time.Since(start))

		body = result.Image
		contentType = result.ContentType
		resp.Header.Set("Content-Type", contentType)
		branch = "converted"
	}

	// Cache write failures degrade to pass-through, never to an error
	// response.
	entry := &cache.Entry{
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
		Body:        body,
		ContentType: contentType,
	}
	if err := p.cache.Set(target, r.Method, identity, entry); err != nil {
		p.logger.Warn("failed to cache response", "target", target, "error", err)
	}

	copyHeaders(w.Header(), resp.Header)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	route.CORS.Apply(w, origin)
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(body); err != nil {
		p.logger.Warn("failed to write response", "error", err)
	}

	return resp.StatusCode, branch
}
