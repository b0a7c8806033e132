package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"skyroute-hq/skyroute/pkg/cache"
)

// AdminHandler exposes cache administration endpoints. It expects the
// /admin/cache prefix to be stripped before it runs:
//
//	GET    /stats                      - cache statistics
//	GET    /entries                    - list all entries (no bodies)
//	GET    /entries?identity=I         - list entries for one identity
//	DELETE /entries?target=T&method=M&identity=I - delete one entry
//	POST   /cleanup                    - purge expired entries, enforce size bound
//	POST   /clear                      - drop everything
//	POST   /clear?identity=I           - drop one identity's entries
type AdminHandler struct {
	cache *cache.Cache
}

// NewAdminHandler creates the cache administration handler.
func NewAdminHandler(c *cache.Cache) *AdminHandler {
	return &AdminHandler{cache: c}
}

func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/stats" && r.Method == http.MethodGet:
		h.stats(w)
	case r.URL.Path == "/entries" && r.Method == http.MethodGet:
		h.list(w, r)
	case r.URL.Path == "/entries" && r.Method == http.MethodDelete:
		h.delete(w, r)
	case r.URL.Path == "/cleanup" && r.Method == http.MethodPost:
		h.cleanup(w)
	case r.URL.Path == "/clear" && r.Method == http.MethodPost:
		h.clear(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *AdminHandler) stats(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *AdminHandler) list(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("identity")

	var entries []cache.Info
	if identity != "" {
		entries = h.cache.ListForIdentity(identity)
	} else {
		entries = h.cache.ListAll()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}

func (h *AdminHandler) delete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("target")
	method := q.Get("method")
	identity := q.Get("identity")

	if target == "" || method == "" || identity == "" {
		http.Error(w, "target, method, and identity query parameters are required", http.StatusBadRequest)
		return
	}

	h.cache.Delete(target, method, identity)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *AdminHandler) cleanup(w http.ResponseWriter) {
	removed := h.cache.Cleanup()
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *AdminHandler) clear(w http.ResponseWriter, r *http.Request) {
	if identity := r.URL.Query().Get("identity"); identity != "" {
		removed := h.cache.ClearForIdentity(identity)
		writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
		return
	}

	h.cache.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to encode admin response", "error", err)
	}
}
