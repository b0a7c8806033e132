package proxy

import (
	"encoding/json"
	"net/http"

	"skyroute-hq/skyroute/pkg/routing"
)

// ErrorBody is the JSON error shape returned for upstream transport
// failures and other pipeline errors.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code, the human-readable
// message, and the route the failure occurred on.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Route   string `json:"route"`
}

// Defaults for routes without an error override.
const (
	defaultErrorCode    = "upstream_error"
	defaultErrorMessage = "upstream request failed"
)

// writeRouteError responds with the route's configured error shape. The
// status defaults to 500 unless the route overrides it.
func writeRouteError(w http.ResponseWriter, route *routing.Route, origin string) int {
	code := defaultErrorCode
	message := defaultErrorMessage
	status := http.StatusInternalServerError

	if o := route.ErrorOverride; o != nil {
		if o.Code != "" {
			code = o.Code
		}
		if o.Message != "" {
			message = o.Message
		}
		if o.Status != 0 {
			status = o.Status
		}
	}

	route.CORS.Apply(w, origin)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: ErrorDetail{
		Code:    code,
		Message: message,
		Route:   route.ID(),
	}})

	return status
}
