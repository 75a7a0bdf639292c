package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
	"github.com/platinummonkey/tenantgate/pkg/observability"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 response with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a 201 response with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a 204 response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteAPIError renders err as {"errorCode","message","data"}. Errors that
// are not *apierr.Error become INTERNAL_ERROR; their cause is logged and
// never sent to the client.
func WriteAPIError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierr.From(err)
	if apiErr == nil {
		apiErr = apierr.Internal(nil)
	}

	if apiErr.Code == apierr.CodeInternal {
		logger := observability.FromContext(r.Context()).WithFields(map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		if cause := apiErr.Unwrap(); cause != nil {
			logger = logger.WithError(cause)
		}
		logger.Error("Request failed")
	}

	_ = WriteJSON(w, apiErr.Status(), apiErr)
}

// WriteInvalidRequest writes an INVALID_REQUEST_PAYLOAD error
func WriteInvalidRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteAPIError(w, r, apierr.InvalidRequest(message))
}
