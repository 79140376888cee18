package web

// errors.go gives every failure the same JSON shape: a coded
// user-facing message from ingest.MapError, with the technical error
// logged server-side under the request id for correlation.

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/finledger/finledger/internal/ingest"
	"github.com/finledger/finledger/internal/logging"
)

// ErrorResponse is the JSON body for failed requests.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Result  any    `json:"result,omitempty"`
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	s.respondErrorWithPayload(w, r, err, statusCode, nil)
}

// respondErrorWithPayload attaches a partial result to the error body;
// used when a fatal storage error aborts an import that had already
// committed some rows.
func (s *Server) respondErrorWithPayload(w http.ResponseWriter, r *http.Request, err error, statusCode int, payload any) {
	msg := ingest.MapError(err)

	logging.FromContext(r.Context()).Error("request failed",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"code", msg.Code,
		"error", err,
	)

	writeJSON(w, statusCode, ErrorResponse{
		Code:    msg.Code,
		Message: msg.Message,
		Action:  msg.Action,
		Result:  payload,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
