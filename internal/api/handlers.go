package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/heritage-watch/heritage-cli/internal/heritage"
	"github.com/heritage-watch/heritage-cli/internal/model"
)

type errorBody struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type healthBody struct {
	Status        string `json:"status"`
	SnapshotReady bool   `json:"snapshot_ready"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var q model.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			ErrorCode: "MalformedRequest",
			Message:   "request body must be JSON with latitude and longitude",
		})
		return
	}

	res, err := s.svc.Resolve(r.Context(), q)
	if err != nil {
		writeResolutionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats())
}

// handleHealth reports 200 once a dataset snapshot is loaded and 503 while
// the store is still warming up, so orchestrators hold traffic until the
// engine can answer.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.svc.Stats()
	if !stats.SnapshotReady {
		writeJSON(w, http.StatusServiceUnavailable, healthBody{Status: "warming", SnapshotReady: false})
		return
	}
	writeJSON(w, http.StatusOK, healthBody{Status: "ok", SnapshotReady: true})
}

// writeResolutionError maps engine failure codes onto HTTP statuses. The
// classification itself never degrades: an error is always an error, never a
// GREEN.
func writeResolutionError(w http.ResponseWriter, err error) {
	code := heritage.CodeOf(err)

	var status int
	switch code {
	case heritage.CodeInvalidCoordinate:
		status = http.StatusBadRequest
	case heritage.CodeOutOfCoverageArea:
		status = http.StatusUnprocessableEntity
	case heritage.CodeStoreNotReady:
		status = http.StatusServiceUnavailable
	case heritage.CodeMatcherTimeout:
		status = http.StatusGatewayTimeout
	default:
		code = heritage.CodeInternal
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, errorBody{
		ErrorCode: string(code),
		Message:   err.Error(),
		Retryable: heritage.IsRetryable(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("api: failed to encode response", zap.Error(err))
	}
}
