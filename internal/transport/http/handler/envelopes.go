package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coursehub/integration-api/internal/domain"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// httpError maps service errors to status codes. Only messages produced by
// this service reach the body; transport errors are logged instead.
func httpError(w http.ResponseWriter, err error) {
	var ge *domain.GatewayError
	switch {
	case errors.Is(err, domain.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, domain.ErrInvalidCode.Error())
	case errors.Is(err, domain.ErrExpired):
		writeError(w, http.StatusGone, domain.ErrExpired.Error())
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrMailDelivery):
		writeError(w, http.StatusBadGateway, "could not send verification email")
	case errors.Is(err, domain.ErrBatch):
		zap.L().Error("order batch error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not place order")
	case errors.Is(err, domain.ErrMalformedGatewayResponse):
		writeError(w, http.StatusBadGateway, "payment gateway returned an invalid response")
	case errors.As(err, &ge) && ge.Detail != "":
		writeError(w, http.StatusBadGateway, "payment gateway error: "+ge.Detail)
	case errors.Is(err, domain.ErrGatewayUnavailable):
		writeError(w, http.StatusBadGateway, domain.ErrGatewayUnavailable.Error())
	default:
		zap.L().Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
