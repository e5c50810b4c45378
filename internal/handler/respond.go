package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/velora/checkout/internal/domain/checkout"
)

// errorBody is the envelope for every non-2xx response. Errors carries
// per-field reason codes when the failure is a validation one.
type errorBody struct {
	Code    string                `json:"code"`
	Message string                `json:"message"`
	Errors  []checkout.FieldError `json:"errors,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Warn("Encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, errorBody{Code: code, Message: message})
}

func respondValidation(w http.ResponseWriter, r *http.Request, verrs checkout.ValidationErrors) {
	respondJSON(w, r, http.StatusBadRequest, errorBody{
		Code:    "validation_failed",
		Message: "request validation failed",
		Errors:  verrs,
	})
}

func respondServerError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Internal error", zap.Error(err))
	respondError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, r, http.StatusBadRequest, "malformed_body", "request body is not valid JSON")
		return false
	}
	return true
}
