package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/logging"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// respondError translates a service error into the API's error contract:
// field-scoped validation failures map to 422, authorization failures to
// 403, missing records to 404, signature failures to 401 and external
// provider failures to 502. Anything else is a 500 with no detail leaked.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	if ve, ok := apperr.AsValidation(err); ok {
		respondJSON(ctx, w, http.StatusUnprocessableEntity, map[string]string{
			"error": ve.Message,
			"field": ve.Field,
		})
		return
	}

	switch {
	case errors.Is(err, apperr.ErrForbidden):
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "operation not permitted"})
	case errors.Is(err, apperr.ErrNotFound):
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "record not found"})
	case errors.Is(err, apperr.ErrBadSignature):
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
	case apperr.IsProvider(err):
		logging.FromContext(ctx).Error("external provider failure", "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "upstream provider unavailable"})
	default:
		logging.FromContext(ctx).Error("request handling failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
