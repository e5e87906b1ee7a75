package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/smertin-nikita/market/internal/domain"
	"github.com/smertin-nikita/market/internal/repository"
	"github.com/smertin-nikita/market/internal/service"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError translates the service/repository/domain error taxonomy
// into HTTP statuses. Invisible objects are 404, policy refusals 403, state
// conflicts 409, and the empty-basket confirm keeps its method-not-allowed
// shape.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrForbidden):
		respondError(w, http.StatusForbidden, "permission_denied", err.Error())
	case errors.Is(err, domain.ErrEmptyBasket):
		respondError(w, http.StatusMethodNotAllowed, "empty_basket", err.Error())
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, repository.ErrOrderNotBasket):
		respondError(w, http.StatusConflict, "state_conflict", err.Error())
	case errors.Is(err, repository.ErrProductInfoNotFound),
		errors.Is(err, repository.ErrDuplicateItem),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrBadStatus):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		zap.L().Error("unhandled service error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
