// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and give clients a stable, machine-readable
// taxonomy next to the human-readable message. Service errors are translated
// in one place, mapServiceError, following the sentinel table:
//
//	ErrValidation          400 validation_failed
//	ErrUnauthenticated     401 unauthenticated
//	ErrPermission          403 forbidden
//	ErrNotFound            404 not_found
//	ErrInvalidState        409 invalid_state
//	ErrConflict            409 conflict
//	ErrResponsibleRemoval  422 responsible_removal
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "invalid_state",
//	  "message": "commitment 12 is Pendiente, archiving requires Completado: invalid state"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nicoiwnl/SGC-Maule/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeInvalidBody      = "invalid_body"
	ErrCodeUnauthenticated  = "unauthenticated"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeValidation         = "validation_failed"
	ErrCodeInvalidState       = "invalid_state"
	ErrCodeResponsibleRemoval = "responsible_removal"
)

// mapServiceError writes the error envelope for a service error. Unknown
// errors become a logged 500 whose message hides the cause.
func mapServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrUnauthenticated):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthenticated, err.Error())
	case errors.Is(err, services.ErrPermission):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidState):
		fail(c, http.StatusConflict, ErrCodeInvalidState, err.Error())
	case errors.Is(err, services.ErrConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrResponsibleRemoval):
		fail(c, http.StatusUnprocessableEntity, ErrCodeResponsibleRemoval, err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
