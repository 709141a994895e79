package handlers

import (
	"errors"
	"net/http"

	"bustix/internal/domain"
	"bustix/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	resp := ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	}
	reqID := middleware.GetRequestID(c)
	if reqID != "" {
		c.JSON(status, gin.H{
			"error":      resp.Error,
			"code":       resp.Code,
			"details":    resp.Details,
			"request_id": reqID,
			"message":    message,
		})
		return
	}
	c.JSON(status, resp)
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case domain.IsUnauthorized(err):
		respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	case domain.IsForbidden(err):
		respondError(c, http.StatusForbidden, "forbidden", err.Error(), nil)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case domain.IsConflict(err):
		var details any
		if seats := domain.ConflictSeats(err); len(seats) > 0 {
			details = gin.H{"seat_ids": seats}
		}
		respondError(c, http.StatusConflict, "conflict", err.Error(), details)
	case domain.IsExpired(err):
		respondError(c, http.StatusGone, "expired", err.Error(), nil)
	case domain.IsInsufficientFunds(err):
		var ife domain.InsufficientFundsError
		errors.As(err, &ife)
		respondError(c, http.StatusPaymentRequired, "insufficient_funds", "saldo tidak mencukupi", gin.H{
			"balance":  ife.Balance,
			"required": ife.Required,
		})
	case domain.IsNetworkUnavailable(err):
		respondError(c, http.StatusServiceUnavailable, "unavailable", err.Error(), nil)
	default:
		respondError(c, http.StatusInternalServerError, "internal_error", "terjadi kesalahan", nil)
	}
}

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "body kosong", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "payload tidak valid", gin.H{"cause": err.Error()})
		return false
	}
	return true
}
