package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wavecrest/music-shop-ledger/internal/domain"
	"github.com/wavecrest/music-shop-ledger/internal/logger"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	errCodeBadRequest        ErrorCode = "bad_request"
	errCodeNotFound          ErrorCode = "not_found"
	errCodeUnauthorized      ErrorCode = "unauthorized"
	errCodeOutOfStock        ErrorCode = "out_of_stock"
	errCodeIncorrectPayment  ErrorCode = "incorrect_payment"
	errCodeAlreadyDelivered  ErrorCode = "already_delivered"
	errCodeDirectTransfer    ErrorCode = "direct_transfer_rejected"
	errCodeInsufficientFunds ErrorCode = "insufficient_funds"

	// Server errors (5xx)
	errCodeInternalError ErrorCode = "internal_error"
)

// errorResponse represents a standardized error response
type errorResponse struct {
	Error errorDetail `json:"error"`
}

// errorDetail contains error information
type errorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, statusCode int, code ErrorCode, message string, details ...string) {
	response := errorResponse{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	}

	if len(details) > 0 {
		response.Error.Details = details[0]
	}

	c.JSON(statusCode, response)
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusBadRequest, errCodeBadRequest, message, details...)
}

// respondNotFound sends a 404 Not Found response
func respondNotFound(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusNotFound, errCodeNotFound, message, details...)
}

// respondInternalError sends a 500 Internal Server Error response and logs the error
func respondInternalError(c *gin.Context, err error, message string, fields ...zap.Field) {
	logger.Error(err, fields...)
	respondWithError(c, http.StatusInternalServerError, errCodeInternalError, message)
}

// respondLedgerError maps the ledger error taxonomy onto HTTP responses.
// Every failed call aborts with no state change, so the body is purely
// diagnostic.
func respondLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		respondWithError(c, http.StatusForbidden, errCodeUnauthorized, err.Error())
	case errors.Is(err, domain.ErrAlbumNotFound), errors.Is(err, domain.ErrOrderNotFound):
		respondWithError(c, http.StatusNotFound, errCodeNotFound, err.Error())
	case errors.Is(err, domain.ErrOutOfStock):
		respondWithError(c, http.StatusConflict, errCodeOutOfStock, err.Error())
	case errors.Is(err, domain.ErrIncorrectPayment):
		respondWithError(c, http.StatusPaymentRequired, errCodeIncorrectPayment, err.Error())
	case errors.Is(err, domain.ErrAlreadyDelivered):
		respondWithError(c, http.StatusConflict, errCodeAlreadyDelivered, err.Error())
	case errors.Is(err, domain.ErrDirectTransfer):
		respondWithError(c, http.StatusBadRequest, errCodeDirectTransfer, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		respondWithError(c, http.StatusPaymentRequired, errCodeInsufficientFunds, err.Error())
	default:
		respondInternalError(c, err, "Unexpected ledger error")
	}
}
