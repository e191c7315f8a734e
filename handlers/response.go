package handlers

import (
	"errors"
	"net/http"

	"rider-payments-api/config"
	"rider-payments-api/ledger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Standard response envelope: {status, message, data} on success,
// {status: "error", message} on failure.

func respond(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, gin.H{"status": "success", "message": message, "data": data})
}

func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"status": "error", "message": message})
}

func respondValidation(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"status":  "error",
		"message": "Validation failed",
		"errors":  err.Error(),
	})
}

// respondLedgerError maps ledger sentinel errors onto HTTP codes. Anything
// unrecognized is a 500: the transaction already rolled back, log and move on.
func respondLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrForbidden):
		respondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrUnsettledDebt),
		errors.Is(err, ledger.ErrAlreadyResolved),
		errors.Is(err, ledger.ErrOverpayment):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrInvalidInput):
		respondError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		config.Logger.Error("unexpected error", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Something went wrong")
	}
}
