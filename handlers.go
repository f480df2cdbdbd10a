package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tichlabs/tichpay_backend/utils"
)

// currentUserId resolves the acting user for a request. The correlation
// middleware stamps the default user into the request context; the fallback
// covers requests served before that wiring.
func (app *application) currentUserId(c *gin.Context) uuid.UUID {
	if raw, ok := utils.GetUserIdFromContext(c.Request.Context()); ok {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	return app.defaultUser.ID
}

// respondError maps the error taxonomy onto HTTP statuses. Anything outside
// the taxonomy is a 500 with a generic body; the detail goes to the log via
// the gin error list.
func (app *application) respondError(c *gin.Context, err error) {
	var (
		validationErr *utils.ValidationError
		notFoundErr   *utils.NotFoundError
		conflictErr   *utils.ConflictError
		signatureErr  *utils.InvalidSignatureError
		upstreamErr   *utils.UpstreamError
		numberingErr  *utils.NumberingExhaustedError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Error()})
	case errors.As(err, &signatureErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
	case errors.As(err, &upstreamErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": upstreamErr.Error()})
	case errors.As(err, &numberingErr):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not assign an invoice number; please retry"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
