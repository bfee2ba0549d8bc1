package core

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// respondError sends unified error payload {"error": {"code", "message"}}.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// respondDomainError maps the error taxonomy onto HTTP statuses.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		c.Header("WWW-Authenticate", `Bearer realm="taskmanager"`)
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	case errors.Is(err, ErrAccessDenied):
		respondError(c, http.StatusForbidden, "FORBIDDEN", "you are not allowed to perform this operation")
	case errors.Is(err, ErrResourceNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, ErrConflict):
		respondError(c, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, ErrValidation):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password")
	default:
		log.Printf("[api] request_id=%s %s %s: %v", RequestID(c), c.Request.Method, c.Request.URL.Path, err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "unexpected error occurred")
	}
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid "+name)
		return 0, false
	}
	return id, true
}
