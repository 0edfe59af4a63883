package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader     = "X-Request-ID"
	requestIDContextKey = "newsroom_request_id"
	principalContextKey = "newsroom_admin_principal"

	maxRequestIDLength = 128
)

// requestIDMiddleware keeps a caller supplied X-Request-ID or assigns a UUIDv7.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = newRequestID()
		}
		c.Set(requestIDContextKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDContextKey)
}

func (h *httpHandler) authorizeAdmin(c *gin.Context) {
	credential := c.GetHeader(idTokenHeader)
	principal, err := h.gate.Authorize(c.Request.Context(), credential,
		zap.String("request_id", requestIDFrom(c)),
		zap.String("route", c.FullPath()),
	)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrMissingCredential):
		abortText(c, http.StatusBadRequest, "Missing idToken header")
		return
	default:
		abortText(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	c.Set(principalContextKey, principal)
	c.Next()
}

func principalFrom(c *gin.Context) auth.AdminPrincipal {
	value, ok := c.Get(principalContextKey)
	if !ok {
		return auth.AdminPrincipal{}
	}
	principal, _ := value.(auth.AdminPrincipal)
	return principal
}

func abortText(c *gin.Context, status int, message string) {
	c.Abort()
	c.String(status, message)
}
