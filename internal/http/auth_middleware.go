package http

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"task-tracker/internal/auth"
	"task-tracker/internal/domain"
	"task-tracker/internal/service"
)

// TokenVerifier turns a bearer token into the identity it was issued for.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

type identityContextKey struct{}

const ginIdentityKey = "task-tracker-identity"

// requireAuth rejects requests without a valid bearer token and attaches the
// verified identity to the gin and request contexts.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			h.rejectAuth(c, err)
			return
		}

		identity, err := h.verifier.Verify(token)
		if err != nil {
			h.rejectAuth(c, err)
			return
		}

		c.Set(ginIdentityKey, identity)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), identityContextKey{}, identity))
		c.Next()
	}
}

func (h *Handler) rejectAuth(c *gin.Context, cause error) {
	h.logger.WithFields(logrus.Fields{
		"path":      c.Request.URL.Path,
		"client_ip": c.ClientIP(),
		"error":     cause,
	}).Warn("authorization rejected")
	h.writeError(c, auth.ErrInvalidToken)
}

// identity returns the caller's identity, writing a 401 when the gate did
// not run for this route.
func (h *Handler) identity(c *gin.Context) (domain.Identity, bool) {
	identity, ok := identityFromContext(c)
	if !ok {
		h.writeError(c, service.ErrMissingIdentity)
		return domain.Identity{}, false
	}
	return identity, true
}

func identityFromContext(c *gin.Context) (domain.Identity, bool) {
	if value, ok := c.Get(ginIdentityKey); ok {
		identity, ok := value.(domain.Identity)
		return identity, ok && identity.Email != ""
	}
	return IdentityFromContext(c.Request.Context())
}

// IdentityFromContext extracts the authenticated identity from a request context.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(domain.Identity)
	return identity, ok && identity.Email != ""
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
