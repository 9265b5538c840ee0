package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rideledger/internal/domain"
	"rideledger/internal/service"
)

const callerKey = "caller"

// TokenParser verifies bearer tokens. Implemented by service.AuthService.
type TokenParser interface {
	ParseToken(raw string) (service.Identity, error)
}

// DriverAuthorizer re-checks a driver's account on every request. Implemented by service.DriverService.
type DriverAuthorizer interface {
	Authorize(ctx context.Context, driverID string) error
}

// Authenticate requires a valid bearer token and stores the caller in the context.
func Authenticate(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		identity, err := tokens.ParseToken(strings.TrimSpace(raw))
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		c.Set(callerKey, identity)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed. It must run after Authenticate.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := Caller(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		for _, role := range roles {
			if caller.Role == role {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "insufficient role")
	}
}

// RequireActiveDriver rejects drivers that were deleted or are no longer active since
// their token was issued. Non-driver callers pass through.
func RequireActiveDriver(drivers DriverAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := Caller(c)
		if !ok || caller.Role != domain.RoleDriver {
			c.Next()
			return
		}

		if err := drivers.Authorize(c.Request.Context(), caller.ID); err != nil {
			switch {
			case errors.Is(err, service.ErrUnauthorized):
				abort(c, http.StatusUnauthorized, "invalid or expired token")
			case errors.Is(err, service.ErrForbidden):
				abort(c, http.StatusForbidden, err.Error())
			default:
				_ = c.Error(err)
				abort(c, http.StatusInternalServerError, "internal server error")
			}
			return
		}
		c.Next()
	}
}

// Caller returns the authenticated caller.
func Caller(c *gin.Context) (service.Identity, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return service.Identity{}, false
	}
	identity, ok := v.(service.Identity)
	return identity, ok
}

func abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}
