package middleware

import (
	"context"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	"github.com/gin-gonic/gin"
)

// callerKey is the key used to store the authenticated caller.
const callerKey = contextKey("caller")

// Caller is the identity carried by a validated token.
type Caller struct {
	ConductorID string
	Role        domain.Role
	RouteID     string // Route the conductor is working, if the token is scoped to one
}

// IsAdmin reports whether the caller has administrative authority.
func (c Caller) IsAdmin() bool {
	return c.Role == domain.RoleAdmin
}

// CanActAs reports whether the caller may read or write on behalf of conductorID.
func (c Caller) CanActAs(conductorID string) bool {
	return c.IsAdmin() || c.ConductorID == conductorID
}

// WithCaller returns a copy of ctx carrying caller.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromCtx retrieves the authenticated caller from a standard context.
func CallerFromCtx(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey).(Caller)
	return caller, ok
}

// GetCallerFromContext retrieves the authenticated caller from the Gin context.
// It returns the caller and a boolean indicating if it was found.
func GetCallerFromContext(c *gin.Context) (Caller, bool) {
	if val, exists := c.Get(string(callerKey)); exists {
		if caller, ok := val.(Caller); ok {
			return caller, true
		}
	}
	return CallerFromCtx(c.Request.Context())
}
