package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	"github.com/SscSPs/fare_collection_app/internal/dto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// FareClaims are the JWT claims issued to conductors and administrators.
// The subject is the conductor ID.
type FareClaims struct {
	jwt.RegisteredClaims
	Role    domain.Role `json:"role"`
	RouteID string      `json:"routeId,omitempty"`
}

// IssueToken signs an HS256 token for caller valid for ttl.
func IssueToken(secret, issuer string, caller Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := FareClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ConductorID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:    caller.Role,
		RouteID: caller.RouteID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// AuthMiddleware creates a Gin middleware handler that validates JWT tokens.
func AuthMiddleware(jwtSecret, issuer string) gin.HandlerFunc {
	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(issuer))
	}

	return func(c *gin.Context) {
		logger := GetLoggerFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Warn("Authorization header missing")
			abortUnauthorized(c, "Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			logger.Warn("Authorization header format invalid")
			abortUnauthorized(c, "Authorization header format must be Bearer {token}")
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &FareClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(jwtSecret), nil
		}, parserOpts...)

		if err != nil {
			logger.Warn("Invalid token", "error", err)
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token has expired"
			} else if errors.Is(err, jwt.ErrTokenNotValidYet) {
				msg = "Token not valid yet"
			}
			abortUnauthorized(c, msg)
			return
		}

		claims, ok := token.Claims.(*FareClaims)
		if !ok || !token.Valid || claims.Subject == "" || !claims.Role.IsValid() {
			logger.Warn("Invalid token claims or token is not valid")
			abortUnauthorized(c, "Invalid token claims")
			return
		}

		caller := Caller{ConductorID: claims.Subject, Role: claims.Role, RouteID: claims.RouteID}
		enrichedLogger := logger.With(
			slog.String("conductor_id", caller.ConductorID),
			slog.String("role", string(caller.Role)),
		)

		ctx := WithLogger(WithCaller(c.Request.Context(), caller), enrichedLogger)
		c.Request = c.Request.WithContext(ctx)
		c.Set(string(callerKey), caller)
		c.Set(string(loggerKey), enrichedLogger)

		c.Next()
	}
}

// RequireRole rejects callers whose role is not role. It must run after AuthMiddleware.
func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := GetCallerFromContext(c)
		if !ok {
			abortUnauthorized(c, "Authentication required")
			return
		}
		if caller.Role != role {
			GetLoggerFromContext(c).Warn("Caller lacks required role", slog.String("required_role", string(role)))
			c.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions", Code: dto.CodeForbidden})
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: msg, Code: dto.CodeUnauthorized})
}
