package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exam-engine/internal/response"
	"github.com/stemsi/exam-engine/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
)

var errNoToken = errors.New("authorization header or token query required")

// RequireStudentJWT validates a student JWT from the Authorization header.
func RequireStudentJWT(authService *service.AuthService) gin.HandlerFunc {
	return requireRole(authService, bearerToken, func(r service.Role) bool {
		return r == service.RoleStudent
	}, response.ErrStudentAccessOnly)
}

// RequireProctorJWT validates a proctor or admin JWT from the Authorization header.
func RequireProctorJWT(authService *service.AuthService) gin.HandlerFunc {
	return requireRole(authService, bearerToken, service.Role.CanProctor, response.ErrProctorAccessOnly)
}

// RequireWSAuth validates a JWT from the query param ?token=... for
// WebSocket upgrade requests, where browsers cannot set headers. Any role
// is accepted; the handler decides what the role may do.
func RequireWSAuth(authService *service.AuthService) gin.HandlerFunc {
	return requireRole(authService, queryToken, func(service.Role) bool { return true }, response.ErrForbidden)
}

func requireRole(
	authService *service.AuthService,
	extract func(c *gin.Context) (string, error),
	allowed func(service.Role) bool,
	denied response.ErrCode,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := extract(c)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := authService.ValidateToken(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if !allowed(claims.Role) {
			response.AbortFail(c, http.StatusForbidden, denied)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
		return parts[1], nil
	}
	return "", errNoToken
}

func queryToken(c *gin.Context) (string, error) {
	if tokenStr := c.Query("token"); tokenStr != "" {
		return tokenStr, nil
	}
	return "", errNoToken
}
