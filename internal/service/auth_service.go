package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/exam-engine/internal/config"
)

// Role distinguishes the callers this engine serves.
type Role string

const (
	RoleStudent Role = "student"
	RoleProctor Role = "proctor"
	RoleAdmin   Role = "admin"
)

// CanProctor reports whether the role may join proctor rooms and issue commands.
func (r Role) CanProctor() bool {
	return r == RoleProctor || r == RoleAdmin
}

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	Role   Role      `json:"role"`
	UserID uuid.UUID `json:"user_id"`
}

// AuthService verifies the bearer tokens issued by the identity service.
// It shares the HMAC secret with the issuer.
type AuthService struct {
	secret []byte
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{secret: []byte(cfg.JWTSecret)}
}

// IssueToken signs a token for userID. Used by operator tooling and tests;
// production tokens come from the identity service.
func (s *AuthService) IssueToken(userID uuid.UUID, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:   role,
		UserID: userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == uuid.Nil {
		return nil, errors.New("token carries no user id")
	}
	switch claims.Role {
	case RoleStudent, RoleProctor, RoleAdmin:
	default:
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}

	return claims, nil
}
