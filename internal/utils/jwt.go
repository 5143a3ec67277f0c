package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// ErrInvalidToken token failed signature, expiry or issuer checks
var ErrInvalidToken = errors.New("invalid token")

// JWTClaims identity of a chat user forwarded by the gateway bridge
type JWTClaims struct {
	UserID string `json:"uid"`
	Tag    string `json:"tag,omitempty"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token carries the admin capability
func (c *JWTClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// JWTManager signs and verifies HS256 tokens
type JWTManager struct {
	secretKey []byte
	issuer    string
	expire    time.Duration
}

// NewJWTManager creates a JWT manager
func NewJWTManager(secretKey, issuer string, expire time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		expire:    expire,
	}
}

// GenerateToken issues a token for a chat user
func (m *JWTManager) GenerateToken(userID, tag, role string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	if role != RoleAdmin {
		role = RoleMember
	}

	now := time.Now()
	claims := &JWTClaims{
		UserID: userID,
		Tag:    tag,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expire)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// ValidateToken verifies a token and returns its claims
func (m *JWTManager) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secretKey, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
