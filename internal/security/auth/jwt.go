package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type claim values. The type claim is always checked, not just the
// signature: an access token must never pass where a refresh token is
// required and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims carried by both token types.
type Claims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 access and refresh tokens. Each
// token type is signed with its own secret, so compromising one signing key
// cannot forge the other type. Expiry comparisons use UTC with zero clock
// skew tolerance.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
}

// NewTokenManager creates a token manager with independent secrets per type.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenManager, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("both token secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        "draftmill",
	}, nil
}

// IssueAccessToken mints a short-lived access token for the user.
func (tm *TokenManager) IssueAccessToken(email, role string) (string, error) {
	return tm.issue(email, role, TokenTypeAccess, tm.accessSecret, tm.accessTTL)
}

// IssueRefreshToken mints a long-lived refresh token for the user.
func (tm *TokenManager) IssueRefreshToken(email, role string) (string, error) {
	return tm.issue(email, role, TokenTypeRefresh, tm.refreshSecret, tm.refreshTTL)
}

func (tm *TokenManager) issue(email, role, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	if email == "" {
		return "", errors.New("email required")
	}
	now := time.Now().UTC()
	claims := Claims{
		Email:     email,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyAccessToken validates an access token. It returns an error for any
// of: bad signature, elapsed expiry, wrong type claim, malformed payload.
// Callers must treat every failure uniformly as "not authenticated"; the
// error is for internal logs only.
func (tm *TokenManager) VerifyAccessToken(tokenString string) (*Claims, error) {
	return tm.verify(tokenString, TokenTypeAccess, tm.accessSecret)
}

// VerifyRefreshToken validates a refresh token.
func (tm *TokenManager) VerifyRefreshToken(tokenString string) (*Claims, error) {
	return tm.verify(tokenString, TokenTypeRefresh, tm.refreshSecret)
}

func (tm *TokenManager) verify(tokenString, wantType string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return time.Now().UTC() }))
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("wrong token type: got %q, want %q", claims.TokenType, wantType)
	}
	return claims, nil
}

// ExtractToken pulls the bearer token out of an Authorization header.
func ExtractToken(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization header")
	}
	return parts[1], nil
}
