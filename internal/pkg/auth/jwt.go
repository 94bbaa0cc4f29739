// internal/pkg/auth/jwt.go
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/your-org/storefront/internal/config"
)

// Token kinds carried in Claims.TokenType
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("wrong token type")
)

// Claims identifies a storefront user. Refresh tokens never carry IsAdmin.
type Claims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"is_admin"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies HS256 tokens issued under the app name
type JWTManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(cfg *config.Config) *JWTManager {
	return &JWTManager{
		secret:     []byte(cfg.JWT.Secret),
		issuer:     cfg.App.Name,
		accessTTL:  cfg.JWT.AccessTokenExpiry,
		refreshTTL: cfg.JWT.RefreshTokenExpiry,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.App.Name),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(5*time.Second),
		),
	}
}

// AccessTTL is the lifetime of access tokens
func (j *JWTManager) AccessTTL() time.Duration {
	return j.accessTTL
}

// GenerateAccessToken generates a new access token
func (j *JWTManager) GenerateAccessToken(userID uint, username string, isAdmin bool) (string, error) {
	return j.sign(Claims{UserID: userID, Username: username, IsAdmin: isAdmin, TokenType: TokenTypeAccess}, j.accessTTL)
}

// GenerateRefreshToken generates a new refresh token
func (j *JWTManager) GenerateRefreshToken(userID uint, username string) (string, error) {
	return j.sign(Claims{UserID: userID, Username: username, TokenType: TokenTypeRefresh}, j.refreshTTL)
}

func (j *JWTManager) sign(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    j.issuer,
		Subject:   fmt.Sprintf("user:%d", claims.UserID),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", claims.TokenType, err)
	}
	return signed, nil
}

// ValidateToken parses a token of either kind
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := j.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == 0 || claims.TokenType == "" {
		return nil, fmt.Errorf("%w: missing user or token type", ErrInvalidToken)
	}
	return claims, nil
}

// ValidateAccessToken accepts access tokens only
func (j *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	return j.validateType(tokenString, TokenTypeAccess)
}

// ValidateRefreshToken accepts refresh tokens only
func (j *JWTManager) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return j.validateType(tokenString, TokenTypeRefresh)
}

func (j *JWTManager) validateType(tokenString, expected string) (*Claims, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != expected {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrWrongTokenType, expected, claims.TokenType)
	}
	return claims, nil
}

// ExtractTokenFromHeader returns the bearer token of an Authorization header, or ""
func ExtractTokenFromHeader(authHeader string) string {
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
