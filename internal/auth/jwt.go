package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/golang-jwt/jwt/v5"
)

// OwnerClaims 令牌声明，Subject即文档所有者ID
type OwnerClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// OwnerID 所有者ID
func (c *OwnerClaims) OwnerID() string {
	return c.Subject
}

// JWTService 签发与校验所有者令牌
type JWTService struct {
	secretKey []byte
	issuer    string
	expiresIn time.Duration
}

// NewJWTService 创建JWT服务
func NewJWTService(secretKey, issuer string, expiresIn time.Duration) (*JWTService, error) {
	if secretKey == "" {
		return nil, errors.New("jwt secret key cannot be empty")
	}
	if expiresIn == 0 {
		expiresIn = 24 * time.Hour
	}
	return &JWTService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		expiresIn: expiresIn,
	}, nil
}

// GenerateToken 为所有者签发令牌
func (j *JWTService) GenerateToken(ownerID, email string) (string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", errors.New("owner id cannot be empty")
	}

	now := time.Now()
	claims := &OwnerClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiresIn)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

// ValidateToken 校验签名、签发者和有效期
func (j *JWTService) ValidateToken(tokenString string) (*OwnerClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	claims := &OwnerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return j.secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.NewAuthorizationError("token has expired", err)
		}
		return nil, apperrors.NewAuthorizationError("invalid token", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, apperrors.NewAuthorizationError("token has no owner", nil)
	}

	return claims, nil
}

// Authorize 从Authorization头解析出所有者ID
func (j *JWTService) Authorize(authHeader string) (string, error) {
	token, err := ExtractTokenFromHeader(authHeader)
	if err != nil {
		return "", apperrors.NewAuthorizationError("missing bearer token", err)
	}
	claims, err := j.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.OwnerID(), nil
}

// ExtractTokenFromHeader 从请求头提取token
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header is empty")
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", fmt.Errorf("authorization header must start with %q", bearerPrefix)
	}

	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	if token == "" {
		return "", errors.New("token is empty")
	}

	return token, nil
}
