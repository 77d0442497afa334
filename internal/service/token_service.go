package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/klinikgo/clinic-rota-api/internal/models"
	"github.com/klinikgo/clinic-rota-api/pkg/config"
	appErrors "github.com/klinikgo/clinic-rota-api/pkg/errors"
)

// TokenService validates access tokens minted by the external identity
// service. This API never issues tokens itself.
type TokenService struct {
	secret string
}

// NewTokenService builds a validator over the shared signing secret.
func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{secret: cfg.Secret}
}

// ValidateToken parses and verifies an HS256 access token.
func (s *TokenService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}
