package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"studiodesk/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoTenant     = errors.New("token carries no tenant")
)

// Service signs and verifies the bearer tokens issued by the identity
// provider. This service never authenticates users itself.
type Service struct {
	secret []byte
	ttl    time.Duration
}

type Claims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwtlib.RegisteredClaims
}

func New(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

func (s *Service) GenerateToken(userID, tenantID, role string) (string, error) {
	claims := Claims{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// TenantContext validates the token and returns who is acting for which studio.
func (s *Service) TenantContext(tokenStr string) (domain.TenantContext, error) {
	claims, err := s.ValidateToken(tokenStr)
	if err != nil {
		return domain.TenantContext{}, err
	}
	if claims.TenantID == "" {
		return domain.TenantContext{}, ErrNoTenant
	}
	return domain.TenantContext{
		TenantID: claims.TenantID,
		ActorID:  claims.UserID,
		Role:     claims.Role,
	}, nil
}
