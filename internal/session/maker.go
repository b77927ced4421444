// Package session реализует выпуск и проверку подписанных токенов сессии.
//
// Maker подписывает JWT (HS256) с данными учётной записи и областью действия
// (user или admin). Verifier связывает Maker с именем cookie и проверяет, что
// токен выпущен для той же области: cookie админки не проходит проверку
// пользовательского кабинета и наоборот.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/finwire/finwire/internal/models"
)

// CustomClaims — данные, хранящиеся в JWT.
type CustomClaims struct {
	Name  string       `json:"name"`
	Email string       `json:"email"`
	Role  models.Role  `json:"role"`
	Scope models.Scope `json:"scope"`
	jwt.RegisteredClaims
}

// Maker подписывает и разбирает токены одним секретом.
type Maker struct {
	secretKey []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewMaker создаёт Maker с секретом и временем жизни токена.
func NewMaker(secretKey string, ttl time.Duration) *Maker {
	return &Maker{
		secretKey: []byte(secretKey),
		tokenTTL:  ttl,
		now:       time.Now,
	}
}

// TTL возвращает время жизни выпускаемых токенов.
func (m *Maker) TTL() time.Duration { return m.tokenTTL }

// GenerateToken подписывает токен для claims.
func (m *Maker) GenerateToken(c models.Claims) (string, error) {
	const op = "session.GenerateToken"
	if c.UserID == "" {
		return "", fmt.Errorf("%s: empty subject", op)
	}
	now := m.now()
	claims := CustomClaims{
		Name:  c.Name,
		Email: c.Email,
		Role:  c.Role,
		Scope: c.Scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken проверяет подпись, алгоритм и срок действия токена.
func (m *Maker) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "session.ParseToken"
	if tokenStr == "" {
		return nil, fmt.Errorf("%s: %w", op, jwt.ErrTokenMalformed)
	}
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return m.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, errors.New("invalid token"))
	}
	return claims, nil
}
