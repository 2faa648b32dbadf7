// Package jwt выпускает и проверяет токены, которыми шлюз мессенджера
// подписывает вызовы вебхука.
package jwt

import (
	"time"
)

// Роли владельца токена.
const (
	RoleGateway  = "gateway"
	RoleOperator = "operator"
)

// Maker выпуск и проверка токенов.
type Maker interface {
	GenerateToken(subject, role string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl подписывает токены HS256 общим секретом.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewJWTMaker создаёт MakerImpl. Неположительный ttl даёт уже просроченные токены.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		now:       time.Now,
	}
}
