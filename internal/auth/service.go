package auth

import (
	"errors"
	"fmt"
	"time"

	"meet-signal/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidLink = errors.New("invalid or expired download link")

// Service signs and checks download links for uploaded files. With no
// secret configured links are unsigned and every check passes.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(cfg config.UploadConfig) *Service {
	ttl := cfg.LinkTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{secret: cfg.SigningSecret, ttl: ttl, now: time.Now}
}

func (s *Service) Enabled() bool {
	return len(s.secret) > 0
}

// Sign returns a token bound to one object key.
func (s *Service) Sign(key string) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   key,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) Validate(tokenString, key string) error {
	if !s.Enabled() {
		return nil
	}
	if tokenString == "" {
		return ErrInvalidLink
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return ErrInvalidLink
	}
	if claims.Subject != key {
		return ErrInvalidLink
	}
	return nil
}
