package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims 是会话 token 里的用户信息，UserID 为 GitHub 用户 ID
type Claims struct {
	UserID string `json:"uid"`
	Login  string `json:"login"`
	jwt.RegisteredClaims
}

// Service 签发和校验会话 token
type Service struct {
	secret   []byte
	duration time.Duration
	nowFunc  func() time.Time
}

func NewService(secret string, duration time.Duration) *Service {
	return &Service{
		secret:   []byte(secret),
		duration: duration,
		nowFunc:  time.Now,
	}
}

// TTL token 有效期
func (s *Service) TTL() time.Duration {
	return s.duration
}

func (s *Service) GenerateToken(userID, login string) (string, error) {
	now := s.nowFunc()
	claims := &Claims{
		UserID: userID,
		Login:  login,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "issuescout",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.nowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
