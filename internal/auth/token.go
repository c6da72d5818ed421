package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/emaland/cmp/internal/errs"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

var errInvalidToken = &errs.Error{
	Code: errs.EUnauthorized,
	Msg:  "invalid or expired token",
}

// Claims are carried by both access and refresh tokens. Kind tells them
// apart so a refresh token cannot be presented as a bearer token.
type Claims struct {
	jwt.RegisteredClaims
	UserID    int64    `json:"uid"`
	Username  string   `json:"usr"`
	SessionID string   `json:"sid"`
	Roles     []string `json:"roles,omitempty"`
	Kind      string   `json:"knd"`
}

func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type signer struct {
	secret []byte
	issuer string
}

func (s signer) sign(c Claims, kind string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	exp := now.Add(ttl)
	c.Kind = kind
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    s.issuer,
		Subject:   fmt.Sprint(c.UserID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing %s token: %w", kind, err)
	}
	return tok, exp, nil
}

func (s signer) parse(token, kind string) (*Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, &errs.Error{Code: errs.EUnauthorized, Msg: errInvalidToken.Msg, Err: err}
	}
	if c.Kind != kind || c.SessionID == "" {
		return nil, errInvalidToken
	}
	return &c, nil
}
