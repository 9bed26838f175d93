package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const roleOwner = "owner"

var errNotOwner = errors.New("gateway: token does not carry the owner role")

// ownerAuth guards the owner-only routes (deposit, sweep) with an HMAC
// bearer token carrying role=owner.
type ownerAuth struct {
	secret []byte
}

func newOwnerAuth(secret string) *ownerAuth {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil
	}
	return &ownerAuth{secret: []byte(trimmed)}
}

func (a *ownerAuth) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil {
			http.Error(w, "owner operations disabled: no secret configured", http.StatusForbidden)
			return
		}
		header := r.Header.Get("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if err := a.verify(strings.TrimSpace(raw)); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *ownerAuth) verify(raw string) error {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("gateway: unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return errNotOwner
	}
	if role, _ := claims["role"].(string); role != roleOwner {
		return errNotOwner
	}
	return nil
}
