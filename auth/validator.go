// Package auth validates the JWT snapshot captured before the gateway
// redirect, so a dead token is never reinstated as the active credential.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type Validator struct {
	secret []byte
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Valid reports whether the token parses, carries a valid HS256 signature
// and has not expired.
func (v *Validator) Valid(tokenString string) bool {
	if tokenString == "" {
		return false
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	return err == nil && token.Valid
}
