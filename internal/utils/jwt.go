package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRefPrefix is the namespace portal user entity refs live under.
const UserRefPrefix = "user:default/"

var jwtSecret = []byte("ios-secret-key-change-in-production")

// Claims identify the caller. The subject is the caller's user entity ref.
type Claims struct {
	UserRef string `json:"user_ref"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

// GenerateToken signs a token for userRef. Used by tests and tooling; in
// production the portal's identity provider issues the tokens.
func GenerateToken(userRef, name, role string, expireHours int) (string, error) {
	userRef = NormalizeUserRef(userRef)
	if userRef == "" {
		return "", errors.New("user ref is required")
	}

	now := time.Now()
	claims := Claims{
		UserRef: userRef,
		Name:    name,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userRef,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.UserRef == "" {
		claims.UserRef = claims.Subject
	}
	claims.UserRef = NormalizeUserRef(claims.UserRef)
	if claims.UserRef == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// NormalizeUserRef turns a bare username into a full user entity ref.
// "jdoe" becomes "user:default/jdoe"; full refs are returned unchanged.
func NormalizeUserRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.Contains(ref, ":") {
		return ref
	}
	return UserRefPrefix + ref
}
