// ABOUTME: Admin authentication: bcrypt password login issuing HS256 JWTs
// ABOUTME: Provides the authorized-or-not predicate the admin surface needs

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Auth errors
var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// defaultSessionTTL bounds how long an issued admin token stays valid.
const defaultSessionTTL = 12 * time.Hour

// Admin authenticates the operator. A single shared password (stored as
// a bcrypt hash in config) exchanges for a signed session token; every
// admin request then carries that token as a bearer credential.
type Admin struct {
	secret       []byte
	passwordHash []byte
	sessionTTL   time.Duration
}

// NewAdmin creates an Admin authenticator with the given JWT secret and
// bcrypt password hash.
func NewAdmin(secret, passwordHash []byte) *Admin {
	return &Admin{
		secret:       secret,
		passwordHash: passwordHash,
		sessionTTL:   defaultSessionTTL,
	}
}

// Login checks the password and issues a session token.
func (a *Admin) Login(password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": "admin",
		"iat": now.Unix(),
		"exp": now.Add(a.sessionTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify validates a session token. This is the boolean "is this caller
// authorized" predicate: nil error means authorized.
func (a *Admin) Verify(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ErrInvalidToken
	}
	if sub, _ := claims["sub"].(string); sub != "admin" {
		return ErrInvalidToken
	}
	return nil
}

// HashPassword produces a bcrypt hash suitable for the config file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
