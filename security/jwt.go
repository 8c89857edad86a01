/*
Package security provides cryptographic and secret-management utilities.

This file implements a lightweight JSON Web Token (JWT) service
for creating tokens using the HMAC SHA-256 algorithm
(HS256) via the `lestrrat-go/jwx` library.

The JWTService type allows secure token generation for user
authentication or session management in Go applications. Validation is
done by callers directly against jwx (identity.Middleware parses and
verifies the bearer token itself via echo-jwt) so this service only
needs to sign.

Usage Example:

	package main

	import (
		"fmt"
		"time"
		"myapp/security"
	)

	func main() {
		jwtService := security.NewJWTService("supersecretkey")

		// Generate a token valid for 1 hour
		tokenStr, err := jwtService.GenerateToken("user123", time.Hour)
		if err != nil {
			panic(err)
		}
		fmt.Println("Generated token:", tokenStr)
	}
*/

package security

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// JWTService signs JSON Web Tokens (JWTs) using the HMAC SHA-256 (HS256)
// algorithm.
type JWTService struct {
	secret []byte
}

// NewJWTService initializes and returns a new JWTService instance.
//
// The secret parameter is the signing key used for token generation.
// It should be a sufficiently random and securely stored string.
//
// Example:
//
//	j := security.NewJWTService("my-super-secret-key")
func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret)}
}

// GenerateToken creates a new signed JWT containing the specified user ID as the subject.
//
// Parameters:
//   - userID: The unique identifier of the user (stored as the "sub" claim).
//   - expiration: Token validity duration (e.g. 1 * time.Hour).
//
// The generated token includes the following standard claims:
//   - "sub": The subject (user ID)
//   - "iat": Issued-at timestamp
//   - "exp": Expiration timestamp
//
// Returns:
//   - The signed JWT string.
//   - An error if token building or signing fails.
//
// Example:
//
//	token, err := jwtService.GenerateToken("user123", time.Hour)
func (j *JWTService) GenerateToken(userID string, expiration time.Duration) (string, error) {
	now := time.Now()

	token, err := jwt.NewBuilder().
		Subject(userID).
		IssuedAt(now).
		Expiration(now.Add(expiration)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, j.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return string(signed), nil
}

// GenerateTokenWithClaims creates a signed JWT with custom claims in addition to standard claims.
//
// Parameters:
//   - userID: The unique identifier of the user (stored as the "sub" claim)
//   - expiration: Token validity duration
//   - customClaims: Additional custom claims to include in the token
//
// Returns:
//   - The signed JWT string
//   - An error if token building or signing fails
//
// Example:
//
//	claims := map[string]interface{}{
//	    "tenant_id": "tenant-a",
//	}
//	token, err := jwtService.GenerateTokenWithClaims("user123", time.Hour, claims)
func (j *JWTService) GenerateTokenWithClaims(userID string, expiration time.Duration, customClaims map[string]interface{}) (string, error) {
	now := time.Now()

	builder := jwt.NewBuilder().
		Subject(userID).
		IssuedAt(now).
		Expiration(now.Add(expiration))

	for key, value := range customClaims {
		builder = builder.Claim(key, value)
	}

	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, j.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return string(signed), nil
}
