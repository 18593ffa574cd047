package gateway

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
)

// defaultMaxAuthAttempts is the lockout threshold for failed signatures.
const defaultMaxAuthAttempts = 3

// AuthHandler manages challenge-response authentication. The shared
// secret may be rotated at runtime; already-authenticated clients keep
// their connections, new challenges verify against the current secret.
type AuthHandler struct {
	mu           sync.RWMutex
	sharedSecret string
	maxAttempts  int
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(sharedSecret string) *AuthHandler {
	return &AuthHandler{
		sharedSecret: sharedSecret,
		maxAttempts:  defaultMaxAuthAttempts,
	}
}

// SetMaxAttempts overrides the lockout threshold. Values below one are
// ignored.
func (a *AuthHandler) SetMaxAttempts(n int) {
	if n < 1 {
		return
	}
	a.mu.Lock()
	a.maxAttempts = n
	a.mu.Unlock()
}

// RotateSecret replaces the shared secret. Empty secrets are ignored.
func (a *AuthHandler) RotateSecret(secret string) {
	if secret == "" {
		return
	}
	a.mu.Lock()
	a.sharedSecret = secret
	a.mu.Unlock()
}

// GenerateChallenge generates a cryptographically random 32-byte challenge
func (a *AuthHandler) GenerateChallenge() (string, error) {
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return "", fmt.Errorf("failed to generate challenge: %w", err)
	}
	return hex.EncodeToString(challenge), nil
}

// VerifySignature verifies an HMAC-SHA256 signature against a challenge
func (a *AuthHandler) VerifySignature(challenge, signature string) bool {
	a.mu.RLock()
	secret := a.sharedSecret
	a.mu.RUnlock()

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(challenge))
	expected := hex.EncodeToString(h.Sum(nil))

	// Constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// LockedOut reports whether the client has exhausted its attempts.
func (a *AuthHandler) LockedOut(client *Client) bool {
	a.mu.RLock()
	max := a.maxAttempts
	a.mu.RUnlock()
	return client.AuthAttempts >= max
}

// HandleAuthResponse processes an authentication response from a client
func (a *AuthHandler) HandleAuthResponse(client *Client, signature string) AuthResult {
	if client.Challenge == "" {
		return AuthResult{
			Event:   "auth.failure",
			Success: false,
			Message: "No challenge found",
		}
	}

	if !a.VerifySignature(client.Challenge, signature) {
		client.AuthAttempts++

		if a.LockedOut(client) {
			return AuthResult{
				Event:   "auth.failure",
				Success: false,
				Message: "Too many failed attempts",
			}
		}

		return AuthResult{
			Event:   "auth.failure",
			Success: false,
			Message: "Invalid signature",
		}
	}

	client.Authenticated = true
	client.State = StateAuthenticated
	client.AuthAttempts = 0
	client.Challenge = ""

	return AuthResult{
		Event:   "auth.success",
		Success: true,
	}
}
