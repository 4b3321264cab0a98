// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the impact engine service.
//
// This package contains middleware for webhook authentication and
// rate limiting on run triggers.
//
// # Authentication Flow
//
// The auth middleware extracts the shared secret from the X-Webhook-Secret
// header (falling back to a bearer token for manual callers), verifies it
// against the configured secret, and aborts with 401 on mismatch.
//
//	Request
//	   │
//	   ▼
//	AuthMiddleware
//	   │
//	   ├─► Extract secret from "X-Webhook-Secret: <secret>"
//	   │   (fallback: "Authorization: Bearer <secret>")
//	   │
//	   ├─► verifier.Verify(ctx, secret)
//	   │
//	   └─► 401 on mismatch, otherwise continue
//	           │
//	           ▼
//	       Handler
//
// # Secret Handling
//
// SharedSecretVerifier keeps the configured secret in a memguard enclave
// and compares in constant time, so the secret never sits in plain heap
// memory between requests.
package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/gin-gonic/gin"
)

// =============================================================================
// Errors
// =============================================================================

// ErrUnauthorized indicates the presented secret did not match.
var ErrUnauthorized = errors.New("unauthorized")

// =============================================================================
// Secret Verification
// =============================================================================

// secretHeaderName is the header model-store webhooks carry the shared
// secret in.
const secretHeaderName = "X-Webhook-Secret"

// SecretVerifier checks a presented webhook secret.
//
// # Description
//
// Implementations decide whether a request may trigger a run. The
// bundled SharedSecretVerifier compares against one configured secret;
// deployments fronted by an identity-aware proxy can substitute their
// own implementation.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type SecretVerifier interface {
	// Verify returns nil when the presented secret is acceptable and
	// ErrUnauthorized when it is not.
	Verify(ctx context.Context, presented string) error
}

// SharedSecretVerifier verifies requests against a single shared secret.
//
// # Description
//
// The secret lives in a memguard enclave and is decrypted only for the
// duration of each comparison. Comparison is constant time.
//
// # Thread Safety
//
// Safe for concurrent use.
type SharedSecretVerifier struct {
	secret *memguard.Enclave
}

// NewSharedSecretVerifier creates a verifier around the given secret.
//
// # Inputs
//
//   - secret: The shared webhook secret. Must not be empty.
//
// # Outputs
//
//   - *SharedSecretVerifier: The verifier instance.
//   - error: Non-nil if the secret is empty.
func NewSharedSecretVerifier(secret string) (*SharedSecretVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("webhook secret must not be empty")
	}
	return &SharedSecretVerifier{
		secret: memguard.NewEnclave([]byte(secret)),
	}, nil
}

// Verify compares the presented secret against the configured one.
//
// # Inputs
//
//   - ctx: Unused; present to satisfy SecretVerifier.
//   - presented: The secret extracted from the request.
//
// # Outputs
//
//   - error: nil on match, ErrUnauthorized on mismatch, or a wrapped
//     enclave error.
func (v *SharedSecretVerifier) Verify(_ context.Context, presented string) error {
	buf, err := v.secret.Open()
	if err != nil {
		return fmt.Errorf("open secret enclave: %w", err)
	}
	defer buf.Destroy()

	if subtle.ConstantTimeCompare(buf.Bytes(), []byte(presented)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Compile-time interface check
var _ SecretVerifier = (*SharedSecretVerifier)(nil)

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware creates a Gin middleware that authenticates run triggers.
//
// # Description
//
// Extracts the shared secret from the request and verifies it using the
// provided verifier. Unauthenticated requests are aborted with 401 and
// never reach the handler.
//
// # Secret Extraction
//
// The middleware reads the X-Webhook-Secret header first. When absent it
// falls back to the Authorization header:
//
//	X-Webhook-Secret: <secret>
//	Authorization: Bearer <secret>
//
// A request carrying neither presents the empty string, which no
// verifier accepts.
//
// # Inputs
//
//   - verifier: SecretVerifier to check secrets. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware function ready for use with Gin
//
// # Examples
//
//	v1 := router.Group("/v1")
//	v1.Use(middleware.AuthMiddleware(verifier))
//
// # Limitations
//
//   - Does not cache verification results (verifies every request)
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func AuthMiddleware(verifier SecretVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := extractSecret(c)

		if err := verifier.Verify(c.Request.Context(), secret); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "unauthorized",
				})
				return
			}
			// Other errors (enclave failures, custom verifier issues)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication failed",
			})
			return
		}

		c.Next()
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractSecret pulls the shared secret from the request headers.
//
// # Description
//
// Reads X-Webhook-Secret first. When absent, parses the Authorization
// header expecting "Bearer <secret>" (scheme case-insensitive per
// RFC 7235). Returns empty string when neither is present.
//
// # Inputs
//
//   - c: Gin context. Must not be nil.
//
// # Outputs
//
//   - string: The extracted secret, or empty string if not found
func extractSecret(c *gin.Context) string {
	if secret := c.GetHeader(secretHeaderName); secret != "" {
		return strings.TrimSpace(secret)
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
