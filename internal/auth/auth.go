// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth implements the TokenVerifier external collaborator:
// validating an opaque bearer token into a domain.User, or reporting
// it invalid. The core never issues tokens or checks passwords —
// that's out of scope here — it only verifies.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ChristopherJMiller/word-arena/internal/domain"
)

// ErrInvalidToken is returned by Verifier.Verify for any token that
// fails validation, regardless of the underlying reason. Callers
// surface this uniformly as AuthenticationFailed; they do not need to
// distinguish expired from malformed from unknown issuer at the wire
// level.
var ErrInvalidToken = errors.New("auth: invalid token")

// Verifier validates an opaque bearer token and returns the
// authenticated user it names.
type Verifier interface {
	Verify(token string) (domain.User, error)
}

// Claims is the JWT claim set a real Word Arena token carries.
type Claims struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256-signed tokens against a shared secret,
// the same signing scheme robalobadob-wordle's go-server uses for its
// own session tokens.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier constructs a JWTVerifier from a shared HMAC secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(token string) (domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: bad user_id claim", ErrInvalidToken)
	}

	return domain.User{
		UserID:      userID,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
	}, nil
}

// Sign issues a token for tests and local tooling; production token
// issuance lives outside this package.
func (v *JWTVerifier) Sign(user domain.User, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:      user.UserID.String(),
		Email:       user.Email,
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// DevVerifier trusts the token string itself, treating it as
// "email:display_name" (or just an email, with the local part reused
// as the display name). It exists so a developer can drive the
// websocket protocol without standing up a real issuer; it must never
// be wired in when DEV_AUTH_MODE is unset. Grounded on the
// original game-server's dev_mode auth bypass.
type DevVerifier struct{}

// NewDevVerifier constructs the development bypass verifier.
func NewDevVerifier() *DevVerifier { return &DevVerifier{} }

func (v *DevVerifier) Verify(token string) (domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, ErrInvalidToken
	}

	email := token
	displayName := token
	if idx := strings.IndexByte(token, ':'); idx >= 0 {
		email, displayName = token[:idx], token[idx+1:]
	} else if idx := strings.IndexByte(token, '@'); idx >= 0 {
		displayName = token[:idx]
	}

	// Deterministic per-token id so the same dev token always maps to
	// the same user across reconnects within a process lifetime.
	userID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("word-arena-dev:"+email))

	return domain.User{
		UserID:      userID,
		Email:       email,
		DisplayName: displayName,
	}, nil
}
