// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ChristopherJMiller/word-arena/internal/domain"
)

func TestJWTVerifierRoundTrip(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	user := domain.User{UserID: uuid.New(), Email: "a@example.com", DisplayName: "Ada"}

	token, err := v.Sign(user, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	got, err := v.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if got.UserID != user.UserID || got.DisplayName != user.DisplayName {
		t.Fatalf("got %+v, want %+v", got, user)
	}
}

func TestJWTVerifierRejectsExpired(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	user := domain.User{UserID: uuid.New(), Email: "a@example.com", DisplayName: "Ada"}
	token, err := v.Sign(user, -time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Verify(token); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}

func TestJWTVerifierRejectsGarbage(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	if _, err := v.Verify("not-a-jwt"); err == nil {
		t.Fatal("expected garbage token to fail")
	}
}

func TestDevVerifierIsDeterministic(t *testing.T) {
	v := NewDevVerifier()
	a, err := v.Verify("player@example.com")
	if err != nil {
		t.Fatal(err)
	}
	b, err := v.Verify("player@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if a.UserID != b.UserID {
		t.Fatalf("expected same dev token to map to same user id, got %v and %v", a.UserID, b.UserID)
	}
}

func TestDevVerifierRejectsEmpty(t *testing.T) {
	v := NewDevVerifier()
	if _, err := v.Verify(""); err == nil {
		t.Fatal("expected empty token to fail")
	}
}
