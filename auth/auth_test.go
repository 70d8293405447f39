// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID()
	id2 := GenerateID()

	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("GenerateID() = %q, not a UUID: %v", id1, err)
	}
	if id1 == id2 {
		t.Error("GenerateID() produced duplicate IDs (extremely unlikely)")
	}
}

func TestValidateEventSecret(t *testing.T) {
	tests := []struct {
		name    string
		got     string
		want    string
		wantErr bool
	}{
		{"match", "s3cret", "s3cret", false},
		{"mismatch", "wrong", "s3cret", true},
		{"empty header", "", "s3cret", true},
		{"unset secret", "", "", true},
		{"case sensitive", "S3CRET", "s3cret", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEventSecret(tt.got, tt.want)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEventSecret() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEventSecret) {
				t.Errorf("expected ErrInvalidEventSecret, got %v", err)
			}
		})
	}
}

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken("user-1", "alice", "secret", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	for _, input := range []string{token, "Bearer " + token, "bearer " + token} {
		claims, err := ParseToken(input, "secret")
		if err != nil {
			t.Fatalf("ParseToken(%q) error = %v", input[:10], err)
		}
		if claims.UserID() != "user-1" {
			t.Errorf("UserID() = %q, want user-1", claims.UserID())
		}
		if claims.Username != "alice" {
			t.Errorf("Username = %q, want alice", claims.Username)
		}
	}
}

func TestParseToken_Rejects(t *testing.T) {
	valid, _ := IssueToken("user-1", "alice", "secret", time.Hour)
	expired, _ := IssueToken("user-1", "alice", "secret", -time.Minute)
	noSubject, _ := IssueToken("", "alice", "secret", time.Hour)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"bearer only", "Bearer ", ErrMissingToken},
		{"wrong secret", valid, ErrInvalidToken},
		{"expired", expired, ErrExpiredToken},
		{"garbage", "not.a.token", ErrInvalidToken},
		{"alg none", unsigned, ErrInvalidToken},
		{"no subject", noSubject, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secret := "secret"
			if tt.name == "wrong secret" {
				secret = "other"
			}
			_, err := ParseToken(tt.token, secret)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseToken() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"abc":          "abc",
		"Bearer abc":   "abc",
		"BEARER  abc ": "abc",
		"  Bearer abc": "abc",
		"Bearerabc":    "Bearerabc",
		"":             "",
	}
	for in, want := range tests {
		if got := BearerToken(in); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}
