package jwtutil

import (
	"testing"
	"time"

	"jobmatch-service/internal/model"
	"jobmatch-service/pkg/config"
)

func TestGenerateAndValidate(t *testing.T) {
	j := NewJWTUtil(&config.JWTConfig{SigningKey: "secret", ExpirationHours: 1})
	user := &model.User{ID: "u-1", Email: "sam@example.com", Type: model.UserTypeSeeker}

	token, err := j.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := j.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	sess := claims.Session()
	if sess.UserID != "u-1" || sess.Type != model.UserTypeSeeker {
		t.Fatalf("Session() = %+v", sess)
	}
}

func TestValidateRejectsWrongKey(t *testing.T) {
	issuer := NewJWTUtil(&config.JWTConfig{SigningKey: "one", ExpirationHours: 1})
	verifier := NewJWTUtil(&config.JWTConfig{SigningKey: "two", ExpirationHours: 1})

	token, err := issuer.GenerateToken(&model.User{ID: "u-1", Type: model.UserTypeEmployer})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.ValidateToken(token); err == nil {
		t.Fatal("token signed with another key should be rejected")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	j := NewJWTUtil(&config.JWTConfig{SigningKey: "secret", ExpirationHours: 1})
	j.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := j.GenerateToken(&model.User{ID: "u-1", Type: model.UserTypeSeeker})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := j.ValidateToken(token); err == nil {
		t.Fatal("expired token should be rejected")
	}
}
