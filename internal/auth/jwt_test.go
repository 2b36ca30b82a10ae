package auth

import (
	"testing"
	"time"
)

func TestGenerateAndValidateAccessToken(t *testing.T) {
	manager := NewJWTManager("test-secret-key", time.Hour)

	claims := UserClaims{
		UserID:  "user-123",
		Email:   "user@example.com",
		IsAdmin: true,
	}

	token, err := manager.GenerateAccessToken(claims)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error: %v", err)
	}
	if token == "" {
		t.Fatal("GenerateAccessToken() returned empty token")
	}

	parsed, err := manager.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error: %v", err)
	}
	if parsed.UserID != claims.UserID {
		t.Errorf("UserID = %q, want %q", parsed.UserID, claims.UserID)
	}
	if parsed.Email != claims.Email {
		t.Errorf("Email = %q, want %q", parsed.Email, claims.Email)
	}
	if !parsed.IsAdmin {
		t.Error("IsAdmin flag lost in round trip")
	}
}

func TestValidateAccessTokenWrongSecret(t *testing.T) {
	manager := NewJWTManager("secret-one", time.Hour)
	other := NewJWTManager("secret-two", time.Hour)

	token, err := manager.GenerateAccessToken(UserClaims{UserID: "user-1"})
	if err != nil {
		t.Fatalf("GenerateAccessToken() error: %v", err)
	}

	if _, err := other.ValidateAccessToken(token); err == nil {
		t.Error("token signed with a different secret was accepted")
	}
}

func TestValidateAccessTokenExpired(t *testing.T) {
	manager := NewJWTManager("test-secret-key", -time.Minute)

	token, err := manager.GenerateAccessToken(UserClaims{UserID: "user-1"})
	if err != nil {
		t.Fatalf("GenerateAccessToken() error: %v", err)
	}

	if _, err := manager.ValidateAccessToken(token); err == nil {
		t.Error("expired token was accepted")
	}
}

func TestValidateAccessTokenGarbage(t *testing.T) {
	manager := NewJWTManager("test-secret-key", time.Hour)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := manager.ValidateAccessToken(token); err == nil {
			t.Errorf("garbage token %q was accepted", token)
		}
	}
}

func TestPasswordHashAndVerify(t *testing.T) {
	pm := NewPasswordManager(4, 8) // low cost to keep the test fast

	hash, err := pm.HashPassword("Str0ng!pass")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if !pm.VerifyPassword("Str0ng!pass", hash) {
		t.Error("correct password rejected")
	}
	if pm.VerifyPassword("wrong-password", hash) {
		t.Error("wrong password accepted")
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	pm := NewPasswordManager(4, 8)

	if err := pm.ValidatePasswordStrength("Str0ng!pass"); err != nil {
		t.Errorf("strong password rejected: %v", err)
	}
	for _, weak := range []string{"short", "alllowercase", "12345678"} {
		if err := pm.ValidatePasswordStrength(weak); err == nil {
			t.Errorf("weak password %q accepted", weak)
		}
	}
}
