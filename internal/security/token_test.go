package security

import (
	"testing"
	"time"
)

func TestSignAndParseAdminToken(t *testing.T) {
	signed, errSign := SignAdminToken("secret", 42, time.Hour)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}
	claims, errParse := ParseAdminToken("secret", signed)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.AdminID != 42 {
		t.Fatalf("expected admin id 42, got %d", claims.AdminID)
	}
}

func TestParseAdminToken_WrongSecret(t *testing.T) {
	signed, errSign := SignAdminToken("secret", 42, time.Hour)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}
	if _, err := ParseAdminToken("other", signed); err == nil {
		t.Fatalf("expected error for wrong secret")
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, errHash := HashPassword("hunter2")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if !CheckPassword(hash, "hunter2") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("expected mismatch for wrong password")
	}
}
