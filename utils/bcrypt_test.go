package utils_test

import (
	"testing"

	"github.com/tichlabs/tichpay_backend/utils"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := utils.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if string(hash) == "s3cret-pass" {
		t.Fatal("hash must not equal the plaintext")
	}
	if err := utils.ComparePassword(string(hash), "s3cret-pass"); err != nil {
		t.Fatalf("compare with correct password: %v", err)
	}
	if err := utils.ComparePassword(string(hash), "wrong-pass"); err == nil {
		t.Fatal("compare with wrong password should fail")
	}
}
