package auth

import (
	"errors"
	"strings"
	"testing"
)

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewPasswordService_CostBounds(t *testing.T) {
	tests := []struct {
		cost    int
		wantErr bool
	}{
		{3, true},
		{4, false},
		{DefaultCost, false},
		{31, false},
		{32, true},
	}
	for _, tt := range tests {
		_, err := NewPasswordService(tt.cost)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewPasswordService(%d) error = %v, wantErr %v", tt.cost, err, tt.wantErr)
		}
	}
}

// =========================================================================
// Hash
// =========================================================================

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := NewPasswordServiceForTest()

	hash, err := ps.Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
}

func TestHash_SamePasswordProducesDifferentHashes(t *testing.T) {
	ps := NewPasswordServiceForTest()

	hash1, _ := ps.Hash("same-password")
	hash2, _ := ps.Hash("same-password")

	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password (salt must be random)")
	}
}

func TestHash_LengthLimit(t *testing.T) {
	ps := NewPasswordServiceForTest()

	if _, err := ps.Hash(strings.Repeat("a", MaxPasswordBytes)); err != nil {
		t.Errorf("Hash() should accept a %d-byte password, got %v", MaxPasswordBytes, err)
	}
	if _, err := ps.Hash(strings.Repeat("a", MaxPasswordBytes+1)); err == nil {
		t.Error("Hash() should reject passwords longer than 72 bytes")
	}
	// The limit is bytes, not runes: 25 three-byte runes are 75 bytes.
	if _, err := ps.Hash(strings.Repeat("食", 25)); err == nil {
		t.Error("Hash() should count bytes, not characters")
	}
}

// =========================================================================
// Verify
// =========================================================================

func TestVerify(t *testing.T) {
	ps := NewPasswordServiceForTest()
	hash, err := ps.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if err := ps.Verify(hash, "correct horse"); err != nil {
		t.Errorf("Verify() with correct password error = %v", err)
	}

	if err := ps.Verify(hash, "Correct horse"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("Verify() with wrong password error = %v, want ErrInvalidPassword", err)
	}

	err = ps.Verify("not-a-hash", "correct horse")
	if err == nil || errors.Is(err, ErrInvalidPassword) {
		t.Errorf("Verify() with malformed hash error = %v, want a non-mismatch error", err)
	}
}

func TestVerify_HashFromDifferentCost(t *testing.T) {
	// A hash keeps its own cost, so raising BCRYPT_COST later does not lock
	// existing users out.
	low := NewPasswordServiceForTest()
	hash, _ := low.Hash("pw123456")

	high, err := NewPasswordService(5)
	if err != nil {
		t.Fatal(err)
	}
	if err := high.Verify(hash, "pw123456"); err != nil {
		t.Errorf("Verify() across costs error = %v", err)
	}
}
