package keys

import (
	"crypto/sha256"
	"testing"

	"github.com/Verse-Network/mutation_layer/ops"
)

func TestDeriveRoleKeyDeterministic(t *testing.T) {
	secret := []byte("master-secret-for-alice")

	k1, err := DeriveRoleKey(secret, "alice", ops.AuthorityPosting)
	if err != nil {
		t.Fatalf("DeriveRoleKey failed: %v", err)
	}
	k2, err := DeriveRoleKey(secret, "alice", ops.AuthorityPosting)
	if err != nil {
		t.Fatalf("DeriveRoleKey failed: %v", err)
	}
	if k1.D.Cmp(k2.D) != 0 {
		t.Error("same inputs must derive the same key")
	}
}

func TestDeriveRoleKeySeparation(t *testing.T) {
	secret := []byte("master-secret-for-alice")

	posting, err := DeriveRoleKey(secret, "alice", ops.AuthorityPosting)
	if err != nil {
		t.Fatalf("DeriveRoleKey failed: %v", err)
	}
	active, err := DeriveRoleKey(secret, "alice", ops.AuthorityActive)
	if err != nil {
		t.Fatalf("DeriveRoleKey failed: %v", err)
	}
	if posting.D.Cmp(active.D) == 0 {
		t.Error("authorities must derive distinct keys")
	}

	other, err := DeriveRoleKey(secret, "bob", ops.AuthorityPosting)
	if err != nil {
		t.Fatalf("DeriveRoleKey failed: %v", err)
	}
	if posting.D.Cmp(other.D) == 0 {
		t.Error("accounts must derive distinct keys")
	}
}

func TestDeriveRoleKeyValidation(t *testing.T) {
	if _, err := DeriveRoleKey(nil, "alice", ops.AuthorityPosting); err == nil {
		t.Error("empty secret should be rejected")
	}
	if _, err := DeriveRoleKey([]byte("s"), "", ops.AuthorityPosting); err == nil {
		t.Error("empty account should be rejected")
	}
}

func TestSignAndVerifyHash(t *testing.T) {
	priv, err := DeriveRoleKey([]byte("secret"), "alice", ops.AuthorityActive)
	if err != nil {
		t.Fatalf("DeriveRoleKey failed: %v", err)
	}

	digest := sha256.Sum256([]byte("payload"))
	sig, err := SignHash(priv, digest[:])
	if err != nil {
		t.Fatalf("SignHash failed: %v", err)
	}
	if len(sig) != 64 {
		t.Fatalf("expected 64-byte signature, got %d", len(sig))
	}

	if !VerifyHash(&priv.PublicKey, digest[:], sig) {
		t.Error("signature did not verify")
	}

	tampered := sha256.Sum256([]byte("other payload"))
	if VerifyHash(&priv.PublicKey, tampered[:], sig) {
		t.Error("signature verified against the wrong digest")
	}
	if VerifyHash(&priv.PublicKey, digest[:], sig[:63]) {
		t.Error("truncated signature must not verify")
	}
}

func TestZero(t *testing.T) {
	priv, err := DeriveRoleKey([]byte("secret"), "alice", ops.AuthorityPosting)
	if err != nil {
		t.Fatalf("DeriveRoleKey failed: %v", err)
	}

	Zero(priv)
	if priv.D.Sign() != 0 {
		t.Error("private scalar not cleared")
	}
	if priv.PublicKey.X != nil || priv.PublicKey.Y != nil {
		t.Error("public point not cleared")
	}

	// Zero on nil must not panic.
	Zero(nil)
}
