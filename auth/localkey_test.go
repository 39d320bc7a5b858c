package auth

import (
	"context"
	"testing"

	"github.com/Verse-Network/mutation_layer/ops"
)

func TestLocalKeySigns(t *testing.T) {
	p := NewLocalKeyProvider(LocalKeyConfig{
		Account:      "alice",
		MasterSecret: []byte("master-secret"),
		NetworkID:    1,
		Authorities:  []ops.Authority{ops.AuthorityPosting},
	})

	tx := unsignedTx(t)
	result := p.Sign(context.Background(), tx, ops.AuthorityPosting)
	if result.Status != StatusSigned {
		t.Fatalf("expected signed, got %s (%s)", result.Status, result.Reason)
	}
	if !result.Tx.Signed() {
		t.Fatal("result transaction carries no signature")
	}
	if tx.Signed() {
		t.Error("input transaction must not be mutated")
	}
}

func TestLocalKeyAuthorityMismatchIsRejection(t *testing.T) {
	// A posting-only secret asked for an active signature must reject, not
	// silently downgrade the signature.
	p := NewLocalKeyProvider(LocalKeyConfig{
		Account:      "alice",
		MasterSecret: []byte("master-secret"),
		Authorities:  []ops.Authority{ops.AuthorityPosting},
	})

	result := p.Sign(context.Background(), unsignedTx(t), ops.AuthorityActive)
	if result.Status != StatusRejected {
		t.Fatalf("expected rejected, got %s", result.Status)
	}
	if !result.Definitive {
		t.Error("authority mismatch is a definitive rejection")
	}
}

func TestLocalKeyWithoutSecretIsUnavailable(t *testing.T) {
	p := NewLocalKeyProvider(LocalKeyConfig{Account: "alice"})
	result := p.Sign(context.Background(), unsignedTx(t), ops.AuthorityPosting)
	if result.Status != StatusUnavailable {
		t.Fatalf("expected unavailable, got %s", result.Status)
	}
}

func TestLocalKeySignaturesDiffer(t *testing.T) {
	alice := NewLocalKeyProvider(LocalKeyConfig{
		Account:      "alice",
		MasterSecret: []byte("secret-a"),
		Authorities:  []ops.Authority{ops.AuthorityPosting},
	})
	bob := NewLocalKeyProvider(LocalKeyConfig{
		Account:      "bob",
		MasterSecret: []byte("secret-b"),
		Authorities:  []ops.Authority{ops.AuthorityPosting},
	})

	tx := unsignedTx(t)
	r1 := alice.Sign(context.Background(), tx, ops.AuthorityPosting)
	r2 := bob.Sign(context.Background(), tx, ops.AuthorityPosting)
	if r1.Status != StatusSigned || r2.Status != StatusSigned {
		t.Fatalf("expected both signed, got %s / %s", r1.Status, r2.Status)
	}
	if r1.Tx.Signatures[0] == r2.Tx.Signatures[0] {
		t.Error("different accounts must not produce the same signature")
	}
}
