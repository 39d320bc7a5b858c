// Package keys derives role-scoped signing keys from a master secret.
//
// A content account holds one master secret; the posting, active and owner
// keys are derived from it deterministically so the local signer can be
// configured with a single value.
package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"

	"github.com/Verse-Network/mutation_layer/ops"
)

var hkdfSalt = []byte("mutation-layer-keys")

// DeriveRoleKey derives the private key for an account role from the master
// secret. Derivation is deterministic per (secret, account, authority).
func DeriveRoleKey(masterSecret []byte, account string, authority ops.Authority) (*ecdsa.PrivateKey, error) {
	if len(masterSecret) == 0 {
		return nil, fmt.Errorf("master secret is required")
	}
	if account == "" {
		return nil, fmt.Errorf("account is required")
	}

	info := []byte(account + "/" + authority.String())
	reader := hkdf.New(sha256.New, masterSecret, hkdfSalt, info)

	okm := make([]byte, 32)
	if _, err := io.ReadFull(reader, okm); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	curve := elliptic.P256()
	n := curve.Params().N

	// Map OKM into [1, n-1] to avoid invalid private keys.
	d := new(big.Int).SetBytes(okm)
	nMinusOne := new(big.Int).Sub(n, big.NewInt(1))
	d.Mod(d, nMinusOne)
	d.Add(d, big.NewInt(1))

	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve},
		D:         d,
	}
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(d.Bytes())
	if priv.PublicKey.X == nil || priv.PublicKey.Y == nil || !curve.IsOnCurve(priv.PublicKey.X, priv.PublicKey.Y) {
		return nil, fmt.Errorf("derived key is not on curve")
	}

	return priv, nil
}

// SignHash signs a 32-byte digest, returning a 64-byte r||s signature.
func SignHash(priv *ecdsa.PrivateKey, hash []byte) ([]byte, error) {
	if priv == nil {
		return nil, fmt.Errorf("private key is required")
	}
	if len(hash) == 0 {
		return nil, fmt.Errorf("hash is required")
	}

	r, s, err := ecdsa.Sign(rand.Reader, priv, hash)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	signature := make([]byte, 64)
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	copy(signature[32-len(rBytes):32], rBytes)
	copy(signature[64-len(sBytes):64], sBytes)

	return signature, nil
}

// VerifyHash verifies a 64-byte r||s signature over a digest.
func VerifyHash(pub *ecdsa.PublicKey, hash, signature []byte) bool {
	if len(signature) != 64 {
		return false
	}

	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])

	return ecdsa.Verify(pub, hash, r, s)
}

// Zero clears private key material in place. Scoped key values must be zeroed
// as soon as the signing call that needed them returns.
func Zero(priv *ecdsa.PrivateKey) {
	if priv == nil || priv.D == nil {
		return
	}
	priv.D.SetInt64(0)
	priv.PublicKey.X = nil
	priv.PublicKey.Y = nil
}
