package auth

import (
	"context"
	"encoding/hex"

	"github.com/Verse-Network/mutation_layer/internal/keys"
	"github.com/Verse-Network/mutation_layer/ledger"
	"github.com/Verse-Network/mutation_layer/ops"
)

// LocalKeyProvider signs in-process with key material supplied by the caller.
// The signing step itself never touches the network. Key material is scoped
// to the single Sign call and zeroed before it returns.
type LocalKeyProvider struct {
	account      string
	masterSecret []byte
	networkID    uint32
	// authorities the supplied secret may exercise. A posting-only secret
	// asked for an active signature is a rejection, not a downgrade.
	authorities map[ops.Authority]bool
}

// LocalKeyConfig holds local key provider configuration.
type LocalKeyConfig struct {
	Account      string
	MasterSecret []byte
	NetworkID    uint32
	Authorities  []ops.Authority
}

// NewLocalKeyProvider creates a local key provider. A nil or empty master
// secret is allowed; the provider then reports Unavailable on every attempt.
func NewLocalKeyProvider(cfg LocalKeyConfig) *LocalKeyProvider {
	auths := make(map[ops.Authority]bool, len(cfg.Authorities))
	for _, a := range cfg.Authorities {
		auths[a] = true
	}
	return &LocalKeyProvider{
		account:      cfg.Account,
		masterSecret: cfg.MasterSecret,
		networkID:    cfg.NetworkID,
		authorities:  auths,
	}
}

// Kind returns the provider kind.
func (p *LocalKeyProvider) Kind() ProviderKind { return KindLocalKey }

// Sign signs the transaction with the derived role key.
func (p *LocalKeyProvider) Sign(ctx context.Context, tx *ledger.Transaction, authority ops.Authority) Result {
	if len(p.masterSecret) == 0 {
		return Unavailable("no local key configured")
	}
	if !p.authorities[authority] {
		return Rejected("configured key does not satisfy "+authority.String()+" authority", true)
	}
	if err := ctx.Err(); err != nil {
		return Unavailable("cancelled before signing")
	}

	digest, err := tx.SigningDigest(p.networkID)
	if err != nil {
		return Rejected("compute signing digest: "+err.Error(), true)
	}

	priv, err := keys.DeriveRoleKey(p.masterSecret, p.account, authority)
	if err != nil {
		return Rejected("derive role key: "+err.Error(), true)
	}
	defer keys.Zero(priv)

	sig, err := keys.SignHash(priv, digest)
	if err != nil {
		return Rejected("sign digest: "+err.Error(), true)
	}

	signed := *tx
	signed.Signatures = append(append([]string{}, tx.Signatures...), hex.EncodeToString(sig))
	return Signed(&signed)
}
