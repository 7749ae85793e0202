package jwtx

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/aussiebroadwan/storefront/pkg/cryptox"
)

// KeyManager owns the signing keys for one identity instance together with
// the KeySet and Verifier derived from them.
//
// Keys are ephemeral: generated at start-up and never written to disk, so a
// restart invalidates every outstanding access token. Clients recover through
// the refresh grant.
type KeyManager struct {
	Verifier Verifier
	KeySet   *KeySet

	mu      sync.RWMutex
	signers []Signer
}

// KeyManagerOptions configures the KeyManager.
type KeyManagerOptions struct {
	Issuer   string
	Audience []string

	// NumKeys defaults to 2 and is capped at 10.
	NumKeys int
}

// NewEphemeralKeyManager generates NumKeys Ed25519 signing keys with random
// key IDs and wires them into a KeySet and Verifier.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	numKeys := opts.NumKeys
	if numKeys <= 0 {
		numKeys = 2
	}
	numKeys = min(numKeys, 10)

	keyset := NewKeySet()
	km := &KeyManager{
		Verifier: NewVerifierEdDSA(keyset, opts.Issuer, opts.Audience),
		KeySet:   keyset,
	}

	for i := range numKeys {
		signer, err := generateSigner()
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate signer %d: %w", i+1, err)
		}
		if err := km.AddSigner(signer); err != nil {
			return nil, err
		}
	}

	return km, nil
}

func generateSigner() (Signer, error) {
	kid, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, fmt.Errorf("key id: %w", err)
	}
	pemBytes, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, err
	}
	return NewSignerEdDSA("sf-"+kid, pemBytes)
}

// IsReady returns true if the KeyManager has valid keys loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady() && km.NumSigners() > 0
}

// GetSigner returns a randomly selected active signer, or nil when none.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	default:
		return km.signers[rand.IntN(len(km.signers))]
	}
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// AddSigner adds a signing key to both the active list and the KeySet.
func (km *KeyManager) AddSigner(signer Signer) error {
	if signer == nil {
		return fmt.Errorf("jwtx: signer cannot be nil")
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	if err := km.KeySet.AddSigner(signer); err != nil {
		return fmt.Errorf("jwtx: add signer to keyset: %w", err)
	}
	km.signers = append(km.signers, signer)
	return nil
}
