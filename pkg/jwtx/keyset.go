package jwtx

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet holds the public verification keys in memory. The identity service
// publishes it as JWKS and verifies its own tokens against it.
type KeySet struct {
	mu  sync.RWMutex
	jks JWKS
	pub map[string]ed25519.PublicKey
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{pub: make(map[string]ed25519.PublicKey)}
}

// AddSigner registers a Signer's public JWK into the KeySet.
func (k *KeySet) AddSigner(s Signer) error {
	return k.AddJWK(s.PublicJWK())
}

// AddJWK adds a JWK to the KeySet.
func (k *KeySet) AddJWK(j JWK) error {
	key, err := parseJWK(j)
	if err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub[j.Kid] = key
	k.jks.Keys = append(k.jks.Keys, j)
	return nil
}

// Get returns the public key for the given kid.
func (k *KeySet) Get(kid string) (ed25519.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, ErrNoKey
}

// PublicJWKS returns a snapshot of the KeySet's JWKS for HTTP serving.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := JWKS{Keys: make([]JWK, len(k.jks.Keys))}
	copy(out.Keys, k.jks.Keys)
	return out
}

// IsReady returns true if the KeySet has at least one key loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub) > 0
}

func parseJWK(j JWK) (ed25519.PublicKey, error) {
	if j.Kty != "OKP" {
		return nil, errors.New("jwtx: unsupported kty " + j.Kty)
	}
	if j.Crv != "Ed25519" {
		return nil, errors.New("jwtx: unsupported OKP curve " + j.Crv)
	}
	xb, err := base64.RawURLEncoding.DecodeString(j.X)
	if err != nil {
		return nil, err
	}
	if len(xb) != ed25519.PublicKeySize {
		return nil, errors.New("jwtx: invalid Ed25519 public key size")
	}
	return ed25519.PublicKey(xb), nil
}
