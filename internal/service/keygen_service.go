package service

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"payee-ledger/internal/core/ports"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// Ed25519KeyGenerator implements ports.KeyGenerator. Addresses are the
// base58-encoded blake2b-160 digest of the public key; the private key is
// sealed by the custody layer before it ever leaves this function.
type Ed25519KeyGenerator struct {
	encSvc ports.EncryptionService
}

// NewEd25519KeyGenerator creates a keypair generator backed by the given
// custody encryption service.
func NewEd25519KeyGenerator(encSvc ports.EncryptionService) *Ed25519KeyGenerator {
	return &Ed25519KeyGenerator{encSvc: encSvc}
}

// NewKeypair generates a keypair and returns the derived address plus the
// encrypted private key for at-rest storage.
func (g *Ed25519KeyGenerator) NewKeypair() (string, string, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generating keypair: %w", err)
	}

	address, err := DeriveAddress(pub)
	if err != nil {
		return "", "", err
	}

	encryptedKey, err := g.encSvc.Encrypt(hex.EncodeToString(priv))
	if err != nil {
		return "", "", fmt.Errorf("sealing private key: %w", err)
	}

	return address, encryptedKey, nil
}

// DeriveAddress maps a public key to its wallet address.
func DeriveAddress(pub ed25519.PublicKey) (string, error) {
	hasher, err := blake2b.New(20, nil)
	if err != nil {
		return "", fmt.Errorf("creating address hasher: %w", err)
	}
	hasher.Write(pub)
	return base58.Encode(hasher.Sum(nil)), nil
}
