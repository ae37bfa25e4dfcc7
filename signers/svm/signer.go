// Package svm provides key-backed signers for the Solana payment schemes.
package svm

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// KeySigner signs authorization messages with an in-memory Ed25519 key.
type KeySigner struct {
	privateKey solana.PrivateKey
}

// NewKeySigner creates a signer from a base58-encoded private key.
func NewKeySigner(privateKeyBase58 string) (*KeySigner, error) {
	privateKey, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &KeySigner{privateKey: privateKey}, nil
}

// NewRandomKeySigner creates a signer with a freshly generated key.
func NewRandomKeySigner() (*KeySigner, error) {
	privateKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &KeySigner{privateKey: privateKey}, nil
}

// PublicKey returns the signer's public key.
func (s *KeySigner) PublicKey() solana.PublicKey {
	return s.privateKey.PublicKey()
}

// Sign signs a message with the Ed25519 key.
func (s *KeySigner) Sign(message []byte) (solana.Signature, error) {
	return s.privateKey.Sign(message)
}
