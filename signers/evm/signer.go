// Package evm provides key-backed signers for the EVM payment schemes.
package evm

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeySigner signs EIP-712 digests with an in-memory ECDSA private key.
type KeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewKeySigner creates a signer from a hex-encoded private key, with or
// without the "0x" prefix.
func NewKeySigner(privateKeyHex string) (*KeySigner, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &KeySigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// Address returns the checksummed signer address.
func (s *KeySigner) Address() string {
	return s.address.Hex()
}

// SignHash signs a 32-byte digest, returning a 65-byte (r, s, v)
// signature with v adjusted to {27, 28}.
func (s *KeySigner) SignHash(digest []byte) ([]byte, error) {
	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	signature[64] += 27
	return signature, nil
}
