package svm

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
)

// TransferAuthorization is the off-chain transfer authorization a client
// signs for Solana payments. Numeric fields are decimal strings on the
// wire; the Borsh form used as signing bytes is strongly typed.
type TransferAuthorization struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Mint        string `json:"mint"`
	Amount      string `json:"amount"`
	ValidUntil  string `json:"validUntil"`
	Nonce       string `json:"nonce"`
}

// AuthorizationPayload is the exact-scheme payment proof carried in
// PaymentPayload.Payload for Solana networks.
type AuthorizationPayload struct {
	Signature     string                `json:"signature"`
	Authorization TransferAuthorization `json:"authorization"`
}

// authorizationMessage is the Borsh signing form of TransferAuthorization.
type authorizationMessage struct {
	Source      solana.PublicKey
	Destination solana.PublicKey
	Mint        solana.PublicKey
	Amount      uint64
	ValidUntil  int64
	Nonce       [32]uint8
}

// SigningBytes renders the canonical Borsh encoding the Ed25519 signature
// covers. Any field change produces different bytes.
func (a TransferAuthorization) SigningBytes() ([]byte, error) {
	source, err := solana.PublicKeyFromBase58(a.Source)
	if err != nil {
		return nil, fmt.Errorf("invalid source: %w", err)
	}
	destination, err := solana.PublicKeyFromBase58(a.Destination)
	if err != nil {
		return nil, fmt.Errorf("invalid destination: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(a.Mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint: %w", err)
	}
	amount, err := strconv.ParseUint(a.Amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", a.Amount, err)
	}
	validUntil, err := strconv.ParseInt(a.ValidUntil, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid validUntil %q: %w", a.ValidUntil, err)
	}
	nonce, err := hex.DecodeString(strings.TrimPrefix(a.Nonce, "0x"))
	if err != nil || len(nonce) != 32 {
		return nil, fmt.Errorf("invalid 32-byte nonce %q", a.Nonce)
	}

	message := authorizationMessage{
		Source:      source,
		Destination: destination,
		Mint:        mint,
		Amount:      amount,
		ValidUntil:  validUntil,
	}
	copy(message.Nonce[:], nonce)

	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(message); err != nil {
		return nil, fmt.Errorf("borsh encode authorization: %w", err)
	}
	return buf.Bytes(), nil
}

// ToMap renders the payload as the generic map the protocol layer carries.
func (p AuthorizationPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"signature": p.Signature,
		"authorization": map[string]interface{}{
			"source":      p.Authorization.Source,
			"destination": p.Authorization.Destination,
			"mint":        p.Authorization.Mint,
			"amount":      p.Authorization.Amount,
			"validUntil":  p.Authorization.ValidUntil,
			"nonce":       p.Authorization.Nonce,
		},
	}
}

// PayloadFromMap decodes the generic payload map back into its typed form.
func PayloadFromMap(data map[string]interface{}) (AuthorizationPayload, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return AuthorizationPayload{}, fmt.Errorf("encode payload map: %w", err)
	}
	var payload AuthorizationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return AuthorizationPayload{}, fmt.Errorf("decode authorization payload: %w", err)
	}
	if payload.Signature == "" {
		return AuthorizationPayload{}, fmt.Errorf("authorization payload is missing a signature")
	}
	if payload.Authorization.Source == "" || payload.Authorization.Destination == "" {
		return AuthorizationPayload{}, fmt.Errorf("authorization payload is missing accounts")
	}
	return payload, nil
}
