package evm

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// TypedDataDomain is the EIP-712 domain separator.
type TypedDataDomain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract string
}

// TypedDataField is one field of an EIP-712 struct type.
type TypedDataField struct {
	Name string
	Type string
}

// TransferAuthorization is the EIP-3009 TransferWithAuthorization message.
// All numeric fields are decimal strings; Nonce is a 32-byte hex string.
type TransferAuthorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// AuthorizationPayload is the exact-scheme payment proof carried in
// PaymentPayload.Payload for EVM networks.
type AuthorizationPayload struct {
	Signature     string                `json:"signature"`
	Authorization TransferAuthorization `json:"authorization"`
}

// ToMap renders the payload as the generic map the protocol layer carries.
func (p AuthorizationPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"signature": p.Signature,
		"authorization": map[string]interface{}{
			"from":        p.Authorization.From,
			"to":          p.Authorization.To,
			"value":       p.Authorization.Value,
			"validAfter":  p.Authorization.ValidAfter,
			"validBefore": p.Authorization.ValidBefore,
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
	if payload.Authorization.From == "" || payload.Authorization.To == "" {
		return AuthorizationPayload{}, fmt.Errorf("authorization payload is missing addresses")
	}
	return payload, nil
}
