package http

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"

	x402 "github.com/x402-foundation/x402-core"
)

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)

// EncodePaymentHeader encodes a payment payload for the X-PAYMENT header.
func EncodePaymentHeader(payload x402.PaymentPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payment header: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePaymentHeader decodes an X-PAYMENT header value.
func DecodePaymentHeader(header string) (x402.PaymentPayload, error) {
	var payload x402.PaymentPayload
	if err := decodeBase64JSON(header, &payload); err != nil {
		return x402.PaymentPayload{}, x402.NewPaymentError(x402.ErrCodeInvalidPayload,
			"malformed X-PAYMENT header", err)
	}
	return payload, nil
}

// EncodeSettlementHeader encodes a settlement receipt for X-PAYMENT-RESPONSE.
func EncodeSettlementHeader(settlement x402.SettlementResult) (string, error) {
	data, err := json.Marshal(settlement)
	if err != nil {
		return "", fmt.Errorf("encode settlement header: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeSettlementHeader decodes an X-PAYMENT-RESPONSE header value.
func DecodeSettlementHeader(header string) (x402.SettlementResult, error) {
	var settlement x402.SettlementResult
	if err := decodeBase64JSON(header, &settlement); err != nil {
		return x402.SettlementResult{}, fmt.Errorf("malformed X-PAYMENT-RESPONSE header: %w", err)
	}
	return settlement, nil
}

// EncodePaymentRequiredHeader encodes a challenge for X-Payment-Required.
func EncodePaymentRequiredHeader(required x402.PaymentRequired) (string, error) {
	data, err := json.Marshal(required)
	if err != nil {
		return "", fmt.Errorf("encode challenge header: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePaymentRequiredHeader decodes an X-Payment-Required header value.
func DecodePaymentRequiredHeader(header string) (x402.PaymentRequired, error) {
	var required x402.PaymentRequired
	if err := decodeBase64JSON(header, &required); err != nil {
		return x402.PaymentRequired{}, fmt.Errorf("malformed X-Payment-Required header: %w", err)
	}
	return required, nil
}

func decodeBase64JSON(header string, v interface{}) error {
	if header == "" {
		return fmt.Errorf("empty header")
	}
	if !base64Pattern.MatchString(header) {
		return fmt.Errorf("not valid base64")
	}
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return fmt.Errorf("base64 decode: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	return nil
}
