package http

import (
	"encoding/base64"

	"github.com/xeipuuv/gojsonschema"

	x402 "github.com/x402-foundation/x402-core"
)

// paymentPayloadSchema is the wire shape of an X-PAYMENT header body.
// Schema validation runs before unmarshalling so a malformed header is
// rejected with a field-level message instead of a generic decode error.
const paymentPayloadSchema = `{
	"type": "object",
	"required": ["x402Version", "accepted", "payload"],
	"properties": {
		"x402Version": {"type": "integer", "minimum": 1},
		"resource": {
			"type": "object",
			"properties": {
				"url": {"type": "string"},
				"description": {"type": "string"},
				"mimeType": {"type": "string"}
			}
		},
		"accepted": {
			"type": "object",
			"required": ["scheme", "network", "asset", "amount", "payTo"],
			"properties": {
				"scheme": {"type": "string", "minLength": 1},
				"network": {"type": "string", "pattern": "^[a-z0-9-]+:[a-zA-Z0-9*-]+$"},
				"asset": {"type": "string", "minLength": 1},
				"amount": {"type": "string", "pattern": "^[0-9]+$"},
				"payTo": {"type": "string", "minLength": 1},
				"maxTimeoutSeconds": {"type": "integer", "minimum": 0}
			}
		},
		"payload": {"type": "object", "minProperties": 1}
	}
}`

var payloadSchema = gojsonschema.NewStringLoader(paymentPayloadSchema)

// ValidatePaymentHeader decodes and validates an X-PAYMENT header: base64
// shape, JSON schema, then structural checks on the decoded payload.
func ValidatePaymentHeader(header string) (x402.PaymentPayload, error) {
	if header == "" {
		return x402.PaymentPayload{}, x402.NewPaymentError(x402.ErrCodeInvalidPayload,
			"payment header is empty", nil)
	}
	if !base64Pattern.MatchString(header) {
		return x402.PaymentPayload{}, x402.NewPaymentError(x402.ErrCodeInvalidPayload,
			"payment header is not valid base64", nil)
	}

	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return x402.PaymentPayload{}, x402.NewPaymentError(x402.ErrCodeInvalidPayload,
			"payment header base64 decoding failed", err)
	}

	result, err := gojsonschema.Validate(payloadSchema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return x402.PaymentPayload{}, x402.NewPaymentError(x402.ErrCodeInvalidPayload,
			"payment header is not valid JSON", err)
	}
	if !result.Valid() {
		perr := x402.NewPaymentError(x402.ErrCodeInvalidPayload, "payment payload failed schema validation", nil)
		for _, desc := range result.Errors() {
			perr = perr.WithDetails(desc.Field(), desc.Description())
		}
		return x402.PaymentPayload{}, perr
	}

	payload, err := DecodePaymentHeader(header)
	if err != nil {
		return x402.PaymentPayload{}, err
	}
	if err := x402.ValidatePaymentPayload(payload); err != nil {
		return x402.PaymentPayload{}, err
	}
	return payload, nil
}
