package x402

import (
	"encoding/json"
	"strings"
	"time"
)

// ProtocolVersion is the x402 protocol version this package speaks.
const ProtocolVersion = 2

// DefaultMaxTimeoutSeconds is the payment deadline applied when a route
// does not configure one.
const DefaultMaxTimeoutSeconds = 300

// Network is a blockchain network identifier in CAIP-2 format,
// namespace:reference (e.g. "eip155:8453" for Base mainnet). A trailing
// "*" reference turns the identifier into a family pattern ("eip155:*").
type Network string

// Parse splits the network into its namespace and reference components.
func (n Network) Parse() (namespace, reference string, err error) {
	parts := strings.SplitN(string(n), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", NewPaymentError(ErrCodeInvalidPayload, "invalid CAIP-2 network: "+string(n), nil)
	}
	return parts[0], parts[1], nil
}

// IsWildcard reports whether the network is a family pattern such as "eip155:*".
func (n Network) IsWildcard() bool {
	return strings.HasSuffix(string(n), ":*")
}

// Match reports whether this concrete network matches a registered pattern.
// "eip155:8453" matches both "eip155:8453" and "eip155:*".
func (n Network) Match(pattern Network) bool {
	if n == pattern {
		return true
	}
	if pattern.IsWildcard() {
		prefix := strings.TrimSuffix(string(pattern), "*")
		return strings.HasPrefix(string(n), prefix)
	}
	return false
}

// Price is a route-level price specification. Supported shapes are a
// decimal string in base units ("10000"), a money string ("$1.50"), or an
// AssetAmount; Server-role schemes interpret it via ParsePrice.
type Price interface{}

// AssetAmount is an amount of a specific asset in its smallest unit.
type AssetAmount struct {
	Asset  string                 `json:"asset"`
	Amount string                 `json:"amount"`
	Extra  map[string]interface{} `json:"extra,omitempty"`
}

// PaymentRequirements describes one payment option a server accepts for a
// resource. Immutable once issued: the client must echo the chosen entry
// byte-identically in PaymentPayload.Accepted.
type PaymentRequirements struct {
	Scheme            string                 `json:"scheme"`
	Network           Network                `json:"network"`
	Asset             string                 `json:"asset"`
	Amount            string                 `json:"amount"`
	PayTo             string                 `json:"payTo"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// ResourceInfo describes the protected resource being negotiated.
type ResourceInfo struct {
	URL         string `json:"url"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

// PaymentRequired is the machine-readable 402 challenge. Accepts is
// non-empty and ordered by server preference (earlier = more preferred).
type PaymentRequired struct {
	X402Version int                    `json:"x402Version"`
	Resource    *ResourceInfo          `json:"resource,omitempty"`
	Accepts     []PaymentRequirements  `json:"accepts"`
	Error       string                 `json:"error,omitempty"`
	Extensions  map[string]interface{} `json:"extensions,omitempty"`
}

// PaymentPayload carries a signed payment authorization from the client.
// Accepted must be a verbatim member of the challenge's Accepts set.
type PaymentPayload struct {
	X402Version int                    `json:"x402Version"`
	Resource    *ResourceInfo          `json:"resource,omitempty"`
	Accepted    PaymentRequirements    `json:"accepted"`
	Payload     map[string]interface{} `json:"payload"`
	Extensions  map[string]interface{} `json:"extensions,omitempty"`
}

// Verification methods reported in VerificationResult.Method.
const (
	VerifyMethodOnChain     = "on-chain"
	VerifyMethodSignature   = "signature"
	VerifyMethodFacilitator = "facilitator"
	VerifyMethodCached      = "cached"
)

// VerificationResult is the outcome of checking a payment proof.
type VerificationResult struct {
	Valid       bool       `json:"valid"`
	Method      string     `json:"method,omitempty"`
	PaidAmount  string     `json:"paidAmount,omitempty"`
	Payer       string     `json:"payer,omitempty"`
	TxHash      string     `json:"txHash,omitempty"`
	BlockNumber uint64     `json:"blockNumber,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	Error       string     `json:"error,omitempty"`
	IsReplay    bool       `json:"isReplay,omitempty"`
}

// SettlementStatus is the lifecycle state of a settlement.
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementConfirmed SettlementStatus = "confirmed"
	SettlementSettled   SettlementStatus = "settled"
	SettlementFailed    SettlementStatus = "failed"
)

// SettlementResult is the outcome of executing a verified payment.
type SettlementResult struct {
	Success      bool             `json:"success"`
	SettlementID string           `json:"settlementId,omitempty"`
	NetAmount    string           `json:"netAmount,omitempty"`
	Fee          string           `json:"fee,omitempty"`
	Status       SettlementStatus `json:"status"`
	Error        string           `json:"error,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// VerifyRequest is the facilitator /verify request body.
type VerifyRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// SettleRequest is the facilitator /settle request body.
type SettleRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// SupportedKind is one (scheme, network) capability of a facilitator.
type SupportedKind struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     Network                `json:"network"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// SupportedResponse is the facilitator /supported response body.
type SupportedResponse struct {
	Kinds      []SupportedKind `json:"kinds"`
	Extensions []string        `json:"extensions"`
}

// RequirementsEqual reports whether two requirement entries are identical
// after JSON normalization. Used for the verbatim-membership check: a
// payload whose accepted entry differs in any field from every offered
// entry is rejected.
func RequirementsEqual(a, b PaymentRequirements) bool {
	aJSON, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aJSON) == string(bJSON)
}

// ContainsRequirement reports whether want is a verbatim member of offered.
func ContainsRequirement(offered []PaymentRequirements, want PaymentRequirements) bool {
	for _, req := range offered {
		if RequirementsEqual(req, want) {
			return true
		}
	}
	return false
}
