package x402

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a payment failure for programmatic handling.
type ErrorCode string

const (
	// ErrCodeInvalidPayload indicates a malformed payment header or body.
	ErrCodeInvalidPayload ErrorCode = "invalid_payload"

	// ErrCodeRequirementMismatch indicates the accepted requirement was
	// altered or never offered.
	ErrCodeRequirementMismatch ErrorCode = "requirement_mismatch"

	// ErrCodeDeadlineExpired indicates the payment deadline has elapsed.
	ErrCodeDeadlineExpired ErrorCode = "deadline_expired"

	// ErrCodeNoMatchingScheme indicates no scheme is registered for the
	// requested role, scheme id and network.
	ErrCodeNoMatchingScheme ErrorCode = "no_matching_scheme"

	// ErrCodeVerificationFailed indicates the scheme rejected the proof.
	ErrCodeVerificationFailed ErrorCode = "verification_failed"

	// ErrCodeReplayDetected indicates the payment proof was already consumed.
	ErrCodeReplayDetected ErrorCode = "replay_detected"

	// ErrCodeSettlementFailed indicates settlement failed after a
	// successful verification.
	ErrCodeSettlementFailed ErrorCode = "settlement_failed"

	// ErrCodeFacilitatorUnreachable indicates a facilitator timeout or
	// connection error, distinct from a negative verification result.
	ErrCodeFacilitatorUnreachable ErrorCode = "facilitator_unreachable"

	// ErrCodePaymentRejected indicates the retried request still received
	// a 402 challenge.
	ErrCodePaymentRejected ErrorCode = "payment_rejected"
)

// PaymentError is a typed payment failure. Callers branch on Code rather
// than string-matching messages.
type PaymentError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a PaymentError wrapping an optional cause.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{Code: code, Message: message, Err: err}
}

// WithDetails attaches additional context to the error.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the ErrorCode from err, or "" if err is not a PaymentError.
func CodeOf(err error) ErrorCode {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether err carries the given payment error code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
