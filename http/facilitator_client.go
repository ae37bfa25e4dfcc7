package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	x402 "github.com/x402-foundation/x402-core"
)

// DefaultFacilitatorURL is the public facilitator used when none is
// configured.
const DefaultFacilitatorURL = "https://x402.org/facilitator"

const (
	supportedRetries        = 3
	supportedRetryBaseDelay = time.Second
	maxFacilitatorBody      = 1 << 20
)

// AuthProvider supplies authentication headers for facilitator requests.
type AuthProvider interface {
	AuthHeaders(ctx context.Context, endpoint string) (map[string]string, error)
}

// FacilitatorConfig configures a FacilitatorClient.
type FacilitatorConfig struct {
	// URL is the facilitator base URL; defaults to DefaultFacilitatorURL.
	URL string

	// HTTPClient overrides the underlying client.
	HTTPClient *http.Client

	// Timeout applies when HTTPClient is not set; defaults to 30s.
	Timeout time.Duration

	// AuthProvider optionally signs requests.
	AuthProvider AuthProvider
}

// FacilitatorClient delegates verification and settlement to a remote
// facilitator over HTTP. Transport failures and facilitator-side outages
// surface as FacilitatorUnreachable, which callers treat differently from
// a negative verification.
type FacilitatorClient struct {
	url    string
	client *http.Client
	auth   AuthProvider
}

// NewFacilitatorClient creates a client from its configuration.
func NewFacilitatorClient(config FacilitatorConfig) *FacilitatorClient {
	url := config.URL
	if url == "" {
		url = DefaultFacilitatorURL
	}
	client := config.HTTPClient
	if client == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &FacilitatorClient{url: url, client: client, auth: config.AuthProvider}
}

// Verify implements x402.Facilitator.
func (c *FacilitatorClient) Verify(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.VerificationResult, error) {
	body := x402.VerifyRequest{
		X402Version:         payload.X402Version,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	}
	var result x402.VerificationResult
	if err := c.post(ctx, "/verify", body, &result); err != nil {
		return nil, err
	}
	if result.Method == "" {
		result.Method = x402.VerifyMethodFacilitator
	}
	return &result, nil
}

// Settle implements x402.Facilitator.
func (c *FacilitatorClient) Settle(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.SettlementResult, error) {
	body := x402.SettleRequest{
		X402Version:         payload.X402Version,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	}
	var result x402.SettlementResult
	if err := c.post(ctx, "/settle", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSupported implements x402.Facilitator. Rate-limited responses are
// retried with exponential backoff.
func (c *FacilitatorClient) GetSupported(ctx context.Context) (x402.SupportedResponse, error) {
	var lastErr error
	for attempt := 0; attempt < supportedRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return x402.SupportedResponse{}, ctx.Err()
			case <-time.After(supportedRetryBaseDelay << (attempt - 1)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/supported", nil)
		if err != nil {
			return x402.SupportedResponse{}, err
		}
		if err := c.authorize(req, "/supported"); err != nil {
			return x402.SupportedResponse{}, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return x402.SupportedResponse{}, unreachable("GET /supported", err)
		}
		data, err := readBody(resp)
		if err != nil {
			return x402.SupportedResponse{}, unreachable("GET /supported", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = unreachable("GET /supported", fmt.Errorf("rate limited"))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return x402.SupportedResponse{}, unreachable("GET /supported",
				fmt.Errorf("unexpected status %d", resp.StatusCode))
		}

		var supported x402.SupportedResponse
		if err := json.Unmarshal(data, &supported); err != nil {
			return x402.SupportedResponse{}, unreachable("GET /supported", err)
		}
		return supported, nil
	}
	return x402.SupportedResponse{}, lastErr
}

func (c *FacilitatorClient) post(ctx context.Context, endpoint string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(req, endpoint); err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return unreachable("POST "+endpoint, err)
	}
	respBody, err := readBody(resp)
	if err != nil {
		return unreachable("POST "+endpoint, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return unreachable("POST "+endpoint, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		code := x402.ErrCodeVerificationFailed
		if endpoint == "/settle" {
			code = x402.ErrCodeSettlementFailed
		}
		return x402.NewPaymentError(code,
			fmt.Sprintf("facilitator returned status %d", resp.StatusCode), nil).
			WithDetails("body", string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return unreachable("POST "+endpoint, fmt.Errorf("undecodable response: %w", err))
	}
	return nil
}

func (c *FacilitatorClient) authorize(req *http.Request, endpoint string) error {
	if c.auth == nil {
		return nil
	}
	headers, err := c.auth.AuthHeaders(req.Context(), endpoint)
	if err != nil {
		return fmt.Errorf("facilitator auth: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return nil
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxFacilitatorBody))
}

func unreachable(op string, err error) *x402.PaymentError {
	return x402.NewPaymentError(x402.ErrCodeFacilitatorUnreachable,
		"facilitator request failed: "+op, err)
}
