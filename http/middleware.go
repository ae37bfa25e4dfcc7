package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	x402 "github.com/x402-foundation/x402-core"
)

// RoutesConfig maps route patterns to their payment configuration. Keys
// are "METHOD /path" or just "/path" (any method); a trailing "*" makes
// the path a prefix match:
//
//	RoutesConfig{
//	    "GET /api/report":  {...},
//	    "/api/premium/*":   {...},
//	}
type RoutesConfig map[string]x402.RouteConfig

type compiledRoute struct {
	method string // empty = any
	path   string
	prefix bool
	config x402.RouteConfig
}

// Paywall guards HTTP routes behind the payment flow. It is the core the
// net/http middleware and the gin/echo adapters share.
type Paywall struct {
	server *x402.ResourceServer
	routes []compiledRoute
	logger *slog.Logger
}

// PaywallOption configures a Paywall.
type PaywallOption func(*Paywall)

// WithPaywallLogger sets the structured logger for payment decisions.
func WithPaywallLogger(logger *slog.Logger) PaywallOption {
	return func(p *Paywall) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPaywall compiles the route table against a resource server.
func NewPaywall(server *x402.ResourceServer, routes RoutesConfig, opts ...PaywallOption) *Paywall {
	p := &Paywall{
		server: server,
		logger: slog.Default(),
	}
	for pattern, config := range routes {
		p.routes = append(p.routes, compileRoute(pattern, config))
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func compileRoute(pattern string, config x402.RouteConfig) compiledRoute {
	route := compiledRoute{config: config}
	if method, path, ok := strings.Cut(pattern, " "); ok && !strings.HasPrefix(pattern, "/") {
		route.method = strings.ToUpper(method)
		route.path = path
	} else {
		route.path = pattern
	}
	if strings.HasSuffix(route.path, "*") {
		route.prefix = true
		route.path = strings.TrimSuffix(route.path, "*")
	}
	return route
}

func (p *Paywall) match(method, path string) (x402.RouteConfig, bool) {
	for _, route := range p.routes {
		if route.method != "" && route.method != method {
			continue
		}
		if route.prefix {
			if strings.HasPrefix(path, route.path) {
				return route.config, true
			}
			continue
		}
		if path == route.path {
			return route.config, true
		}
	}
	return x402.RouteConfig{}, false
}

// Middleware wraps a handler with the paywall for net/http servers.
func (p *Paywall) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.Check(w, r) {
			next.ServeHTTP(w, r)
		}
	})
}

// Check runs the payment flow for one request. It returns true when the
// request is either unprotected or paid for; otherwise it has already
// written the challenge or error response.
func (p *Paywall) Check(w http.ResponseWriter, r *http.Request) bool {
	route, protected := p.match(r.Method, r.URL.Path)
	if !protected {
		return true
	}

	required, err := p.server.BuildPaymentRequired(r.Context(), route, resourceInfo(r, route), pricingContext(r))
	if err != nil {
		p.logger.Error("building payment challenge failed", "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return false
	}

	header := r.Header.Get(HeaderPayment)
	if header == "" {
		p.writeChallenge(w, required)
		return false
	}

	payload, err := ValidatePaymentHeader(header)
	if err != nil {
		p.logger.Info("rejected malformed payment header", "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return false
	}

	receipt, err := p.server.ProcessPayment(r.Context(), payload, required.Accepts)
	if err != nil {
		p.reject(w, r, required, err)
		return false
	}

	if receipt.Settlement != nil {
		if header, err := EncodeSettlementHeader(*receipt.Settlement); err == nil {
			w.Header().Set(HeaderPaymentResponse, header)
		}
	}
	p.logger.Info("payment accepted",
		"path", r.URL.Path,
		"scheme", payload.Accepted.Scheme,
		"network", string(payload.Accepted.Network),
		"amount", payload.Accepted.Amount,
		"payer", receipt.Verification.Payer)
	return true
}

// reject maps a processing failure to its HTTP response: malformed or
// tampered payments are client errors, an unreachable facilitator is a
// gateway error, everything else re-challenges with a fresh 402.
func (p *Paywall) reject(w http.ResponseWriter, r *http.Request, required x402.PaymentRequired, err error) {
	code := x402.CodeOf(err)
	p.logger.Info("payment rejected", "path", r.URL.Path, "code", string(code), "error", err)

	switch code {
	case x402.ErrCodeInvalidPayload, x402.ErrCodeRequirementMismatch:
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case x402.ErrCodeFacilitatorUnreachable:
		writeJSONError(w, http.StatusBadGateway, "payment facilitator unreachable")
	default:
		required.Error = err.Error()
		p.writeChallenge(w, required)
	}
}

func (p *Paywall) writeChallenge(w http.ResponseWriter, required x402.PaymentRequired) {
	if header, err := EncodePaymentRequiredHeader(required); err == nil {
		w.Header().Set(HeaderPaymentRequired, header)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	if err := json.NewEncoder(w).Encode(required); err != nil {
		p.logger.Error("writing payment challenge failed", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func resourceInfo(r *http.Request, route x402.RouteConfig) x402.ResourceInfo {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return x402.ResourceInfo{
		URL:         scheme + "://" + r.Host + r.URL.Path,
		Description: route.Description,
		MimeType:    route.MimeType,
	}
}

func pricingContext(r *http.Request) x402.PricingContext {
	return x402.PricingContext{
		Path:       r.URL.Path,
		Method:     r.Method,
		ClientAddr: r.RemoteAddr,
		BodySize:   r.ContentLength,
	}
}
