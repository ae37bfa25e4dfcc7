package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	x402 "github.com/x402-foundation/x402-core"
)

// FacilitatorHandler serves the facilitator API (POST /verify,
// POST /settle, GET /supported) over any x402.Facilitator. It is the
// server-side counterpart of FacilitatorClient.
type FacilitatorHandler struct {
	facilitator x402.Facilitator
	logger      *slog.Logger
	mux         *http.ServeMux
}

// NewFacilitatorHandler wraps a facilitator in an http.Handler.
func NewFacilitatorHandler(facilitator x402.Facilitator, logger *slog.Logger) *FacilitatorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &FacilitatorHandler{facilitator: facilitator, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /verify", h.handleVerify)
	h.mux.HandleFunc("POST /settle", h.handleSettle)
	h.mux.HandleFunc("GET /supported", h.handleSupported)
	return h
}

// ServeHTTP implements http.Handler.
func (h *FacilitatorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *FacilitatorHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req x402.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed verify request")
		return
	}

	result, err := h.facilitator.Verify(r.Context(), req.PaymentPayload, req.PaymentRequirements)
	if err != nil {
		h.writeFailure(w, r, "verify", err)
		return
	}
	h.logger.Info("verification served",
		"scheme", req.PaymentPayload.Accepted.Scheme,
		"network", string(req.PaymentPayload.Accepted.Network),
		"valid", result.Valid)
	writeJSON(w, http.StatusOK, result)
}

func (h *FacilitatorHandler) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req x402.SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed settle request")
		return
	}

	result, err := h.facilitator.Settle(r.Context(), req.PaymentPayload, req.PaymentRequirements)
	if err != nil {
		h.writeFailure(w, r, "settle", err)
		return
	}
	h.logger.Info("settlement served",
		"scheme", req.PaymentPayload.Accepted.Scheme,
		"settlementId", result.SettlementID,
		"success", result.Success)
	writeJSON(w, http.StatusOK, result)
}

func (h *FacilitatorHandler) handleSupported(w http.ResponseWriter, r *http.Request) {
	supported, err := h.facilitator.GetSupported(r.Context())
	if err != nil {
		h.writeFailure(w, r, "supported", err)
		return
	}
	writeJSON(w, http.StatusOK, supported)
}

func (h *FacilitatorHandler) writeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error("facilitator operation failed", "op", op, "path", r.URL.Path, "error", err)
	switch x402.CodeOf(err) {
	case x402.ErrCodeInvalidPayload, x402.ErrCodeNoMatchingScheme:
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
