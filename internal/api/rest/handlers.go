package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mkelleher/storefront-sentinel/internal/service/verification"
)

// sessionCookieName carries the verified-session token back to the client.
const sessionCookieName = "sentinel_session"

// CaptchaVerifier is the slice of the verification gateway the handler needs.
type CaptchaVerifier interface {
	Verify(ctx context.Context, response string) (verification.Result, error)
}

// BlockChecker answers blocklist lookups for host integration.
type BlockChecker interface {
	IsBlocked(ctx context.Context, address string) (bool, error)
}

// Handler holds the HTTP endpoints.
type Handler struct {
	verifier CaptchaVerifier
	sessions *verification.SessionIssuer
	blocks   BlockChecker
	logger   *zap.Logger
}

// NewHandler creates the endpoint handler set.
func NewHandler(verifier CaptchaVerifier, sessions *verification.SessionIssuer, blocks BlockChecker, logger *zap.Logger) *Handler {
	return &Handler{
		verifier: verifier,
		sessions: sessions,
		blocks:   blocks,
		logger:   logger,
	}
}

type verifyResponse struct {
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

// handleCaptchaVerify verifies a CAPTCHA response and, on success, hands the
// client a short-lived session cookie.
func (h *Handler) handleCaptchaVerify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, verifyResponse{Error: "malformed form body"})
		return
	}

	token := r.PostFormValue("response")
	result, err := h.verifier.Verify(r.Context(), token)

	switch result {
	case verification.ResultVerified:
		session, err := h.sessions.Issue(clientAddress(r))
		if err != nil {
			h.logger.Error("session issue failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, verifyResponse{Error: "session issue failed"})
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    session,
			Path:     "/",
			MaxAge:   int(h.sessions.TTL().Seconds()),
			Secure:   true,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
		writeJSON(w, http.StatusOK, verifyResponse{Verified: true})

	case verification.ResultError:
		// The provider was unreachable; the client may retry, but it does
		// not get a session.
		h.logger.Warn("captcha verification errored", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, verifyResponse{Error: "verification unavailable"})

	default:
		writeJSON(w, http.StatusForbidden, verifyResponse{Verified: false})
	}
}

type blocklistResponse struct {
	Address string `json:"address"`
	Blocked bool   `json:"blocked"`
}

// handleBlocklistLookup answers whether an address currently has an active
// block, for checkout-path integration.
func (h *Handler) handleBlocklistLookup(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if address == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address is required"})
		return
	}

	blocked, err := h.blocks.IsBlocked(r.Context(), address)
	if err != nil {
		h.logger.Error("blocklist lookup failed",
			zap.String("address", address),
			zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "blocklist unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, blocklistResponse{Address: address, Blocked: blocked})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
