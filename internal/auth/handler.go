// Package auth implements the wallet-signature admin login: a one-time nonce
// is issued per address, the wallet signs it (EIP-191 personal_sign) and a
// valid signature from an allowlisted admin wallet yields a session JWT.
package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

type Handler struct {
	nonces       NonceStore
	secret       []byte
	sessionTTL   time.Duration
	adminWallets map[string]bool
	log          *zap.Logger
}

func NewHandler(nonces NonceStore, secret []byte, sessionTTL time.Duration, adminWallets []string, log *zap.Logger) *Handler {
	allowed := make(map[string]bool, len(adminWallets))
	for _, addr := range adminWallets {
		allowed[strings.ToLower(addr)] = true
	}
	return &Handler{nonces: nonces, secret: secret, sessionTTL: sessionTTL, adminWallets: allowed, log: log}
}

// loginMessage is the exact text the wallet signs. The nonce makes it
// single-use; replaying an old signature fails because the nonce is consumed.
func loginMessage(nonce string) string {
	return "certproof login nonce: " + nonce
}

type nonceRequest struct {
	Address string `json:"address"`
}

// Nonce handles POST /api/v1/auth/nonce.
func (h *Handler) Nonce(w http.ResponseWriter, r *http.Request) {
	var req nonceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	addr := strings.ToLower(strings.TrimSpace(req.Address))
	if !validAddress(addr) {
		writeError(w, http.StatusBadRequest, "address must be a 0x-prefixed 20-byte hex string")
		return
	}
	if !h.adminWallets[addr] {
		writeError(w, http.StatusForbidden, "address is not an admin wallet")
		return
	}

	nonce, err := h.nonces.Issue(r.Context(), addr)
	if err != nil {
		h.log.Error("nonce issue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to issue nonce")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"nonce":   nonce,
		"message": loginMessage(nonce),
	})
}

type loginRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	addr := strings.ToLower(strings.TrimSpace(req.Address))
	if !validAddress(addr) {
		writeError(w, http.StatusBadRequest, "address must be a 0x-prefixed 20-byte hex string")
		return
	}

	nonce, err := h.nonces.Consume(r.Context(), addr)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "no pending nonce; request one first")
		return
	}

	recovered, err := recoverSigner(loginMessage(nonce), req.Signature)
	if err != nil || !strings.EqualFold(recovered, addr) {
		writeError(w, http.StatusUnauthorized, "signature does not match address")
		return
	}
	if !h.adminWallets[addr] {
		writeError(w, http.StatusForbidden, "address is not an admin wallet")
		return
	}

	token, err := CreateToken(addr, h.secret, h.sessionTTL)
	if err != nil {
		h.log.Error("session token creation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session token")
		return
	}
	h.log.Info("admin logged in", zap.String("address", addr))
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// recoverSigner verifies an EIP-191 personal_sign signature and returns the
// signing address.
func recoverSigner(message, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != 65 {
		return "", fmt.Errorf("malformed signature")
	}
	// Wallets return V as 27/28; go-ethereum expects 0/1.
	if sig[64] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[64] -= 27
	}
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	hash := crypto.Keccak256([]byte(prefixed))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return "", fmt.Errorf("recover public key: %w", err)
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}

func validAddress(addr string) bool {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return false
	}
	for _, c := range addr[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
