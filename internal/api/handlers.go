// Package api exposes the round engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/alexbotov/roundengine/internal/config"
	"github.com/alexbotov/roundengine/internal/control"
	"github.com/alexbotov/roundengine/internal/domain"
	"github.com/alexbotov/roundengine/internal/game"
	"github.com/alexbotov/roundengine/internal/history"
	"github.com/alexbotov/roundengine/internal/rng"
)

// Handler contains all HTTP handlers.
type Handler struct {
	game    *game.Engine
	rng     *rng.Service
	ledger  game.Ledger
	history *history.Recorder
	control *control.Service
	hub     *Hub
	cfg     *config.Config
}

// New creates a new API handler.
func New(engine *game.Engine, rngSvc *rng.Service, ledger game.Ledger, recorder *history.Recorder, controlSvc *control.Service, hub *Hub, cfg *config.Config) *Handler {
	return &Handler{
		game:    engine,
		rng:     rngSvc,
		ledger:  ledger,
		history: recorder,
		control: controlSvc,
		hub:     hub,
		cfg:     cfg,
	}
}

// Response helpers

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondEngineError maps engine errors onto HTTP statuses.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrRoundNotFound):
		respondError(w, http.StatusNotFound, "ROUND_NOT_FOUND", "Round not found")
	case errors.Is(err, game.ErrGameNotActive):
		respondError(w, http.StatusConflict, "ROUND_NOT_ACTIVE", "Round is not active")
	case errors.Is(err, game.ErrInvalidCoordinates):
		respondError(w, http.StatusBadRequest, "INVALID_COORDINATES", "Coordinates are outside the grid")
	case errors.Is(err, game.ErrAlreadyRevealed):
		respondError(w, http.StatusConflict, "ALREADY_REVEALED", "Cell is already revealed")
	case errors.Is(err, game.ErrPowerUpAlreadyUsed):
		respondError(w, http.StatusConflict, "POWERUP_ALREADY_USED", "Power-up was already used this round")
	case errors.Is(err, game.ErrUnknownPowerUp):
		respondError(w, http.StatusBadRequest, "UNKNOWN_POWERUP", "Unknown power-up type")
	case errors.Is(err, game.ErrUnknownDifficulty):
		respondError(w, http.StatusBadRequest, "UNKNOWN_DIFFICULTY", "Unknown difficulty")
	case errors.Is(err, game.ErrInvalidWager):
		respondError(w, http.StatusBadRequest, "INVALID_WAGER", "Wager amount is invalid")
	case errors.Is(err, game.ErrInsufficientFunds):
		respondError(w, http.StatusBadRequest, "INSUFFICIENT_BALANCE", "Insufficient balance")
	case errors.Is(err, game.ErrWrongMode):
		respondError(w, http.StatusBadRequest, "WRONG_MODE", "Round is of a different game mode")
	case errors.Is(err, game.ErrBadSeed):
		respondError(w, http.StatusBadRequest, "BAD_SEED", "Seed is not valid hex")
	case errors.Is(err, control.ErrGamingDisabled):
		respondError(w, http.StatusServiceUnavailable, "GAMING_DISABLED", "Gaming is currently disabled")
	case errors.Is(err, rng.ErrEntropyUnavailable):
		respondError(w, http.StatusServiceUnavailable, "ENTROPY_UNAVAILABLE", "Entropy source unavailable")
	default:
		respondError(w, http.StatusInternalServerError, "ENGINE_ERROR", err.Error())
	}
}

func limitParam(r *http.Request, def, max int) int {
	limit := def
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= max {
			limit = n
		}
	}
	return limit
}

// === Health & Info ===

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	rngHealth, err := h.rng.HealthCheck()
	status := "healthy"
	if err != nil {
		status = "degraded"
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"rng_status": rngHealth,
		"gating":     h.control.GetStatus(),
	})
}

// ServerInfo handles GET /
func (h *Handler) ServerInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":        "roundengine",
		"version":     "1.0.0",
		"description": "Provably fair game round engine",
	})
}

// === Grid rounds ===

// roundView is the client-safe projection of an active round. The grid
// itself stays server-side: shipping cell kinds to the browser would
// hand out the board.
func roundView(r *domain.Round) map[string]interface{} {
	v := map[string]interface{}{
		"round_id":      r.ID,
		"mode":          r.Mode,
		"status":        r.Status,
		"wager":         r.Wager,
		"moves_made":    r.MovesMade,
		"active_payout": r.ActivePayout,
		"seed_hash":     r.Seed.Hash(),
		"created_at":    r.CreatedAt,
	}
	if r.Mode == domain.ModeGrid {
		v["difficulty"] = r.Difficulty
		v["grid_size"] = r.GridSize
		v["max_moves"] = r.MaxMoves
	}
	if r.Bonus != nil {
		v["bonus"] = r.Bonus
	}
	return v
}

// StartRound handles POST /api/v1/grid/rounds
func (h *Handler) StartRound(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	var req struct {
		Difficulty string `json:"difficulty"`
		Wager      int64  `json:"wager"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	round, err := h.game.StartRound(r.Context(), userID, req.Difficulty, req.Wager)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, roundView(round))
}

// Reveal handles POST /api/v1/grid/rounds/{id}/reveal
func (h *Handler) Reveal(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	roundID := pathVar(r, "id")

	var req struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	result, err := h.game.Reveal(r.Context(), userID, roundID, req.X, req.Y)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// CashOut handles POST /api/v1/grid/rounds/{id}/cashout
func (h *Handler) CashOut(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	roundID := pathVar(r, "id")

	result, err := h.game.CashOut(r.Context(), userID, roundID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ApplyPowerUp handles POST /api/v1/grid/rounds/{id}/powerup
func (h *Handler) ApplyPowerUp(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	roundID := pathVar(r, "id")

	var req struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	typ, ok := domain.ParsePowerUp(req.Type)
	if !ok {
		respondError(w, http.StatusBadRequest, "UNKNOWN_POWERUP", "Unknown power-up type")
		return
	}

	result, err := h.game.ApplyPowerUp(r.Context(), userID, roundID, typ)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// === Reel sessions ===

// StartReelSession handles POST /api/v1/reel/sessions
func (h *Handler) StartReelSession(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	session, err := h.game.StartReelSession(r.Context(), userID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, roundView(session))
}

// Spin handles POST /api/v1/reel/sessions/{id}/spin
func (h *Handler) Spin(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	roundID := pathVar(r, "id")

	var req struct {
		Wager int64 `json:"wager"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	result, err := h.game.Spin(r.Context(), userID, roundID, req.Wager)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// CloseReelSession handles POST /api/v1/reel/sessions/{id}/close
func (h *Handler) CloseReelSession(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	roundID := pathVar(r, "id")

	result, err := h.game.CloseReelSession(r.Context(), userID, roundID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// === Fairness verification ===

// VerifyGrid handles GET /api/v1/verify/grid
func (h *Handler) VerifyGrid(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	wager, err := strconv.ParseInt(q.Get("wager"), 10, 64)
	if err != nil || wager <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_WAGER", "Wager amount is invalid")
		return
	}

	result, err := h.game.VerifyGridRound(r.Context(), q.Get("difficulty"), q.Get("seed"), wager)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// VerifyReel handles GET /api/v1/verify/reel
func (h *Handler) VerifyReel(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	nonceStart, err := strconv.ParseUint(q.Get("nonce_start"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_NONCE", "nonce_start must be a non-negative integer")
		return
	}
	reels, err := strconv.Atoi(q.Get("reels"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REELS", "reels must be an integer")
		return
	}

	result, err := h.game.VerifyReelSpin(r.Context(), q.Get("seed"), nonceStart, reels)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// === Wallet & history ===

// GetBalance handles GET /api/v1/wallet/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	balance, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "BALANCE_ERROR", "Failed to get balance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"balance":  balance,
		"currency": h.cfg.Game.DefaultCurrency,
	})
}

// GetHistory handles GET /api/v1/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	limit := limitParam(r, 20, 100)

	events, err := h.history.ForUser(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "HISTORY_ERROR", "Failed to get round history")
		return
	}

	respondJSON(w, http.StatusOK, events)
}

// GetJackpot handles GET /api/v1/jackpot
func (h *Handler) GetJackpot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"amount":   h.game.JackpotAmount(),
		"currency": h.cfg.Game.DefaultCurrency,
	})
}

// === Operator control ===

// ControlStatus handles GET /api/v1/admin/control
func (h *Handler) ControlStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.control.GetStatus())
}

// DisableGaming handles POST /api/v1/admin/control/disable
func (h *Handler) DisableGaming(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "A reason is required")
		return
	}

	if err := h.control.Disable(r.Context(), req.Reason, userID); err != nil {
		respondError(w, http.StatusInternalServerError, "CONTROL_ERROR", "Failed to disable gaming")
		return
	}

	respondJSON(w, http.StatusOK, h.control.GetStatus())
}

// EnableGaming handles POST /api/v1/admin/control/enable
func (h *Handler) EnableGaming(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	if err := h.control.Enable(r.Context(), userID); err != nil {
		respondError(w, http.StatusInternalServerError, "CONTROL_ERROR", "Failed to enable gaming")
		return
	}

	respondJSON(w, http.StatusOK, h.control.GetStatus())
}
