// Package api - Router setup
package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRouter creates and configures the HTTP router.
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(CORSMiddleware)
	r.Use(LoggingMiddleware)

	// Public routes
	r.HandleFunc("/", h.ServerInfo).Methods("GET")
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// API v1 routes
	api := r.PathPrefix("/api/v1").Subrouter()

	// Fairness verification is public: anyone holding a published seed
	// can replay an outcome without an account.
	api.HandleFunc("/verify/grid", h.VerifyGrid).Methods("GET")
	api.HandleFunc("/verify/reel", h.VerifyReel).Methods("GET")
	api.HandleFunc("/jackpot", h.GetJackpot).Methods("GET")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(h.AuthMiddleware)

	// Grid rounds
	protected.HandleFunc("/grid/rounds", h.StartRound).Methods("POST")
	protected.HandleFunc("/grid/rounds/{id}/reveal", h.Reveal).Methods("POST")
	protected.HandleFunc("/grid/rounds/{id}/cashout", h.CashOut).Methods("POST")
	protected.HandleFunc("/grid/rounds/{id}/powerup", h.ApplyPowerUp).Methods("POST")

	// Reel sessions
	protected.HandleFunc("/reel/sessions", h.StartReelSession).Methods("POST")
	protected.HandleFunc("/reel/sessions/{id}/spin", h.Spin).Methods("POST")
	protected.HandleFunc("/reel/sessions/{id}/close", h.CloseReelSession).Methods("POST")

	// Wallet & history
	protected.HandleFunc("/wallet/balance", h.GetBalance).Methods("GET")
	protected.HandleFunc("/history", h.GetHistory).Methods("GET")

	// WebSocket for live outcome events
	protected.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")

	// Operator control
	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(AdminMiddleware)
	admin.HandleFunc("/control", h.ControlStatus).Methods("GET")
	admin.HandleFunc("/control/disable", h.DisableGaming).Methods("POST")
	admin.HandleFunc("/control/enable", h.EnableGaming).Methods("POST")

	return r
}

// NotFoundHandler handles 404 errors.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}
