package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/primevault/rvm/internal/lifecycle"
	"github.com/primevault/rvm/internal/logger"
	"github.com/primevault/rvm/internal/metrics"
	"github.com/primevault/rvm/internal/state"
	"github.com/primevault/rvm/internal/vault"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes read-only vault data over HTTP.
type WebServer struct {
	router     *mux.Router
	port       string
	vault      *vault.Vault
	controller *lifecycle.Controller
}

// NewWebServer creates a new web server instance.
func NewWebServer(port string, v *vault.Vault, c *lifecycle.Controller) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:     mux.NewRouter(),
		port:       port,
		vault:      v,
		controller: c,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// Prometheus metrics
	ws.router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleGetVaultSummary).Methods("GET")
	api.HandleFunc("/position", ws.handleGetPosition).Methods("GET")
	api.HandleFunc("/rounds", ws.handleGetRounds).Methods("GET")
	api.HandleFunc("/rounds/{round}/prices", ws.handleGetRoundPrices).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	dbHealthy := true
	if state.Ready() {
		if err := state.TestDBConnection(); err != nil {
			dbHealthy = false
			hasErrors = true
		}
	}

	sum := ws.vault.Summary()
	pos := ws.controller.Position()

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "rvm-round-vault-manager",
			"version": "1.0.0",
		},
		"vault_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"current_round":    sum.Round,
			"position_staged":  pos.NextID != "",
			"position_live":    pos.CurrentID != "" && pos.CurrentLiquidity.IsPositive(),
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetVaultSummary returns the current round accounting
func (ws *WebServer) handleGetVaultSummary(w http.ResponseWriter, r *http.Request) {
	sum := ws.vault.Summary()

	response := map[string]interface{}{
		"round":                        sum.Round,
		"share_supply":                 sum.ShareSupply.String(),
		"locked_risky":                 sum.LockedRisky.String(),
		"locked_stable":                sum.LockedStable.String(),
		"pending_deposits_risky":       sum.PendingRisky.String(),
		"queued_withdraw_shares":       sum.TotalQueuedWithdrawShares.String(),
		"queued_withdraw_shares_round": sum.CurrQueuedWithdrawShares.String(),
		"last_price_in_risky":          sum.PriceInRisky.String(),
		"last_price_in_stable":         sum.PriceInStable.String(),
		"timestamp":                    time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPosition returns the current and staged positions
func (ws *WebServer) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	pos := ws.controller.Position()

	response := map[string]interface{}{
		"current": map[string]interface{}{
			"position_id": pos.CurrentID,
			"liquidity":   pos.CurrentLiquidity.String(),
			"maturity":    pos.CurrentParams.Maturity,
		},
		"next": map[string]interface{}{
			"position_id": pos.NextID,
			"ready_at":    pos.NextReadyAt,
			"maturity":    pos.NextParams.Maturity,
		},
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetRounds returns recent round snapshots from the database
func (ws *WebServer) handleGetRounds(w http.ResponseWriter, r *http.Request) {
	if !state.Ready() {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Persistence is not configured")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	snapshots, err := state.GetRecentRoundSnapshots(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent round snapshots")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve rounds")
		return
	}

	response := map[string]interface{}{
		"rounds": snapshots,
		"count":  len(snapshots),
		"limit":  limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetRoundPrices returns the settled share prices of a specific round
func (ws *WebServer) handleGetRoundPrices(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	round, err := strconv.ParseUint(vars["round"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid round number")
		return
	}

	var riskyStr, stableStr string
	priceInRisky, priceInStable, err := ws.vault.PricesAtRound(round)
	if err == nil {
		riskyStr, stableStr = priceInRisky.String(), priceInStable.String()
	} else if state.Ready() {
		// Rounds settled before the last restart only live in the database.
		riskyStr, stableStr, err = state.GetRoundPrices(round)
	}
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Round not settled")
		return
	}

	response := map[string]interface{}{
		"round":           round,
		"price_in_risky":  riskyStr,
		"price_in_stable": stableStr,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests and feeds the request counter
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, r.URL.Path, strconv.Itoa(wrapper.statusCode),
		).Inc()

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
