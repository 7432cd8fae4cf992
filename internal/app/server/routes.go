package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"warden/internal/banlist"
	"warden/internal/geo"
)

// Deps carries everything the HTTP surface needs; app.Run constructs it once
// and hands it down.
type Deps struct {
	Manager *banlist.Manager
	Geo     *geo.Resolver
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter builds the admin API. Authentication for these routes is the
// embedding deployment's concern (reverse proxy, network policy); the service
// itself only answers banlist questions.
func NewRouter(deps Deps) http.Handler {
	api := &apiHandlers{deps: deps}

	router := http.NewServeMux()
	router.HandleFunc("GET /health", api.health)

	router.HandleFunc("POST /bans", api.banRange)
	router.HandleFunc("DELETE /bans", api.unbanRange)
	router.HandleFunc("GET /bans", api.listBans)
	router.HandleFunc("GET /bans/stats", api.banStats)
	router.HandleFunc("POST /bans/clear", api.clearBans)
	router.HandleFunc("POST /bans/refresh", api.refreshBans)

	router.HandleFunc("POST /identifiers", api.banIdentifier)
	router.HandleFunc("DELETE /identifiers", api.unbanIdentifier)

	router.HandleFunc("GET /check/{ip}", api.checkAddress)

	return enableCORS(router)
}

// NewHandler is the full served chain: the admin router wrapped in the
// enforcement guard, so banned clients are rejected before reaching any
// endpoint. Loopback is exempt from bans, which keeps local administration
// reachable even under a misconfigured range.
func NewHandler(deps Deps) http.Handler {
	return Guard(deps.Manager, deps.Geo, NewRouter(deps))
}

// OpenRoutes serves the admin API until the listener fails.
func OpenRoutes(port int, deps Deps) error {
	addr := fmt.Sprintf(":%d", port)
	log.Infof("Starting admin API on %s", addr)
	return http.ListenAndServe(addr, NewHandler(deps))
}
