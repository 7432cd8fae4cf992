package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"warden/internal/idban"
	"warden/internal/rangeban"
)

type apiHandlers struct {
	deps Deps
}

type banRangeRequest struct {
	Range    string `json:"range"`
	Reason   string `json:"reason,omitempty"`
	BannedBy string `json:"banned_by,omitempty"`
}

type unbanRangeRequest struct {
	Range string `json:"range"`
}

type banIdentifierRequest struct {
	ID         string `json:"id"`
	Reason     string `json:"reason,omitempty"`
	BannedBy   string `json:"banned_by,omitempty"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

type unbanIdentifierRequest struct {
	ID string `json:"id"`
}

type checkResponse struct {
	Address string `json:"address"`
	Banned  bool   `json:"banned"`
	Range   string `json:"range,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Country string `json:"country,omitempty"`
}

func (api *apiHandlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (api *apiHandlers) banRange(w http.ResponseWriter, r *http.Request) {
	var req banRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !api.deps.Manager.Ban(req.Range, rangeban.BanOptions{Reason: req.Reason, BannedBy: req.BannedBy}) {
		writeError(w, "invalid CIDR notation", http.StatusUnprocessableEntity)
		return
	}

	log.Info("Range banned", "range", req.Range, "banned_by", req.BannedBy)
	entry, _ := api.deps.Manager.Engine().Entry(req.Range)
	writeJSON(w, http.StatusCreated, entry)
}

func (api *apiHandlers) unbanRange(w http.ResponseWriter, r *http.Request) {
	var req unbanRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !api.deps.Manager.Unban(req.Range) {
		writeError(w, "range not banned", http.StatusNotFound)
		return
	}

	log.Info("Range unbanned", "range", req.Range)
	writeJSON(w, http.StatusOK, map[string]string{"range": req.Range})
}

func (api *apiHandlers) listBans(w http.ResponseWriter, r *http.Request) {
	stats := api.deps.Manager.Engine().Stats()
	writeJSON(w, http.StatusOK, stats.Entries)
}

func (api *apiHandlers) banStats(w http.ResponseWriter, r *http.Request) {
	stats := api.deps.Manager.Engine().Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"total_ranges":     stats.TotalRanges,
		"ipv4_count":       stats.IPv4Count,
		"ipv6_count":       stats.IPv6Count,
		"identifier_count": api.deps.Manager.Identifiers().Len(),
	})
}

func (api *apiHandlers) clearBans(w http.ResponseWriter, r *http.Request) {
	api.deps.Manager.Clear()
	log.Info("Banlist cleared")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// refreshBans runs a forced seeding pass immediately and reports its outcome,
// so operators can push new source content without waiting for the timer.
func (api *apiHandlers) refreshBans(w http.ResponseWriter, r *http.Request) {
	outcome, err := api.deps.Manager.Refresh(r.Context(), "admin", true)
	if err != nil {
		writeError(w, "refresh failed", http.StatusInternalServerError)
		return
	}

	log.Info("Banlist refresh requested", "sources", outcome.Sources, "total_ranges", outcome.TotalRanges)
	writeJSON(w, http.StatusOK, outcome)
}

func (api *apiHandlers) banIdentifier(w http.ResponseWriter, r *http.Request) {
	var req banIdentifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	opts := idban.Options{
		Reason:   req.Reason,
		BannedBy: req.BannedBy,
		TTL:      time.Duration(req.TTLSeconds) * time.Second,
	}
	if !api.deps.Manager.BanIdentifier(req.ID, opts) {
		writeError(w, "identifier must not be empty", http.StatusUnprocessableEntity)
		return
	}

	log.Info("Identifier banned", "id", req.ID, "banned_by", req.BannedBy)
	entry, _ := api.deps.Manager.Identifiers().Entry(req.ID)
	writeJSON(w, http.StatusCreated, entry)
}

func (api *apiHandlers) unbanIdentifier(w http.ResponseWriter, r *http.Request) {
	var req unbanIdentifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !api.deps.Manager.UnbanIdentifier(req.ID) {
		writeError(w, "identifier not banned", http.StatusNotFound)
		return
	}

	log.Info("Identifier unbanned", "id", req.ID)
	writeJSON(w, http.StatusOK, map[string]string{"id": req.ID})
}

// checkAddress is the diagnostics endpoint: which range (if any) matched, and
// where the address appears to come from.
func (api *apiHandlers) checkAddress(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("ip")

	resp := checkResponse{
		Address: address,
		Country: api.deps.Geo.Country(address),
	}

	if notation, ok := api.deps.Manager.Engine().MatchingRange(address); ok {
		resp.Banned = true
		resp.Range = notation
		if entry, found := api.deps.Manager.Engine().Entry(notation); found {
			resp.Reason = entry.Reason
		}
	} else if entry, ok := api.deps.Manager.Identifiers().Entry(address); ok {
		resp.Banned = true
		resp.Reason = entry.Reason
	}

	writeJSON(w, http.StatusOK, resp)
}
