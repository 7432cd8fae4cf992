package server

import (
	"net"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"warden/internal/banlist"
	"warden/internal/config"
	"warden/internal/geo"
	"warden/internal/lru"
)

type verdictKey struct {
	address string
	version uint64
}

// Guard rejects requests from banned addresses with 403 before they reach the
// wrapped handler. Range verdicts are memoised per banlist version in a small
// LRU; identifier bans carry TTLs and are always checked live.
func Guard(manager *banlist.Manager, resolver *geo.Resolver, next http.Handler) http.Handler {
	size := config.GetConfig().Guard.VerdictCacheSize
	if size <= 0 {
		size = 4096
	}
	verdicts := lru.New[verdictKey, bool](size)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := clientIP(r)
		engine := manager.Engine()

		key := verdictKey{address: address, version: engine.Version()}
		banned, cached := verdicts.Get(key)
		if !cached {
			banned = engine.IsBanned(address)
			verdicts.Put(key, banned)
		}

		if !banned && manager.Identifiers().IsBanned(address) {
			banned = true
		}

		if banned {
			log.Info("Request blocked", "ip", address, "country", resolver.Country(address), "path", r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the candidate client address. Trusting the configured
// proxy header is the deployment's decision; with no header configured (or
// present) only the socket peer address is used.
func clientIP(r *http.Request) string {
	if header := config.GetConfig().Guard.TrustedProxyHeader; header != "" {
		if value := r.Header.Get(header); value != "" {
			first, _, _ := strings.Cut(value, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
