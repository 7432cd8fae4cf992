package config

import (
	_ "embed"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Config is the runtime configuration snapshot. It is stored whole in an
// atomic.Value; readers always see a consistent copy.
type Config struct {
	Banlist struct {
		// SeedSources are URLs of plain-text blocklists fetched on startup
		// and on every refresh tick to re-seed the in-memory engine.
		SeedSources []string `json:"seed_sources"`
		// RefreshTimer drives the periodic re-seed; zero means the default.
		RefreshTimer Timer `json:"refresh_timer"`
	} `json:"banlist"`

	Guard struct {
		// TrustedProxyHeader names the header carrying the real client IP
		// when the service runs behind a reverse proxy. Empty disables
		// header extraction and only RemoteAddr is used.
		TrustedProxyHeader string `json:"trusted_proxy_header"`
		// VerdictCacheSize bounds the per-IP verdict memo used by the guard
		// middleware.
		VerdictCacheSize int `json:"verdict_cache_size"`
	} `json:"guard"`

	Geo struct {
		// DatabasePath points at a GeoLite2-Country mmdb file; empty
		// disables country annotation.
		DatabasePath string `json:"database_path"`
	} `json:"geo"`
}

const settingsFilePath = "data/settings.json"

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue atomic.Value
	configMu    sync.Mutex
)

func init() {
	configValue.Store(Config{})
}

// ReadSettings loads data/settings.json, creating it from the embedded
// defaults when missing.
func ReadSettings() {
	data, err := os.ReadFile(settingsFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Settings file not found, creating with default configuration")

			if err := os.MkdirAll("data", os.ModePerm); err != nil {
				log.Error("Error creating directory for settings file:", err)
				return
			}
			if err := os.WriteFile(settingsFilePath, defaultConfig, os.ModePerm); err != nil {
				log.Error("Error writing default settings file:", err)
				return
			}
			data = defaultConfig
		} else {
			log.Error("Error reading settings file:", err)
			return
		}
	}

	var newConfig Config
	if err := json.Unmarshal(data, &newConfig); err != nil {
		log.Error("Error unmarshalling settings file:", err)
		return
	}

	applyConfigUpdate(newConfig, false)
	log.Debug("Settings file loaded successfully")
}

// SetConfig applies the configuration and persists it to disk.
func SetConfig(newConfig Config) {
	applyConfigUpdate(newConfig, true)
}

func applyConfigUpdate(newConfig Config, persistToFile bool) {
	configMu.Lock()
	defer configMu.Unlock()

	configValue.Store(newConfig)
	recomputeIntervals()

	if persistToFile {
		data, err := json.MarshalIndent(newConfig, "", "  ")
		if err != nil {
			log.Error("Error marshalling new configuration:", err)
			return
		}
		if err := os.WriteFile(settingsFilePath, data, os.ModePerm); err != nil {
			log.Error("Error writing new configuration to file:", err)
			return
		}
		log.Debug("Configuration updated and written to file")
	}
}

// GetConfig returns the current snapshot.
func GetConfig() Config {
	return configValue.Load().(Config)
}
