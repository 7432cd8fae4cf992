package app

import (
	"context"
	"flag"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"warden/internal/app/server"
	"warden/internal/banlist"
	"warden/internal/config"
	"warden/internal/geo"
	"warden/internal/idban"
	"warden/internal/rangeban"
	"warden/internal/support"
)

const defaultPort = 8086

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	portFlag := flag.Int("port", defaultPort, "Port for the admin API")
	productionFlag := flag.Bool("production", false, "Run in production mode")
	flag.Parse()

	if *productionFlag {
		log.SetLevel(log.InfoLevel)
	} else {
		log.SetLevel(log.DebugLevel)
	}

	config.ReadSettings()
	port := resolvePort("PORT", *portFlag)

	resolver, err := geo.Open(config.GetConfig().Geo.DatabasePath)
	if err != nil {
		log.Warn("Geo annotation disabled", "error", err)
	}
	defer func() {
		if err := resolver.Close(); err != nil {
			log.Warn("error closing geo database", "error", err)
		}
	}()

	manager := banlist.NewManager(rangeban.New(), idban.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without redis the instance still runs standalone: no peer fan-out and
	// no leader election, the refresh loop just isn't deduplicated.
	if redisClient, err := support.GetRedisClient(); err != nil {
		log.Warn("Redis unavailable, running standalone", "error", err)
		go manager.StartRefreshRoutine(ctx)
	} else {
		defer func() {
			if err := support.CloseRedisClient(); err != nil {
				log.Warn("error closing redis client", "error", err)
			}
		}()
		manager.EnableRedisSynchronization(ctx, redisClient)
		go manager.StartRefreshRoutine(ctx)
	}

	if err := manager.Initialize(ctx); err != nil {
		log.Error("Initial banlist seeding failed", "error", err)
	}

	return server.OpenRoutes(port, server.Deps{
		Manager: manager,
		Geo:     resolver,
	})
}

func resolvePort(envKey string, fallback int) int {
	raw := os.Getenv(envKey)
	if raw == "" {
		return fallback
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port == 0 {
		log.Warn("invalid port override", "env", envKey, "value", raw)
		return fallback
	}
	return port
}
