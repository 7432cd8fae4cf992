package config

import (
	"sync"
	"sync/atomic"
	"time"
)

const defaultBanlistRefreshInterval = 6 * time.Hour

// Timer is the settings-file friendly duration shape.
type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

func (t Timer) isZero() bool {
	return t.Days == 0 && t.Hours == 0 && t.Minutes == 0 && t.Seconds == 0
}

var (
	banlistRefreshInterval  atomic.Value
	banlistIntervalChannels []chan time.Duration
	listenersMu             sync.Mutex
)

func init() {
	banlistRefreshInterval.Store(defaultBanlistRefreshInterval)
}

// TimerDuration converts a Timer to a duration with a one second floor.
func TimerDuration(timer Timer) time.Duration {
	ms := uint64(timer.Days)*24*60*60*1000 +
		uint64(timer.Hours)*60*60*1000 +
		uint64(timer.Minutes)*60*1000 +
		uint64(timer.Seconds)*1000

	if ms < 1000 {
		ms = 1000
	}
	return time.Duration(ms) * time.Millisecond
}

// recomputeIntervals is called under configMu whenever a new snapshot lands.
func recomputeIntervals() {
	cfg := GetConfig()

	interval := defaultBanlistRefreshInterval
	if !cfg.Banlist.RefreshTimer.isZero() {
		interval = TimerDuration(cfg.Banlist.RefreshTimer)
	}
	setBanlistRefreshInterval(interval)
}

func GetBanlistRefreshInterval() time.Duration {
	return banlistRefreshInterval.Load().(time.Duration)
}

// BanlistIntervalUpdates returns a channel that carries the current interval
// immediately and every later change. Slow receivers miss intermediate values
// rather than blocking the updater.
func BanlistIntervalUpdates() <-chan time.Duration {
	ch := make(chan time.Duration, 1)
	listenersMu.Lock()
	banlistIntervalChannels = append(banlistIntervalChannels, ch)
	listenersMu.Unlock()

	ch <- GetBanlistRefreshInterval()
	return ch
}

func setBanlistRefreshInterval(interval time.Duration) {
	if interval <= 0 {
		interval = defaultBanlistRefreshInterval
	}
	if GetBanlistRefreshInterval() == interval {
		return
	}

	banlistRefreshInterval.Store(interval)

	listenersMu.Lock()
	defer listenersMu.Unlock()
	for _, ch := range banlistIntervalChannels {
		select {
		case ch <- interval:
		default:
		}
	}
}
