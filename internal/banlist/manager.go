// Package banlist owns the process-wide ban stores: the CIDR range engine and
// the flat identifier store. It re-seeds them from configured sources on
// startup and on a refresh timer, and fans admin mutations out to peer
// instances over redis.
package banlist

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"warden/internal/config"
	"warden/internal/idban"
	"warden/internal/rangeban"
	"warden/internal/support"
)

const (
	maxResponseBytes       = 10 << 20 // 10 MiB safety cap
	refreshLockKey         = "warden:leader:banlist_refresh"
	defaultRefreshInterval = 6 * time.Hour
	seedActor              = "seeder"
)

var ipv4Regex = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?:/\d{1,2})?\b`)

// RefreshOutcome summarises one seeding pass.
type RefreshOutcome struct {
	Sources          int `json:"sources"`
	TotalFromSources int `json:"total_from_sources"`
	NewRanges        int `json:"new_ranges"`
	RemovedRanges    int `json:"removed_ranges"`
	TotalRanges      int `json:"total_ranges"`
	NewIdentifiers   int `json:"new_identifiers"`
	TotalIdentifiers int `json:"total_identifiers"`
	SweptIdentifiers int `json:"swept_identifiers"`
}

// Manager wires the two ban stores to configuration, seed sources, and redis.
// Construct one in app startup and pass it down; there is no package-level
// instance.
type Manager struct {
	engine     *rangeban.Engine
	ids        *idban.Store
	httpClient *http.Client

	refreshOnce singleflight.Group

	mu        sync.Mutex
	seeded    map[string]string // range notation -> source URL
	seededIDs map[string]string // identifier -> source URL
}

func NewManager(engine *rangeban.Engine, ids *idban.Store) *Manager {
	return &Manager{
		engine:     engine,
		ids:        ids,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		seeded:     make(map[string]string),
		seededIDs:  make(map[string]string),
	}
}

func (m *Manager) Engine() *rangeban.Engine { return m.engine }

func (m *Manager) Identifiers() *idban.Store { return m.ids }

// Ban applies an admin range ban locally and broadcasts it to peers.
func (m *Manager) Ban(notation string, opts rangeban.BanOptions) bool {
	if !m.engine.Ban(notation, opts) {
		return false
	}
	m.broadcast(banEvent{Op: opBan, Range: notation, Reason: opts.Reason, BannedBy: opts.BannedBy})
	return true
}

// Unban removes an admin range ban locally and broadcasts the removal.
func (m *Manager) Unban(notation string) bool {
	if !m.engine.Unban(notation) {
		return false
	}
	m.mu.Lock()
	delete(m.seeded, notation)
	m.mu.Unlock()
	m.broadcast(banEvent{Op: opUnban, Range: notation})
	return true
}

// BanIdentifier applies an admin identifier ban locally and broadcasts it.
func (m *Manager) BanIdentifier(id string, opts idban.Options) bool {
	if !m.ids.Ban(id, opts) {
		return false
	}
	m.broadcast(banEvent{
		Op:         opBanID,
		ID:         id,
		Reason:     opts.Reason,
		BannedBy:   opts.BannedBy,
		TTLSeconds: int64(opts.TTL / time.Second),
	})
	return true
}

// UnbanIdentifier removes an admin identifier ban locally and on peers.
func (m *Manager) UnbanIdentifier(id string) bool {
	if !m.ids.Unban(id) {
		return false
	}
	m.mu.Lock()
	delete(m.seededIDs, id)
	m.mu.Unlock()
	m.broadcast(banEvent{Op: opUnbanID, ID: id})
	return true
}

// Clear empties both stores locally and on peers.
func (m *Manager) Clear() {
	m.engine.Clear()
	m.ids.Clear()

	m.mu.Lock()
	m.seeded = make(map[string]string)
	m.seededIDs = make(map[string]string)
	m.mu.Unlock()

	m.broadcast(banEvent{Op: opClear})
}

// Initialize runs the first seeding pass so the engine is populated before
// the server starts accepting traffic.
func (m *Manager) Initialize(ctx context.Context) error {
	_, err := m.Refresh(ctx, "startup", true)
	return err
}

// StartRefreshRoutine runs the seeding loop under a redis leadership lock with
// dynamic rescheduling when the configured interval changes.
func (m *Manager) StartRefreshRoutine(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	var intervalValue atomic.Value
	initial := config.GetBanlistRefreshInterval()
	if initial <= 0 {
		initial = defaultRefreshInterval
	}
	intervalValue.Store(initial)

	updateSignal := make(chan struct{}, 1)
	updates := config.BanlistIntervalUpdates()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case newInterval := <-updates:
				if newInterval <= 0 {
					newInterval = defaultRefreshInterval
				}
				intervalValue.Store(newInterval)
				select {
				case updateSignal <- struct{}{}:
				default:
				}
			}
		}
	}()

	err := support.RunWithLeader(ctx, refreshLockKey, support.DefaultLeadershipTTL, func(leaderCtx context.Context) {
		m.runRefreshLoop(leaderCtx, &intervalValue, updateSignal)
	})
	switch {
	case err == nil || errors.Is(err, context.Canceled):
	case ctx.Err() != nil:
	default:
		// No redis means no leader election; refresh locally instead of
		// not at all.
		log.Warn("Banlist refresh running without leader lock", "error", err)
		m.runRefreshLoop(ctx, &intervalValue, updateSignal)
	}
}

func (m *Manager) runRefreshLoop(ctx context.Context, intervalValue *atomic.Value, updateSignal <-chan struct{}) {
	current := intervalValue.Load().(time.Duration)
	if current <= 0 {
		current = defaultRefreshInterval
	}

	ticker := time.NewTicker(current)
	defer ticker.Stop()

	m.triggerRefresh(ctx, "leader", true)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.triggerRefresh(ctx, "scheduled", false)
		case <-updateSignal:
			newInterval := intervalValue.Load().(time.Duration)
			if newInterval <= 0 {
				newInterval = defaultRefreshInterval
			}
			if newInterval == current {
				continue
			}
			drainTicker(ticker)
			current = newInterval
			ticker.Reset(current)
		}
	}
}

func (m *Manager) triggerRefresh(ctx context.Context, reason string, force bool) {
	outcome, err := m.Refresh(ctx, reason, force)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Banlist refresh canceled", "reason", reason)
		} else {
			log.Error("Banlist refresh failed", "reason", reason, "error", err)
		}
		return
	}
	if outcome == nil {
		return
	}

	log.Info("Banlist refresh completed",
		"reason", reason,
		"sources", outcome.Sources,
		"new_ranges", outcome.NewRanges,
		"removed_ranges", outcome.RemovedRanges,
		"total_ranges", outcome.TotalRanges,
		"new_identifiers", outcome.NewIdentifiers,
		"swept_identifiers", outcome.SweptIdentifiers,
	)
}

func drainTicker(ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
		default:
			return
		}
	}
}

// Refresh downloads all configured seed sources and reconciles both stores,
// deduplicated so overlapping triggers share one pass.
func (m *Manager) Refresh(ctx context.Context, reason string, force bool) (*RefreshOutcome, error) {
	result, err, _ := m.refreshOnce.Do("refresh", func() (interface{}, error) {
		return m.doRefresh(ctx, reason, force)
	})
	if err != nil {
		return nil, err
	}
	outcome, _ := result.(*RefreshOutcome)
	return outcome, nil
}

func (m *Manager) doRefresh(ctx context.Context, reason string, force bool) (*RefreshOutcome, error) {
	cfg := config.GetConfig()
	sources := append([]string(nil), cfg.Banlist.SeedSources...)

	outcome := &RefreshOutcome{Sources: len(sources)}
	outcome.SweptIdentifiers = m.ids.Sweep()

	wantRanges := make(map[string]string)
	wantIDs := make(map[string]string)
	configured := make(map[string]bool, len(sources))
	fetched := make(map[string]bool, len(sources))

	for _, src := range sources {
		configured[src] = true

		ranges, identifiers, fetchErr := m.fetchSource(ctx, src)
		if fetchErr != nil {
			if errors.Is(fetchErr, context.Canceled) {
				return nil, fetchErr
			}
			log.Warn("Banlist source fetch failed", "source", src, "error", fetchErr)
			continue
		}
		fetched[src] = true

		outcome.TotalFromSources += len(ranges) + len(identifiers)
		for _, notation := range ranges {
			wantRanges[notation] = src
		}
		for _, id := range identifiers {
			wantIDs[id] = src
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// A seed entry is stale when its source no longer lists it. Entries from
	// sources that failed to fetch are kept as-is rather than dropped.
	stale := func(src string) bool {
		return !configured[src] || fetched[src]
	}

	for notation, src := range m.seeded {
		if _, still := wantRanges[notation]; !still && stale(src) {
			if m.engine.Unban(notation) {
				outcome.RemovedRanges++
			}
			delete(m.seeded, notation)
		}
	}
	for notation, src := range wantRanges {
		_, known := m.seeded[notation]
		if !known || force {
			if !m.engine.Ban(notation, rangeban.BanOptions{Reason: "seed: " + src, BannedBy: seedActor}) {
				log.Warn("Banlist seed range rejected", "source", src, "range", notation)
				continue
			}
			if !known {
				outcome.NewRanges++
			}
		}
		m.seeded[notation] = src
	}

	for id := range m.seededIDs {
		if _, still := wantIDs[id]; !still {
			m.ids.Unban(id)
			delete(m.seededIDs, id)
		}
	}
	for id, src := range wantIDs {
		if _, known := m.seededIDs[id]; !known {
			outcome.NewIdentifiers++
		}
		m.ids.Ban(id, idban.Options{Reason: "seed: " + src, BannedBy: seedActor})
		m.seededIDs[id] = src
	}

	stats := m.engine.Stats()
	outcome.TotalRanges = stats.TotalRanges
	outcome.TotalIdentifiers = m.ids.Len()
	return outcome, nil
}

func (m *Manager) fetchSource(ctx context.Context, source string) (ranges []string, identifiers []string, err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	ranges, identifiers = parsePayload(content)
	return ranges, identifiers, nil
}

// parsePayload extracts CIDR ranges and single addresses from a plain-text
// blocklist. IPv4 tokens may be embedded mid-line; IPv6 tokens are only
// recognised as whole whitespace-separated fields.
func parsePayload(payload []byte) (ranges []string, identifiers []string) {
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 1024), 1024*1024)

	seenRanges := make(map[string]struct{})
	seenIDs := make(map[string]struct{})

	addRange := func(notation string) {
		if _, dup := seenRanges[notation]; !dup {
			seenRanges[notation] = struct{}{}
			ranges = append(ranges, notation)
		}
	}
	addID := func(id string) {
		if _, dup := seenIDs[id]; !dup {
			seenIDs[id] = struct{}{}
			identifiers = append(identifiers, id)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}

		for _, match := range ipv4Regex.FindAllString(line, -1) {
			if strings.ContainsRune(match, '/') {
				if rangeban.ValidateNotation(match) {
					addRange(match)
				}
				continue
			}
			if _, ok := rangeban.ParseIPv4(match); ok {
				addID(match)
			}
		}

		for _, field := range strings.Fields(line) {
			if !strings.ContainsRune(field, ':') {
				continue
			}
			if strings.ContainsRune(field, '/') {
				if rangeban.ValidateNotation(field) {
					addRange(field)
				}
				continue
			}
			if _, ok := rangeban.ParseIPv6(field); ok {
				addID(field)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		log.Warn("Banlist scanner warning", "error", err)
	}
	return ranges, identifiers
}
