package banlist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"warden/internal/idban"
	"warden/internal/rangeban"
)

const (
	banlistRedisChannel = "warden:banlist:updates"
	redisOpTimeout      = 5 * time.Second

	opBan     = "ban"
	opUnban   = "unban"
	opBanID   = "ban_id"
	opUnbanID = "unban_id"
	opClear   = "clear"
)

// banEvent is the wire shape of one admin mutation fanned out to peers.
type banEvent struct {
	Op         string `json:"op"`
	Range      string `json:"range,omitempty"`
	ID         string `json:"id,omitempty"`
	Reason     string `json:"reason,omitempty"`
	BannedBy   string `json:"banned_by,omitempty"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
	Origin     string `json:"origin,omitempty"`
}

type redisSyncState struct {
	mu     sync.RWMutex
	client *redis.Client
	origin string
	cancel context.CancelFunc
}

var syncState redisSyncState

// EnableRedisSynchronization fans admin Ban/Unban/Clear calls out over a
// pub/sub channel and applies peer events to this manager's local stores. The
// engine itself stays plain in-process state; this is caller-level plumbing so
// a fleet of instances converges without shared storage.
func (m *Manager) EnableRedisSynchronization(ctx context.Context, client *redis.Client) {
	if client == nil {
		log.Warn("Banlist synchronization disabled: redis client is nil")
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	syncCtx, cancel := context.WithCancel(ctx)

	syncState.mu.Lock()
	if syncState.client != nil {
		syncState.mu.Unlock()
		cancel()
		return
	}
	syncState.client = client
	syncState.origin = instanceID()
	syncState.cancel = cancel
	syncState.mu.Unlock()

	go m.subscribeToBanEvents(syncCtx, client)
}

func instanceID() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
}

func (m *Manager) broadcast(ev banEvent) {
	syncState.mu.RLock()
	client := syncState.client
	ev.Origin = syncState.origin
	syncState.mu.RUnlock()

	if client == nil {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error("Banlist sync: failed to serialize event", "op", ev.Op, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := client.Publish(ctx, banlistRedisChannel, payload).Err(); err != nil {
		log.Error("Banlist sync: failed to publish event", "op", ev.Op, "error", err)
	}
}

func (m *Manager) subscribeToBanEvents(ctx context.Context, client *redis.Client) {
	sub := client.Subscribe(ctx, banlistRedisChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			m.applyPeerEvent(msg.Payload)
		}
	}
}

// applyPeerEvent mutates the local stores directly, never through the
// broadcasting wrappers, so events do not echo around the fleet. The seed
// bookkeeping has to follow removals here just like in the local wrappers:
// a stale seeded entry would make the next non-forced refresh skip re-banning
// a range the source still lists.
func (m *Manager) applyPeerEvent(payload string) {
	var ev banEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Warn("Banlist sync: dropping malformed event", "error", err)
		return
	}

	syncState.mu.RLock()
	origin := syncState.origin
	syncState.mu.RUnlock()
	if ev.Origin != "" && ev.Origin == origin {
		return
	}

	switch ev.Op {
	case opBan:
		if !m.engine.Ban(ev.Range, rangeban.BanOptions{Reason: ev.Reason, BannedBy: ev.BannedBy}) {
			log.Warn("Banlist sync: peer sent invalid range", "range", ev.Range)
		}
	case opUnban:
		m.engine.Unban(ev.Range)
		m.mu.Lock()
		delete(m.seeded, ev.Range)
		m.mu.Unlock()
	case opBanID:
		m.ids.Ban(ev.ID, idban.Options{
			Reason:   ev.Reason,
			BannedBy: ev.BannedBy,
			TTL:      time.Duration(ev.TTLSeconds) * time.Second,
		})
	case opUnbanID:
		m.ids.Unban(ev.ID)
		m.mu.Lock()
		delete(m.seededIDs, ev.ID)
		m.mu.Unlock()
	case opClear:
		m.engine.Clear()
		m.ids.Clear()
		m.mu.Lock()
		m.seeded = make(map[string]string)
		m.seededIDs = make(map[string]string)
		m.mu.Unlock()
	default:
		log.Warn("Banlist sync: unknown event op", "op", ev.Op)
	}
}
