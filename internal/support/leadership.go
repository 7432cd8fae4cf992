package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeadershipTTL = 45 * time.Second

	leaderRetryDelay   = time.Second
	leaderOpTimeout    = 5 * time.Second
	minRenewalInterval = time.Second
)

var (
	leaderCounter atomic.Uint64

	// Renew and release only touch the lock when this session still owns it.
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
)

// RunWithLeader acquires a Redis-backed leadership lock and invokes run while
// it is held. run receives a context that is cancelled when leadership is lost
// or the parent context ends; the lock is renewed in the background and
// released when run returns.
func RunWithLeader(ctx context.Context, key string, ttl time.Duration, run func(context.Context)) error {
	if run == nil {
		return errors.New("support: leader run function cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ttl <= 0 {
		ttl = DefaultLeadershipTTL
	}

	client, err := GetRedisClient()
	if err != nil {
		return fmt.Errorf("support: leader lock redis client: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		session, err := acquireLeadership(ctx, client, key, ttl)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("leader lock: acquisition failed", "key", key, "error", err)
			if !sleepCtx(ctx, leaderRetryDelay) {
				return ctx.Err()
			}
			continue
		}

		log.Debug("leader lock: acquired", "key", key)
		run(session.ctx)
		session.close()
		log.Debug("leader lock: released", "key", key)

		if !sleepCtx(ctx, leaderRetryDelay) {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

type leadership struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}
	once   sync.Once
}

func acquireLeadership(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*leadership, error) {
	token := fmt.Sprintf("%s-%d-%d-%d", hostname(), os.Getpid(), time.Now().UnixNano(), leaderCounter.Add(1))

	for {
		ok, err := client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if ok {
			sessionCtx, cancel := context.WithCancel(ctx)
			session := &leadership{
				client: client,
				key:    key,
				token:  token,
				ttl:    ttl,
				ctx:    sessionCtx,
				cancel: cancel,
				stop:   make(chan struct{}),
			}
			go session.renewLoop()
			return session, nil
		}

		if !sleepCtx(ctx, leaderRetryDelay) {
			return nil, ctx.Err()
		}
	}
}

func hostname() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

func (l *leadership) close() {
	l.once.Do(func() {
		close(l.stop)

		ctx, cancel := context.WithTimeout(context.Background(), leaderOpTimeout)
		defer cancel()
		if _, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Result(); err != nil && !errors.Is(err, redis.Nil) {
			log.Warn("leader lock: release failed", "key", l.key, "error", err)
		}
	})
}

func (l *leadership) renewLoop() {
	interval := l.ttl / 3
	if interval < minRenewalInterval {
		interval = minRenewalInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			if err := l.renew(); err != nil {
				log.Warn("leader lock: renewal failed", "key", l.key, "error", err)
				l.cancel()
				return
			}
		}
	}
}

func (l *leadership) renew() error {
	ctx, cancel := context.WithTimeout(context.Background(), leaderOpTimeout)
	defer cancel()

	res, err := renewScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if updated, ok := res.(int64); ok && updated == 0 {
		return errors.New("lock lost")
	}
	return nil
}
