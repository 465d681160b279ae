// Package redis publishes presence transitions to Redis so other services
// can see who is online. The signaling hub never reads this state back.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mossy-p/call-signaling/config"
)

const (
	onlineKey   = "online"
	lastSeenKey = "last_seen"

	queueSize = 1024
	opTimeout = 2 * time.Second
)

// Connect initializes a Redis client and checks the connection.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

type update struct {
	userID string
	online bool
	at     time.Time
}

// PresenceMirror keeps a set of online user ids and a hash of last-seen
// timestamps. Updates are queued and applied by a single worker so the
// hub never waits on the network.
type PresenceMirror struct {
	client    *redis.Client
	online    string
	lastSeen  string
	updates   chan update
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	logger    zerolog.Logger
}

// NewPresenceMirror clears the online set left by a previous process and
// starts the worker. The mirror takes ownership of client.
func NewPresenceMirror(ctx context.Context, client *redis.Client, keyPrefix string, logger zerolog.Logger) (*PresenceMirror, error) {
	m := &PresenceMirror{
		client:   client,
		online:   keyPrefix + onlineKey,
		lastSeen: keyPrefix + lastSeenKey,
		updates:  make(chan update, queueSize),
		done:     make(chan struct{}),
		logger:   logger.With().Str("component", "presence-mirror").Logger(),
	}

	// Nobody is connected to a fresh process.
	if err := client.Del(ctx, m.online).Err(); err != nil {
		return nil, fmt.Errorf("failed to reset online set: %w", err)
	}

	m.wg.Add(1)
	go m.run()
	return m, nil
}

func (m *PresenceMirror) Online(userID string, at time.Time) {
	m.enqueue(update{userID: userID, online: true, at: at})
}

func (m *PresenceMirror) Offline(userID string, at time.Time) {
	m.enqueue(update{userID: userID, online: false, at: at})
}

func (m *PresenceMirror) enqueue(u update) {
	select {
	case <-m.done:
		return
	default:
	}

	select {
	case m.updates <- u:
	default:
		m.logger.Warn().Str("user", u.userID).Bool("online", u.online).Msg("presence queue full, update dropped")
	}
}

func (m *PresenceMirror) run() {
	defer m.wg.Done()

	for {
		select {
		case u := <-m.updates:
			m.apply(u)
		case <-m.done:
			for {
				select {
				case u := <-m.updates:
					m.apply(u)
				default:
					return
				}
			}
		}
	}
}

func (m *PresenceMirror) apply(u update) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if u.online {
			pipe.SAdd(ctx, m.online, u.userID)
		} else {
			pipe.SRem(ctx, m.online, u.userID)
		}
		pipe.HSet(ctx, m.lastSeen, u.userID, u.at.UnixMilli())
		return nil
	})
	if err != nil {
		m.logger.Error().Err(err).Str("user", u.userID).Bool("online", u.online).Msg("failed to mirror presence")
	}
}

// Close flushes queued updates and closes the Redis connection.
func (m *PresenceMirror) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		err = m.client.Close()
	})
	return err
}
