package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
	"github.com/zeromicro/go-zero/core/collection"
)

const (
	defaultSessionTTL = 24 * time.Hour
	sessionKeyPrefix  = "pymixer:session:"
)

// Session is the per-chat state kept between messages.
type Session struct {
	Recursion      int
	IncludeImports bool
	// Code is the pending source the next /obfuscate runs on.
	Code string
}

// NewSession returns the state of a chat that has not sent anything yet.
func NewSession() Session {
	return Session{Recursion: 1}
}

// Store keeps sessions by chat id. Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, chatID int64) (Session, error)
	Save(ctx context.Context, chatID int64, s Session) error
}

// MemoryStore keeps sessions in process, expiring them after the TTL.
type MemoryStore struct {
	cache *collection.Cache
}

// NewMemoryStore creates an in-process store. A non-positive ttl uses one day.
func NewMemoryStore(ttl time.Duration) (*MemoryStore, error) {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	cache, err := collection.NewCache(ttl, collection.WithName("bot-sessions"))
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &MemoryStore{cache: cache}, nil
}

func (m *MemoryStore) Get(_ context.Context, chatID int64) (Session, error) {
	v, ok := m.cache.Get(strconv.FormatInt(chatID, 10))
	if !ok {
		return NewSession(), nil
	}
	return v.(Session), nil
}

func (m *MemoryStore) Save(_ context.Context, chatID int64, s Session) error {
	m.cache.Set(strconv.FormatInt(chatID, 10), s)
	return nil
}

// RedisStore keeps each session in a redis hash that expires after the TTL,
// so several bot processes can share chats.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. A non-positive ttl uses one day.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(chatID int64) string {
	return sessionKeyPrefix + strconv.FormatInt(chatID, 10)
}

func (r *RedisStore) Get(ctx context.Context, chatID int64) (Session, error) {
	fields, err := r.client.HGetAll(ctx, sessionKey(chatID)).Result()
	if err != nil {
		return Session{}, fmt.Errorf("failed to load session %d: %w", chatID, err)
	}
	return decodeSession(fields)
}

func (r *RedisStore) Save(ctx context.Context, chatID int64, s Session) error {
	key := sessionKey(chatID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"recursion":       s.Recursion,
			"include_imports": s.IncludeImports,
			"code":            s.Code,
		})
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session %d: %w", chatID, err)
	}
	return nil
}

// decodeSession converts a stored hash back into a Session. Missing fields
// keep their defaults.
func decodeSession(fields map[string]string) (Session, error) {
	s := NewSession()
	if v, ok := fields["recursion"]; ok {
		n, err := cast.ToIntE(v)
		if err != nil {
			return s, fmt.Errorf("invalid stored recursion %q: %w", v, err)
		}
		s.Recursion = n
	}
	if v, ok := fields["include_imports"]; ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return s, fmt.Errorf("invalid stored include_imports %q: %w", v, err)
		}
		s.IncludeImports = b
	}
	s.Code = fields["code"]
	return s, nil
}
