package storage

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/laila-tgbot-go/internal/config"
)

// Storage persists the bot's switch state and bookkeeping: the global
// power flag, per-chat enable flags, the known-chats registry used by
// broadcast, and the processed-message counter.
type Storage interface {
	GlobalEnabled(ctx context.Context) (bool, error)
	SetGlobalEnabled(ctx context.Context, enabled bool) error

	// ChatEnabled defaults to true for chats that were never toggled.
	ChatEnabled(ctx context.Context, chatID int64) (bool, error)
	SetChatEnabled(ctx context.Context, chatID int64, enabled bool) error

	AddKnownChat(ctx context.Context, chatID int64) error
	KnownChats(ctx context.Context) ([]int64, error)

	IncrementMessageCount(ctx context.Context) error
	MessageCount(ctx context.Context) (int64, error)
}

// Manager selects and wraps a storage backend.
type Manager struct {
	storage Storage
	logger  *logrus.Logger
}

// NewManager creates a storage manager for the configured backend type.
func NewManager(cfg *config.Config, logger *logrus.Logger) (*Manager, error) {
	var backend Storage

	switch cfg.Storage.Type {
	case "redis":
		redisStorage, err := NewRedisStorage(cfg, logger)
		if err != nil {
			return nil, err
		}
		backend = redisStorage
	case "memory", "":
		backend = NewMemoryStorage()
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	return &Manager{storage: backend, logger: logger}, nil
}

func (m *Manager) GlobalEnabled(ctx context.Context) (bool, error) {
	return m.storage.GlobalEnabled(ctx)
}

func (m *Manager) SetGlobalEnabled(ctx context.Context, enabled bool) error {
	return m.storage.SetGlobalEnabled(ctx, enabled)
}

func (m *Manager) ChatEnabled(ctx context.Context, chatID int64) (bool, error) {
	return m.storage.ChatEnabled(ctx, chatID)
}

func (m *Manager) SetChatEnabled(ctx context.Context, chatID int64, enabled bool) error {
	return m.storage.SetChatEnabled(ctx, chatID, enabled)
}

func (m *Manager) AddKnownChat(ctx context.Context, chatID int64) error {
	return m.storage.AddKnownChat(ctx, chatID)
}

func (m *Manager) KnownChats(ctx context.Context) ([]int64, error) {
	return m.storage.KnownChats(ctx)
}

func (m *Manager) IncrementMessageCount(ctx context.Context) error {
	return m.storage.IncrementMessageCount(ctx)
}

func (m *Manager) MessageCount(ctx context.Context) (int64, error) {
	return m.storage.MessageCount(ctx)
}

// RedisStorage implements Storage on Redis.
type RedisStorage struct {
	client *redis.Client
	logger *logrus.Logger
}

const (
	keyGlobalEnabled = "toggle:global"
	keyKnownChats    = "known_chats"
	keyMessageCount  = "stats:messages"
)

func chatToggleKey(chatID int64) string {
	return fmt.Sprintf("toggle:chat:%d", chatID)
}

func NewRedisStorage(cfg *config.Config, logger *logrus.Logger) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr,
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStorage{client: client, logger: logger}, nil
}

func (r *RedisStorage) GlobalEnabled(ctx context.Context) (bool, error) {
	val, err := r.client.Get(ctx, keyGlobalEnabled).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	return val == "1", nil
}

func (r *RedisStorage) SetGlobalEnabled(ctx context.Context, enabled bool) error {
	return r.client.Set(ctx, keyGlobalEnabled, boolFlag(enabled), 0).Err()
}

func (r *RedisStorage) ChatEnabled(ctx context.Context, chatID int64) (bool, error) {
	val, err := r.client.Get(ctx, chatToggleKey(chatID)).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	return val == "1", nil
}

func (r *RedisStorage) SetChatEnabled(ctx context.Context, chatID int64, enabled bool) error {
	return r.client.Set(ctx, chatToggleKey(chatID), boolFlag(enabled), 0).Err()
}

func (r *RedisStorage) AddKnownChat(ctx context.Context, chatID int64) error {
	return r.client.SAdd(ctx, keyKnownChats, chatID).Err()
}

func (r *RedisStorage) KnownChats(ctx context.Context) ([]int64, error) {
	members, err := r.client.SMembers(ctx, keyKnownChats).Result()
	if err != nil {
		return nil, err
	}
	chats := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			r.logger.WithField("member", m).Warn("Skipping malformed chat id in known_chats")
			continue
		}
		chats = append(chats, id)
	}
	return chats, nil
}

func (r *RedisStorage) IncrementMessageCount(ctx context.Context) error {
	return r.client.Incr(ctx, keyMessageCount).Err()
}

func (r *RedisStorage) MessageCount(ctx context.Context) (int64, error) {
	val, err := r.client.Get(ctx, keyMessageCount).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// MemoryStorage implements Storage in process memory.
type MemoryStorage struct {
	toggles *gocache.Cache

	mu            sync.Mutex
	globalEnabled bool
	knownChats    map[int64]struct{}
	messageCount  int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		toggles:       gocache.New(gocache.NoExpiration, gocache.NoExpiration),
		globalEnabled: true,
		knownChats:    make(map[int64]struct{}),
	}
}

func (m *MemoryStorage) GlobalEnabled(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.globalEnabled, nil
}

func (m *MemoryStorage) SetGlobalEnabled(ctx context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.globalEnabled = enabled
	return nil
}

func (m *MemoryStorage) ChatEnabled(ctx context.Context, chatID int64) (bool, error) {
	if val, found := m.toggles.Get(chatToggleKey(chatID)); found {
		return val.(bool), nil
	}
	return true, nil
}

func (m *MemoryStorage) SetChatEnabled(ctx context.Context, chatID int64, enabled bool) error {
	m.toggles.Set(chatToggleKey(chatID), enabled, gocache.NoExpiration)
	return nil
}

func (m *MemoryStorage) AddKnownChat(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.knownChats[chatID] = struct{}{}
	return nil
}

func (m *MemoryStorage) KnownChats(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chats := make([]int64, 0, len(m.knownChats))
	for id := range m.knownChats {
		chats = append(chats, id)
	}
	return chats, nil
}

func (m *MemoryStorage) IncrementMessageCount(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messageCount++
	return nil
}

func (m *MemoryStorage) MessageCount(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messageCount, nil
}
