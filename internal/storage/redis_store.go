package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/palemoky/magic-table/internal/game/deck"
)

const (
	// Redis key 前缀
	deckKeyPrefix    = "deck:"
	sessionKeyPrefix = "session:"
	currentKey       = "session:current"

	// 会话记录过期时间
	sessionExpiration = 12 * time.Hour
)

// SlotData 座位数据
type SlotData struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	DeckName string `json:"deck_name"`
	Cards    int    `json:"cards"`
	Ready    bool   `json:"ready"`
	Alive    bool   `json:"alive"`

	// 开局后才有
	Health  int `json:"health,omitempty"`
	Poison  int `json:"poison,omitempty"`
	Hand    int `json:"hand,omitempty"`
	Library int `json:"library,omitempty"`
}

// SessionData 会话记录（供监控台读取）
type SessionData struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Players   int        `json:"players"`
	Port      int        `json:"port"`
	Slots     []SlotData `json:"slots"`
	StartedAt int64      `json:"started_at"`
	UpdatedAt int64      `json:"updated_at"`
}

// RedisStore Redis 存储
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// --- 牌组归档 ---

// ArchiveDeck 把牌组追加到玩家的归档列表
func (rs *RedisStore) ArchiveDeck(ctx context.Context, owner string, d deck.Deck) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("序列化牌组失败: %w", err)
	}
	return rs.client.RPush(ctx, deckKeyPrefix+owner, data).Err()
}

// --- 会话记录 ---

// SaveSession 保存会话记录，并标记为当前会话
func (rs *RedisStore) SaveSession(ctx context.Context, session *SessionData) error {
	if session == nil {
		return nil
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("序列化会话数据失败: %w", err)
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.ID, data, sessionExpiration)
	pipe.Set(ctx, currentKey, session.ID, sessionExpiration)
	_, err = pipe.Exec(ctx)
	return err
}

// LoadSession 读取会话记录，不存在时返回 nil
func (rs *RedisStore) LoadSession(ctx context.Context, id string) (*SessionData, error) {
	data, err := rs.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var session SessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("反序列化会话数据失败: %w", err)
	}
	return &session, nil
}

// CurrentSession 读取最近一次保存的会话
func (rs *RedisStore) CurrentSession(ctx context.Context) (*SessionData, error) {
	id, err := rs.client.Get(ctx, currentKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return rs.LoadSession(ctx, id)
}
