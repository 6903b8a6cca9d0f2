package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"support-lab/internal/model"

	"github.com/redis/go-redis/v9"
)

// TicketListCache 工单列表快照；只在调用方显式 Refresh 时失效
// 每次 Invalidate 递增代号，Set 只接受读取时拿到的代号，旧代号的快照写入后也读不到
type TicketListCache interface {
	// Get 未命中时也返回当前代号，供回源后 Set 使用
	Get(ctx context.Context) (tickets []model.SupportTicket, gen int64, ok bool, err error)
	Set(ctx context.Context, gen int64, tickets []model.SupportTicket) error
	Invalidate(ctx context.Context) error
}

const (
	ticketListCacheKey = "support-lab:tickets:list"
	ticketListGenKey   = "support-lab:tickets:gen"
)

type RedisTicketCache struct {
	client *redis.Client
	key    string
	genKey string
	ttl    time.Duration
}

func NewRedisTicketCache(client *redis.Client, ttl time.Duration) *RedisTicketCache {
	return &RedisTicketCache{client: client, key: ticketListCacheKey, genKey: ticketListGenKey, ttl: ttl}
}

func (c *RedisTicketCache) snapshotKey(gen int64) string {
	return fmt.Sprintf("%s:%d", c.key, gen)
}

func (c *RedisTicketCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("读取工单缓存代号失败: %w", err)
	}
	return gen, nil
}

func (c *RedisTicketCache) Get(ctx context.Context) ([]model.SupportTicket, int64, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, 0, false, err
	}
	raw, err := c.client.Get(ctx, c.snapshotKey(gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, fmt.Errorf("读取工单缓存失败: %w", err)
	}
	var tickets []model.SupportTicket
	if err := json.Unmarshal(raw, &tickets); err != nil {
		// 坏快照直接当未命中
		return nil, gen, false, nil
	}
	return tickets, gen, true, nil
}

func (c *RedisTicketCache) Set(ctx context.Context, gen int64, tickets []model.SupportTicket) error {
	cur, err := c.generation(ctx)
	if err != nil {
		return err
	}
	if cur != gen {
		// 过期代号写进去也读不到，省掉这次写入
		return nil
	}
	raw, err := json.Marshal(tickets)
	if err != nil {
		return fmt.Errorf("序列化工单缓存失败: %w", err)
	}
	if err := c.client.Set(ctx, c.snapshotKey(gen), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("写入工单缓存失败: %w", err)
	}
	return nil
}

func (c *RedisTicketCache) Invalidate(ctx context.Context) error {
	gen, err := c.client.Incr(ctx, c.genKey).Result()
	if err != nil {
		return fmt.Errorf("清除工单缓存失败: %w", err)
	}
	// 旧代号的快照已不可见，顺手删掉
	if err := c.client.Del(ctx, c.snapshotKey(gen-1)).Err(); err != nil {
		return fmt.Errorf("清除工单缓存失败: %w", err)
	}
	return nil
}

// MemoryTicketCache 未配置 Redis 时的进程内实现；ttl<=0 表示不过期
type MemoryTicketCache struct {
	mu       sync.RWMutex
	tickets  []model.SupportTicket
	cachedAt time.Time
	valid    bool
	gen      int64
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryTicketCache(ttl time.Duration) *MemoryTicketCache {
	return &MemoryTicketCache{ttl: ttl, now: time.Now}
}

func (c *MemoryTicketCache) Get(ctx context.Context) ([]model.SupportTicket, int64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid {
		return nil, c.gen, false, nil
	}
	if c.ttl > 0 && c.now().Sub(c.cachedAt) > c.ttl {
		return nil, c.gen, false, nil
	}
	out := make([]model.SupportTicket, len(c.tickets))
	copy(out, c.tickets)
	return out, c.gen, true, nil
}

func (c *MemoryTicketCache) Set(ctx context.Context, gen int64, tickets []model.SupportTicket) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// 读库期间被 Invalidate 过，这份数据可能已过期
		return nil
	}
	c.tickets = make([]model.SupportTicket, len(tickets))
	copy(c.tickets, tickets)
	c.cachedAt = c.now()
	c.valid = true
	return nil
}

func (c *MemoryTicketCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.tickets = nil
	c.valid = false
	return nil
}
