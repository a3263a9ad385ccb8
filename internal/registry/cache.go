package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Luminoxx/Arcturus-API/internal/models"
)

// ProviderCache 供应商快照缓存
// 路由决策读多写少，这里维护一份带 TTL 的内存快照，
// 管理写入后显式失效，避免每次路由都查数据库。
// 读侧拿到的是副本，不与其他请求共享可变状态
type ProviderCache struct {
	mu        sync.RWMutex
	repo      *Repository
	snapshot  map[uint]*models.Provider
	expiresAt time.Time
	ttl       time.Duration

	// 命中计数在读锁下更新，必须用原子操作
	hitCount  atomic.Int64
	missCount atomic.Int64
}

// DefaultCacheTTL 默认快照有效期
const DefaultCacheTTL = 30 * time.Second

// NewProviderCache 创建供应商快照缓存
func NewProviderCache(repo *Repository, ttl time.Duration) *ProviderCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &ProviderCache{
		repo:     repo,
		snapshot: make(map[uint]*models.Provider),
		ttl:      ttl,
	}
}

// Get 获取供应商快照副本
func (c *ProviderCache) Get(id uint) (*models.Provider, bool) {
	if err := c.ensureFresh(); err != nil {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	provider, ok := c.snapshot[id]
	if !ok {
		c.missCount.Add(1)
		return nil, false
	}

	c.hitCount.Add(1)
	cp := *provider
	return &cp, true
}

// Snapshot 获取全部供应商快照副本
func (c *ProviderCache) Snapshot() ([]*models.Provider, error) {
	if err := c.ensureFresh(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*models.Provider, 0, len(c.snapshot))
	for _, provider := range c.snapshot {
		cp := *provider
		result = append(result, &cp)
	}
	return result, nil
}

// Invalidate 使快照失效（管理写入或健康状态变更后调用）
func (c *ProviderCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expiresAt = time.Time{}
}

// Stats 缓存统计
func (c *ProviderCache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.hitCount.Load(), c.missCount.Load(), len(c.snapshot)
}

// ensureFresh 快照过期时从数据库重建
// 重建由单个写者完成，双重检查避免并发重复加载
func (c *ProviderCache) ensureFresh() error {
	c.mu.RLock()
	fresh := time.Now().Before(c.expiresAt)
	c.mu.RUnlock()

	if fresh {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().Before(c.expiresAt) {
		return nil
	}

	providers, _, err := c.repo.FindAllProviders(1, 1000)
	if err != nil {
		return err
	}

	snapshot := make(map[uint]*models.Provider, len(providers))
	for _, provider := range providers {
		snapshot[provider.ID] = provider
	}

	c.snapshot = snapshot
	c.expiresAt = time.Now().Add(c.ttl)
	return nil
}
