// Package cache 缓存自定义区间查询的分类结果。
// 同一区间反复翻页时不必每次都打上游邮箱。
package cache

import (
	"sync"
	"time"

	"outprio/backend/internal/domain"
)

// RecordCache 带 TTL 和容量上限的查询结果缓存。
// 超容时淘汰最早写入的条目；条目数很小，线性扫无所谓。
type RecordCache struct {
	mu         sync.RWMutex
	entries    map[string]*recordEntry
	maxEntries int
	ttl        time.Duration
}

type recordEntry struct {
	records   []domain.EmailRecord
	storedAt  time.Time
	expiresAt time.Time
}

// NewRecordCache 创建结果缓存。
func NewRecordCache(maxEntries int, ttl time.Duration) *RecordCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &RecordCache{
		entries:    make(map[string]*recordEntry, maxEntries),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Get 返回未过期的缓存结果。
func (c *RecordCache) Get(key string) ([]domain.EmailRecord, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.records, true
}

// Put 写入一条查询结果，必要时先腾出位置。
func (c *RecordCache) Put(key string, records []domain.EmailRecord) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = &recordEntry{
		records:   records,
		storedAt:  now,
		expiresAt: now.Add(c.ttl),
	}
}

// Clear 清空缓存。配置或用户设置变化后旧结果不再可信。
func (c *RecordCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*recordEntry, c.maxEntries)
	c.mu.Unlock()
}

// evictLocked 先扔过期的，没有过期的就扔最旧的。
func (c *RecordCache) evictLocked(now time.Time) {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			return
		}
		if oldestKey == "" || entry.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
