package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"outprio/backend/internal/domain"
)

// Cache Redis 缓存实现
type Cache struct {
	client *redis.Client
	ctx    context.Context
}

// NewCache 创建 Redis 缓存实例
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx := context.Background()

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{
		client: client,
		ctx:    ctx,
	}, nil
}

// ========== 用户设置缓存 ==========

// CacheUserSettings 缓存用户设置
func (c *Cache) CacheUserSettings(settings *domain.UserSettings, ttl time.Duration) error {
	key := fmt.Sprintf("settings:%s", settings.UserID)
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedUserSettings 获取缓存的用户设置
func (c *Cache) GetCachedUserSettings(userID string) (*domain.UserSettings, error) {
	key := fmt.Sprintf("settings:%s", userID)
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("settings not found in cache")
		}
		return nil, err
	}

	var settings domain.UserSettings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// DeleteCachedUserSettings 删除缓存的用户设置
func (c *Cache) DeleteCachedUserSettings(userID string) error {
	key := fmt.Sprintf("settings:%s", userID)
	return c.client.Del(c.ctx, key).Err()
}

// ========== 账号档案缓存 ==========

// CacheProfile 缓存账号档案（授权状态查询走这里，避免每次打 DB）
func (c *Cache) CacheProfile(profile *domain.Profile, ttl time.Duration) error {
	key := fmt.Sprintf("profile:%s", profile.UserID)
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedProfile 获取缓存的账号档案
func (c *Cache) GetCachedProfile(userID string) (*domain.Profile, error) {
	key := fmt.Sprintf("profile:%s", userID)
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("profile not found in cache")
		}
		return nil, err
	}

	var profile domain.Profile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// DeleteCachedProfile 删除缓存的账号档案
func (c *Cache) DeleteCachedProfile(userID string) error {
	key := fmt.Sprintf("profile:%s", userID)
	return c.client.Del(c.ctx, key).Err()
}

// ========== 拉取配置缓存 ==========

// CacheFetchConfig 缓存拉取配置
func (c *Cache) CacheFetchConfig(cfg *domain.FetchConfig, ttl time.Duration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, "fetch:config", data, ttl).Err()
}

// GetCachedFetchConfig 获取缓存的拉取配置
func (c *Cache) GetCachedFetchConfig() (*domain.FetchConfig, error) {
	data, err := c.client.Get(c.ctx, "fetch:config").Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("fetch config not found in cache")
		}
		return nil, err
	}

	var cfg domain.FetchConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DeleteCachedFetchConfig 删除缓存的拉取配置
func (c *Cache) DeleteCachedFetchConfig() error {
	return c.client.Del(c.ctx, "fetch:config").Err()
}

// ========== JWT 黑名单 ==========

// AddToBlacklist 将 JWT 添加到黑名单
func (c *Cache) AddToBlacklist(jti string, ttl time.Duration) error {
	key := fmt.Sprintf("blacklist:%s", jti)
	return c.client.Set(c.ctx, key, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT 是否在黑名单中
func (c *Cache) IsBlacklisted(jti string) (bool, error) {
	key := fmt.Sprintf("blacklist:%s", jti)
	_, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ========== 限流缓存 ==========

// IncrementRateLimit 增加限流计数
func (c *Cache) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	pipe := c.client.Pipeline()

	incr := pipe.Incr(c.ctx, key)
	pipe.Expire(c.ctx, key, window)

	_, err := pipe.Exec(c.ctx)
	if err != nil {
		return 0, err
	}

	return incr.Val(), nil
}

// GetRateLimit 获取限流计数
func (c *Cache) GetRateLimit(key string) (int64, error) {
	count, err := c.client.Get(c.ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// ========== 工具方法 ==========

// SetTTL 设置键的过期时间
func (c *Cache) SetTTL(key string, ttl time.Duration) error {
	return c.client.Expire(c.ctx, key, ttl).Err()
}

// Delete 删除键
func (c *Cache) Delete(key string) error {
	return c.client.Del(c.ctx, key).Err()
}

// Exists 检查键是否存在
func (c *Cache) Exists(key string) (bool, error) {
	count, err := c.client.Exists(c.ctx, key).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Health 检查 Redis 连接
func (c *Cache) Health() error {
	return c.client.Ping(c.ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	return c.client.Close()
}
