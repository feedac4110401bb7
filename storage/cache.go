package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"bluetask-api/domain"
)

type backend interface {
	FetchTasks(ctx context.Context, userID string, f domain.Filter) ([]domain.Task, error)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, string, error)
	InsertTask(ctx context.Context, userID string, t domain.Task) error
	ReplaceTask(ctx context.Context, userID string, t domain.Task) error
	SetTaskStatus(ctx context.Context, userID, taskID, status string) error
	DeleteTask(ctx context.Context, userID, taskID string) error
	InsertProfile(ctx context.Context, userID string, p domain.Profile) error
	UpdateProfileLabels(ctx context.Context, userID string, labels []domain.Label, etag string) error
	UpdateProfileTheme(ctx context.Context, userID, theme string) error
	SweepLabel(ctx context.Context, userID, label string) error
}

// Cache wraps a Storage instance with Redis-backed caching for read
// operations. Task lists live in one hash per user keyed by the filter
// tuple, so any mutation can drop every cached variant with a single DEL.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client
// and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) FetchTasks(ctx context.Context, userID string, f domain.Filter) ([]domain.Task, error) {
	if tasks, ok := c.loadTasksFromCache(ctx, userID, f); ok {
		return tasks, nil
	}

	tasks, err := c.base.FetchTasks(ctx, userID, f)
	if err != nil {
		return nil, err
	}

	c.storeTasks(ctx, userID, f, tasks)
	return tasks, nil
}

func (c *Cache) GetProfile(ctx context.Context, userID string) (*domain.Profile, string, error) {
	// The ETag only matters for registry writes, which bypass the cache, so
	// cached reads return it empty.
	if profile, ok := c.loadProfileFromCache(ctx, userID); ok {
		return profile, "", nil
	}

	profile, etag, err := c.base.GetProfile(ctx, userID)
	if err != nil || profile == nil {
		return profile, etag, err
	}

	c.storeProfile(ctx, userID, *profile)
	return profile, etag, nil
}

func (c *Cache) InsertTask(ctx context.Context, userID string, t domain.Task) error {
	if err := c.base.InsertTask(ctx, userID, t); err != nil {
		return err
	}
	c.evictTasks(ctx, userID)
	return nil
}

func (c *Cache) ReplaceTask(ctx context.Context, userID string, t domain.Task) error {
	if err := c.base.ReplaceTask(ctx, userID, t); err != nil {
		return err
	}
	c.evictTasks(ctx, userID)
	return nil
}

func (c *Cache) SetTaskStatus(ctx context.Context, userID, taskID, status string) error {
	if err := c.base.SetTaskStatus(ctx, userID, taskID, status); err != nil {
		return err
	}
	c.evictTasks(ctx, userID)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, userID, taskID string) error {
	if err := c.base.DeleteTask(ctx, userID, taskID); err != nil {
		return err
	}
	c.evictTasks(ctx, userID)
	return nil
}

func (c *Cache) InsertProfile(ctx context.Context, userID string, p domain.Profile) error {
	if err := c.base.InsertProfile(ctx, userID, p); err != nil {
		return err
	}
	c.evictProfile(ctx, userID)
	return nil
}

func (c *Cache) UpdateProfileLabels(ctx context.Context, userID string, labels []domain.Label, etag string) error {
	if err := c.base.UpdateProfileLabels(ctx, userID, labels, etag); err != nil {
		return err
	}
	c.evictProfile(ctx, userID)
	return nil
}

func (c *Cache) UpdateProfileTheme(ctx context.Context, userID, theme string) error {
	if err := c.base.UpdateProfileTheme(ctx, userID, theme); err != nil {
		return err
	}
	c.evictProfile(ctx, userID)
	return nil
}

func (c *Cache) SweepLabel(ctx context.Context, userID, label string) error {
	err := c.base.SweepLabel(ctx, userID, label)
	// Even a partial sweep changed task rows; drop the cached lists either way.
	c.evictTasks(ctx, userID)
	return err
}

func (c *Cache) loadTasksFromCache(ctx context.Context, userID string, f domain.Filter) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.HGet(ctx, tasksCacheKey(userID), f.Key()).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, tasksCacheKey(userID)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(userID)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) storeTasks(ctx context.Context, userID string, f domain.Filter, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	key := tasksCacheKey(userID)
	if err := c.redis.HSet(ctx, key, f.Key(), data).Err(); err != nil {
		return
	}
	_ = c.redis.Expire(ctx, key, c.ttl).Err()
}

func (c *Cache) loadProfileFromCache(ctx context.Context, userID string) (*domain.Profile, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, profileCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, profileCacheKey(userID)).Err()
		}
		return nil, false
	}
	var profile domain.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		_ = c.redis.Del(ctx, profileCacheKey(userID)).Err()
		return nil, false
	}
	return &profile, true
}

func (c *Cache) storeProfile(ctx context.Context, userID string, profile domain.Profile) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, profileCacheKey(userID), data, c.ttl).Err()
}

func (c *Cache) evictTasks(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tasksCacheKey(userID)).Result()
}

func (c *Cache) evictProfile(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, profileCacheKey(userID)).Result()
}

func tasksCacheKey(userID string) string {
	return "tasks:" + userID
}

func profileCacheKey(userID string) string {
	return "profile:" + userID
}
