package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"psych-assessment-service/internal/domain"
	"psych-assessment-service/internal/infra/memory"
)

// RecordCache caches assessment records in Redis as JSON and falls back to a loader on miss.
// Records are stored as: SET assessment:{id}:record {json} EX ttl
type RecordCache struct {
	client *redis.Client
	loader memory.RecordLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewRecordCache(client *redis.Client, loader memory.RecordLoader, ttl time.Duration) *RecordCache {
	return &RecordCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *RecordCache) GetRecord(ctx context.Context, id int64) (domain.AssessmentRecord, error) {
	key := c.key(id)
	if rec, ok := c.cached(ctx, key); ok {
		return rec, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if rec, ok := c.cached(ctx, key); ok {
			return rec, nil
		}

		rec, err := c.loader.LoadRecord(ctx, id)
		if err != nil {
			return domain.AssessmentRecord{}, err
		}

		raw, err := json.Marshal(rec)
		if err != nil {
			return domain.AssessmentRecord{}, fmt.Errorf("marshal record: %w", err)
		}
		if err := c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err(); err != nil {
			log.Printf("cache assessment %d: %v", id, err)
		}
		return rec, nil
	})
	if err != nil {
		return domain.AssessmentRecord{}, err
	}
	return result.(domain.AssessmentRecord), nil
}

func (c *RecordCache) Invalidate(ctx context.Context, id int64) error {
	return c.client.Del(ctx, c.key(id)).Err()
}

func (c *RecordCache) cached(ctx context.Context, key string) (domain.AssessmentRecord, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("read cache %s: %v", key, err)
		}
		return domain.AssessmentRecord{}, false
	}
	var rec domain.AssessmentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.AssessmentRecord{}, false
	}
	return rec, true
}

func (c *RecordCache) key(id int64) string {
	return "assessment:" + strconv.FormatInt(id, 10) + ":record"
}

func (c *RecordCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
