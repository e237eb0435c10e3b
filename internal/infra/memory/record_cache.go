package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"psych-assessment-service/internal/domain"
)

// RecordLoader fetches an assessment record from a backing store.
type RecordLoader interface {
	LoadRecord(ctx context.Context, id int64) (domain.AssessmentRecord, error)
}

// RecordCache caches assessment records with TTL to avoid repeated store hits.
type RecordCache struct {
	loader RecordLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[int64]cachedRecord
}

type cachedRecord struct {
	rec       domain.AssessmentRecord
	expiresAt time.Time
}

func NewRecordCache(loader RecordLoader, ttl time.Duration) *RecordCache {
	return &RecordCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedRecord),
	}
}

func (c *RecordCache) GetRecord(ctx context.Context, id int64) (domain.AssessmentRecord, error) {
	if rec, ok := c.lookup(id); ok {
		return rec, nil
	}

	result, err, _ := c.sf.Do(cacheKey(id), func() (interface{}, error) {
		if rec, ok := c.lookup(id); ok {
			return rec, nil
		}

		rec, err := c.loader.LoadRecord(ctx, id)
		if err != nil {
			return domain.AssessmentRecord{}, err
		}

		c.mu.Lock()
		c.cache[id] = cachedRecord{
			rec:       rec,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return rec, nil
	})
	if err != nil {
		return domain.AssessmentRecord{}, err
	}
	return result.(domain.AssessmentRecord), nil
}

func (c *RecordCache) Invalidate(_ context.Context, id int64) error {
	c.mu.Lock()
	delete(c.cache, id)
	c.mu.Unlock()
	return nil
}

func (c *RecordCache) lookup(id int64) (domain.AssessmentRecord, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
		return entry.rec, true
	}
	return domain.AssessmentRecord{}, false
}

func (c *RecordCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func cacheKey(id int64) string {
	return "assessment:" + strconv.FormatInt(id, 10)
}
