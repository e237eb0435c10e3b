package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"psych-assessment-service/internal/app"
	"psych-assessment-service/internal/domain"
)

// DraftStore keeps builder drafts in Redis so any instance can serve a draft.
// Each save refreshes the key's TTL; an idle draft expires after ttl.
type DraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDraftStore(client *redis.Client, ttl time.Duration) *DraftStore {
	return &DraftStore{client: client, ttl: ttl}
}

func (s *DraftStore) Save(ctx context.Context, st app.BuilderState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	return s.client.Set(ctx, s.key(st.ID), raw, s.ttl).Err()
}

func (s *DraftStore) Load(ctx context.Context, id string) (app.BuilderState, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return app.BuilderState{}, domain.ErrDraftNotFound
	}
	if err != nil {
		return app.BuilderState{}, fmt.Errorf("load draft: %w", err)
	}
	var st app.BuilderState
	if err := json.Unmarshal(raw, &st); err != nil {
		return app.BuilderState{}, fmt.Errorf("unmarshal draft: %w", err)
	}
	return st, nil
}

func (s *DraftStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *DraftStore) key(id string) string {
	return "assessment:draft:" + id
}
