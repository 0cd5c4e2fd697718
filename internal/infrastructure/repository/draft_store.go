package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sangkips/gstbill-desk/internal/domain/entity"
	domainRepo "github.com/sangkips/gstbill-desk/internal/domain/repository"
	"github.com/sangkips/gstbill-desk/pkg/clock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Database draft store ---

type gormDraftStore struct {
	db    *gorm.DB
	ttl   time.Duration
	clock clock.Clock
}

// NewGormDraftStore stores drafts in the bill_drafts table. A zero ttl keeps
// drafts until they are cleared.
func NewGormDraftStore(db *gorm.DB, ttl time.Duration, clk clock.Clock) domainRepo.DraftStore {
	return &gormDraftStore{db: db, ttl: ttl, clock: clk}
}

func (s *gormDraftStore) Get(ctx context.Context, key string) ([]byte, error) {
	var rec entity.DraftRecord
	err := s.db.WithContext(ctx).
		Where(&entity.DraftRecord{Key: key}).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if rec.IsExpired(s.clock.Now()) {
		return nil, s.Delete(ctx, key)
	}
	return []byte(rec.Value), nil
}

func (s *gormDraftStore) Set(ctx context.Context, key string, value []byte) error {
	rec := entity.DraftRecord{Key: key, Value: string(value)}
	if s.ttl > 0 {
		expires := s.clock.Now().Add(s.ttl)
		rec.ExpiresAt = &expires
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&rec).Error
}

func (s *gormDraftStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&entity.DraftRecord{Key: key}).Error
}

// --- Redis draft store ---

type redisDraftStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDraftStore stores drafts as plain Redis strings under prefix+key.
func NewRedisDraftStore(rdb *redis.Client, prefix string, ttl time.Duration) domainRepo.DraftStore {
	return &redisDraftStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *redisDraftStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (s *redisDraftStore) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, s.prefix+key, value, s.ttl).Err()
}

func (s *redisDraftStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

// --- In-memory draft store ---

// MemoryDraftStore keeps drafts in process memory. Drafts do not survive a
// restart; it backs DRAFT_STORE=memory and tests.
type MemoryDraftStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryDraftStore creates an empty in-memory store
func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{values: make(map[string][]byte)}
}

func (s *MemoryDraftStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryDraftStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryDraftStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}
