package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/sports-etl/internal/config"
	"github.com/andresuchdata/sports-etl/internal/domain"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

const runStatusKeyPrefix = "sports_etl:runs"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RunStatusStore keeps the last report of each stage so a supervisor can
// tell success from failure without parsing log files.
type RunStatusStore interface {
	Record(ctx context.Context, report *domain.StageReport) error
	Last(ctx context.Context, stage domain.Stage) (*domain.StageReport, bool, error)
	Close() error
}

type redisRunStatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

// memoryRunStatusStore is used when Redis is disabled; reports then live as
// long as the process.
type memoryRunStatusStore struct {
	mu      sync.RWMutex
	reports map[domain.Stage]domain.StageReport
}

// NewRunStatusStore returns a Redis backed store when caching is enabled and
// an in-process one otherwise.
func NewRunStatusStore(cfg config.CacheConfig) (RunStatusStore, error) {
	if !cfg.Enabled {
		return NewMemoryRunStatusStore(), nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisRunStatusStore{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewMemoryRunStatusStore() RunStatusStore {
	return &memoryRunStatusStore{reports: make(map[domain.Stage]domain.StageReport)}
}

func (c *redisRunStatusStore) Record(ctx context.Context, report *domain.StageReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode run status: %w", err)
	}

	if err := c.client.Set(ctx, buildRunStatusKey(report.Stage), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (c *redisRunStatusStore) Last(ctx context.Context, stage domain.Stage) (*domain.StageReport, bool, error) {
	payload, err := c.client.Get(ctx, buildRunStatusKey(stage)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var report domain.StageReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, false, fmt.Errorf("decode run status: %w", err)
	}

	return &report, true, nil
}

func (c *redisRunStatusStore) Close() error {
	return c.client.Close()
}

func (m *memoryRunStatusStore) Record(ctx context.Context, report *domain.StageReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[report.Stage] = *report
	return nil
}

func (m *memoryRunStatusStore) Last(ctx context.Context, stage domain.Stage) (*domain.StageReport, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	report, ok := m.reports[stage]
	if !ok {
		return nil, false, nil
	}
	return &report, true, nil
}

func (m *memoryRunStatusStore) Close() error {
	return nil
}

func buildRunStatusKey(stage domain.Stage) string {
	return fmt.Sprintf("%s:%s:last", runStatusKeyPrefix, stage)
}
