package store

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"repoinsight/internal/fingerprint"
)

type CacheConfig struct {
	UsageTTL        time.Duration
	UsageMaxEntries int

	KindsTTL        time.Duration
	KindsMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		UsageTTL:        30 * time.Second,
		UsageMaxEntries: 256,
		KindsTTL:        30 * time.Second,
		KindsMaxEntries: 256,
	}
}

type MetricsSnapshot struct {
	UsageHits   uint64
	UsageMisses uint64
	KindsHits   uint64
	KindsMisses uint64
	OriginErr   uint64
}

type Metrics struct {
	usageHits   atomic.Uint64
	usageMisses atomic.Uint64
	kindsHits   atomic.Uint64
	kindsMisses atomic.Uint64
	originErr   atomic.Uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		UsageHits:   m.usageHits.Load(),
		UsageMisses: m.usageMisses.Load(),
		KindsHits:   m.kindsHits.Load(),
		KindsMisses: m.kindsMisses.Load(),
		OriginErr:   m.originErr.Load(),
	}
}

// CachedStore caches usage and kind listings of an origin store. Repo loads
// and value groups always reach the origin. Persist purges both caches.
type CachedStore struct {
	origin Store

	usage   *expirable.LRU[string, []fingerprint.FingerprintUsage]
	kinds   *expirable.LRU[string, []fingerprint.Kind]
	metrics Metrics
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.UsageTTL <= 0 {
		cfg.UsageTTL = def.UsageTTL
	}
	if cfg.UsageMaxEntries <= 0 {
		cfg.UsageMaxEntries = def.UsageMaxEntries
	}
	if cfg.KindsTTL <= 0 {
		cfg.KindsTTL = def.KindsTTL
	}
	if cfg.KindsMaxEntries <= 0 {
		cfg.KindsMaxEntries = def.KindsMaxEntries
	}
	return &CachedStore{
		origin: origin,
		usage:  expirable.NewLRU[string, []fingerprint.FingerprintUsage](cfg.UsageMaxEntries, nil, cfg.UsageTTL),
		kinds:  expirable.NewLRU[string, []fingerprint.Kind](cfg.KindsMaxEntries, nil, cfg.KindsTTL),
	}
}

func (s *CachedStore) Metrics() MetricsSnapshot { return s.metrics.snapshot() }

func (s *CachedStore) LoadRepos(ctx context.Context, f Filter) ([]RepoAnalysis, error) {
	return s.origin.LoadRepos(ctx, f)
}

func (s *CachedStore) Snapshot(ctx context.Context, snapshotID string) (RepoAnalysis, error) {
	return s.origin.Snapshot(ctx, snapshotID)
}

func (s *CachedStore) QueryValueRepoGroups(ctx context.Context, q GroupQuery) ([]ValueRepoGroup, error) {
	return s.origin.QueryValueRepoGroups(ctx, q)
}

func (s *CachedStore) FingerprintUsage(ctx context.Context, workspaceID, kind string) ([]fingerprint.FingerprintUsage, error) {
	key := workspaceID + "\x00" + kind
	if v, ok := s.usage.Get(key); ok {
		s.metrics.usageHits.Add(1)
		return slices.Clone(v), nil
	}
	s.metrics.usageMisses.Add(1)
	v, err := s.origin.FingerprintUsage(ctx, workspaceID, kind)
	if err != nil {
		s.metrics.originErr.Add(1)
		return nil, err
	}
	s.usage.Add(key, slices.Clone(v))
	return v, nil
}

func (s *CachedStore) DistinctFingerprintKinds(ctx context.Context, workspaceID string) ([]fingerprint.Kind, error) {
	if v, ok := s.kinds.Get(workspaceID); ok {
		s.metrics.kindsHits.Add(1)
		return slices.Clone(v), nil
	}
	s.metrics.kindsMisses.Add(1)
	v, err := s.origin.DistinctFingerprintKinds(ctx, workspaceID)
	if err != nil {
		s.metrics.originErr.Add(1)
		return nil, err
	}
	s.kinds.Add(workspaceID, slices.Clone(v))
	return v, nil
}

func (s *CachedStore) Persist(ctx context.Context, ra RepoAnalysis) error {
	if err := s.origin.Persist(ctx, ra); err != nil {
		s.metrics.originErr.Add(1)
		return err
	}
	s.usage.Purge()
	s.kinds.Purge()
	return nil
}

func (s *CachedStore) Close() error { return s.origin.Close() }
