package ratesource

import (
	"context"
	"errors"
	"time"

	domrepo "FxPredict/internal/domain/repository"
	"FxPredict/pkg/cache"
	"FxPredict/pkg/logger"

	"golang.org/x/sync/singleflight"
)

const (
	cachePrefix  = "rates"
	fetchTimeout = 15 * time.Second
)

// CachedRateSource keeps the upstream rate table in a cache for ttl.
// Concurrent misses for the same base share one upstream call, which runs
// detached from any single caller so one cancellation cannot fail the others.
type CachedRateSource struct {
	upstream domrepo.RateTable
	cache    cache.Service
	ttl      time.Duration
	base     string
	log      *logger.Logger
	group    singleflight.Group
}

func NewCachedRateSource(upstream domrepo.RateTable, c cache.Service, base string, ttl time.Duration, log *logger.Logger) *CachedRateSource {
	if log == nil {
		log = logger.Nop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedRateSource{upstream: upstream, cache: c, ttl: ttl, base: base, log: log}
}

// LatestRates serves the table from cache, refreshing it from upstream on a miss.
func (s *CachedRateSource) LatestRates(ctx context.Context, base string) (map[string]float64, error) {
	key := cache.GenerateKey(cachePrefix, base)

	var rates map[string]float64
	err := s.cache.Get(ctx, key, &rates)
	if err == nil && len(rates) > 0 {
		return rates, nil
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("rate cache read failed", logger.String("key", key), logger.Error(err))
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		fresh, err := s.upstream.LatestRates(fctx, base)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(fctx, key, fresh, s.ttl); err != nil {
			s.log.Warn("rate cache write failed", logger.String("key", key), logger.Error(err))
		}
		return fresh, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]float64), nil
	}
}

// GetBaseRate returns the rate of currency against the configured base.
func (s *CachedRateSource) GetBaseRate(ctx context.Context, currency string) (float64, error) {
	return lookupRate(ctx, s, s.base, currency)
}

var (
	_ domrepo.RateSource = (*CachedRateSource)(nil)
	_ domrepo.RateTable  = (*CachedRateSource)(nil)
)
