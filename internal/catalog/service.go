// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/vloop/internal/cache"
	"github.com/ManuGH/vloop/internal/log"
	"github.com/ManuGH/vloop/internal/metrics"
)

const (
	// Terms below this length skip counting and report a conventional floor.
	minCountTermLen = 2
	// Terms above this length are served from the cache even when stale.
	maxFreshTermLen = 30
	// Conventional universe size reported for very short terms.
	shortTermCountFloor = 1000
	// Random mode issues at most probeFactor*count offset probes.
	probeFactor = 3
)

// ServiceConfig tunes the search service.
type ServiceConfig struct {
	CountTTL  time.Duration // count cache TTL; default 2h
	ScanRate  rate.Limit    // fresh COUNT scans per second; default 50
	ScanBurst int           // default 100
	Rand      rand.Source   // optional deterministic source for tests
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.CountTTL <= 0 {
		c.CountTTL = 2 * time.Hour
	}
	if c.ScanRate <= 0 {
		c.ScanRate = 50
	}
	if c.ScanBurst <= 0 {
		c.ScanBurst = 100
	}
	if c.Rand == nil {
		c.Rand = rand.NewSource(time.Now().UnixNano())
	}
	return c
}

// SelectRequest describes one selection against the catalog.
type SelectRequest struct {
	Term        string
	Count       int
	Mode        FetchMode
	Orientation Orientation
	Exclude     map[string]struct{} // video ids to omit, hard filter
}

// Service translates selection requests into deterministic video lists.
// The count cache is process-local; staleness up to the TTL is contractual.
type Service struct {
	store  Store
	counts *cache.TTL[int]
	ttl    time.Duration
	scans  *rate.Limiter
	logger zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService constructs a Service over the given read view.
func NewService(store Store, cfg ServiceConfig) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		store:  store,
		counts: cache.NewTTL[int](0),
		ttl:    cfg.CountTTL,
		scans:  rate.NewLimiter(cfg.ScanRate, cfg.ScanBurst),
		logger: log.WithComponent("catalog"),
		rng:    rand.New(cfg.Rand),
	}
}

// Count reports the size of the matching universe for (term, orientation).
// Results are cached per (term, orientation) with the configured TTL.
func (s *Service) Count(ctx context.Context, term string, orient Orientation) (int, error) {
	positive, negatives, err := parseTerm(term)
	if err != nil {
		return 0, err
	}
	if len(positive) < minCountTermLen {
		return shortTermCountFloor, nil
	}

	key := countKey(term, orient)
	if n, ok := s.counts.Get(key); ok {
		metrics.IncCountCacheHit()
		return n, nil
	}
	metrics.IncCountCacheMiss()

	// Very long terms prefer a conservative stale estimate over a fresh scan.
	if len(positive) > maxFreshTermLen {
		if n, ok := s.counts.GetStale(key); ok {
			return n, nil
		}
	}

	if err := s.scans.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: count throttled: %v", ErrUnavailable, err)
	}
	n, err := s.store.MatchCount(ctx, positive, negatives, orient)
	if err != nil {
		return 0, err
	}
	s.counts.Set(key, n, s.ttl)
	return n, nil
}

// Select returns up to req.Count videos matching the request. Excluded ids
// never appear; duplicates within one call never appear. Fewer results than
// requested means the universe (after exclusion) is smaller than the ask.
func (s *Service) Select(ctx context.Context, req SelectRequest) ([]Video, error) {
	positive, negatives, err := parseTerm(req.Term)
	if err != nil {
		return nil, err
	}
	if req.Count <= 0 {
		return nil, fmt.Errorf("%w: count %d", ErrInvalidArgument, req.Count)
	}
	switch req.Orientation {
	case OrientationMixed, OrientationWide, OrientationTall:
	default:
		return nil, fmt.Errorf("%w: orientation %q", ErrInvalidArgument, req.Orientation)
	}

	start := time.Now()
	var videos []Video
	switch req.Mode {
	case FetchNewest:
		videos, err = s.selectNewest(ctx, positive, negatives, req)
	case FetchRandom:
		videos, err = s.selectRandom(ctx, positive, negatives, req)
	default:
		return nil, fmt.Errorf("%w: fetch mode %q", ErrInvalidArgument, req.Mode)
	}
	if err != nil {
		metrics.IncCatalogSearch(string(req.Mode), "error")
		return nil, err
	}
	metrics.IncCatalogSearch(string(req.Mode), "ok")
	metrics.ObserveCatalogSearchDuration(time.Since(start).Seconds())

	s.logger.Debug().
		Str("event", "catalog.select").
		Str("term", positive).
		Str("mode", string(req.Mode)).
		Int("requested", req.Count).
		Int("returned", len(videos)).
		Msg("catalog selection complete")
	return videos, nil
}

func (s *Service) selectNewest(ctx context.Context, positive string, negatives []string, req SelectRequest) ([]Video, error) {
	exclude := make([]string, 0, len(req.Exclude))
	for id := range req.Exclude {
		exclude = append(exclude, id)
	}
	return s.store.Newest(ctx, positive, negatives, req.Orientation, exclude, req.Count)
}

// selectRandom approximates a uniform sample with bounded random-offset
// probes against the matching universe, deduplicating by id.
func (s *Service) selectRandom(ctx context.Context, positive string, negatives []string, req SelectRequest) ([]Video, error) {
	universe, err := s.Count(ctx, req.Term, req.Orientation)
	if err != nil {
		return nil, err
	}
	if universe <= 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, req.Count)
	out := make([]Video, 0, req.Count)
	maxAttempts := probeFactor * req.Count

	for attempt := 0; attempt < maxAttempts && len(out) < req.Count; attempt++ {
		offset := s.randIntn(universe)
		v, err := s.store.At(ctx, positive, negatives, req.Orientation, offset)
		if err != nil {
			return nil, err
		}
		if v == nil {
			// Cached universe count may exceed the live row count.
			continue
		}
		if _, excluded := req.Exclude[v.ID]; excluded {
			continue
		}
		if _, dup := seen[v.ID]; dup {
			continue
		}
		seen[v.ID] = struct{}{}
		out = append(out, *v)
	}
	return out, nil
}

func (s *Service) randIntn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

// CountCacheStats exposes cache counters for diagnostics.
func (s *Service) CountCacheStats() cache.Stats {
	return s.counts.Stats()
}

// parseTerm splits a raw search term into its positive substring and
// leading-minus negative sub-terms. The positive part must be non-empty.
func parseTerm(raw string) (string, []string, error) {
	fields := strings.Fields(raw)
	var positive []string
	var negatives []string
	for _, f := range fields {
		if strings.HasPrefix(f, "-") && len(f) > 1 {
			negatives = append(negatives, f[1:])
			continue
		}
		positive = append(positive, f)
	}
	term := strings.Join(positive, " ")
	if term == "" {
		return "", nil, fmt.Errorf("%w: empty search term", ErrInvalidArgument)
	}
	return term, negatives, nil
}

func countKey(term string, orient Orientation) string {
	return strings.ToLower(strings.TrimSpace(term)) + "|" + string(orient)
}
