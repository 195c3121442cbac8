package summarycache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-debt-summary/aggregate"
	"github.com/goliatone/go-debt-summary/cache"
	"github.com/goliatone/go-debt-summary/debt"
	"github.com/goliatone/go-debt-summary/internal/metrics"
	"github.com/goliatone/go-debt-summary/store"
)

// attempt is one step of the user read path. ok == false means "try the next step".
type attempt func(ctx context.Context, userID uuid.UUID) (sum debt.UserDebtSummary, ok bool, err error)

// Service answers summary and page reads, preferring cached summaries.
type Service struct {
	options
	store  store.Reader
	layer  *cache.Layer
	group  singleflight.Group
	cached []attempt
}

// NewService builds a read service over r, caching through layer.
func NewService(r store.Reader, layer *cache.Layer, opts ...Option) *Service {
	s := &Service{
		options: buildOptions(opts),
		store:   r,
		layer:   layer,
	}
	s.cached = []attempt{s.fromUserEntry, s.fromSystemEntry, s.computeShared}
	return s
}

// Generation returns the generation this service honours.
func (s *Service) Generation() *Generation {
	return s.generation
}

// GetUserSummary returns the summary of userID. It returns debt.ErrNotFound for
// an unknown user; cache trouble never surfaces.
func (s *Service) GetUserSummary(ctx context.Context, userID uuid.UUID, forceRefresh bool) (debt.UserDebtSummary, error) {
	if forceRefresh {
		return s.computeDirect(ctx, userID)
	}

	for _, try := range s.cached {
		sum, ok, err := try(ctx, userID)
		if err != nil {
			return debt.UserDebtSummary{}, err
		}
		if ok {
			return sum, nil
		}
	}
	return debt.UserDebtSummary{}, fmt.Errorf("summary of user %s: %w", userID, debt.ErrNotFound)
}

// GetSystemSummary returns the cached system summary. It never computes one:
// until the batch has run, and for every forced refresh, it returns debt.ErrUnavailable.
func (s *Service) GetSystemSummary(ctx context.Context, forceRefresh bool) (debt.SystemDebtSummary, error) {
	if forceRefresh {
		return debt.SystemDebtSummary{}, fmt.Errorf("%w: system summary is only refreshed by the batch", debt.ErrUnavailable)
	}

	key := cache.SystemSummaryKey(s.keys)
	res := cache.Load[debt.SystemDebtSummary](ctx, s.layer, key)
	s.observe(metrics.TierSystem, res.Outcome, res.Err)
	if !res.Hit() {
		return debt.SystemDebtSummary{}, debt.ErrUnavailable
	}
	return res.Value, nil
}

// GetUserDebtsPage returns one page of the user's debts, newest due date first,
// read straight from the store.
func (s *Service) GetUserDebtsPage(ctx context.Context, userID uuid.UUID, pageNumber, pageSize int) (debt.Page, error) {
	if pageNumber < 1 || pageSize < 1 || pageSize > debt.MaxPageSize || pageNumber-1 > math.MaxInt/pageSize {
		return debt.Page{}, fmt.Errorf("%w: page %d size %d", debt.ErrInvalidPage, pageNumber, pageSize)
	}

	skip := (pageNumber - 1) * pageSize
	items, total, err := store.LoadPage(ctx, s.store, userID, skip, pageSize)
	if err != nil {
		return debt.Page{}, fmt.Errorf("debts page of user %s: %w", userID, err)
	}
	return debt.NewPage(items, pageNumber, pageSize, total), nil
}

func (s *Service) fromUserEntry(ctx context.Context, userID uuid.UUID) (debt.UserDebtSummary, bool, error) {
	res := cache.Load[debt.UserDebtSummary](ctx, s.layer, cache.UserSummaryKey(s.keys, userID))
	s.observe(metrics.TierUser, res.Outcome, res.Err)
	return res.Value, res.Hit(), nil
}

func (s *Service) fromSystemEntry(ctx context.Context, userID uuid.UUID) (debt.UserDebtSummary, bool, error) {
	gen := s.generation.Current()

	res := cache.Load[debt.SystemDebtSummary](ctx, s.layer, cache.SystemSummaryKey(s.keys))
	s.observe(metrics.TierSystem, res.Outcome, res.Err)
	if !res.Hit() {
		return debt.UserDebtSummary{}, false, nil
	}

	sum, ok := res.Value.User(userID)
	if !ok {
		return debt.UserDebtSummary{}, false, nil
	}

	s.save(ctx, gen, cache.UserSummaryKey(s.keys, userID), sum, s.ttls.User)
	return sum, true, nil
}

// computeShared collapses concurrent misses for the same user into one computation.
// Each caller still honours its own context.
func (s *Service) computeShared(ctx context.Context, userID uuid.UUID) (debt.UserDebtSummary, bool, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(userID.String(), func() (any, error) {
		return s.computeDirect(detached, userID)
	})

	select {
	case <-ctx.Done():
		return debt.UserDebtSummary{}, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return debt.UserDebtSummary{}, false, r.Err
		}
		return r.Val.(debt.UserDebtSummary), true, nil
	}
}

func (s *Service) computeDirect(ctx context.Context, userID uuid.UUID) (debt.UserDebtSummary, error) {
	gen := s.generation.Current()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, debt.ErrNotFound) {
			s.metrics.DirectCompute("not_found")
			return debt.UserDebtSummary{}, err
		}
		s.metrics.DirectCompute("error")
		return debt.UserDebtSummary{}, fmt.Errorf("summary of user %s: %w", userID, err)
	}

	debts, err := s.store.GetDebtsByUser(ctx, userID)
	if err != nil {
		s.metrics.DirectCompute("error")
		return debt.UserDebtSummary{}, fmt.Errorf("summary of user %s: %w", userID, err)
	}

	sum := aggregate.SummarizeUser(user, debts, s.clock.Now())
	s.metrics.DirectCompute("ok")
	s.save(ctx, gen, cache.UserSummaryKey(s.keys, userID), sum, s.ttls.Direct)
	return sum, nil
}

// save writes value unless an invalidation happened since gen was captured.
// An invalidation landing during the write is undone by evicting again.
func (s *Service) save(ctx context.Context, gen uint64, key string, value debt.UserDebtSummary, ttl time.Duration) {
	if !s.generation.Unchanged(gen) {
		s.logger.Debug().Str("key", key).Msg("summary invalidated while computing, not caching")
		return
	}
	if err := cache.Save(ctx, s.layer, key, value, ttl); err != nil {
		s.soft(err)
		return
	}
	if !s.generation.Unchanged(gen) {
		if err := s.layer.Evict(ctx, key); err != nil {
			s.soft(err)
		}
	}
}

func (s *Service) observe(tier string, outcome cache.Outcome, err *cache.SoftError) {
	s.metrics.CacheLookup(tier, outcome.String())
	if err != nil {
		s.soft(err)
	}
}

func (s *Service) soft(err error) {
	var se *cache.SoftError
	if errors.As(err, &se) {
		s.metrics.SoftFailure(se.Op)
		s.logger.Warn().Err(se.Err).Str("op", se.Op).Str("key", se.Key).Msg("cache operation failed, continuing without cache")
		return
	}
	s.logger.Warn().Err(err).Msg("cache operation failed, continuing without cache")
}
