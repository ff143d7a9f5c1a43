// Package app owns the in-memory dataset and reconciles it with the
// persisted cache and the dataset source.
package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/verte-zerg/flashdeck/internal/deck"
	"github.com/verte-zerg/flashdeck/internal/model"
	"github.com/verte-zerg/flashdeck/internal/source"
	"github.com/verte-zerg/flashdeck/internal/update"
)

// RecordCache persists the dataset record.
type RecordCache interface {
	Load(ctx context.Context) (model.CacheRecord, bool, error)
	Store(ctx context.Context, record model.CacheRecord) error
	Clear(ctx context.Context) error
}

// Fetcher downloads the dataset.
type Fetcher interface {
	GetVocabulary(ctx context.Context, noCache bool) (source.Result, error)
}

// Checker probes the source for a newer dataset.
type Checker interface {
	Check(ctx context.Context, cached model.Freshness) update.Result
}

// LoadResult describes how the dataset was obtained.
type LoadResult struct {
	Dataset   model.Dataset
	FromCache bool
	// Err is set when the dataset could not be downloaded; Dataset is then
	// empty and the caller may offer a retry.
	Err error
}

// State holds the dataset the UI reads from.
type State struct {
	cache   RecordCache
	fetcher Fetcher
	checker Checker
	logger  *slog.Logger

	mu        sync.RWMutex
	dataset   model.Dataset
	freshness model.Freshness
	// pending is a confirmed newer dataset not yet applied.
	pending          model.Dataset
	pendingFreshness model.Freshness
	hasPending       bool
}

// New returns an empty state. Call Startup before reading the dataset.
func New(cache RecordCache, fetcher Fetcher, checker Checker, logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &State{
		cache:   cache,
		fetcher: fetcher,
		checker: checker,
		logger:  logger.With("component", "app"),
		dataset: model.Dataset{},
	}
}

// Startup serves the cached dataset when one exists, otherwise downloads
// it. A background update check should follow a cached startup.
func (s *State) Startup(ctx context.Context) LoadResult {
	record, ok, err := s.cache.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load cache, downloading", "err", err)
	}
	if err == nil && ok {
		if record.Dataset == nil {
			record.Dataset = model.Dataset{}
		}
		if record.UpdatePending {
			record.UpdatePending = false
			s.persist(ctx, record)
		}
		s.mu.Lock()
		s.dataset = record.Dataset
		s.freshness = record.Freshness
		s.clearPendingLocked()
		s.mu.Unlock()
		s.logger.Info("loaded vocabulary from cache", "cards", len(record.Dataset))
		return LoadResult{Dataset: record.Dataset, FromCache: true}
	}
	return s.download(ctx)
}

func (s *State) download(ctx context.Context) LoadResult {
	s.logger.Info("no cache found, fetching vocabulary")
	res, err := s.fetcher.GetVocabulary(ctx, true)
	if err != nil {
		s.logger.Warn("failed to fetch vocabulary", "err", err)
		s.mu.Lock()
		s.dataset = model.Dataset{}
		s.freshness = model.Freshness{}
		s.clearPendingLocked()
		s.mu.Unlock()
		return LoadResult{Dataset: model.Dataset{}, Err: err}
	}

	s.persist(ctx, model.CacheRecord{Dataset: res.Dataset, Freshness: res.Freshness})
	s.mu.Lock()
	s.dataset = res.Dataset
	s.freshness = res.Freshness
	s.clearPendingLocked()
	s.mu.Unlock()
	s.logger.Info("vocabulary fetched and cached", "cards", len(res.Dataset))
	return LoadResult{Dataset: res.Dataset}
}

// CheckForUpdate probes the source and, when a newer dataset exists,
// downloads and persists it before reporting true. The dataset in use is
// left untouched until ApplyUpdate. Failures, offline copies and refetches
// that turn out not to be newer report false and persist nothing.
func (s *State) CheckForUpdate(ctx context.Context) bool {
	s.mu.RLock()
	cached := s.freshness
	if s.hasPending {
		cached = s.pendingFreshness
	}
	s.mu.RUnlock()

	result := s.checker.Check(ctx, cached)
	if !result.UpdateAvailable {
		return false
	}

	res, err := s.fetcher.GetVocabulary(ctx, true)
	if err != nil {
		s.logger.Warn("failed to fetch updated vocabulary", "err", err)
		return false
	}
	if res.Cached {
		s.logger.Warn("updated vocabulary unreachable, offline copy returned")
		return false
	}
	freshness := res.Freshness
	if freshness.IsZero() {
		freshness = result.Freshness
	}
	if !update.Newer(cached, freshness) {
		s.logger.Warn("refetched vocabulary is not newer than the cached one", "etag", freshness.ETag)
		return false
	}

	s.persist(ctx, model.CacheRecord{Dataset: res.Dataset, Freshness: freshness, UpdatePending: true})
	s.mu.Lock()
	s.pending = res.Dataset
	s.pendingFreshness = freshness
	s.hasPending = true
	s.mu.Unlock()
	s.logger.Info("vocabulary update stored", "cards", len(res.Dataset))
	return true
}

// ApplyUpdate switches to the pending dataset, if any, and returns the
// dataset now in use.
func (s *State) ApplyUpdate(ctx context.Context) model.Dataset {
	s.mu.Lock()
	if !s.hasPending {
		dataset := s.dataset
		s.mu.Unlock()
		return dataset
	}
	s.dataset = s.pending
	s.freshness = s.pendingFreshness
	s.clearPendingLocked()
	record := model.CacheRecord{Dataset: s.dataset, Freshness: s.freshness}
	s.mu.Unlock()

	s.persist(ctx, record)
	s.logger.Info("applied vocabulary update", "cards", len(record.Dataset))
	return record.Dataset
}

// Redownload clears the cache and loads as if it never existed.
func (s *State) Redownload(ctx context.Context) LoadResult {
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear cache", "err", err)
	}
	s.mu.Lock()
	s.dataset = model.Dataset{}
	s.freshness = model.Freshness{}
	s.clearPendingLocked()
	s.mu.Unlock()
	return s.download(ctx)
}

// Dataset returns the dataset in use.
func (s *State) Dataset() model.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset
}

// Freshness returns the tokens of the dataset in use.
func (s *State) Freshness() model.Freshness {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.freshness
}

// UpdatePending reports whether a newer dataset waits to be applied.
func (s *State) UpdatePending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasPending
}

// Subjects lists the subjects of the dataset in use.
func (s *State) Subjects() []string {
	return deck.Subjects(s.Dataset())
}

func (s *State) persist(ctx context.Context, record model.CacheRecord) {
	if err := s.cache.Store(ctx, record); err != nil {
		s.logger.Warn("failed to persist vocabulary", "err", err)
	}
}

func (s *State) clearPendingLocked() {
	s.pending = nil
	s.pendingFreshness = model.Freshness{}
	s.hasPending = false
}
