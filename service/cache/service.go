package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/viant/obpel/internal/clock"
	"github.com/viant/obpel/model"
	"github.com/viant/obpel/service/dao"
	"github.com/viant/obpel/tracing"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultIdleTTL         = 10 * time.Minute
	DefaultCleanupInterval = time.Minute
)

var (
	// ErrUnknownDefinition is returned for an id the cache has never seen.
	ErrUnknownDefinition = errors.New("cache: unknown definition")

	// ErrNotSealed is returned when an unsealed process is put in the cache.
	ErrNotSealed = errors.New("cache: process is not sealed")
)

type entry struct {
	process  atomic.Pointer[model.Process]
	lastUsed atomic.Int64
}

func (e *entry) touch() {
	e.lastUsed.Store(clock.Now().UnixNano())
}

// Stats reports cache activity. Hydrated counts definitions still within
// their idle TTL.
type Stats struct {
	Known        int
	Hydrated     int
	Hits         int64
	Misses       int64
	Rehydrations int64
	Dehydrations int64
}

// Service keeps compiled process definitions in memory. A definition unused
// for the idle TTL is dehydrated; the next Get reloads it through the
// Loader. Concurrent misses for the same id share a single reload.
type Service struct {
	loader      Loader
	logger      *zap.Logger
	idleTTL     time.Duration
	cleanup     time.Duration
	maxHydrated int

	mu          sync.Mutex
	definitions map[string]*entry
	// hydrated holds the ids of definitions currently in memory; expiry
	// drives dehydration.
	hydrated *gocache.Cache
	group    singleflight.Group

	hits         atomic.Int64
	misses       atomic.Int64
	rehydrations atomic.Int64
	dehydrations atomic.Int64
}

// Option configures a Service.
type Option func(s *Service)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithIdleTTL sets how long a definition may stay unused before it is
// dehydrated, and how often idle definitions are swept.
func WithIdleTTL(idleTTL, cleanupInterval time.Duration) Option {
	return func(s *Service) {
		s.idleTTL = idleTTL
		s.cleanup = cleanupInterval
	}
}

// WithMaxHydrated caps the number of hydrated definitions; the least
// recently used ones are dehydrated first. Zero means no cap.
func WithMaxHydrated(limit int) Option {
	return func(s *Service) { s.maxHydrated = limit }
}

// New creates a cache that reloads definitions with loader.
func New(loader Loader, opts ...Option) *Service {
	ret := &Service{
		loader:      loader,
		logger:      zap.NewNop(),
		idleTTL:     DefaultIdleTTL,
		cleanup:     DefaultCleanupInterval,
		definitions: map[string]*entry{},
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.hydrated = gocache.New(ret.idleTTL, ret.cleanup)
	ret.hydrated.OnEvicted(ret.onEvicted)
	return ret
}

// Put registers a sealed, hydrated definition.
func (s *Service) Put(p *model.Process) error {
	if !p.Sealed() {
		return fmt.Errorf("put %s: %w", p.ID(), ErrNotSealed)
	}
	id := p.ID()
	s.mu.Lock()
	e, ok := s.definitions[id]
	if !ok {
		e = &entry{}
		s.definitions[id] = e
	}
	previous := e.process.Swap(p)
	e.touch()
	if !p.PartiallyDehydrated() {
		s.hydrated.Set(id, e, gocache.DefaultExpiration)
	}
	victims := s.victimsLocked()
	s.mu.Unlock()
	if previous != nil && previous != p {
		previous.Dispose()
	}
	s.release(victims)
	return nil
}

// Get returns the hydrated definition, reloading it if it was dehydrated or
// has never been seen.
func (s *Service) Get(ctx context.Context, id string) (*model.Process, error) {
	if p := s.lookup(id); p != nil {
		s.hits.Add(1)
		return p, nil
	}
	s.misses.Add(1)
	v, err, _ := s.group.Do(id, func() (interface{}, error) {
		if p := s.lookup(id); p != nil {
			return p, nil
		}
		return s.rehydrate(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Process), nil
}

func (s *Service) lookup(id string) *model.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.definitions[id]
	if !ok {
		return nil
	}
	p := e.process.Load()
	if p == nil || p.PartiallyDehydrated() {
		return nil
	}
	e.touch()
	s.hydrated.Set(id, e, gocache.DefaultExpiration)
	return p
}

func (s *Service) rehydrate(ctx context.Context, id string) (p *model.Process, err error) {
	ctx, span := tracing.StartSpan(ctx, "definition.rehydrate", tracing.KindClient)
	span.WithDefinition(id)
	defer func() { tracing.EndSpan(span, err) }()

	started := clock.Now()
	if p, err = s.loader.Load(ctx, id); err != nil {
		if dao.IsNotFound(err) {
			s.logger.Debug("definition not in store", zap.String("definition", id))
			return nil, err
		}
		s.logger.Warn("failed to rehydrate definition", zap.String("definition", id), zap.Error(err))
		return nil, err
	}
	if p.ID() != id {
		return nil, fmt.Errorf("rehydrate %s: loader returned %s", id, p.ID())
	}
	if err = s.Put(p); err != nil {
		return nil, err
	}
	span.WithNodes(p.LiveNodes())
	s.rehydrations.Add(1)
	s.logger.Info("definition rehydrated",
		zap.String("definition", id),
		zap.Int("nodes", p.LiveNodes()),
		zap.Duration("elapsed", clock.Since(started)))
	return p, nil
}

// Dehydrate releases the definition now instead of waiting for the idle TTL.
func (s *Service) Dehydrate(id string) error {
	s.mu.Lock()
	_, known := s.definitions[id]
	s.mu.Unlock()
	if !known {
		return fmt.Errorf("dehydrate %s: %w", id, ErrUnknownDefinition)
	}
	s.hydrated.Delete(id)
	return nil
}

// Dispose evicts the definition for good; a later Get reloads it as a new
// definition.
func (s *Service) Dispose(id string) error {
	s.mu.Lock()
	e, known := s.definitions[id]
	delete(s.definitions, id)
	s.mu.Unlock()
	if !known {
		return fmt.Errorf("dispose %s: %w", id, ErrUnknownDefinition)
	}
	s.hydrated.Delete(id)
	if p := e.process.Load(); p != nil {
		p.Dispose()
	}
	s.logger.Info("definition disposed", zap.String("definition", id))
	return nil
}

// Stats returns a snapshot of cache activity.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	known := len(s.definitions)
	s.mu.Unlock()
	return Stats{
		Known:        known,
		Hydrated:     len(s.hydrated.Items()),
		Hits:         s.hits.Load(),
		Misses:       s.misses.Load(),
		Rehydrations: s.rehydrations.Load(),
		Dehydrations: s.dehydrations.Load(),
	}
}

// Close dehydrates every definition still in memory.
func (s *Service) Close() error {
	s.hydrated.DeleteExpired()
	for id := range s.hydrated.Items() {
		s.hydrated.Delete(id)
	}
	return nil
}

// victimsLocked picks the least recently used definitions above the cap.
func (s *Service) victimsLocked() []string {
	if s.maxHydrated <= 0 {
		return nil
	}
	items := s.hydrated.Items()
	excess := len(items) - s.maxHydrated
	var victims []string
	for ; excess > 0; excess-- {
		oldestID, oldest := "", int64(0)
		for id, item := range items {
			used := item.Object.(*entry).lastUsed.Load()
			if oldestID == "" || used < oldest {
				oldestID, oldest = id, used
			}
		}
		delete(items, oldestID)
		victims = append(victims, oldestID)
	}
	return victims
}

func (s *Service) release(ids []string) {
	for _, id := range ids {
		s.hydrated.Delete(id)
	}
}

// onEvicted runs after go-cache dropped id, on expiry or explicit delete.
func (s *Service) onEvicted(id string, value interface{}) {
	e, ok := value.(*entry)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.hydrated.Get(id); found {
		// used again since it was dropped
		return
	}
	p := e.process.Load()
	if p == nil || p.Dehydrated() {
		return
	}
	_, span := tracing.StartSpan(context.Background(), "definition.dehydrate", tracing.KindInternal)
	span.WithDefinition(id)
	before := p.LiveNodes()
	p.Dehydrate()
	span.WithNodes(before - p.LiveNodes())
	tracing.EndSpan(span, nil)
	s.dehydrations.Add(1)
	s.logger.Info("definition dehydrated",
		zap.String("definition", id),
		zap.Int("released", before-p.LiveNodes()))
}
