package obpel

import (
	"context"
	"fmt"
	"io"

	"github.com/viant/obpel/model"
	"github.com/viant/obpel/service/cache"
	"github.com/viant/obpel/service/dao"
	"github.com/viant/obpel/service/dao/definition"
	"github.com/viant/obpel/service/dao/definition/bolt"
	"github.com/viant/obpel/service/dao/definition/fs"
	"github.com/viant/obpel/service/dao/definition/memory"
	"github.com/viant/obpel/service/meta"
	"github.com/viant/obpel/tracing"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	serviceName    = "obpel"
	serviceVersion = "0.1.0"
)

// Service stores compiled process definitions and serves them to process
// instances, dehydrating idle ones and reloading them on demand.
type Service struct {
	config      *Config
	logger      *zap.Logger
	store       definition.Service
	metaService *meta.Service
	cache       *cache.Service

	traceService  string
	traceVersion  string
	traceExporter sdktrace.SpanExporter

	closers []io.Closer
}

func (s *Service) init(ctx context.Context, options []Option) error {
	for _, option := range options {
		option(s)
	}
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if err := s.ensureTracing(); err != nil {
		return err
	}
	if s.metaService == nil {
		s.metaService = meta.New(nil)
	}
	if s.store == nil {
		store, err := s.newStore(ctx)
		if err != nil {
			return err
		}
		s.store = store
	}
	s.cache = cache.New(cache.NewStoreLoader(s.store),
		cache.WithLogger(s.logger.Named("cache")),
		cache.WithIdleTTL(s.config.Cache.IdleTTL, s.config.Cache.CleanupInterval),
		cache.WithMaxHydrated(s.config.Cache.MaxHydrated))
	return nil
}

func (s *Service) ensureTracing() error {
	if s.traceExporter != nil {
		return tracing.InitWithExporter(s.traceService, s.traceVersion, s.traceExporter)
	}
	if s.config.Tracing.Enabled {
		return tracing.Init(serviceName, serviceVersion, s.config.Tracing.OutputFile)
	}
	return nil
}

func (s *Service) newStore(ctx context.Context) (definition.Service, error) {
	cfg := s.config.Store
	switch cfg.Kind {
	case StoreFS:
		return fs.New(ctx, cfg.URL, fs.WithLogger(s.logger.Named("store")))
	case StoreBolt:
		store, err := bolt.Open(cfg.URL, 0o600)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store)
		return store, nil
	}
	return memory.New(), nil
}

// Register persists a sealed definition and makes it available to Definition.
func (s *Service) Register(ctx context.Context, p *model.Process) error {
	if !p.Sealed() {
		return fmt.Errorf("register %s: %w", p.ID(), cache.ErrNotSealed)
	}
	doc, err := model.Encode(p)
	if err != nil {
		return err
	}
	if err = s.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("failed to save definition %s: %w", doc.ID, err)
	}
	if err = s.cache.Put(p); err != nil {
		return err
	}
	s.logger.Info("definition registered", zap.String("definition", doc.ID), zap.Int("nodes", len(doc.Nodes)))
	return nil
}

// Import loads a definition document from URL, stores it and returns the
// decoded definition.
func (s *Service) Import(ctx context.Context, URL string) (*model.Process, error) {
	doc, err := s.metaService.LoadDocument(ctx, URL)
	if err != nil {
		return nil, err
	}
	return s.register(ctx, doc)
}

func (s *Service) register(ctx context.Context, doc *model.Document) (*model.Process, error) {
	p, err := model.Decode(doc)
	if err != nil {
		return nil, err
	}
	if doc.ID != p.ID() {
		return nil, fmt.Errorf("definition id %s does not match %s", doc.ID, p.ID())
	}
	if err = s.store.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save definition %s: %w", doc.ID, err)
	}
	if err = s.cache.Put(p); err != nil {
		return nil, err
	}
	s.logger.Info("definition imported", zap.String("definition", doc.ID), zap.Int("nodes", len(doc.Nodes)))
	return p, nil
}

// Definition returns the hydrated definition, reloading it from the store
// when it has been dehydrated.
func (s *Service) Definition(ctx context.Context, id string) (*model.Process, error) {
	return s.cache.Get(ctx, id)
}

// List returns the stored definition documents matching parameters.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Document, error) {
	return s.store.List(ctx, parameters...)
}

// Remove deletes a definition from the store and evicts it from memory.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Dispose(id); err != nil && !isUnknown(err) {
		return err
	}
	return nil
}

// Stats returns the definition cache statistics.
func (s *Service) Stats() cache.Stats {
	return s.cache.Stats()
}

// Close dehydrates cached definitions and releases the store.
func (s *Service) Close() error {
	err := s.cache.Close()
	for _, closer := range s.closers {
		err = multierr.Append(err, closer.Close())
	}
	return err
}

// New creates a service.
func New(ctx context.Context, options ...Option) (*Service, error) {
	ret := &Service{}
	if err := ret.init(ctx, options); err != nil {
		return nil, err
	}
	return ret, nil
}
