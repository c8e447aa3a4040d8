package cache

import (
	"context"
	"fmt"

	"github.com/viant/obpel/model"
	"github.com/viant/obpel/service/dao/definition"
)

// Loader reconstructs a fully hydrated process definition.
type Loader interface {
	Load(ctx context.Context, id string) (*model.Process, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, id string) (*model.Process, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, id string) (*model.Process, error) {
	return f(ctx, id)
}

// StoreLoader decodes definitions read from a definition store.
type StoreLoader struct {
	store definition.Service
}

// NewStoreLoader creates a loader backed by store.
func NewStoreLoader(store definition.Service) *StoreLoader {
	return &StoreLoader{store: store}
}

// Load reads and decodes the definition.
func (l *StoreLoader) Load(ctx context.Context, id string) (*model.Process, error) {
	doc, err := l.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := model.Decode(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode definition %s: %w", id, err)
	}
	return p, nil
}
