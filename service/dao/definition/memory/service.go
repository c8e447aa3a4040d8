package memory

import (
	"context"

	"github.com/viant/obpel/model"
	"github.com/viant/obpel/service/dao"
	"github.com/viant/obpel/service/dao/criteria"
	"github.com/viant/obpel/service/dao/definition"
	"github.com/viant/obpel/service/dao/store"
)

// Service keeps definition documents in memory.
type Service struct {
	*store.MemoryStore[string, model.Document]
}

var _ definition.Service = (*Service)(nil)

// Save validates and stores a document.
func (s *Service) Save(ctx context.Context, doc *model.Document) error {
	if doc == nil {
		return dao.ErrNilEntity
	}
	if doc.ID == "" {
		return dao.ErrInvalidID
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	return s.MemoryStore.Save(ctx, doc)
}

// Load returns a document by definition id.
func (s *Service) Load(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	return s.MemoryStore.Load(ctx, id)
}

// List returns the matching documents ordered by id.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Document, error) {
	docs, err := s.MemoryStore.List(ctx, parameters...)
	if err != nil {
		return nil, err
	}
	definition.SortByID(docs)
	return docs, nil
}

func New() *Service {
	return &Service{MemoryStore: store.NewMemoryStore[string, model.Document](
		func(doc *model.Document) string { return doc.ID },
		criteria.FilterDocument,
	)}
}
