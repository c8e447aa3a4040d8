package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/viant/obpel/model"
	"github.com/viant/obpel/service/dao"
	"github.com/viant/obpel/service/dao/criteria"
	"github.com/viant/obpel/service/dao/definition"
	"go.etcd.io/bbolt"
)

var bucket = []byte("definitions")

// Service stores definition documents as JSON values of a BoltDB bucket.
type Service struct {
	db *bbolt.DB
}

var _ definition.Service = (*Service)(nil)

// Save persists a document.
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
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(doc.ID), data)
	})
}

// Load retrieves a document by definition id.
func (s *Service) Load(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc *model.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("definition %s: %w", id, dao.ErrNotFound)
		}
		doc = &model.Document{}
		return json.Unmarshal(data, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes a document.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("definition %s: %w", id, dao.ErrNotFound)
		}
		return b.Delete([]byte(id))
	})
}

// List returns the matching documents in key order.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var docs []*model.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			doc := &model.Document{}
			if err := json.Unmarshal(v, doc); err != nil {
				return fmt.Errorf("failed to unmarshal definition %s: %w", k, err)
			}
			if criteria.FilterDocument(doc, parameters) {
				docs = append(docs, doc)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Close closes the underlying database.
func (s *Service) Close() error {
	return s.db.Close()
}

// New wraps an open database, creating the definitions bucket if needed.
func New(db *bbolt.DB) (*Service, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &Service{db: db}, nil
}

// Open opens or creates the database file and wraps it.
func Open(filename string, mode os.FileMode) (*Service, error) {
	if mode == 0 {
		mode = 0600
	}
	db, err := bbolt.Open(filename, mode, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	ret, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return ret, nil
}
