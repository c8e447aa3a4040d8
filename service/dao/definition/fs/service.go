package fs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/obpel/model"
	"github.com/viant/obpel/service/dao"
	"github.com/viant/obpel/service/dao/criteria"
	"github.com/viant/obpel/service/dao/definition"
	"go.uber.org/zap"
)

const extension = ".json"

// Service stores one JSON document per definition under a base URL. Any
// afs supported scheme works, local files and mem:// included.
type Service struct {
	basePath string
	fs       afs.Service
	logger   *zap.Logger
	mu       sync.RWMutex
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

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}
	filePath := s.definitionPath(doc.ID)
	if err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save definition to file %s: %w", filePath, err)
	}
	return nil
}

// Load retrieves a document by definition id.
func (s *Service) Load(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filePath := s.definitionPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check if definition exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("definition %s: %w", id, dao.ErrNotFound)
	}
	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}
	doc := &model.Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition %s: %w", id, err)
	}
	return doc, nil
}

// Delete removes a document.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.definitionPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return fmt.Errorf("failed to check if definition exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("definition %s: %w", id, dao.ErrNotFound)
	}
	if err := s.fs.Delete(ctx, filePath); err != nil {
		return fmt.Errorf("failed to delete definition file: %w", err)
	}
	return nil
}

// List returns the matching documents ordered by id. Unreadable files are
// logged and skipped.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list definition files: %w", err)
	}
	var docs []*model.Document
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), extension) {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			s.logger.Warn("failed to read definition file", zap.String("url", object.URL()), zap.Error(err))
			continue
		}
		doc := &model.Document{}
		if err := json.Unmarshal(data, doc); err != nil {
			s.logger.Warn("failed to unmarshal definition", zap.String("url", object.URL()), zap.Error(err))
			continue
		}
		if !criteria.FilterDocument(doc, parameters) {
			continue
		}
		docs = append(docs, doc)
	}
	definition.SortByID(docs)
	return docs, nil
}

// definitionPath encodes the id, which carries a namespace URI, into a file
// name.
func (s *Service) definitionPath(id string) string {
	return path.Join(s.basePath, base64.RawURLEncoding.EncodeToString([]byte(id))+extension)
}

// Option configures a Service.
type Option func(s *Service)

// WithLogger sets the logger used for skipped files.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates a filesystem definition store rooted at basePath.
func New(ctx context.Context, basePath string, opts ...Option) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	fs := afs.New()
	exists, _ := fs.Exists(ctx, basePath)
	if !exists {
		if err := fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	ret := &Service{
		basePath: url.Normalize(basePath, file.Scheme),
		fs:       fs,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret, nil
}
