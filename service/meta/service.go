package meta

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/obpel/internal/idgen"
	"github.com/viant/obpel/internal/yml"
	"github.com/viant/obpel/model"
	"gopkg.in/yaml.v3"
)

// Service loads YAML or JSON resources from any afs supported location and
// expands ${env.KEY} expressions in scalar values before decoding.
type Service struct {
	fs afs.Service
}

// Load decodes the resource at URL into target. target may be a *yaml.Node.
func (s *Service) Load(ctx context.Context, URL string, target interface{}) error {
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", URL, err)
	}
	return Decode(data, target)
}

// Decode parses YAML or JSON data, expands environment expressions and
// decodes the result into target.
func Decode(data []byte, target interface{}) error {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	(*yml.Node)(&node).Scalars(func(n *yml.Node) {
		n.Value = expandEnvExpr(n.Value)
	})
	if actual, ok := target.(*yaml.Node); ok {
		*actual = node
		return nil
	}
	return node.Decode(target)
}

// LoadDocument loads the durable form of a process definition.
func (s *Service) LoadDocument(ctx context.Context, URL string) (*model.Document, error) {
	doc := &model.Document{}
	if err := s.Load(ctx, URL, doc); err != nil {
		return nil, fmt.Errorf("failed to load definition from %s: %w", URL, err)
	}
	Identify(doc)
	return doc, nil
}

// Identify fills in the definition id and GUID of a document that omits them.
func Identify(doc *model.Document) {
	if doc.ID == "" {
		doc.ID = model.DefinitionID(doc.TargetNamespace, doc.Name, doc.Version)
	}
	if doc.GUID == "" {
		doc.GUID = idgen.New()
	}
}

// New creates a meta service.
func New(fs afs.Service) *Service {
	if fs == nil {
		fs = afs.New()
	}
	return &Service{fs: fs}
}
