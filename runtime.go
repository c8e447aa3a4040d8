package obpel

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/obpel/model"
	"github.com/viant/obpel/runtime/iteration"
	"github.com/viant/obpel/service/cache"
	"github.com/viant/obpel/service/meta"
)

// Refresh dehydrates a definition now; the next Definition call reloads it
// from the store.
func (s *Service) Refresh(id string) error {
	return s.cache.Dehydrate(id)
}

// Upsert decodes a YAML or JSON definition document and registers it,
// replacing any cached copy.
func (s *Service) Upsert(ctx context.Context, data []byte) (*model.Process, error) {
	doc := &model.Document{}
	if err := meta.Decode(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}
	meta.Identify(doc)
	return s.register(ctx, doc)
}

// RunForEach executes the branches of fe between the evaluated bounds.
// branchCount is the evaluated completion condition branch count, nil when
// the condition has none.
func (s *Service) RunForEach(ctx context.Context, fe *model.ForEach, start, final int64, branchCount *int64, fn iteration.BranchFunc) (*iteration.Result, error) {
	plan, err := iteration.NewPlan(fe, start, final, branchCount)
	if err != nil {
		return nil, err
	}
	driver := iteration.NewDriver(iteration.WithLogger(s.logger.Named("forEach")))
	return driver.Run(ctx, plan, fn)
}

func isUnknown(err error) bool {
	return errors.Is(err, cache.ErrUnknownDefinition)
}
