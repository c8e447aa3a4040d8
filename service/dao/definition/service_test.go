package definition_test

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/obpel/model"
	"github.com/viant/obpel/service/dao"
	"github.com/viant/obpel/service/dao/definition"
	"github.com/viant/obpel/service/dao/definition/bolt"
	"github.com/viant/obpel/service/dao/definition/fs"
	"github.com/viant/obpel/service/dao/definition/memory"
	"path/filepath"
	"testing"
)

func newDocument(t *testing.T, name string, version int) *model.Document {
	p := model.NewProcess(name, "urn:shop", version)
	root := model.NewScope(p, nil, "process")
	require.NoError(t, p.SetRoot(root))
	constant, err := model.NewConstantVarTypeFromLiteral(p, `<limit>10</limit>`)
	require.NoError(t, err)
	_, err = root.DeclareVariable("limit", constant)
	require.NoError(t, err)
	require.NoError(t, root.SetActivity(model.NewEmpty(p, root, "noop")))
	require.NoError(t, p.Seal())
	doc, err := model.Encode(p)
	require.NoError(t, err)
	return doc
}

func TestServices(t *testing.T) {
	ctx := context.Background()

	var testCases = []struct {
		name string
		new  func(t *testing.T) definition.Service
	}{
		{
			name: "memory",
			new:  func(t *testing.T) definition.Service { return memory.New() },
		},
		{
			name: "fs",
			new: func(t *testing.T) definition.Service {
				srv, err := fs.New(ctx, filepath.Join(t.TempDir(), "definitions"))
				require.NoError(t, err)
				return srv
			},
		},
		{
			name: "bolt",
			new: func(t *testing.T) definition.Service {
				srv, err := bolt.Open(filepath.Join(t.TempDir(), "definitions.db"), 0)
				require.NoError(t, err)
				t.Cleanup(func() { _ = srv.Close() })
				return srv
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			srv := testCase.new(t)
			order1 := newDocument(t, "order", 1)
			order2 := newDocument(t, "order", 2)
			invoice := newDocument(t, "invoice", 1)
			for _, doc := range []*model.Document{order2, invoice, order1} {
				require.NoError(t, srv.Save(ctx, doc))
			}

			loaded, err := srv.Load(ctx, order1.ID)
			require.NoError(t, err)
			assert.EqualValues(t, order1, loaded)
			decoded, err := model.Decode(loaded)
			require.NoError(t, err)
			assert.Equal(t, order1.GUID, decoded.GUID)

			_, err = srv.Load(ctx, "{urn:shop}missing-1")
			assert.True(t, errors.Is(err, dao.ErrNotFound))
			_, err = srv.Load(ctx, "")
			assert.True(t, errors.Is(err, dao.ErrInvalidID))
			assert.True(t, errors.Is(srv.Save(ctx, nil), dao.ErrNilEntity))
			assert.Error(t, srv.Save(ctx, &model.Document{ID: "broken", Name: "broken"}))

			all, err := srv.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{invoice.ID, order1.ID, order2.ID}, ids(all))

			orders, err := srv.List(ctx, dao.NewParameter(dao.ParameterName, "order"))
			require.NoError(t, err)
			assert.Equal(t, []string{order1.ID, order2.ID}, ids(orders))

			latest, err := srv.List(ctx, dao.NewParameter(dao.ParameterName, "order"), dao.NewParameter(dao.ParameterVersion, "2"))
			require.NoError(t, err)
			assert.Equal(t, []string{order2.ID}, ids(latest))

			require.NoError(t, srv.Delete(ctx, invoice.ID))
			assert.True(t, errors.Is(srv.Delete(ctx, invoice.ID), dao.ErrNotFound))
			all, err = srv.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}

func ids(docs []*model.Document) []string {
	var result []string
	for _, doc := range docs {
		result = append(result, doc.ID)
	}
	return result
}
