package cache

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/obpel/model"
	"github.com/viant/obpel/service/dao"
	"github.com/viant/obpel/service/dao/definition/memory"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newProcess(t *testing.T, name string) *model.Process {
	p := model.NewProcess(name, "urn:shop", 1)
	root := model.NewScope(p, nil, "process")
	require.NoError(t, p.SetRoot(root))
	_, err := root.DeclareVariable("order", model.NewMessageVarType(p, "OrderMsg", "payload"))
	require.NoError(t, err)
	inner := model.NewScope(p, root, "inner")
	require.NoError(t, root.SetActivity(inner))
	require.NoError(t, inner.SetActivity(model.NewEmpty(p, inner, "noop")))
	require.NoError(t, p.Seal())
	return p
}

// countingLoader reloads from a memory store and counts the reloads.
type countingLoader struct {
	loader Loader
	calls  atomic.Int64
	delay  time.Duration
}

func (l *countingLoader) Load(ctx context.Context, id string) (*model.Process, error) {
	l.calls.Add(1)
	time.Sleep(l.delay)
	return l.loader.Load(ctx, id)
}

func newStoreWith(t *testing.T, processes ...*model.Process) *memory.Service {
	store := memory.New()
	for _, p := range processes {
		doc, err := model.Encode(p)
		require.NoError(t, err)
		require.NoError(t, store.Save(context.Background(), doc))
	}
	return store
}

func TestService_DehydrateAndRehydrate(t *testing.T) {
	ctx := context.Background()
	p := newProcess(t, "order")
	loader := &countingLoader{loader: NewStoreLoader(newStoreWith(t, p))}
	srv := New(loader)
	require.NoError(t, srv.Put(p))

	got, err := srv.Get(ctx, p.ID())
	require.NoError(t, err)
	assert.Same(t, p, got)

	require.NoError(t, srv.Dehydrate(p.ID()))
	assert.True(t, p.Dehydrated())
	assert.EqualValues(t, 1, srv.Stats().Dehydrations)

	reloaded, err := srv.Get(ctx, p.ID())
	require.NoError(t, err)
	assert.NotSame(t, p, reloaded)
	assert.False(t, reloaded.Dehydrated())
	assert.True(t, p.Disposed())
	assert.Equal(t, p.GUID, reloaded.GUID)
	v, ok := reloaded.Root().ResolveVariable("order")
	assert.True(t, ok)
	assert.Equal(t, "order", v.Name())

	stats := srv.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 1, stats.Rehydrations)
	assert.Equal(t, 1, stats.Known)
	assert.Equal(t, 1, stats.Hydrated)
	assert.EqualValues(t, 1, loader.calls.Load())
}

func TestService_NestedScopeReleased(t *testing.T) {
	ctx := context.Background()
	p := newProcess(t, "order")
	loader := &countingLoader{loader: NewStoreLoader(newStoreWith(t, p))}
	srv := New(loader)
	require.NoError(t, srv.Put(p))

	inner, ok := p.Root().Activity().(*model.Scope)
	require.True(t, ok)
	inner.Dehydrate()
	assert.False(t, p.Dehydrated())
	assert.True(t, p.PartiallyDehydrated())

	got, err := srv.Get(ctx, p.ID())
	require.NoError(t, err)
	assert.NotSame(t, p, got)
	assert.False(t, got.PartiallyDehydrated())
	assert.True(t, p.Disposed())
	reloaded, ok := got.Root().Activity().(*model.Scope)
	require.True(t, ok)
	assert.NotNil(t, reloaded.Activity())
	assert.EqualValues(t, 1, loader.calls.Load())
	assert.EqualValues(t, 1, srv.Stats().Misses)
}

func TestService_ConcurrentMissesShareReload(t *testing.T) {
	p := newProcess(t, "order")
	loader := &countingLoader{loader: NewStoreLoader(newStoreWith(t, p)), delay: 20 * time.Millisecond}
	srv := New(loader)

	var wg sync.WaitGroup
	results := make([]*model.Process, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := srv.Get(context.Background(), p.ID())
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 1, loader.calls.Load())
	for _, got := range results {
		assert.Same(t, results[0], got)
	}
}

func TestService_IdleExpiry(t *testing.T) {
	p := newProcess(t, "order")
	srv := New(NewStoreLoader(newStoreWith(t, p)), WithIdleTTL(20*time.Millisecond, 5*time.Millisecond))
	require.NoError(t, srv.Put(p))
	assert.Eventually(t, p.Dehydrated, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, srv.Stats().Dehydrations)
}

func TestService_StatsSkipExpired(t *testing.T) {
	p := newProcess(t, "order")
	srv := New(NewStoreLoader(newStoreWith(t, p)), WithIdleTTL(10*time.Millisecond, time.Hour))
	require.NoError(t, srv.Put(p))
	assert.Equal(t, 1, srv.Stats().Hydrated)
	assert.Eventually(t, func() bool { return srv.Stats().Hydrated == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, srv.Stats().Known)

	require.NoError(t, srv.Close())
	assert.True(t, p.Dehydrated())
}

func TestService_MaxHydrated(t *testing.T) {
	first := newProcess(t, "first")
	second := newProcess(t, "second")
	third := newProcess(t, "third")
	srv := New(NewStoreLoader(newStoreWith(t, first, second, third)), WithMaxHydrated(2))

	require.NoError(t, srv.Put(first))
	time.Sleep(time.Millisecond)
	require.NoError(t, srv.Put(second))
	time.Sleep(time.Millisecond)
	_, err := srv.Get(context.Background(), first.ID())
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	require.NoError(t, srv.Put(third))

	assert.False(t, first.Dehydrated())
	assert.True(t, second.Dehydrated())
	assert.False(t, third.Dehydrated())
	assert.Equal(t, 2, srv.Stats().Hydrated)
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()
	srv := New(NewStoreLoader(memory.New()))

	_, err := srv.Get(ctx, "{urn:shop}missing-1")
	assert.True(t, errors.Is(err, dao.ErrNotFound))
	assert.True(t, errors.Is(srv.Dehydrate("{urn:shop}missing-1"), ErrUnknownDefinition))
	assert.True(t, errors.Is(srv.Dispose("{urn:shop}missing-1"), ErrUnknownDefinition))

	unsealed := model.NewProcess("draft", "", 1)
	assert.True(t, errors.Is(srv.Put(unsealed), ErrNotSealed))

	wrong := New(LoaderFunc(func(ctx context.Context, id string) (*model.Process, error) {
		return newProcess(t, "other"), nil
	}))
	_, err = wrong.Get(ctx, "{urn:shop}order-1")
	assert.Error(t, err)
}

func TestService_DisposeAndClose(t *testing.T) {
	first := newProcess(t, "first")
	second := newProcess(t, "second")
	srv := New(NewStoreLoader(memory.New()))
	require.NoError(t, srv.Put(first))
	require.NoError(t, srv.Put(second))

	require.NoError(t, srv.Dispose(first.ID()))
	assert.True(t, first.Disposed())
	assert.Equal(t, 1, srv.Stats().Known)

	require.NoError(t, srv.Close())
	assert.True(t, second.Dehydrated())
	assert.Equal(t, 0, srv.Stats().Hydrated)
}
