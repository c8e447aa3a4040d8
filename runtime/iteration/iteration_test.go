package iteration

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/obpel/model"
	"math"
	"pgregory.net/rapid"
	"sync"
	"testing"
	"time"
)

func newForEach(t *testing.T, parallel, withCondition, successfulOnly bool) *model.ForEach {
	p := model.NewProcess("iteration", "urn:test", 1)
	root := model.NewScope(p, nil, "process")
	require.NoError(t, p.SetRoot(root))
	fe := model.NewForEach(p, root, "items", parallel)
	require.NoError(t, root.SetActivity(fe))
	require.NoError(t, fe.SetInnerScope(model.NewScope(p, fe, "iteration")))
	require.NoError(t, fe.SetBounds(model.NewExpression(p, "xpath", "$start"), model.NewExpression(p, "xpath", "$final")))
	if withCondition {
		condition := model.NewCompletionCondition(p, model.NewExpression(p, "xpath", "$n"), successfulOnly)
		require.NoError(t, fe.SetCompletionCondition(condition))
	}
	require.NoError(t, p.Seal())
	return fe
}

func count(n int64) *int64 {
	return &n
}

func TestNewPlan(t *testing.T) {
	var testCases = []struct {
		name           string
		withCondition  bool
		start, final   int64
		branchCount    *int64
		expectErr      error
		expectBranches int64
		expectRequired int64
	}{
		{name: "range only", start: 1, final: 3, expectBranches: 3},
		{name: "empty range", start: 5, final: 1},
		{name: "condition without count", withCondition: true, start: 1, final: 4, expectBranches: 4, expectRequired: 4},
		{name: "condition with count", withCondition: true, start: 1, final: 4, branchCount: count(2), expectBranches: 4, expectRequired: 2},
		{name: "count above branches", withCondition: true, start: 1, final: 2, branchCount: count(3), expectErr: ErrInvalidBranchCondition},
		{name: "negative count", withCondition: true, start: 1, final: 2, branchCount: count(-1), expectErr: ErrInvalidBranchCondition},
		{name: "count without condition", start: 1, final: 2, branchCount: count(1), expectErr: ErrInvalidBranchCondition},
		{name: "range ending at max int", withCondition: true, start: math.MaxInt64 - 2, final: math.MaxInt64, expectBranches: 3, expectRequired: 3},
		{name: "range starting at min int", start: math.MinInt64, final: math.MinInt64 + 1, expectBranches: 2},
		{name: "full int64 range", start: math.MinInt64, final: math.MaxInt64, expectErr: ErrInvalidBounds},
		{name: "count overflows int64", withCondition: true, start: -1, final: math.MaxInt64, expectErr: ErrInvalidBounds},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			fe := newForEach(t, false, testCase.withCondition, false)
			plan, err := NewPlan(fe, testCase.start, testCase.final, testCase.branchCount)
			if testCase.expectErr != nil {
				assert.True(t, errors.Is(err, testCase.expectErr), err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expectBranches, plan.Branches())
			assert.Equal(t, testCase.expectRequired, plan.BranchCount)
			assert.Equal(t, "items", plan.Name)
		})
	}
}

func TestDriver_SequentialSuccessfulBranchesOnly(t *testing.T) {
	fe := newForEach(t, false, true, true)
	plan, err := NewPlan(fe, 1, 3, count(2))
	require.NoError(t, err)

	var visited []int64
	result, err := NewDriver().Run(context.Background(), plan, func(ctx context.Context, counter int64) error {
		visited = append(visited, counter)
		if counter == 2 {
			return errors.New("fault in iteration 2")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, visited)
	assert.EqualValues(t, 3, result.Launched)
	assert.EqualValues(t, 2, result.Successful)
	assert.EqualValues(t, 1, result.Faulted)
	assert.NotNil(t, result.DoneAt)
	assert.False(t, result.Early)
}

func TestDriver_SequentialEarlyCompletion(t *testing.T) {
	fe := newForEach(t, false, true, false)
	plan, err := NewPlan(fe, 1, 5, count(2))
	require.NoError(t, err)

	var visited []int64
	result, err := NewDriver().Run(context.Background(), plan, func(ctx context.Context, counter int64) error {
		visited = append(visited, counter)
		if counter == 1 {
			return errors.New("fault")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, visited)
	assert.True(t, result.Early)
}

func TestDriver_CompletionConditionFailure(t *testing.T) {
	fe := newForEach(t, false, true, true)
	plan, err := NewPlan(fe, 1, 2, count(2))
	require.NoError(t, err)

	result, err := NewDriver().Run(context.Background(), plan, func(ctx context.Context, counter int64) error {
		return errors.New("always faults")
	})
	assert.True(t, errors.Is(err, ErrCompletionConditionFailure))
	assert.EqualValues(t, 2, result.Faulted)
}

func TestDriver_ImmediateCompletion(t *testing.T) {
	var testCases = []struct {
		name          string
		withCondition bool
		start, final  int64
		branchCount   *int64
		parallel      bool
	}{
		{name: "empty range sequential", start: 3, final: 1},
		{name: "empty range parallel", start: 3, final: 1, parallel: true},
		{name: "zero branch count", withCondition: true, start: 1, final: 3, branchCount: count(0)},
		{name: "zero branch count parallel", withCondition: true, start: 1, final: 3, branchCount: count(0), parallel: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			fe := newForEach(t, testCase.parallel, testCase.withCondition, false)
			plan, err := NewPlan(fe, testCase.start, testCase.final, testCase.branchCount)
			require.NoError(t, err)
			result, err := NewDriver().Run(context.Background(), plan, func(ctx context.Context, counter int64) error {
				t.Errorf("unexpected branch %d", counter)
				return nil
			})
			require.NoError(t, err)
			assert.EqualValues(t, 0, result.Launched)
			assert.NotNil(t, result.DoneAt)
		})
	}
}

func TestDriver_ParallelEarlyCompletion(t *testing.T) {
	fe := newForEach(t, true, true, false)
	plan, err := NewPlan(fe, 1, 6, count(2))
	require.NoError(t, err)

	result, err := NewDriver().Run(context.Background(), plan, func(ctx context.Context, counter int64) error {
		if counter <= 2 {
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.True(t, result.Early)
	assert.EqualValues(t, 2, result.Successful)
}

func TestDriver_ParallelDistinctCounters(t *testing.T) {
	fe := newForEach(t, true, false, false)
	plan, err := NewPlan(fe, 10, 59, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	seen := map[int64]int{}
	result, err := NewDriver(WithConcurrency(4)).Run(context.Background(), plan, func(ctx context.Context, counter int64) error {
		mu.Lock()
		seen[counter]++
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 50, result.Successful)
	assert.Len(t, seen, 50)
	for counter, hits := range seen {
		assert.Equal(t, 1, hits, counter)
	}
}

func TestDriver_ParallelRangeAtMaxInt(t *testing.T) {
	fe := newForEach(t, true, false, false)
	plan, err := NewPlan(fe, math.MaxInt64-1, math.MaxInt64, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var mu sync.Mutex
	var seen []int64
	result, err := NewDriver().Run(ctx, plan, func(ctx context.Context, counter int64) error {
		mu.Lock()
		seen = append(seen, counter)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Launched)
	assert.EqualValues(t, 2, result.Successful)
	assert.ElementsMatch(t, []int64{math.MaxInt64 - 1, math.MaxInt64}, seen)
}

func TestDriver_Cancelled(t *testing.T) {
	fe := newForEach(t, false, false, false)
	plan, err := NewPlan(fe, 1, 3, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewDriver().Run(ctx, plan, func(ctx context.Context, counter int64) error { return nil })
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCounter_Distinct(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.Int64Range(-100, 100).Draw(t, "start")
		size := rapid.Int64Range(0, 200).Draw(t, "size")
		workers := rapid.IntRange(1, 8).Draw(t, "workers")
		counter := NewCounter(start, start+size-1)

		var mu sync.Mutex
		var wg sync.WaitGroup
		seen := map[int64]bool{}
		invalid := 0
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					value, ok := counter.Next()
					if !ok {
						return
					}
					mu.Lock()
					if seen[value] || value < start || value >= start+size {
						invalid++
					}
					seen[value] = true
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if invalid > 0 {
			t.Fatalf("%d values were repeated or out of range", invalid)
		}
		if int64(len(seen)) != size {
			t.Fatalf("expected %d values, got %d", size, len(seen))
		}
	})
}

func TestCounter_Bounds(t *testing.T) {
	var testCases = []struct {
		name        string
		start       int64
		final       int64
		expectValue []int64
	}{
		{name: "ends at max int", start: math.MaxInt64 - 1, final: math.MaxInt64, expectValue: []int64{math.MaxInt64 - 1, math.MaxInt64}},
		{name: "single max int", start: math.MaxInt64, final: math.MaxInt64, expectValue: []int64{math.MaxInt64}},
		{name: "starts at min int", start: math.MinInt64, final: math.MinInt64 + 1, expectValue: []int64{math.MinInt64, math.MinInt64 + 1}},
		{name: "empty", start: 2, final: 1},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			counter := NewCounter(testCase.start, testCase.final)
			var actual []int64
			for i := 0; i < 10; i++ {
				value, ok := counter.Next()
				if !ok {
					break
				}
				actual = append(actual, value)
			}
			assert.Equal(t, testCase.expectValue, actual)
			_, ok := counter.Next()
			assert.False(t, ok)
		})
	}
}
