package iteration

import (
	"errors"
	"fmt"
	"math"

	"github.com/viant/obpel/model"
)

var (
	// ErrInvalidBranchCondition is returned when the evaluated branch count is
	// negative or exceeds the number of branches the bounds allow.
	ErrInvalidBranchCondition = errors.New("iteration: invalid branch condition")

	// ErrInvalidBounds is returned when the bounds span more counter values
	// than an int64 can count.
	ErrInvalidBounds = errors.New("iteration: invalid bounds")

	// ErrCompletionConditionFailure is returned when every branch finished but
	// the completion condition was never satisfied.
	ErrCompletionConditionFailure = errors.New("iteration: completion condition failure")
)

// Plan is a for-each with its expressions evaluated.
type Plan struct {
	Name           string
	Start          int64
	Final          int64
	Parallel       bool
	HasCondition   bool
	BranchCount    int64
	SuccessfulOnly bool
}

// NewPlan binds fe to evaluated bounds. branchCount is the evaluated branch
// count of the completion condition; nil means the condition has no branch
// count and is met only when every branch has completed.
func NewPlan(fe *model.ForEach, start, final int64, branchCount *int64) (*Plan, error) {
	ret := &Plan{Name: fe.Name(), Start: start, Final: final, Parallel: fe.Parallel()}
	if _, ok := branches(start, final); !ok {
		return nil, fmt.Errorf("%s: bounds [%d, %d]: %w", ret.Name, start, final, ErrInvalidBounds)
	}
	condition := fe.CompletionCondition()
	if condition == nil {
		if branchCount != nil {
			return nil, fmt.Errorf("%s: branch count without completion condition: %w", ret.Name, ErrInvalidBranchCondition)
		}
		return ret, nil
	}
	ret.HasCondition = true
	ret.SuccessfulOnly = condition.SuccessfulBranchesOnly()
	ret.BranchCount = ret.Branches()
	if branchCount != nil {
		ret.BranchCount = *branchCount
	}
	if ret.BranchCount < 0 || ret.BranchCount > ret.Branches() {
		return nil, fmt.Errorf("%s: branch count %d with %d branches: %w", ret.Name, ret.BranchCount, ret.Branches(), ErrInvalidBranchCondition)
	}
	return ret, nil
}

// Branches returns the number of counter values between the bounds, zero
// when final is below start and math.MaxInt64 when the count overflows.
func (p *Plan) Branches() int64 {
	count, _ := branches(p.Start, p.Final)
	return count
}

func branches(start, final int64) (int64, bool) {
	if final < start {
		return 0, true
	}
	span := uint64(final) - uint64(start)
	if span >= math.MaxInt64 {
		return math.MaxInt64, false
	}
	return int64(span) + 1, true
}
