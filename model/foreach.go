package model

import "fmt"

// ForEach runs its inner scope once per counter value between the start and
// final bounds, one after another or in parallel. The node is static: the
// evaluated bounds and the progress of iterations belong to the runtime.
type ForEach struct {
	activity
	parallel   bool
	counter    *Variable
	start      *Expression
	final      *Expression
	inner      *Scope
	completion *CompletionCondition
}

// NewForEach creates a for-each activity.
func NewForEach(owner *Process, parent Activity, name string, parallel bool) *ForEach {
	ret := &ForEach{activity: newActivity(owner, parent, name), parallel: parallel}
	owner.register(ret, &ret.Base)
	return ret
}

// SetBounds installs the start and final counter value expressions.
func (f *ForEach) SetBounds(start, final *Expression) error {
	if err := f.owner.mutable(); err != nil {
		return err
	}
	if start == nil || final == nil {
		return fmt.Errorf("%v: both bounds are required", f)
	}
	if start.owner != f.owner || final.owner != f.owner {
		return ErrForeignOwner
	}
	if f.start != nil {
		return fmt.Errorf("%v bounds: %w", f, ErrDuplicate)
	}
	f.start, f.final = start, final
	return nil
}

// SetInnerScope installs the scope executed per iteration. The scope must
// name this activity as its parent.
func (f *ForEach) SetInnerScope(s *Scope) error {
	if err := f.owner.mutable(); err != nil {
		return err
	}
	if s.owner != f.owner {
		return ErrForeignOwner
	}
	if s.parent != f.id {
		return fmt.Errorf("scope %s is not a child of %v", s.name, f)
	}
	if f.inner != nil {
		return fmt.Errorf("%v inner scope: %w", f, ErrDuplicate)
	}
	f.inner = s
	return nil
}

// SetCounterVariable records the counter variable, normally declared in the
// inner scope so each iteration sees its own value.
func (f *ForEach) SetCounterVariable(v *Variable) error {
	if err := f.owner.mutable(); err != nil {
		return err
	}
	if v.owner != f.owner {
		return ErrForeignOwner
	}
	if f.counter != nil {
		return fmt.Errorf("%v counter: %w", f, ErrDuplicate)
	}
	f.counter = v
	return nil
}

// SetCompletionCondition installs the optional early completion policy.
func (f *ForEach) SetCompletionCondition(c *CompletionCondition) error {
	if err := f.owner.mutable(); err != nil {
		return err
	}
	if c.owner != f.owner {
		return ErrForeignOwner
	}
	if f.completion != nil {
		return fmt.Errorf("%v completion condition: %w", f, ErrDuplicate)
	}
	f.completion = c
	return nil
}

// Parallel reports whether iterations are launched concurrently.
func (f *ForEach) Parallel() bool {
	return f.parallel
}

// CounterVariable returns the counter variable.
func (f *ForEach) CounterVariable() *Variable {
	return f.counter
}

// Start returns the start counter value expression.
func (f *ForEach) Start() *Expression {
	return f.start
}

// Final returns the final counter value expression.
func (f *ForEach) Final() *Expression {
	return f.final
}

// InnerScope returns the scope executed per iteration.
func (f *ForEach) InnerScope() *Scope {
	return f.inner
}

// CompletionCondition returns the early completion policy, nil when the
// counter range alone decides completion.
func (f *ForEach) CompletionCondition() *CompletionCondition {
	return f.completion
}

func (f *ForEach) String() string {
	mode := "sequential"
	if f.parallel {
		mode = "parallel"
	}
	return fmt.Sprintf("{ForEach '%s' id=%d %s}", f.name, f.id, mode)
}

// visit walks the owned nodes. The counter variable is owned by the scope
// that declares it.
func (f *ForEach) visit(fn func(Node)) {
	if f.start != nil {
		fn(f.start)
	}
	if f.final != nil {
		fn(f.final)
	}
	if f.completion != nil {
		fn(f.completion)
	}
	if f.inner != nil {
		fn(f.inner)
	}
}

func (f *ForEach) record() *NodeRecord {
	r := f.fill(f.newRecord(KindForEach))
	r.Parallel = f.parallel
	if f.counter != nil {
		r.Counter = f.counter.id
	}
	r.Start, r.Final = expressionID(f.start), expressionID(f.final)
	r.Scope = scopeID(f.inner)
	if f.completion != nil {
		r.Completion = f.completion.id
	}
	return r
}

func (f *ForEach) link(r *NodeRecord, d *decoder) (err error) {
	f.load(r)
	f.parallel = r.Parallel
	if f.counter, err = ref[*Variable](d, r.Counter); err != nil {
		return err
	}
	if f.start, err = ref[*Expression](d, r.Start); err != nil {
		return err
	}
	if f.final, err = ref[*Expression](d, r.Final); err != nil {
		return err
	}
	if f.inner, err = ref[*Scope](d, r.Scope); err != nil {
		return err
	}
	f.completion, err = ref[*CompletionCondition](d, r.Completion)
	return err
}

// CompletionCondition ends a for-each early once enough branches have
// completed. With SuccessfulBranchesOnly set, faulted branches do not count.
type CompletionCondition struct {
	Base
	branchCount    *Expression
	successfulOnly bool
}

// NewCompletionCondition creates a completion condition. A nil branchCount
// means the condition is met only when every branch has completed.
func NewCompletionCondition(owner *Process, branchCount *Expression, successfulBranchesOnly bool) *CompletionCondition {
	if branchCount != nil && branchCount.owner != owner {
		panic(&ConsistencyError{Node: branchCount.id, Reason: "branch count belongs to another process", Err: ErrForeignOwner})
	}
	ret := &CompletionCondition{branchCount: branchCount, successfulOnly: successfulBranchesOnly}
	owner.register(ret, &ret.Base)
	return ret
}

// BranchCount returns the branch count expression.
func (c *CompletionCondition) BranchCount() *Expression {
	return c.branchCount
}

// SuccessfulBranchesOnly reports whether only branches that completed
// without a fault count toward the branch count.
func (c *CompletionCondition) SuccessfulBranchesOnly() bool {
	return c.successfulOnly
}

func (c *CompletionCondition) visit(fn func(Node)) {
	if c.branchCount != nil {
		fn(c.branchCount)
	}
}

func (c *CompletionCondition) record() *NodeRecord {
	r := c.newRecord(KindCompletionCondition)
	r.BranchCount = expressionID(c.branchCount)
	r.SuccessfulOnly = c.successfulOnly
	return r
}

func (c *CompletionCondition) link(r *NodeRecord, d *decoder) (err error) {
	c.successfulOnly = r.SuccessfulOnly
	c.branchCount, err = ref[*Expression](d, r.BranchCount)
	return err
}
