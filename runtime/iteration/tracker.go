package iteration

import (
	"sync"
	"time"

	"github.com/viant/obpel/internal/clock"
)

// Tracker counts branch outcomes and reports when the for-each is complete.
type Tracker struct {
	mu             sync.Mutex
	branches       int64
	required       int64
	hasCondition   bool
	successfulOnly bool

	launched   int64
	completed  int64
	successful int64
	faulted    int64

	doneAt *time.Time
	early  bool
}

// NewTracker creates a tracker for plan. A plan without branches, or with a
// branch count of zero, is complete from the start.
func NewTracker(plan *Plan) *Tracker {
	ret := &Tracker{
		branches:       plan.Branches(),
		required:       plan.BranchCount,
		hasCondition:   plan.HasCondition,
		successfulOnly: plan.SuccessfulOnly,
	}
	if ret.branches == 0 || (ret.hasCondition && ret.required == 0) {
		ret.markDone()
	}
	return ret
}

func (t *Tracker) markDone() {
	now := clock.Now()
	t.doneAt = &now
	t.early = t.completed < t.branches
}

// Launch records a started branch.
func (t *Tracker) Launch() {
	t.mu.Lock()
	t.launched++
	t.mu.Unlock()
}

// MarkDone records a finished branch and returns true the first time the
// completion condition, or the exhausted range, completes the for-each.
// Pass faulted=true if the branch ended with a fault.
func (t *Tracker) MarkDone(faulted bool) (complete bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	if faulted {
		t.faulted++
	} else {
		t.successful++
	}
	if t.doneAt != nil {
		return false
	}
	if t.hasCondition {
		counted := t.completed
		if t.successfulOnly {
			counted = t.successful
		}
		if counted >= t.required {
			t.markDone()
			return true
		}
		return false
	}
	if t.completed >= t.branches {
		t.markDone()
		return true
	}
	return false
}

// Done returns whether the for-each has completed.
func (t *Tracker) Done() bool {
	t.mu.Lock()
	done := t.doneAt != nil
	t.mu.Unlock()
	return done
}

// Failed reports that every branch has finished without satisfying the
// completion condition.
func (t *Tracker) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doneAt == nil && t.completed >= t.branches
}

// Result returns a snapshot of the branch counts.
func (t *Tracker) Result() *Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &Result{
		Launched:   t.launched,
		Completed:  t.completed,
		Successful: t.successful,
		Faulted:    t.faulted,
		Early:      t.doneAt != nil && t.early,
		DoneAt:     t.doneAt,
	}
}

// Result summarises a for-each execution.
type Result struct {
	Launched   int64
	Completed  int64
	Successful int64
	Faulted    int64
	// Early is set when the completion condition was met before every
	// counter value had been processed.
	Early  bool
	DoneAt *time.Time
}
