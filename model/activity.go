package model

import "fmt"

// Activity is an executable unit of a process. An activity knows its parent
// only by identity; the parent owns it, never the other way round.
type Activity interface {
	Node
	Name() string
	// ParentID returns the identity of the enclosing activity, zero for the
	// process scope.
	ParentID() ID
	// Parent returns the enclosing activity, or nil at the root or when the
	// parent has been released.
	Parent() Activity
}

type activity struct {
	Base
	name   string
	parent ID
}

// Name returns the activity name.
func (a *activity) Name() string {
	return a.name
}

// ParentID returns the identity of the enclosing activity.
func (a *activity) ParentID() ID {
	return a.parent
}

// Parent resolves the enclosing activity through the owner's arena.
func (a *activity) Parent() Activity {
	if a.parent == 0 {
		return nil
	}
	parent, _ := a.owner.Node(a.parent).(Activity)
	return parent
}

func (a *activity) fill(r *NodeRecord) *NodeRecord {
	r.Name = a.name
	r.Parent = a.parent
	return r
}

func (a *activity) load(r *NodeRecord) {
	a.name = r.Name
	a.parent = r.Parent
}

// parentID validates that parent belongs to owner and returns its identity.
func parentID(owner *Process, parent Activity) ID {
	if parent == nil {
		return 0
	}
	if parent.Owner() != owner {
		panic(&ConsistencyError{Node: parent.NodeID(), Reason: "parent belongs to another process", Err: ErrForeignOwner})
	}
	return parent.NodeID()
}

func newActivity(owner *Process, parent Activity, name string) activity {
	return activity{name: name, parent: parentID(owner, parent)}
}

// Empty is an activity that does nothing.
type Empty struct {
	activity
}

// NewEmpty creates an empty activity.
func NewEmpty(owner *Process, parent Activity, name string) *Empty {
	ret := &Empty{activity: newActivity(owner, parent, name)}
	owner.register(ret, &ret.Base)
	return ret
}

func (e *Empty) record() *NodeRecord {
	return e.fill(e.newRecord(KindEmpty))
}

func (e *Empty) link(r *NodeRecord, _ *decoder) error {
	e.load(r)
	return nil
}

// composite holds an ordered list of owned child activities.
type composite struct {
	activity
	activities []Activity
}

// Add appends a child activity. The child must name this activity as parent.
func (c *composite) Add(child Activity) error {
	if err := c.owner.mutable(); err != nil {
		return err
	}
	if child.Owner() != c.owner {
		return ErrForeignOwner
	}
	if child.ParentID() != c.id {
		return fmt.Errorf("activity %s is not a child of %s", child.Name(), c.name)
	}
	c.activities = append(c.activities, child)
	return nil
}

// Activities returns the child activities in declaration order.
func (c *composite) Activities() []Activity {
	return append([]Activity(nil), c.activities...)
}

func (c *composite) visit(fn func(Node)) {
	for _, child := range c.activities {
		fn(child)
	}
}

func (c *composite) fillChildren(r *NodeRecord) *NodeRecord {
	c.fill(r)
	for _, child := range c.activities {
		r.Children = append(r.Children, child.NodeID())
	}
	return r
}

func (c *composite) loadChildren(r *NodeRecord, d *decoder) error {
	c.load(r)
	for _, id := range r.Children {
		child, err := ref[Activity](d, id)
		if err != nil {
			return err
		}
		c.activities = append(c.activities, child)
	}
	return nil
}

// Sequence executes its children one after another.
type Sequence struct {
	composite
}

// NewSequence creates a sequence activity.
func NewSequence(owner *Process, parent Activity, name string) *Sequence {
	ret := &Sequence{composite{activity: newActivity(owner, parent, name)}}
	owner.register(ret, &ret.Base)
	return ret
}

func (s *Sequence) record() *NodeRecord {
	return s.fillChildren(s.newRecord(KindSequence))
}

func (s *Sequence) link(r *NodeRecord, d *decoder) error {
	return s.loadChildren(r, d)
}

// Flow executes its children concurrently.
type Flow struct {
	composite
}

// NewFlow creates a flow activity.
func NewFlow(owner *Process, parent Activity, name string) *Flow {
	ret := &Flow{composite{activity: newActivity(owner, parent, name)}}
	owner.register(ret, &ret.Base)
	return ret
}

func (f *Flow) record() *NodeRecord {
	return f.fillChildren(f.newRecord(KindFlow))
}

func (f *Flow) link(r *NodeRecord, d *decoder) error {
	return f.loadChildren(r, d)
}
