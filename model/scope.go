package model

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// ScopeOption configures the classifier flags of a scope.
type ScopeOption func(s *Scope)

// Atomic marks a scope meant to execute in a single transaction.
func Atomic() ScopeOption {
	return func(s *Scope) { s.atomic = true }
}

// Isolated marks a scope whose variable accesses are serialized against
// concurrent access from sibling scopes.
func Isolated() ScopeOption {
	return func(s *Scope) { s.isolated = true }
}

// Implicit marks a scope synthesized by the compiler rather than declared by
// the user.
func Implicit() ScopeOption {
	return func(s *Scope) { s.implicit = true }
}

// scopeBody holds everything a scope releases on dehydration. A body is
// immutable once published; dehydration swaps in an empty one.
type scopeBody struct {
	activity        Activity
	fault           *FaultHandler
	compensation    *CompensationHandler
	termination     *TerminationHandler
	event           *EventHandler
	variables       map[string]*Variable
	correlationSets map[string]*CorrelationSet
	partnerLinks    map[string]*PartnerLink
	compensatable   map[ID]*Scope
}

func newScopeBody() *scopeBody {
	return &scopeBody{
		variables:       map[string]*Variable{},
		correlationSets: map[string]*CorrelationSet{},
		partnerLinks:    map[string]*PartnerLink{},
		compensatable:   map[ID]*Scope{},
	}
}

// releasedBody is shared by every dehydrated scope; it is never written.
var releasedBody = newScopeBody()

// visit walks the owned nodes of the body. Compensatable scopes are
// referenced, not owned, and are skipped.
func (b *scopeBody) visit(fn func(Node)) {
	if b.activity != nil {
		fn(b.activity)
	}
	if b.fault != nil {
		fn(b.fault)
	}
	if b.compensation != nil {
		fn(b.compensation)
	}
	if b.termination != nil {
		fn(b.termination)
	}
	if b.event != nil {
		fn(b.event)
	}
	for _, name := range sortedKeys(b.variables) {
		fn(b.variables[name])
	}
	for _, name := range sortedKeys(b.correlationSets) {
		fn(b.correlationSets[name])
	}
	for _, name := range sortedKeys(b.partnerLinks) {
		fn(b.partnerLinks[name])
	}
}

// Scope is a lexical container of declarations with its own handlers and
// transactional classification.
//
// While the owning process is populating, declarations accumulate in a
// draft body. Sealing publishes the draft; from then on readers load the
// body without locking and only Dehydrate replaces it.
type Scope struct {
	activity
	atomic     bool
	isolated   bool
	implicit   bool
	draft      *scopeBody
	body       atomic.Pointer[scopeBody]
	dehydrated atomic.Bool
}

// NewScope creates a scope nested in parent (nil for the process scope).
func NewScope(owner *Process, parent Activity, name string, opts ...ScopeOption) *Scope {
	ret := &Scope{activity: newActivity(owner, parent, name), draft: newScopeBody()}
	for _, opt := range opts {
		opt(ret)
	}
	owner.register(ret, &ret.Base)
	return ret
}

func (s *Scope) seal() {
	if s.draft == nil {
		return
	}
	s.body.Store(s.draft)
	s.draft = nil
}

// state returns the published body, or the draft while populating.
func (s *Scope) state() *scopeBody {
	if b := s.body.Load(); b != nil {
		return b
	}
	if s.draft != nil {
		return s.draft
	}
	return releasedBody
}

// populating returns the draft body or ErrSealed.
func (s *Scope) populating() (*scopeBody, error) {
	if err := s.owner.mutable(); err != nil {
		return nil, err
	}
	if s.draft == nil {
		return nil, ErrSealed
	}
	return s.draft, nil
}

// IsAtomic reports whether this scope itself is atomic.
func (s *Scope) IsAtomic() bool {
	return s.atomic
}

// IsIsolated reports whether this scope itself is isolated.
func (s *Scope) IsIsolated() bool {
	return s.isolated
}

// IsImplicit reports whether the compiler synthesized this scope.
func (s *Scope) IsImplicit() bool {
	return s.implicit
}

// Dehydrated reports whether the scope has released its body.
func (s *Scope) Dehydrated() bool {
	return s.dehydrated.Load()
}

// SetActivity installs the body activity. The slot can be set once.
func (s *Scope) SetActivity(a Activity) error {
	body, err := s.populating()
	if err != nil {
		return err
	}
	if a.Owner() != s.owner {
		return ErrForeignOwner
	}
	if a.ParentID() != s.id {
		return fmt.Errorf("activity %s is not a child of %v", a.Name(), s)
	}
	if body.activity != nil {
		return fmt.Errorf("%v activity: %w", s, ErrDuplicate)
	}
	body.activity = a
	return nil
}

// SetFaultHandler installs the fault handler. The slot can be set once.
func (s *Scope) SetFaultHandler(h *FaultHandler) error {
	body, err := s.populating()
	if err != nil {
		return err
	}
	if err = s.checkHandler(h, &h.handler); err != nil {
		return err
	}
	if body.fault != nil {
		return fmt.Errorf("%v fault handler: %w", s, ErrDuplicate)
	}
	body.fault = h
	return nil
}

// SetCompensationHandler installs the compensation handler. The slot can be set once.
func (s *Scope) SetCompensationHandler(h *CompensationHandler) error {
	body, err := s.populating()
	if err != nil {
		return err
	}
	if err = s.checkHandler(h, &h.handler); err != nil {
		return err
	}
	if body.compensation != nil {
		return fmt.Errorf("%v compensation handler: %w", s, ErrDuplicate)
	}
	body.compensation = h
	return nil
}

// SetTerminationHandler installs the termination handler. The slot can be set once.
func (s *Scope) SetTerminationHandler(h *TerminationHandler) error {
	body, err := s.populating()
	if err != nil {
		return err
	}
	if err = s.checkHandler(h, &h.handler); err != nil {
		return err
	}
	if body.termination != nil {
		return fmt.Errorf("%v termination handler: %w", s, ErrDuplicate)
	}
	body.termination = h
	return nil
}

// SetEventHandler installs the event handler. The slot can be set once.
func (s *Scope) SetEventHandler(h *EventHandler) error {
	body, err := s.populating()
	if err != nil {
		return err
	}
	if err = s.checkHandler(h, &h.handler); err != nil {
		return err
	}
	if body.event != nil {
		return fmt.Errorf("%v event handler: %w", s, ErrDuplicate)
	}
	body.event = h
	return nil
}

func (s *Scope) checkHandler(n Node, h *handler) error {
	if n.Owner() != s.owner {
		return ErrForeignOwner
	}
	if h.scope != s.id {
		return fmt.Errorf("handler %d was created for scope %d, not %v", n.NodeID(), h.scope, s)
	}
	return nil
}

// DeclareVariable creates a variable local to this scope.
func (s *Scope) DeclareVariable(name string, varType VarType) (*Variable, error) {
	body, err := s.populating()
	if err != nil {
		return nil, err
	}
	if varType != nil && varType.Owner() != s.owner {
		return nil, ErrForeignOwner
	}
	if _, ok := body.variables[name]; ok {
		return nil, fmt.Errorf("variable %s in %v: %w", name, s, ErrDuplicate)
	}
	v := &Variable{name: name, scope: s.id, varType: varType}
	s.owner.register(v, &v.Base)
	body.variables[name] = v
	return v, nil
}

// DeclareCorrelationSet creates a correlation set local to this scope.
func (s *Scope) DeclareCorrelationSet(name string, properties ...*Property) (*CorrelationSet, error) {
	body, err := s.populating()
	if err != nil {
		return nil, err
	}
	for _, prop := range properties {
		if prop.owner != s.owner {
			return nil, ErrForeignOwner
		}
	}
	if _, ok := body.correlationSets[name]; ok {
		return nil, fmt.Errorf("correlation set %s in %v: %w", name, s, ErrDuplicate)
	}
	cs := &CorrelationSet{name: name, scope: s.id, properties: append([]*Property(nil), properties...)}
	s.owner.register(cs, &cs.Base)
	body.correlationSets[name] = cs
	return cs, nil
}

// DeclarePartnerLink creates a partner link local to this scope.
func (s *Scope) DeclarePartnerLink(name, linkType, myRole, partnerRole string) (*PartnerLink, error) {
	body, err := s.populating()
	if err != nil {
		return nil, err
	}
	if _, ok := body.partnerLinks[name]; ok {
		return nil, fmt.Errorf("partner link %s in %v: %w", name, s, ErrDuplicate)
	}
	pl := &PartnerLink{name: name, scope: s.id, LinkType: linkType, MyRole: myRole, PartnerRole: partnerRole}
	s.owner.register(pl, &pl.Base)
	body.partnerLinks[name] = pl
	return pl, nil
}

// AddCompensatable records a descendant scope that this scope's handlers may
// compensate. Membership is by identity; adding the same scope twice is a
// no-op.
func (s *Scope) AddCompensatable(descendant *Scope) error {
	body, err := s.populating()
	if err != nil {
		return err
	}
	if descendant.owner != s.owner {
		return ErrForeignOwner
	}
	if descendant.id == s.id {
		return fmt.Errorf("%v cannot compensate itself", s)
	}
	body.compensatable[descendant.id] = descendant
	return nil
}

// Activity returns the body activity, nil when unset or released.
func (s *Scope) Activity() Activity {
	return s.state().activity
}

// FaultHandler returns the fault handler, nil when unset or released.
func (s *Scope) FaultHandler() *FaultHandler {
	return s.state().fault
}

// CompensationHandler returns the compensation handler, nil when unset or released.
func (s *Scope) CompensationHandler() *CompensationHandler {
	return s.state().compensation
}

// TerminationHandler returns the termination handler, nil when unset or released.
func (s *Scope) TerminationHandler() *TerminationHandler {
	return s.state().termination
}

// EventHandler returns the event handler, nil when unset or released.
func (s *Scope) EventHandler() *EventHandler {
	return s.state().event
}

// LocalVariable returns a variable declared directly in this scope.
func (s *Scope) LocalVariable(name string) (*Variable, bool) {
	v, ok := s.state().variables[name]
	return v, ok
}

// LocalPartnerLink returns a partner link declared directly in this scope.
func (s *Scope) LocalPartnerLink(name string) (*PartnerLink, bool) {
	pl, ok := s.state().partnerLinks[name]
	return pl, ok
}

// CorrelationSet returns a correlation set declared directly in this scope.
func (s *Scope) CorrelationSet(name string) (*CorrelationSet, bool) {
	cs, ok := s.state().correlationSets[name]
	return cs, ok
}

// Variables returns the local variables ordered by name.
func (s *Scope) Variables() []*Variable {
	return sortedValues(s.state().variables)
}

// CorrelationSets returns the local correlation sets ordered by name.
func (s *Scope) CorrelationSets() []*CorrelationSet {
	return sortedValues(s.state().correlationSets)
}

// PartnerLinks returns the local partner links ordered by name.
func (s *Scope) PartnerLinks() []*PartnerLink {
	return sortedValues(s.state().partnerLinks)
}

// Compensatable returns the compensatable descendants ordered by identity.
func (s *Scope) Compensatable() []*Scope {
	set := s.state().compensatable
	result := make([]*Scope, 0, len(set))
	for _, scope := range set {
		result = append(result, scope)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].id < result[j].id })
	return result
}

// IsCompensatable reports whether descendant is in the compensatable set.
func (s *Scope) IsCompensatable(descendant *Scope) bool {
	if descendant == nil || descendant.owner != s.owner {
		return false
	}
	_, ok := s.state().compensatable[descendant.id]
	return ok
}

// EnclosingScope returns the nearest ancestor that is a scope. Plain
// activities on the way are skipped.
func (s *Scope) EnclosingScope() *Scope {
	id := s.parent
	for id != 0 {
		switch n := s.owner.Node(id).(type) {
		case *Scope:
			return n
		case Activity:
			id = n.ParentID()
		default:
			return nil
		}
	}
	return nil
}

// ResolveVariable finds the variable visible from this scope: local
// declarations first, then each enclosing scope in turn. Inner declarations
// shadow outer ones. A released scope resolves nothing: its own
// declarations are gone and falling through would expose outer names they
// used to shadow.
func (s *Scope) ResolveVariable(name string) (*Variable, bool) {
	if s.Dehydrated() {
		return nil, false
	}
	for current := s; current != nil; current = current.EnclosingScope() {
		if v, ok := current.state().variables[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// ResolvePartnerLink finds the partner link visible from this scope.
func (s *Scope) ResolvePartnerLink(name string) (*PartnerLink, bool) {
	if s.Dehydrated() {
		return nil, false
	}
	for current := s; current != nil; current = current.EnclosingScope() {
		if pl, ok := current.state().partnerLinks[name]; ok {
			return pl, true
		}
	}
	return nil, false
}

// ResolveCorrelationSet finds the correlation set visible from this scope.
func (s *Scope) ResolveCorrelationSet(name string) (*CorrelationSet, bool) {
	if s.Dehydrated() {
		return nil, false
	}
	for current := s; current != nil; current = current.EnclosingScope() {
		if cs, ok := current.state().correlationSets[name]; ok {
			return cs, true
		}
	}
	return nil, false
}

// InAtomicScope reports whether this scope or any enclosing scope is atomic.
// Each visited scope's own flag is tested. Earlier releases tested the
// receiver's flag at every step, which reduces to IsAtomic; callers that
// depend on that behaviour should call IsAtomic instead.
func (s *Scope) InAtomicScope() bool {
	for current := s; current != nil; current = current.EnclosingScope() {
		if current.atomic {
			return true
		}
	}
	return false
}

// InIsolatedScope reports whether this scope or any enclosing scope is isolated.
func (s *Scope) InIsolatedScope() bool {
	for current := s; current != nil; current = current.EnclosingScope() {
		if current.isolated {
			return true
		}
	}
	return false
}

// Dehydrate releases the body activity, the four handlers, the declarations
// and the compensatable set. Nested scopes are dehydrated first and every
// released node leaves the owner's arena. Identity, name and classifier
// flags are kept so the definition can be reloaded. Calling Dehydrate again
// is a no-op.
func (s *Scope) Dehydrate() {
	owner := s.owner
	owner.mu.Lock()
	defer owner.mu.Unlock()
	var released []ID
	s.dehydrate(&released)
	owner.releaseLocked(released)
	owner.released.Store(true)
}

func (s *Scope) dehydrate(released *[]ID) {
	if s.dehydrated.Load() {
		return
	}
	body := s.state()
	body.visit(func(n Node) {
		collect(n, released)
	})
	s.draft = nil
	s.body.Store(releasedBody)
	s.dehydrated.Store(true)
}

// collect dehydrates nested scopes and gathers the identities of every node
// owned by n, n included.
func collect(n Node, released *[]ID) {
	*released = append(*released, n.NodeID())
	if scope, ok := n.(*Scope); ok {
		scope.dehydrate(released)
		return
	}
	if c, ok := n.(container); ok {
		c.visit(func(child Node) {
			collect(child, released)
		})
	}
}

func (s *Scope) String() string {
	return fmt.Sprintf("{Scope '%s' id=%d}", s.name, s.id)
}

func (s *Scope) record() *NodeRecord {
	r := s.fill(s.newRecord(KindScope))
	r.Atomic, r.Isolated, r.Implicit = s.atomic, s.isolated, s.implicit
	body := s.state()
	r.Activity = idOf(body.activity)
	if body.fault != nil {
		r.FaultHandler = body.fault.id
	}
	if body.compensation != nil {
		r.CompensationHandler = body.compensation.id
	}
	if body.termination != nil {
		r.TerminationHandler = body.termination.id
	}
	if body.event != nil {
		r.EventHandler = body.event.id
	}
	for _, v := range sortedValues(body.variables) {
		r.Variables = append(r.Variables, v.id)
	}
	for _, cs := range sortedValues(body.correlationSets) {
		r.CorrelationSets = append(r.CorrelationSets, cs.id)
	}
	for _, pl := range sortedValues(body.partnerLinks) {
		r.PartnerLinks = append(r.PartnerLinks, pl.id)
	}
	for _, scope := range s.Compensatable() {
		r.Compensatable = append(r.Compensatable, scope.id)
	}
	return r
}

func (s *Scope) link(r *NodeRecord, d *decoder) (err error) {
	s.load(r)
	s.atomic, s.isolated, s.implicit = r.Atomic, r.Isolated, r.Implicit
	body := newScopeBody()
	if body.activity, err = ref[Activity](d, r.Activity); err != nil {
		return err
	}
	if body.fault, err = ref[*FaultHandler](d, r.FaultHandler); err != nil {
		return err
	}
	if body.compensation, err = ref[*CompensationHandler](d, r.CompensationHandler); err != nil {
		return err
	}
	if body.termination, err = ref[*TerminationHandler](d, r.TerminationHandler); err != nil {
		return err
	}
	if body.event, err = ref[*EventHandler](d, r.EventHandler); err != nil {
		return err
	}
	for _, id := range r.Variables {
		v, err := ref[*Variable](d, id)
		if err != nil {
			return err
		}
		body.variables[d.name(id)] = v
	}
	for _, id := range r.CorrelationSets {
		cs, err := ref[*CorrelationSet](d, id)
		if err != nil {
			return err
		}
		body.correlationSets[d.name(id)] = cs
	}
	for _, id := range r.PartnerLinks {
		pl, err := ref[*PartnerLink](d, id)
		if err != nil {
			return err
		}
		body.partnerLinks[d.name(id)] = pl
	}
	for _, id := range r.Compensatable {
		scope, err := ref[*Scope](d, id)
		if err != nil {
			return err
		}
		body.compensatable[id] = scope
	}
	s.draft = body
	return nil
}

// idOf returns the identity of an interface-typed reference.
func idOf(n Node) ID {
	if n == nil {
		return 0
	}
	return n.NodeID()
}

func scopeID(s *Scope) ID {
	if s == nil {
		return 0
	}
	return s.id
}

func expressionID(e *Expression) ID {
	if e == nil {
		return 0
	}
	return e.id
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedValues[V any](m map[string]V) []V {
	result := make([]V, 0, len(m))
	for _, k := range sortedKeys(m) {
		result = append(result, m[k])
	}
	return result
}
