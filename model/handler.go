package model

import "fmt"

// handler is the part shared by the four handler kinds: identity and the
// scope the handler is attached to. Activities and scopes inside a handler
// name that scope as their parent, so resolution from inside a handler sees
// the scope's declarations.
type handler struct {
	Base
	scope ID
}

// ScopeID returns the identity of the scope the handler belongs to.
func (h *handler) ScopeID() ID {
	return h.scope
}

// Scope returns the scope the handler belongs to, nil once released.
func (h *handler) Scope() *Scope {
	scope, _ := h.owner.Node(h.scope).(*Scope)
	return scope
}

func (h *handler) parent() *Scope {
	scope, _ := h.owner.Node(h.scope).(*Scope)
	if scope == nil {
		panic(&ConsistencyError{Node: h.id, Reason: fmt.Sprintf("handler scope %d is not live", h.scope)})
	}
	return scope
}

// FaultHandler holds the catch blocks of a scope in evaluation order.
type FaultHandler struct {
	handler
	catches []*Catch
}

// NewFaultHandler creates a fault handler for scope.
func NewFaultHandler(scope *Scope) *FaultHandler {
	ret := &FaultHandler{handler: handler{scope: scope.id}}
	scope.owner.register(ret, &ret.Base)
	return ret
}

// AddCatch appends a catch block with a fresh implicit body scope.
func (h *FaultHandler) AddCatch(faultName, faultVariable string, opts ...ScopeOption) (*Catch, error) {
	if err := h.owner.mutable(); err != nil {
		return nil, err
	}
	body := NewScope(h.owner, h.parent(), "catch:"+faultName, append([]ScopeOption{Implicit()}, opts...)...)
	c := &Catch{FaultName: faultName, FaultVariable: faultVariable, body: body}
	h.owner.register(c, &c.Base)
	h.catches = append(h.catches, c)
	return c, nil
}

// Catches returns the catch blocks in evaluation order.
func (h *FaultHandler) Catches() []*Catch {
	return append([]*Catch(nil), h.catches...)
}

func (h *FaultHandler) visit(fn func(Node)) {
	for _, c := range h.catches {
		fn(c)
	}
}

func (h *FaultHandler) record() *NodeRecord {
	r := h.newRecord(KindFaultHandler)
	r.Parent = h.scope
	for _, c := range h.catches {
		r.Children = append(r.Children, c.id)
	}
	return r
}

func (h *FaultHandler) link(r *NodeRecord, d *decoder) error {
	h.scope = r.Parent
	for _, id := range r.Children {
		c, err := ref[*Catch](d, id)
		if err != nil {
			return err
		}
		h.catches = append(h.catches, c)
	}
	return nil
}

// Catch handles one fault; an empty FaultName catches all.
type Catch struct {
	Base
	FaultName     string
	FaultVariable string
	body          *Scope
}

// Body returns the scope executed when the catch fires.
func (c *Catch) Body() *Scope {
	return c.body
}

func (c *Catch) visit(fn func(Node)) {
	if c.body != nil {
		fn(c.body)
	}
}

func (c *Catch) record() *NodeRecord {
	r := c.newRecord(KindCatch)
	r.FaultName, r.FaultVariable, r.Scope = c.FaultName, c.FaultVariable, scopeID(c.body)
	return r
}

func (c *Catch) link(r *NodeRecord, d *decoder) (err error) {
	c.FaultName, c.FaultVariable = r.FaultName, r.FaultVariable
	c.body, err = ref[*Scope](d, r.Scope)
	return err
}

// CompensationHandler undoes the effects of a completed scope.
type CompensationHandler struct {
	handler
	body *Scope
}

// NewCompensationHandler creates a compensation handler with an implicit body scope.
func NewCompensationHandler(scope *Scope, opts ...ScopeOption) *CompensationHandler {
	ret := &CompensationHandler{handler: handler{scope: scope.id}}
	scope.owner.register(ret, &ret.Base)
	ret.body = NewScope(scope.owner, scope, scope.name+":compensation", append([]ScopeOption{Implicit()}, opts...)...)
	return ret
}

// Body returns the scope executed on compensation.
func (h *CompensationHandler) Body() *Scope {
	return h.body
}

func (h *CompensationHandler) visit(fn func(Node)) {
	if h.body != nil {
		fn(h.body)
	}
}

func (h *CompensationHandler) record() *NodeRecord {
	r := h.newRecord(KindCompensationHandler)
	r.Parent, r.Scope = h.scope, scopeID(h.body)
	return r
}

func (h *CompensationHandler) link(r *NodeRecord, d *decoder) (err error) {
	h.scope = r.Parent
	h.body, err = ref[*Scope](d, r.Scope)
	return err
}

// TerminationHandler runs when a scope is forcibly terminated.
type TerminationHandler struct {
	handler
	activity Activity
}

// NewTerminationHandler creates a termination handler for scope.
func NewTerminationHandler(scope *Scope) *TerminationHandler {
	ret := &TerminationHandler{handler: handler{scope: scope.id}}
	scope.owner.register(ret, &ret.Base)
	return ret
}

// SetActivity installs the handler activity; it must be parented to the handler's scope.
func (h *TerminationHandler) SetActivity(a Activity) error {
	if err := h.owner.mutable(); err != nil {
		return err
	}
	if a.Owner() != h.owner {
		return ErrForeignOwner
	}
	if a.ParentID() != h.scope {
		return fmt.Errorf("termination activity %s is not parented to scope %d", a.Name(), h.scope)
	}
	if h.activity != nil {
		return fmt.Errorf("termination activity: %w", ErrDuplicate)
	}
	h.activity = a
	return nil
}

// Activity returns the handler activity.
func (h *TerminationHandler) Activity() Activity {
	return h.activity
}

func (h *TerminationHandler) visit(fn func(Node)) {
	if h.activity != nil {
		fn(h.activity)
	}
}

func (h *TerminationHandler) record() *NodeRecord {
	r := h.newRecord(KindTerminationHandler)
	r.Parent, r.Activity = h.scope, idOf(h.activity)
	return r
}

func (h *TerminationHandler) link(r *NodeRecord, d *decoder) (err error) {
	h.scope = r.Parent
	h.activity, err = ref[Activity](d, r.Activity)
	return err
}

// EventHandler holds the message and alarm events a scope reacts to while active.
type EventHandler struct {
	handler
	events []*OnEvent
	alarms []*OnAlarm
}

// NewEventHandler creates an event handler for scope.
func NewEventHandler(scope *Scope) *EventHandler {
	ret := &EventHandler{handler: handler{scope: scope.id}}
	scope.owner.register(ret, &ret.Base)
	return ret
}

// AddEvent registers a message event with a fresh body scope.
func (h *EventHandler) AddEvent(partnerLink, operation, variable string, opts ...ScopeOption) (*OnEvent, error) {
	if err := h.owner.mutable(); err != nil {
		return nil, err
	}
	body := NewScope(h.owner, h.parent(), "onEvent:"+operation, append([]ScopeOption{Implicit()}, opts...)...)
	e := &OnEvent{PartnerLink: partnerLink, Operation: operation, Variable: variable, body: body}
	h.owner.register(e, &e.Base)
	h.events = append(h.events, e)
	return e, nil
}

// AddAlarm registers an alarm; at least one of forExpr and untilExpr is expected.
func (h *EventHandler) AddAlarm(forExpr, untilExpr, repeatEvery *Expression) (*OnAlarm, error) {
	if err := h.owner.mutable(); err != nil {
		return nil, err
	}
	for _, expr := range []*Expression{forExpr, untilExpr, repeatEvery} {
		if expr != nil && expr.owner != h.owner {
			return nil, ErrForeignOwner
		}
	}
	a := &OnAlarm{forExpr: forExpr, untilExpr: untilExpr, repeatEvery: repeatEvery, scope: h.scope}
	h.owner.register(a, &a.Base)
	h.alarms = append(h.alarms, a)
	return a, nil
}

// Events returns the message events.
func (h *EventHandler) Events() []*OnEvent {
	return append([]*OnEvent(nil), h.events...)
}

// Alarms returns the alarm events.
func (h *EventHandler) Alarms() []*OnAlarm {
	return append([]*OnAlarm(nil), h.alarms...)
}

func (h *EventHandler) visit(fn func(Node)) {
	for _, e := range h.events {
		fn(e)
	}
	for _, a := range h.alarms {
		fn(a)
	}
}

func (h *EventHandler) record() *NodeRecord {
	r := h.newRecord(KindEventHandler)
	r.Parent = h.scope
	for _, e := range h.events {
		r.Children = append(r.Children, e.id)
	}
	for _, a := range h.alarms {
		r.Alarms = append(r.Alarms, a.id)
	}
	return r
}

func (h *EventHandler) link(r *NodeRecord, d *decoder) error {
	h.scope = r.Parent
	for _, id := range r.Children {
		e, err := ref[*OnEvent](d, id)
		if err != nil {
			return err
		}
		h.events = append(h.events, e)
	}
	for _, id := range r.Alarms {
		a, err := ref[*OnAlarm](d, id)
		if err != nil {
			return err
		}
		h.alarms = append(h.alarms, a)
	}
	return nil
}

// OnEvent handles an inbound message while the scope is active.
type OnEvent struct {
	Base
	PartnerLink string
	Operation   string
	Variable    string
	body        *Scope
}

// Body returns the scope executed for each message.
func (e *OnEvent) Body() *Scope {
	return e.body
}

func (e *OnEvent) visit(fn func(Node)) {
	if e.body != nil {
		fn(e.body)
	}
}

func (e *OnEvent) record() *NodeRecord {
	r := e.newRecord(KindOnEvent)
	r.PartnerLinkName, r.Operation, r.VariableName, r.Scope = e.PartnerLink, e.Operation, e.Variable, scopeID(e.body)
	return r
}

func (e *OnEvent) link(r *NodeRecord, d *decoder) (err error) {
	e.PartnerLink, e.Operation, e.Variable = r.PartnerLinkName, r.Operation, r.VariableName
	e.body, err = ref[*Scope](d, r.Scope)
	return err
}

// OnAlarm fires an activity after a duration or at a deadline.
type OnAlarm struct {
	Base
	scope       ID
	forExpr     *Expression
	untilExpr   *Expression
	repeatEvery *Expression
	activity    Activity
}

// For returns the duration expression, if any.
func (a *OnAlarm) For() *Expression {
	return a.forExpr
}

// Until returns the deadline expression, if any.
func (a *OnAlarm) Until() *Expression {
	return a.untilExpr
}

// RepeatEvery returns the repetition expression, if any.
func (a *OnAlarm) RepeatEvery() *Expression {
	return a.repeatEvery
}

// SetActivity installs the alarm activity; it must be parented to the handler's scope.
func (a *OnAlarm) SetActivity(act Activity) error {
	if err := a.owner.mutable(); err != nil {
		return err
	}
	if act.Owner() != a.owner {
		return ErrForeignOwner
	}
	if act.ParentID() != a.scope {
		return fmt.Errorf("alarm activity %s is not parented to scope %d", act.Name(), a.scope)
	}
	if a.activity != nil {
		return fmt.Errorf("alarm activity: %w", ErrDuplicate)
	}
	a.activity = act
	return nil
}

// Activity returns the alarm activity.
func (a *OnAlarm) Activity() Activity {
	return a.activity
}

func (a *OnAlarm) visit(fn func(Node)) {
	for _, expr := range []*Expression{a.forExpr, a.untilExpr, a.repeatEvery} {
		if expr != nil {
			fn(expr)
		}
	}
	if a.activity != nil {
		fn(a.activity)
	}
}

func (a *OnAlarm) record() *NodeRecord {
	r := a.newRecord(KindOnAlarm)
	r.Parent = a.scope
	r.For, r.Until, r.RepeatEvery = expressionID(a.forExpr), expressionID(a.untilExpr), expressionID(a.repeatEvery)
	r.Activity = idOf(a.activity)
	return r
}

func (a *OnAlarm) link(r *NodeRecord, d *decoder) (err error) {
	a.scope = r.Parent
	if a.forExpr, err = ref[*Expression](d, r.For); err != nil {
		return err
	}
	if a.untilExpr, err = ref[*Expression](d, r.Until); err != nil {
		return err
	}
	if a.repeatEvery, err = ref[*Expression](d, r.RepeatEvery); err != nil {
		return err
	}
	a.activity, err = ref[Activity](d, r.Activity)
	return err
}
