package model

import (
	"fmt"
	"strings"
)

// ExternalBinding ties a variable to storage outside the process instance.
type ExternalBinding struct {
	ExternalID string `json:"externalId"`
	Related    string `json:"related,omitempty"`
}

// Variable is a variable declared in a scope.
type Variable struct {
	Base
	name     string
	scope    ID
	varType  VarType
	external *ExternalBinding
}

// Name returns the variable name.
func (v *Variable) Name() string {
	return v.name
}

// Type returns the variable type.
func (v *Variable) Type() VarType {
	return v.varType
}

// DeclaringScopeID returns the identity of the declaring scope.
func (v *Variable) DeclaringScopeID() ID {
	return v.scope
}

// DeclaringScope returns the declaring scope, nil once released.
func (v *Variable) DeclaringScope() *Scope {
	scope, _ := v.owner.Node(v.scope).(*Scope)
	return scope
}

// External returns the external binding, nil for a variable stored with the
// process instance.
func (v *Variable) External() *ExternalBinding {
	return v.external
}

// BindExternal externalizes the variable storage.
func (v *Variable) BindExternal(binding ExternalBinding) error {
	if err := v.owner.mutable(); err != nil {
		return err
	}
	v.external = &binding
	return nil
}

// Description renders the variable as scope.variable.
func (v *Variable) Description() string {
	scopeName := "?"
	if scope := v.DeclaringScope(); scope != nil {
		scopeName = scope.name
	}
	return scopeName + "." + v.name
}

func (v *Variable) String() string {
	return fmt.Sprintf("{Variable %s:%v}", v.Description(), v.varType)
}

func (v *Variable) visit(fn func(Node)) {
	if v.varType != nil {
		fn(v.varType)
	}
}

func (v *Variable) record() *NodeRecord {
	r := v.newRecord(KindVariable)
	r.Name, r.Parent = v.name, v.scope
	r.Type = idOf(v.varType)
	if v.external != nil {
		binding := *v.external
		r.External = &binding
	}
	return r
}

func (v *Variable) link(r *NodeRecord, d *decoder) (err error) {
	v.name, v.scope = r.Name, r.Parent
	if v.varType, err = ref[VarType](d, r.Type); err != nil {
		return err
	}
	if r.External != nil {
		binding := *r.External
		v.external = &binding
	}
	return nil
}

// Property is a process-wide correlation property.
type Property struct {
	Base
	Name string
	Type string
}

func (p *Property) String() string {
	return p.Name
}

func (p *Property) record() *NodeRecord {
	r := p.newRecord(KindProperty)
	r.Name, r.XsdType = p.Name, p.Type
	return r
}

func (p *Property) link(r *NodeRecord, _ *decoder) error {
	p.Name, p.Type = r.Name, r.XsdType
	return nil
}

// CorrelationSet is a named group of properties used to route related
// messages to the same process instance.
type CorrelationSet struct {
	Base
	name       string
	scope      ID
	properties []*Property
	join       bool
}

// Name returns the correlation set name.
func (c *CorrelationSet) Name() string {
	return c.name
}

// DeclaringScope returns the declaring scope, nil once released.
func (c *CorrelationSet) DeclaringScope() *Scope {
	scope, _ := c.owner.Node(c.scope).(*Scope)
	return scope
}

// Properties returns the property references in declaration order.
func (c *CorrelationSet) Properties() []*Property {
	return append([]*Property(nil), c.properties...)
}

// HasJoinUseCases reports whether some correlation use in the process joins
// on this set.
func (c *CorrelationSet) HasJoinUseCases() bool {
	return c.join
}

// MarkJoinUseCase records that a correlation use joins on this set.
func (c *CorrelationSet) MarkJoinUseCase() error {
	if err := c.owner.mutable(); err != nil {
		return err
	}
	c.join = true
	return nil
}

func (c *CorrelationSet) String() string {
	names := make([]string, len(c.properties))
	for i, prop := range c.properties {
		names[i] = prop.Name
	}
	return fmt.Sprintf("{CSet %s [%s]}", c.name, strings.Join(names, ", "))
}

func (c *CorrelationSet) record() *NodeRecord {
	r := c.newRecord(KindCorrelationSet)
	r.Name, r.Parent, r.Join = c.name, c.scope, c.join
	for _, prop := range c.properties {
		r.Properties = append(r.Properties, prop.id)
	}
	return r
}

func (c *CorrelationSet) link(r *NodeRecord, d *decoder) error {
	c.name, c.scope, c.join = r.Name, r.Parent, r.Join
	for _, id := range r.Properties {
		prop, err := ref[*Property](d, id)
		if err != nil {
			return err
		}
		c.properties = append(c.properties, prop)
	}
	return nil
}

// PartnerLink is a partner link declared in a scope.
type PartnerLink struct {
	Base
	name                  string
	scope                 ID
	LinkType              string
	MyRole                string
	PartnerRole           string
	InitializePartnerRole bool
}

// Name returns the partner link name.
func (p *PartnerLink) Name() string {
	return p.name
}

// DeclaringScope returns the declaring scope, nil once released.
func (p *PartnerLink) DeclaringScope() *Scope {
	scope, _ := p.owner.Node(p.scope).(*Scope)
	return scope
}

func (p *PartnerLink) String() string {
	return fmt.Sprintf("{PartnerLink %s type=%s}", p.name, p.LinkType)
}

func (p *PartnerLink) record() *NodeRecord {
	r := p.newRecord(KindPartnerLink)
	r.Name, r.Parent = p.name, p.scope
	r.LinkType, r.MyRole, r.PartnerRole = p.LinkType, p.MyRole, p.PartnerRole
	r.InitializePartnerRole = p.InitializePartnerRole
	return r
}

func (p *PartnerLink) link(r *NodeRecord, _ *decoder) error {
	p.name, p.scope = r.Name, r.Parent
	p.LinkType, p.MyRole, p.PartnerRole = r.LinkType, r.MyRole, r.PartnerRole
	p.InitializePartnerRole = r.InitializePartnerRole
	return nil
}

// Expression is an expression in some expression language. It is carried
// verbatim; evaluating it is the runtime's job.
type Expression struct {
	Base
	Language string
	Text     string
}

// NewExpression creates an expression node.
func NewExpression(owner *Process, language, text string) *Expression {
	ret := &Expression{Language: language, Text: text}
	owner.register(ret, &ret.Base)
	return ret
}

func (e *Expression) String() string {
	return e.Text
}

func (e *Expression) record() *NodeRecord {
	r := e.newRecord(KindExpression)
	r.Language, r.Text = e.Language, e.Text
	return r
}

func (e *Expression) link(r *NodeRecord, _ *decoder) error {
	e.Language, e.Text = r.Language, r.Text
	return nil
}
