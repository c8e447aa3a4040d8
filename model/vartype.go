package model

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/beevik/etree"
)

// VarType produces fresh value instances for variables of that type.
type VarType interface {
	Node
	NewInstance() *etree.Element
}

const (
	simpleTypeWrapper  = "temporary-simple-type-wrapper"
	complexTypeWrapper = "xsd-complex-type-wrapper"
)

// MessageVarType is the type of a WSDL message variable.
type MessageVarType struct {
	Base
	MessageType string
	Parts       []string
}

// NewMessageVarType creates a message type with the given part names.
func NewMessageVarType(owner *Process, messageType string, parts ...string) *MessageVarType {
	ret := &MessageVarType{MessageType: messageType, Parts: append([]string(nil), parts...)}
	owner.register(ret, &ret.Base)
	return ret
}

// NewInstance returns an empty message with one element per part.
func (m *MessageVarType) NewInstance() *etree.Element {
	message := etree.NewElement("message")
	for _, part := range m.Parts {
		message.CreateElement(part)
	}
	return message
}

func (m *MessageVarType) String() string {
	return "message:" + m.MessageType
}

func (m *MessageVarType) record() *NodeRecord {
	r := m.newRecord(KindMessageType)
	r.Name, r.Parts = m.MessageType, append([]string(nil), m.Parts...)
	return r
}

func (m *MessageVarType) link(r *NodeRecord, _ *decoder) error {
	m.MessageType, m.Parts = r.Name, append([]string(nil), r.Parts...)
	return nil
}

// ElementVarType is the type of a variable holding a schema element.
type ElementVarType struct {
	Base
	// Element is the element QName in {namespace}local form.
	Element string
}

// NewElementVarType creates an element type.
func NewElementVarType(owner *Process, element string) *ElementVarType {
	ret := &ElementVarType{Element: element}
	owner.register(ret, &ret.Base)
	return ret
}

// NewInstance returns an empty element with the declared name.
func (e *ElementVarType) NewInstance() *etree.Element {
	namespace, local := splitQName(e.Element)
	element := etree.NewElement(local)
	if namespace != "" {
		element.CreateAttr("xmlns", namespace)
	}
	return element
}

func (e *ElementVarType) String() string {
	return "element:" + e.Element
}

func (e *ElementVarType) record() *NodeRecord {
	r := e.newRecord(KindElementType)
	r.Name = e.Element
	return r
}

func (e *ElementVarType) link(r *NodeRecord, _ *decoder) error {
	e.Element = r.Name
	return nil
}

// XsdTypeVarType is the type of a variable declared with an XML schema type.
type XsdTypeVarType struct {
	Base
	XsdType string
	Simple  bool
}

// NewXsdTypeVarType creates a schema type.
func NewXsdTypeVarType(owner *Process, xsdType string, simple bool) *XsdTypeVarType {
	ret := &XsdTypeVarType{XsdType: xsdType, Simple: simple}
	owner.register(ret, &ret.Base)
	return ret
}

// NewInstance returns an empty wrapper element for the value.
func (x *XsdTypeVarType) NewInstance() *etree.Element {
	if x.Simple {
		return etree.NewElement(simpleTypeWrapper)
	}
	return etree.NewElement(complexTypeWrapper)
}

func (x *XsdTypeVarType) String() string {
	return "xsd:" + x.XsdType
}

func (x *XsdTypeVarType) record() *NodeRecord {
	r := x.newRecord(KindXsdType)
	r.XsdType, r.Simple = x.XsdType, x.Simple
	return r
}

func (x *XsdTypeVarType) link(r *NodeRecord, _ *decoder) error {
	x.XsdType, x.Simple = r.XsdType, r.Simple
	return nil
}

// ConstantVarType is the type of a literal value. Only the serialized literal
// is durable; the parsed element is materialized on first use and cached.
type ConstantVarType struct {
	Base
	literal string
	value   atomic.Pointer[etree.Element]
}

// NewConstantVarType serializes value and creates a constant type for it.
func NewConstantVarType(owner *Process, value *etree.Element) (*ConstantVarType, error) {
	doc := etree.NewDocument()
	doc.SetRoot(value.Copy())
	literal, err := doc.WriteToString()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize constant: %w", err)
	}
	return NewConstantVarTypeFromLiteral(owner, literal)
}

// NewConstantVarTypeFromLiteral creates a constant type from its serialized
// form. The literal is parsed once here so that later materialization cannot
// fail on valid input.
func NewConstantVarTypeFromLiteral(owner *Process, literal string) (*ConstantVarType, error) {
	if _, err := parseLiteral(literal); err != nil {
		return nil, err
	}
	ret := &ConstantVarType{literal: literal}
	owner.register(ret, &ret.Base)
	return ret, nil
}

// Literal returns the serialized value.
func (c *ConstantVarType) Literal() string {
	return c.literal
}

// Cached reports whether the parsed value has been materialized.
func (c *ConstantVarType) Cached() bool {
	return c.value.Load() != nil
}

// Value returns the parsed literal, parsing and caching it on first use.
// Every caller observes the same element and must not modify it. A literal
// that stops parsing is a consistency fault and panics.
func (c *ConstantVarType) Value() *etree.Element {
	if value := c.value.Load(); value != nil {
		return value
	}
	value, err := parseLiteral(c.literal)
	if err != nil {
		panic(&ConsistencyError{Node: c.id, Reason: "constant literal no longer parses", Err: err})
	}
	c.value.CompareAndSwap(nil, value)
	return c.value.Load()
}

// NewInstance returns a private copy of the constant value.
func (c *ConstantVarType) NewInstance() *etree.Element {
	return c.Value().Copy()
}

func (c *ConstantVarType) String() string {
	return "constant"
}

func (c *ConstantVarType) record() *NodeRecord {
	r := c.newRecord(KindConstantType)
	r.Literal = c.literal
	return r
}

func (c *ConstantVarType) link(r *NodeRecord, _ *decoder) error {
	if _, err := parseLiteral(r.Literal); err != nil {
		return fmt.Errorf("constant %d: %w", r.ID, err)
	}
	c.literal = r.Literal
	return nil
}

func parseLiteral(literal string) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(literal); err != nil {
		return nil, fmt.Errorf("invalid literal: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("invalid literal: no root element")
	}
	return root, nil
}

// splitQName splits {namespace}local into its parts.
func splitQName(qname string) (string, string) {
	if strings.HasPrefix(qname, "{") {
		if end := strings.Index(qname, "}"); end > 0 {
			return qname[1:end], qname[end+1:]
		}
	}
	return "", qname
}
