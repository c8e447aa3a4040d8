package model

import (
	"fmt"

	"github.com/viant/obpel/internal/idgen"
	"go.uber.org/multierr"
)

// Document is the durable form of a process definition: process attributes
// and a flat list of node records that reference each other by identity.
// Transient state such as parsed constant values is never part of it.
type Document struct {
	GUID            string        `json:"guid" yaml:"guid"`
	ID              string        `json:"id" yaml:"id"`
	Name            string        `json:"name" yaml:"name"`
	TargetNamespace string        `json:"targetNamespace,omitempty" yaml:"targetNamespace,omitempty"`
	Version         int           `json:"version" yaml:"version"`
	Root            ID            `json:"root" yaml:"root"`
	Nodes           []*NodeRecord `json:"nodes" yaml:"nodes"`
}

// NodeRecord is the durable form of one node. Only the fields meaningful for
// Kind are set.
type NodeRecord struct {
	ID     ID     `json:"id" yaml:"id"`
	Kind   Kind   `json:"kind" yaml:"kind"`
	Parent ID     `json:"parent,omitempty" yaml:"parent,omitempty"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`

	Atomic              bool `json:"atomic,omitempty" yaml:"atomic,omitempty"`
	Isolated            bool `json:"isolated,omitempty" yaml:"isolated,omitempty"`
	Implicit            bool `json:"implicit,omitempty" yaml:"implicit,omitempty"`
	Activity            ID   `json:"activity,omitempty" yaml:"activity,omitempty"`
	FaultHandler        ID   `json:"faultHandler,omitempty" yaml:"faultHandler,omitempty"`
	CompensationHandler ID   `json:"compensationHandler,omitempty" yaml:"compensationHandler,omitempty"`
	TerminationHandler  ID   `json:"terminationHandler,omitempty" yaml:"terminationHandler,omitempty"`
	EventHandler        ID   `json:"eventHandler,omitempty" yaml:"eventHandler,omitempty"`
	Variables           []ID `json:"variables,omitempty" yaml:"variables,omitempty"`
	CorrelationSets     []ID `json:"correlationSets,omitempty" yaml:"correlationSets,omitempty"`
	PartnerLinks        []ID `json:"partnerLinks,omitempty" yaml:"partnerLinks,omitempty"`
	Compensatable       []ID `json:"compensatable,omitempty" yaml:"compensatable,omitempty"`
	Children            []ID `json:"children,omitempty" yaml:"children,omitempty"`
	Alarms              []ID `json:"alarms,omitempty" yaml:"alarms,omitempty"`
	Scope               ID   `json:"scope,omitempty" yaml:"scope,omitempty"`

	Type       ID               `json:"type,omitempty" yaml:"type,omitempty"`
	External   *ExternalBinding `json:"external,omitempty" yaml:"external,omitempty"`
	Properties []ID             `json:"properties,omitempty" yaml:"properties,omitempty"`
	Join       bool             `json:"join,omitempty" yaml:"join,omitempty"`

	LinkType              string `json:"linkType,omitempty" yaml:"linkType,omitempty"`
	MyRole                string `json:"myRole,omitempty" yaml:"myRole,omitempty"`
	PartnerRole           string `json:"partnerRole,omitempty" yaml:"partnerRole,omitempty"`
	InitializePartnerRole bool   `json:"initializePartnerRole,omitempty" yaml:"initializePartnerRole,omitempty"`

	XsdType  string   `json:"xsdType,omitempty" yaml:"xsdType,omitempty"`
	Simple   bool     `json:"simple,omitempty" yaml:"simple,omitempty"`
	Parts    []string `json:"parts,omitempty" yaml:"parts,omitempty"`
	Literal  string   `json:"literal,omitempty" yaml:"literal,omitempty"`
	Language string   `json:"language,omitempty" yaml:"language,omitempty"`
	Text     string   `json:"text,omitempty" yaml:"text,omitempty"`

	FaultName       string `json:"faultName,omitempty" yaml:"faultName,omitempty"`
	FaultVariable   string `json:"faultVariable,omitempty" yaml:"faultVariable,omitempty"`
	PartnerLinkName string `json:"partnerLink,omitempty" yaml:"partnerLink,omitempty"`
	Operation       string `json:"operation,omitempty" yaml:"operation,omitempty"`
	VariableName    string `json:"variable,omitempty" yaml:"variable,omitempty"`
	For             ID     `json:"for,omitempty" yaml:"for,omitempty"`
	Until           ID     `json:"until,omitempty" yaml:"until,omitempty"`
	RepeatEvery     ID     `json:"repeatEvery,omitempty" yaml:"repeatEvery,omitempty"`

	Parallel       bool `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	Counter        ID   `json:"counter,omitempty" yaml:"counter,omitempty"`
	Start          ID   `json:"start,omitempty" yaml:"start,omitempty"`
	Final          ID   `json:"final,omitempty" yaml:"final,omitempty"`
	Completion     ID   `json:"completion,omitempty" yaml:"completion,omitempty"`
	BranchCount    ID   `json:"branchCount,omitempty" yaml:"branchCount,omitempty"`
	SuccessfulOnly bool `json:"successfulOnly,omitempty" yaml:"successfulOnly,omitempty"`
}

// references lists every identity the record points at.
func (r *NodeRecord) references() []ID {
	refs := []ID{
		r.Parent, r.Activity, r.FaultHandler, r.CompensationHandler, r.TerminationHandler,
		r.EventHandler, r.Scope, r.Type, r.For, r.Until, r.RepeatEvery,
		r.Counter, r.Start, r.Final, r.Completion, r.BranchCount,
	}
	for _, ids := range [][]ID{r.Variables, r.CorrelationSets, r.PartnerLinks, r.Compensatable, r.Children, r.Alarms, r.Properties} {
		refs = append(refs, ids...)
	}
	return refs
}

// Validate checks that identities are unique, the root is a scope and every
// reference points at a record of the document.
func (d *Document) Validate() error {
	var err error
	if d.Name == "" {
		err = multierr.Append(err, fmt.Errorf("%w: name was empty", ErrInvalidDocument))
	}
	if d.GUID != "" && !idgen.Valid(d.GUID) {
		err = multierr.Append(err, fmt.Errorf("%w: malformed guid %q", ErrInvalidDocument, d.GUID))
	}
	kinds := make(map[ID]Kind, len(d.Nodes))
	for i, r := range d.Nodes {
		if r == nil {
			err = multierr.Append(err, fmt.Errorf("%w: node[%d] was nil", ErrInvalidDocument, i))
			continue
		}
		if r.ID <= 0 || int(r.ID) > len(d.Nodes) {
			err = multierr.Append(err, fmt.Errorf("%w: node[%d] has invalid id %d", ErrInvalidDocument, i, r.ID))
			continue
		}
		if _, ok := kinds[r.ID]; ok {
			err = multierr.Append(err, fmt.Errorf("%w: duplicate node id %d", ErrInvalidDocument, r.ID))
			continue
		}
		if newNode(r.Kind) == nil {
			err = multierr.Append(err, fmt.Errorf("%w: node %d has unknown kind %q", ErrInvalidDocument, r.ID, r.Kind))
		}
		kinds[r.ID] = r.Kind
	}
	switch kind, ok := kinds[d.Root]; {
	case d.Root == 0:
		err = multierr.Append(err, ErrNoRoot)
	case !ok:
		err = multierr.Append(err, fmt.Errorf("%w: root %d is not a node", ErrInvalidDocument, d.Root))
	case kind != KindScope:
		err = multierr.Append(err, fmt.Errorf("%w: root %d is a %s", ErrInvalidDocument, d.Root, kind))
	}
	for _, r := range d.Nodes {
		if r == nil {
			continue
		}
		for _, id := range r.references() {
			if id == 0 {
				continue
			}
			if _, ok := kinds[id]; !ok {
				err = multierr.Append(err, fmt.Errorf("%w: node %d references unknown node %d", ErrInvalidDocument, r.ID, id))
			}
		}
	}
	return err
}

// Encode captures the durable form of a sealed or unsealed process. A
// process with any released scope no longer holds its full subtree and cannot
// be encoded; its durable form is the one written before it was released.
func Encode(p *Process) (*Document, error) {
	if p.root == nil {
		return nil, fmt.Errorf("encode %s: %w", p.ID(), ErrNoRoot)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	doc := &Document{
		GUID:            p.GUID,
		ID:              p.ID(),
		Name:            p.Name,
		TargetNamespace: p.TargetNamespace,
		Version:         p.Version,
		Root:            p.root.id,
	}
	for _, n := range p.snapshot() {
		if n == nil {
			continue
		}
		if s, ok := n.(*Scope); ok && s.Dehydrated() {
			return nil, fmt.Errorf("encode %s: scope %s: %w", p.ID(), s.Name(), ErrDehydrated)
		}
		doc.Nodes = append(doc.Nodes, n.record())
	}
	return doc, nil
}

// decoder resolves identities to freshly created nodes while a document is
// being linked.
type decoder struct {
	nodes   map[ID]Node
	records map[ID]*NodeRecord
}

// name returns the declared name of the record with the supplied identity.
func (d *decoder) name(id ID) string {
	if r, ok := d.records[id]; ok {
		return r.Name
	}
	return ""
}

// ref returns the node with the supplied identity as T. The zero identity
// yields the zero value.
func ref[T Node](d *decoder, id ID) (T, error) {
	var zero T
	if id == 0 {
		return zero, nil
	}
	n, ok := d.nodes[id]
	if !ok {
		return zero, fmt.Errorf("%w: unknown node %d", ErrInvalidDocument, id)
	}
	ret, ok := n.(T)
	if !ok {
		return zero, fmt.Errorf("%w: node %d is %T, expected %T", ErrInvalidDocument, id, n, zero)
	}
	return ret, nil
}

func newNode(kind Kind) Node {
	switch kind {
	case KindScope:
		return &Scope{}
	case KindSequence:
		return &Sequence{}
	case KindFlow:
		return &Flow{}
	case KindEmpty:
		return &Empty{}
	case KindForEach:
		return &ForEach{}
	case KindCompletionCondition:
		return &CompletionCondition{}
	case KindVariable:
		return &Variable{}
	case KindCorrelationSet:
		return &CorrelationSet{}
	case KindPartnerLink:
		return &PartnerLink{}
	case KindProperty:
		return &Property{}
	case KindExpression:
		return &Expression{}
	case KindMessageType:
		return &MessageVarType{}
	case KindElementType:
		return &ElementVarType{}
	case KindXsdType:
		return &XsdTypeVarType{}
	case KindConstantType:
		return &ConstantVarType{}
	case KindFaultHandler:
		return &FaultHandler{}
	case KindCatch:
		return &Catch{}
	case KindCompensationHandler:
		return &CompensationHandler{}
	case KindTerminationHandler:
		return &TerminationHandler{}
	case KindEventHandler:
		return &EventHandler{}
	case KindOnEvent:
		return &OnEvent{}
	case KindOnAlarm:
		return &OnAlarm{}
	}
	return nil
}

// base exposes the embedded Base of a node created by newNode.
func base(n Node) *Base {
	switch actual := n.(type) {
	case *Scope:
		return &actual.Base
	case *Sequence:
		return &actual.Base
	case *Flow:
		return &actual.Base
	case *Empty:
		return &actual.Base
	case *ForEach:
		return &actual.Base
	case *CompletionCondition:
		return &actual.Base
	case *Variable:
		return &actual.Base
	case *CorrelationSet:
		return &actual.Base
	case *PartnerLink:
		return &actual.Base
	case *Property:
		return &actual.Base
	case *Expression:
		return &actual.Base
	case *MessageVarType:
		return &actual.Base
	case *ElementVarType:
		return &actual.Base
	case *XsdTypeVarType:
		return &actual.Base
	case *ConstantVarType:
		return &actual.Base
	case *FaultHandler:
		return &actual.Base
	case *Catch:
		return &actual.Base
	case *CompensationHandler:
		return &actual.Base
	case *TerminationHandler:
		return &actual.Base
	case *EventHandler:
		return &actual.Base
	case *OnEvent:
		return &actual.Base
	case *OnAlarm:
		return &actual.Base
	}
	return nil
}

// Decode reconstructs a sealed process from its durable form. Node
// identities are preserved; constant values are parsed again on first use.
func Decode(doc *Document) (*Process, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	p := &Process{
		GUID:            doc.GUID,
		Name:            doc.Name,
		TargetNamespace: doc.TargetNamespace,
		Version:         doc.Version,
		properties:      map[string]*Property{},
	}
	d := &decoder{nodes: make(map[ID]Node, len(doc.Nodes)), records: make(map[ID]*NodeRecord, len(doc.Nodes))}
	maxID := ID(0)
	for _, r := range doc.Nodes {
		n := newNode(r.Kind)
		b := base(n)
		b.id, b.owner = r.ID, p
		d.nodes[r.ID] = n
		d.records[r.ID] = r
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	arena := make([]Node, maxID+1)
	for _, r := range doc.Nodes {
		n := d.nodes[r.ID]
		if err := n.link(r, d); err != nil {
			return nil, fmt.Errorf("decode %s node %d: %w", doc.ID, r.ID, err)
		}
		if prop, ok := n.(*Property); ok {
			p.properties[prop.Name] = prop
		}
		arena[r.ID] = n
	}
	p.adopt(arena)
	p.root = d.nodes[doc.Root].(*Scope)
	if err := p.Seal(); err != nil {
		return nil, err
	}
	return p, nil
}
