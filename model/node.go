package model

// ID identifies a node within its owning process. Identities are assigned
// once, in increasing order, and survive encode/decode round trips. The zero
// value means "no node".
type ID int

// Kind names the concrete type of a node in its durable form.
type Kind string

const (
	KindScope               Kind = "scope"
	KindSequence            Kind = "sequence"
	KindFlow                Kind = "flow"
	KindEmpty               Kind = "empty"
	KindForEach             Kind = "forEach"
	KindCompletionCondition Kind = "completionCondition"
	KindVariable            Kind = "variable"
	KindCorrelationSet      Kind = "correlationSet"
	KindPartnerLink         Kind = "partnerLink"
	KindProperty            Kind = "property"
	KindExpression          Kind = "expression"
	KindMessageType         Kind = "messageType"
	KindElementType         Kind = "elementType"
	KindXsdType             Kind = "xsdType"
	KindConstantType        Kind = "constantType"
	KindFaultHandler        Kind = "faultHandler"
	KindCatch               Kind = "catch"
	KindCompensationHandler Kind = "compensationHandler"
	KindTerminationHandler  Kind = "terminationHandler"
	KindEventHandler        Kind = "eventHandler"
	KindOnEvent             Kind = "onEvent"
	KindOnAlarm             Kind = "onAlarm"
)

// Node is implemented by every element of a compiled process.
type Node interface {
	// NodeID returns the process-unique identity of the node.
	NodeID() ID
	// Owner returns the process the node belongs to.
	Owner() *Process

	record() *NodeRecord
	link(r *NodeRecord, d *decoder) error
}

// Base carries the identity and ownership shared by every node. The owner is
// a back-reference: the process owns its nodes, never the other way round.
type Base struct {
	id    ID
	owner *Process
}

// NodeID returns the node identity.
func (b *Base) NodeID() ID {
	return b.id
}

// Owner returns the owning process.
func (b *Base) Owner() *Process {
	return b.owner
}

func (b *Base) newRecord(kind Kind) *NodeRecord {
	return &NodeRecord{ID: b.id, Kind: kind}
}

// container is implemented by nodes that exclusively own other nodes.
type container interface {
	visit(fn func(Node))
}

// Same reports whether two nodes share an identity within the same process.
func Same(a, b Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Owner() == b.Owner() && a.NodeID() == b.NodeID()
}
