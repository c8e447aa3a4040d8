package model

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/viant/obpel/internal/idgen"
)

// Dehydrator is implemented by definitions that can release their bulky
// subtrees on demand and later be told apart from fully loaded ones. The
// definition cache drives it; reloading is the job of a separate loader.
type Dehydrator interface {
	Dehydrate()
	Dehydrated() bool
}

// Process is a compiled process definition. It exclusively owns every node
// registered with it and keeps them in an arena indexed by node identity, so
// back-references between nodes are plain identifiers.
//
// A process is built by the compiler, sealed once, then shared read-only
// between process instances. The only mutation after sealing is dehydration.
type Process struct {
	GUID            string
	Name            string
	TargetNamespace string
	Version         int

	mu         sync.Mutex
	nodes      atomic.Pointer[[]Node]
	root       *Scope
	properties map[string]*Property
	sealed     atomic.Bool
	released   atomic.Bool
	disposed   atomic.Bool
}

var _ Dehydrator = (*Process)(nil)

// NewProcess creates an empty, unsealed process definition.
func NewProcess(name, targetNamespace string, version int) *Process {
	p := &Process{
		GUID:            idgen.New(),
		Name:            name,
		TargetNamespace: targetNamespace,
		Version:         version,
		properties:      map[string]*Property{},
	}
	p.adopt([]Node{nil})
	return p
}

// DefinitionID returns the cache/store key of a process definition.
func DefinitionID(targetNamespace, name string, version int) string {
	if targetNamespace == "" {
		return fmt.Sprintf("%s-%d", name, version)
	}
	return fmt.Sprintf("{%s}%s-%d", targetNamespace, name, version)
}

// ID returns the definition key used by stores and caches.
func (p *Process) ID() string {
	return DefinitionID(p.TargetNamespace, p.Name, p.Version)
}

func (p *Process) adopt(nodes []Node) {
	p.nodes.Store(&nodes)
}

func (p *Process) snapshot() []Node {
	if ptr := p.nodes.Load(); ptr != nil {
		return *ptr
	}
	return nil
}

// register assigns the next identity to n and stores it in the arena.
// Constructing a node after the process has been sealed is a compiler defect.
func (p *Process) register(n Node, b *Base) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sealed.Load() {
		panic(&ConsistencyError{Reason: fmt.Sprintf("%T constructed after seal", n)})
	}
	nodes := p.snapshot()
	b.id = ID(len(nodes))
	b.owner = p
	nodes = append(nodes, n)
	p.nodes.Store(&nodes)
}

// releaseLocked drops the given identities from the arena. The arena is
// copied so readers holding the previous snapshot are unaffected.
func (p *Process) releaseLocked(ids []ID) {
	if len(ids) == 0 {
		return
	}
	current := p.snapshot()
	next := make([]Node, len(current))
	copy(next, current)
	for _, id := range ids {
		if id > 0 && int(id) < len(next) {
			next[id] = nil
		}
	}
	p.nodes.Store(&next)
}

// Node returns the live node with the supplied identity, or nil.
func (p *Process) Node(id ID) Node {
	nodes := p.snapshot()
	if id <= 0 || int(id) >= len(nodes) {
		return nil
	}
	return nodes[id]
}

// Nodes returns the live nodes ordered by identity.
func (p *Process) Nodes() []Node {
	nodes := p.snapshot()
	result := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			result = append(result, n)
		}
	}
	return result
}

// LiveNodes returns the number of nodes currently held in memory.
func (p *Process) LiveNodes() int {
	count := 0
	for _, n := range p.snapshot() {
		if n != nil {
			count++
		}
	}
	return count
}

func (p *Process) mutable() error {
	if p.sealed.Load() {
		return ErrSealed
	}
	return nil
}

// SetRoot installs the process scope. It can only be set once.
func (p *Process) SetRoot(s *Scope) error {
	if err := p.mutable(); err != nil {
		return err
	}
	if s.owner != p {
		return ErrForeignOwner
	}
	if s.parent != 0 {
		return fmt.Errorf("root scope %v has a parent: %w", s, ErrDuplicate)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.root != nil {
		return fmt.Errorf("root scope: %w", ErrDuplicate)
	}
	p.root = s
	return nil
}

// Root returns the process scope.
func (p *Process) Root() *Scope {
	return p.root
}

// DeclareProperty registers a process-wide correlation property.
func (p *Process) DeclareProperty(name, xsdType string) (*Property, error) {
	if err := p.mutable(); err != nil {
		return nil, err
	}
	if _, ok := p.properties[name]; ok {
		return nil, fmt.Errorf("property %s: %w", name, ErrDuplicate)
	}
	prop := &Property{Name: name, Type: xsdType}
	p.register(prop, &prop.Base)
	p.properties[name] = prop
	return prop, nil
}

// Property returns a process-wide property by name.
func (p *Process) Property(name string) (*Property, bool) {
	prop, ok := p.properties[name]
	return prop, ok
}

// Properties returns the process-wide properties ordered by name.
func (p *Process) Properties() []*Property {
	result := make([]*Property, 0, len(p.properties))
	for _, prop := range p.properties {
		result = append(result, prop)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Seal ends the population phase: every scope publishes its declarations as
// immutable snapshots and any further construction or declaration fails.
// Sealing twice is a no-op.
func (p *Process) Seal() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sealed.Load() {
		return nil
	}
	if p.root == nil {
		return ErrNoRoot
	}
	for _, n := range p.snapshot() {
		if s, ok := n.(*Scope); ok {
			s.seal()
		}
	}
	p.sealed.Store(true)
	return nil
}

// Sealed reports whether the population phase is over.
func (p *Process) Sealed() bool {
	return p.sealed.Load()
}

// Dehydrate releases the whole scope tree below the process scope.
func (p *Process) Dehydrate() {
	if root := p.root; root != nil {
		root.Dehydrate()
	}
}

// Dehydrated reports whether the process scope has been released.
func (p *Process) Dehydrated() bool {
	root := p.root
	return root != nil && root.Dehydrated()
}

// PartiallyDehydrated reports whether any scope of the tree, nested ones
// included, has been released. A partially released tree is no longer a
// faithful image of its durable record.
func (p *Process) PartiallyDehydrated() bool {
	return p.released.Load()
}

// Dispose marks the definition as evicted. The tree is released as well.
func (p *Process) Dispose() {
	p.Dehydrate()
	p.disposed.Store(true)
}

// Disposed reports whether the definition has been evicted.
func (p *Process) Disposed() bool {
	return p.disposed.Load()
}

func (p *Process) String() string {
	return fmt.Sprintf("{Process %s guid=%s}", p.ID(), p.GUID)
}
