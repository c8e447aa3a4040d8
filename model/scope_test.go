package model

import (
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
	"testing"
)

func TestScope_ResolveVariable(t *testing.T) {
	f := newOrderFixture(t)

	var testCases = []struct {
		name          string
		from          *Scope
		variable      string
		expectOK      bool
		expectScopeID ID
	}{
		{name: "local declaration", from: f.iteration, variable: "i", expectOK: true, expectScopeID: f.iteration.NodeID()},
		{name: "inner shadows outer", from: f.iteration, variable: "status", expectOK: true, expectScopeID: f.inner.NodeID()},
		{name: "outer through foreach and sequence", from: f.iteration, variable: "order", expectOK: true, expectScopeID: f.root.NodeID()},
		{name: "outer from root", from: f.root, variable: "status", expectOK: true, expectScopeID: f.root.NodeID()},
		{name: "inner not visible from outer", from: f.root, variable: "i"},
		{name: "unknown", from: f.iteration, variable: "missing"},
		{name: "catch body sees owning scope", from: f.catch.Body(), variable: "status", expectOK: true, expectScopeID: f.inner.NodeID()},
		{name: "event body sees process scope", from: f.event.Body(), variable: "limit", expectOK: true, expectScopeID: f.root.NodeID()},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			actual, ok := testCase.from.ResolveVariable(testCase.variable)
			assert.Equal(t, testCase.expectOK, ok)
			if !testCase.expectOK {
				assert.Nil(t, actual)
				return
			}
			assert.Equal(t, testCase.variable, actual.Name())
			assert.Equal(t, testCase.expectScopeID, actual.DeclaringScopeID())
		})
	}
}

func TestScope_ResolvePartnerLinkAndCorrelationSet(t *testing.T) {
	f := newOrderFixture(t)

	link, ok := f.iteration.ResolvePartnerLink("client")
	assert.True(t, ok)
	assert.Equal(t, "ClientLT", link.LinkType)
	assert.Same(t, f.root, link.DeclaringScope())

	_, ok = f.iteration.ResolvePartnerLink("supplier")
	assert.False(t, ok)

	cs, ok := f.catch.Body().ResolveCorrelationSet("orderCS")
	assert.True(t, ok)
	assert.Equal(t, "{CSet orderCS [orderId]}", cs.String())

	_, ok = f.root.LocalPartnerLink("client")
	assert.True(t, ok)
	_, ok = f.inner.LocalPartnerLink("client")
	assert.False(t, ok)
}

func TestScope_EnclosingScope(t *testing.T) {
	f := newOrderFixture(t)
	assert.Nil(t, f.root.EnclosingScope())
	assert.Same(t, f.root, f.inner.EnclosingScope())
	assert.Same(t, f.inner, f.iteration.EnclosingScope())
	assert.Same(t, f.inner, f.catch.Body().EnclosingScope())
	assert.Same(t, f.loop, f.iteration.Parent())
}

func TestScope_AscentQueries(t *testing.T) {
	f := newOrderFixture(t)

	var testCases = []struct {
		name           string
		scope          *Scope
		expectAtomic   bool
		expectIsolated bool
		expectOwnFlag  bool
	}{
		{name: "process scope", scope: f.root},
		{name: "atomic scope", scope: f.inner, expectAtomic: true, expectOwnFlag: true},
		{name: "nested in atomic", scope: f.iteration, expectAtomic: true, expectIsolated: true},
		{name: "catch body", scope: f.catch.Body(), expectAtomic: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expectAtomic, testCase.scope.InAtomicScope())
			assert.Equal(t, testCase.expectIsolated, testCase.scope.InIsolatedScope())
			assert.Equal(t, testCase.expectOwnFlag, testCase.scope.IsAtomic())
		})
	}
}

func TestScope_Population(t *testing.T) {
	p := NewProcess("population", "", 1)
	root := NewScope(p, nil, "process")
	assert.NoError(t, p.SetRoot(root))

	_, err := root.DeclareVariable("a", nil)
	assert.NoError(t, err)
	_, err = root.DeclareVariable("a", nil)
	assert.True(t, errors.Is(err, ErrDuplicate))

	_, err = root.DeclarePartnerLink("pl", "LT", "me", "you")
	assert.NoError(t, err)
	_, err = root.DeclarePartnerLink("pl", "LT", "me", "you")
	assert.True(t, errors.Is(err, ErrDuplicate))

	first := NewEmpty(p, root, "first")
	assert.NoError(t, root.SetActivity(first))
	assert.True(t, errors.Is(root.SetActivity(NewEmpty(p, root, "second")), ErrDuplicate))

	stray := NewEmpty(p, nil, "stray")
	assert.Error(t, root.SetActivity(stray))

	other := NewProcess("other", "", 1)
	foreign := NewScope(other, nil, "foreign")
	assert.True(t, errors.Is(root.AddCompensatable(foreign), ErrForeignOwner))

	handler := NewFaultHandler(root)
	assert.NoError(t, root.SetFaultHandler(handler))
	assert.True(t, errors.Is(root.SetFaultHandler(NewFaultHandler(root)), ErrDuplicate))

	assert.NoError(t, p.Seal())
	_, err = root.DeclareVariable("b", nil)
	assert.True(t, errors.Is(err, ErrSealed))
	_, err = p.DeclareProperty("late", "string")
	assert.True(t, errors.Is(err, ErrSealed))
	_, err = handler.AddCatch("", "")
	assert.True(t, errors.Is(err, ErrSealed))
	assert.Panics(t, func() { NewEmpty(p, root, "late") })

	v, ok := root.LocalVariable("a")
	assert.True(t, ok)
	assert.Equal(t, "process.a", v.Description())
}

func TestScope_Compensatable(t *testing.T) {
	f := newOrderFixture(t)
	assert.True(t, f.root.IsCompensatable(f.inner))
	assert.False(t, f.root.IsCompensatable(f.iteration))
	assert.False(t, f.root.IsCompensatable(nil))
	assert.Equal(t, []*Scope{f.inner}, f.root.Compensatable())
}

// TestScope_ResolveInnermost builds random scope chains, optionally separated
// by sequences, and checks that resolution and the atomic ascent agree with
// a direct scan of the chain.
func TestScope_ResolveInnermost(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		depth := rapid.IntRange(1, 8).Draw(t, "depth")
		p := NewProcess("chain", "", 1)
		var parent Activity
		var scopes []*Scope
		declaredAt := -1
		anyAtomic := false
		for i := 0; i < depth; i++ {
			if parent != nil && rapid.Bool().Draw(t, fmt.Sprintf("sequence%d", i)) {
				seq := NewSequence(p, parent, fmt.Sprintf("seq%d", i))
				attach(t, parent, seq)
				parent = seq
			}
			var opts []ScopeOption
			if rapid.Bool().Draw(t, fmt.Sprintf("atomic%d", i)) {
				opts = append(opts, Atomic())
				anyAtomic = true
			}
			scope := NewScope(p, parent, fmt.Sprintf("s%d", i), opts...)
			if parent == nil {
				if err := p.SetRoot(scope); err != nil {
					t.Fatalf("set root: %v", err)
				}
			} else {
				attach(t, parent, scope)
			}
			if rapid.Bool().Draw(t, fmt.Sprintf("declare%d", i)) {
				if _, err := scope.DeclareVariable("v", nil); err != nil {
					t.Fatalf("declare: %v", err)
				}
				declaredAt = i
			}
			scopes = append(scopes, scope)
			parent = scope
		}
		if err := p.Seal(); err != nil {
			t.Fatalf("seal: %v", err)
		}

		deepest := scopes[len(scopes)-1]
		v, ok := deepest.ResolveVariable("v")
		if declaredAt < 0 {
			if ok {
				t.Fatalf("resolved undeclared variable in %v", v.DeclaringScope())
			}
		} else if !ok || v.DeclaringScopeID() != scopes[declaredAt].NodeID() {
			t.Fatalf("expected declaration in s%d, got %v", declaredAt, v)
		}
		if deepest.InAtomicScope() != anyAtomic {
			t.Fatalf("InAtomicScope = %v, expected %v", deepest.InAtomicScope(), anyAtomic)
		}
	})
}

func attach(t *rapid.T, parent, child Activity) {
	var err error
	switch actual := parent.(type) {
	case *Scope:
		err = actual.SetActivity(child)
	case *Sequence:
		err = actual.Add(child)
	}
	if err != nil {
		t.Fatalf("attach %s to %s: %v", child.Name(), parent.Name(), err)
	}
}
