package model

import (
	"github.com/stretchr/testify/require"
	"testing"
)

// orderFixture is a small but complete definition:
//
//	process (scope) vars: order, status, limit; partner link client; cset orderCS
//	  main (sequence)
//	    inner (atomic scope) vars: status; all four handlers
//	      loop (forEach, sequential)
//	        iteration (isolated scope) vars: i
//	          noop (empty)
type orderFixture struct {
	process   *Process
	root      *Scope
	main      *Sequence
	inner     *Scope
	loop      *ForEach
	iteration *Scope
	counter   *Variable
	catch     *Catch
	event     *OnEvent
	alarm     *OnAlarm
	constant  *ConstantVarType
}

func newOrderFixture(t *testing.T) *orderFixture {
	f := &orderFixture{}
	p := NewProcess("order", "urn:shop", 1)
	f.process = p

	f.root = NewScope(p, nil, "process")
	require.NoError(t, p.SetRoot(f.root))
	_, err := f.root.DeclareVariable("order", NewMessageVarType(p, "{urn:shop}OrderMsg", "payload"))
	require.NoError(t, err)
	_, err = f.root.DeclareVariable("status", NewXsdTypeVarType(p, "string", true))
	require.NoError(t, err)
	_, err = f.root.DeclarePartnerLink("client", "ClientLT", "shop", "client")
	require.NoError(t, err)
	prop, err := p.DeclareProperty("orderId", "string")
	require.NoError(t, err)
	_, err = f.root.DeclareCorrelationSet("orderCS", prop)
	require.NoError(t, err)
	f.constant, err = NewConstantVarTypeFromLiteral(p, `<limit max="10">ten</limit>`)
	require.NoError(t, err)
	_, err = f.root.DeclareVariable("limit", f.constant)
	require.NoError(t, err)

	f.main = NewSequence(p, f.root, "main")
	require.NoError(t, f.root.SetActivity(f.main))

	f.inner = NewScope(p, f.main, "inner", Atomic())
	require.NoError(t, f.main.Add(f.inner))
	_, err = f.inner.DeclareVariable("status", NewElementVarType(p, "{urn:shop}status"))
	require.NoError(t, err)

	f.loop = NewForEach(p, f.inner, "loop", false)
	require.NoError(t, f.inner.SetActivity(f.loop))
	f.iteration = NewScope(p, f.loop, "iteration", Isolated())
	require.NoError(t, f.loop.SetInnerScope(f.iteration))
	f.counter, err = f.iteration.DeclareVariable("i", NewXsdTypeVarType(p, "unsignedInt", true))
	require.NoError(t, err)
	require.NoError(t, f.loop.SetCounterVariable(f.counter))
	require.NoError(t, f.loop.SetBounds(NewExpression(p, "xpath", "1"), NewExpression(p, "xpath", "3")))
	require.NoError(t, f.loop.SetCompletionCondition(NewCompletionCondition(p, NewExpression(p, "xpath", "2"), true)))
	require.NoError(t, f.iteration.SetActivity(NewEmpty(p, f.iteration, "noop")))

	faults := NewFaultHandler(f.inner)
	f.catch, err = faults.AddCatch("tns:outOfStock", "fault")
	require.NoError(t, err)
	require.NoError(t, f.catch.Body().SetActivity(NewEmpty(p, f.catch.Body(), "log")))
	require.NoError(t, f.inner.SetFaultHandler(faults))

	compensation := NewCompensationHandler(f.inner)
	require.NoError(t, compensation.Body().SetActivity(NewEmpty(p, compensation.Body(), "refund")))
	require.NoError(t, f.inner.SetCompensationHandler(compensation))

	termination := NewTerminationHandler(f.inner)
	require.NoError(t, termination.SetActivity(NewEmpty(p, f.inner, "cleanup")))
	require.NoError(t, f.inner.SetTerminationHandler(termination))

	events := NewEventHandler(f.inner)
	f.event, err = events.AddEvent("client", "cancel", "cancelRequest")
	require.NoError(t, err)
	f.alarm, err = events.AddAlarm(NewExpression(p, "xpath", "'PT1H'"), nil, nil)
	require.NoError(t, err)
	require.NoError(t, f.alarm.SetActivity(NewEmpty(p, f.inner, "timeout")))
	require.NoError(t, f.inner.SetEventHandler(events))

	require.NoError(t, f.root.AddCompensatable(f.inner))
	require.NoError(t, p.Seal())
	return f
}
