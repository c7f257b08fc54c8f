package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuhao00/actorcore/actor"
)

type noopSender struct{}

func (noopSender) SendRemote(actor.NodeID, actor.ActorAddr, actor.ActorAddr, actor.MessageID, actor.Message) error {
	return nil
}

func TestGetOrPutReturnsSameProxyForSameKey(t *testing.T) {
	ns := New()
	node := actor.NodeID{ProcessID: 7}

	builds := 0
	build := func() *Proxy {
		builds++
		return NewProxy(node, actor.ActorID(1), noopSender{})
	}

	p1 := ns.GetOrPut(node, actor.ActorID(1), build)
	p2 := ns.GetOrPut(node, actor.ActorID(1), build)

	assert.Same(t, p1, p2)
	assert.Equal(t, 1, builds)
}

func TestEraseNodeDropsEveryProxyForThatNode(t *testing.T) {
	ns := New()
	nodeA := actor.NodeID{ProcessID: 1}
	nodeB := actor.NodeID{ProcessID: 2}

	ns.GetOrPut(nodeA, actor.ActorID(1), func() *Proxy { return NewProxy(nodeA, actor.ActorID(1), noopSender{}) })
	ns.GetOrPut(nodeA, actor.ActorID(2), func() *Proxy { return NewProxy(nodeA, actor.ActorID(2), noopSender{}) })
	ns.GetOrPut(nodeB, actor.ActorID(1), func() *Proxy { return NewProxy(nodeB, actor.ActorID(1), noopSender{}) })

	dropped := ns.EraseNode(nodeA)
	require.Len(t, dropped, 2)
	assert.Equal(t, 1, ns.Count())

	_, ok := ns.Get(nodeA, actor.ActorID(1))
	assert.False(t, ok)
	_, ok = ns.Get(nodeB, actor.ActorID(1))
	assert.True(t, ok)
}

func TestProxyMarkDownIsIdempotentAndSticky(t *testing.T) {
	node := actor.NodeID{ProcessID: 9}
	p := NewProxy(node, actor.ActorID(1), noopSender{})

	_, exited := p.CurrentExitReason()
	assert.False(t, exited)

	p.MarkDown(actor.ExitUnknown)
	p.MarkDown(actor.ExitNormal) // second call must not overwrite the first reason

	reason, exited := p.CurrentExitReason()
	require.True(t, exited)
	assert.Equal(t, actor.ExitUnknown, reason)
}
