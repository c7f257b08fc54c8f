package middleman

import (
	"context"
	"encoding"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuhao00/actorcore/actor"
	"github.com/phuhao00/actorcore/namespace"
	"github.com/phuhao00/actorcore/wire"
)

type textMsg struct{ Text string }

func (m textMsg) MarshalBinary() ([]byte, error) { return []byte(m.Text), nil }

func (m *textMsg) UnmarshalBinary(data []byte) error {
	m.Text = string(data)
	return nil
}

func newTestMiddleman(t *testing.T, transport wire.Transport) (*Middleman, *actor.Registry, *actor.Scheduler) {
	t.Helper()
	reg := actor.NewRegistry()
	sched := actor.NewScheduler(2, 30)
	t.Cleanup(sched.Shutdown)
	ns := namespace.New()
	m := New(actor.NewLocalNodeID(), reg, ns, sched, transport, nil, nil, nil)
	m.RegisterType("middleman.textMsg", func() encoding.BinaryUnmarshaler { return &textMsg{} })
	return m, reg, sched
}

func TestConnectAndDispatchAcrossNodes(t *testing.T) {
	transport := wire.NewLoopbackTransport()
	defer transport.Close()

	server, serverReg, serverSched := newTestMiddleman(t, transport)
	client, _, _ := newTestMiddleman(t, transport)

	ctx := context.Background()
	require.NoError(t, server.Publish(ctx, "node-a", "", 0))

	peer, err := client.Connect(ctx, "node-a")
	require.NoError(t, err)
	assert.True(t, peer.Equal(server.self))

	received := make(chan string, 1)
	target := actor.Spawn(serverReg, serverSched, server.self, "receiver", func(c *actor.Context) *actor.Behavior {
		return actor.NewBehavior(func(msg actor.Message) bool {
			tm, ok := msg.(*textMsg)
			if !ok {
				return false
			}
			received <- tm.Text
			return true
		})
	})

	localSender := actor.Spawn(actor.NewRegistry(), actor.NewScheduler(1, 10), client.self, "sender", func(c *actor.Context) *actor.Behavior {
		return actor.NewBehavior()
	})

	require.NoError(t, client.SendRemote(peer, localSender.Addr(), actor.NewActorAddr(target), actor.InvalidMessageID, textMsg{Text: "hi from client"}))

	select {
	case got := <-received:
		assert.Equal(t, "hi from client", got)
	case <-time.After(2 * time.Second):
		t.Fatal("remote dispatch never arrived")
	}
}
