package actor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode() NodeID {
	return NodeID{ProcessID: 1}
}

func TestTellDeliversMessage(t *testing.T) {
	reg := NewRegistry()
	sched := NewScheduler(2, 30)
	defer sched.Shutdown()

	received := make(chan string, 1)
	target := Spawn(reg, sched, newTestNode(), "echo", func(ctx *Context) *Behavior {
		return NewBehavior(func(msg Message) bool {
			s, ok := msg.(string)
			if !ok {
				return false
			}
			received <- s
			return true
		})
	})

	sender := Spawn(reg, sched, newTestNode(), "sender", func(ctx *Context) *Behavior {
		return NewBehavior()
	})

	target.Tell(sender.Addr(), "hello")

	select {
	case got := <-received:
		assert.Equal(t, "hello", got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestRequestResponse(t *testing.T) {
	reg := NewRegistry()
	sched := NewScheduler(2, 30)
	defer sched.Shutdown()

	pong := Spawn(reg, sched, newTestNode(), "pong", func(ctx *Context) *Behavior {
		return NewBehavior(func(msg Message) bool {
			if msg != "ping" {
				return false
			}
			ctx.Sender().Enqueue(ctx.Self(), ctx.Sender(), ctx.MessageID().ResponseID().MarkAnswered(), "pong", nil)
			return true
		})
	})

	done := make(chan Message, 1)
	Spawn(reg, sched, newTestNode(), "ping", func(ctx *Context) *Behavior {
		ctx.Request(pong.Addr(), time.Second, "ping", func(reply Message) {
			done <- reply
		})
		return NewBehavior()
	})

	select {
	case reply := <-done:
		assert.Equal(t, "pong", reply)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response")
	}
}

func TestRequestTimesOutAgainstSilentTarget(t *testing.T) {
	reg := NewRegistry()
	sched := NewScheduler(2, 30)
	defer sched.Shutdown()

	silent := Spawn(reg, sched, newTestNode(), "silent", func(ctx *Context) *Behavior {
		return NewBehavior(func(msg Message) bool { return true })
	})

	done := make(chan Message, 1)
	Spawn(reg, sched, newTestNode(), "caller", func(ctx *Context) *Behavior {
		ctx.Request(silent.Addr(), 50*time.Millisecond, "ping", func(reply Message) {
			done <- reply
		})
		return NewBehavior()
	})

	select {
	case reply := <-done:
		_, ok := reply.(SyncTimeoutMsg)
		assert.True(t, ok, "expected SyncTimeoutMsg, got %T", reply)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the sync timeout itself")
	}
}

func TestRequestAgainstTerminatedTargetGetsSyncExited(t *testing.T) {
	reg := NewRegistry()
	sched := NewScheduler(2, 30)
	defer sched.Shutdown()

	dead := Spawn(reg, sched, newTestNode(), "dead", func(ctx *Context) *Behavior {
		ctx.Quit(ExitNormal)
		return NewBehavior()
	})
	time.Sleep(50 * time.Millisecond)

	done := make(chan Message, 1)
	Spawn(reg, sched, newTestNode(), "caller", func(ctx *Context) *Behavior {
		ctx.Request(dead.Addr(), time.Second, "ping", func(reply Message) {
			done <- reply
		})
		return NewBehavior()
	})

	select {
	case reply := <-done:
		exited, ok := reply.(SyncExitedMsg)
		require.True(t, ok, "expected SyncExitedMsg, got %T", reply)
		assert.Equal(t, ExitNormal, exited.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sync_exited")
	}
}

func TestLinkPropagatesExit(t *testing.T) {
	reg := NewRegistry()
	sched := NewScheduler(2, 30)
	defer sched.Shutdown()

	downCh := make(chan ExitReason, 1)
	var victim *Actor
	victim = Spawn(reg, sched, newTestNode(), "victim", func(ctx *Context) *Behavior {
		ctx.SetTrapExit(true)
		return NewBehavior(func(msg Message) bool {
			em, ok := msg.(ExitMsg)
			if !ok {
				return false
			}
			downCh <- em.Reason
			return true
		})
	})

	culprit := Spawn(reg, sched, newTestNode(), "culprit", func(ctx *Context) *Behavior {
		return NewBehavior(func(msg Message) bool {
			if msg != "die" {
				return false
			}
			ctx.Quit(ExitUserDefinedBase)
			return true
		})
	})

	victim.LinkTo(culprit.Addr())
	culprit.Tell(Invalid, "die")

	select {
	case reason := <-downCh:
		assert.Equal(t, ExitUserDefinedBase, reason)
	case <-time.After(time.Second):
		t.Fatal("linked peer never saw the exit")
	}
}
