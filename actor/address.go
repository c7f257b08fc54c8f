package actor

import "fmt"

// Channel is the single operation every addressable thing in actorcore
// exposes: actors, proxies, and groups. Enqueueing into a terminal
// channel must fail silently (the sync-request bouncer is the only
// exception, see ResponsePromise/SyncExited semantics in request.go).
type Channel interface {
	Enqueue(sender, receiver ActorAddr, mid MessageID, payload Message, execUnit Resumable)
}

// AbstractActor is anything that can sit on the receiving end of an
// ActorAddr: a local Actor or a remote Proxy.
type AbstractActor interface {
	Channel
	ID() ActorID
	Node() NodeID
	// CurrentExitReason returns the terminal reason and true if the actor
	// (or proxy's remote peer, best-effort) has already exited.
	CurrentExitReason() (ExitReason, bool)
}

// ActorAddr is a possibly-null handle identifying an actor, local or
// remote. The zero value is the invalid/null address.
type ActorAddr struct {
	actor AbstractActor
}

// NewActorAddr wraps a concrete actor/proxy in an address handle.
func NewActorAddr(a AbstractActor) ActorAddr {
	return ActorAddr{actor: a}
}

// Invalid is the null address: compares less than any valid address and
// carries no identity.
var Invalid = ActorAddr{}

func (a ActorAddr) IsValid() bool {
	return a.actor != nil
}

func (a ActorAddr) String() string {
	if a.actor == nil {
		return "actor_addr(invalid)"
	}
	return fmt.Sprintf("actor_addr(%d@%d)", a.actor.ID(), a.actor.Node().ProcessID)
}

// Equal compares by pointer identity for local actors and by (node, id)
// for proxies. Because the namespace guarantees at most one live proxy
// per (node, id), comparing the underlying
// AbstractActor values by interface equality satisfies both cases: two
// handles to the same local actor share the same pointer, and two
// handles to the same remote actor share the same cached proxy pointer.
func (a ActorAddr) Equal(other ActorAddr) bool {
	if a.actor == nil || other.actor == nil {
		return a.actor == nil && other.actor == nil
	}
	return a.actor == other.actor
}

// Compare gives ActorAddr a total order: invalid < any valid address;
// among valid addresses, ordering is by (node id, actor id) so that two
// addresses referring to the same remote actor always compare equal
// even if called from code that only has the (node, id) pair, not the
// live pointer.
func (a ActorAddr) Compare(other ActorAddr) int {
	switch {
	case a.actor == nil && other.actor == nil:
		return 0
	case a.actor == nil:
		return -1
	case other.actor == nil:
		return 1
	}
	an, bn := a.actor.Node(), other.actor.Node()
	if c := compareNode(an, bn); c != 0 {
		return c
	}
	ai, bi := a.actor.ID(), other.actor.ID()
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	default:
		return 0
	}
}

func compareNode(a, b NodeID) int {
	switch {
	case a.ProcessID < b.ProcessID:
		return -1
	case a.ProcessID > b.ProcessID:
		return 1
	}
	for i := range a.HostID {
		if a.HostID[i] != b.HostID[i] {
			if a.HostID[i] < b.HostID[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (a ActorAddr) ID() ActorID {
	if a.actor == nil {
		return 0
	}
	return a.actor.ID()
}

func (a ActorAddr) Node() NodeID {
	if a.actor == nil {
		return NodeID{}
	}
	return a.actor.Node()
}

// Actor returns the underlying AbstractActor, or nil for the invalid address.
func (a ActorAddr) Actor() AbstractActor {
	return a.actor
}

// Enqueue forwards to the underlying actor/proxy; enqueueing on an
// invalid address is a silent no-op.
func (a ActorAddr) Enqueue(sender, receiver ActorAddr, mid MessageID, payload Message, execUnit Resumable) {
	if a.actor == nil {
		return
	}
	a.actor.Enqueue(sender, receiver, mid, payload, execUnit)
}
