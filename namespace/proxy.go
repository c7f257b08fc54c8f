package namespace

import (
	"sync/atomic"

	"github.com/phuhao00/actorcore/actor"
)

// Sender is the narrow slice of the middleman a Proxy needs: hand a
// mailbox element off to whatever connection serves node.
type Sender interface {
	SendRemote(node actor.NodeID, sender, receiver actor.ActorAddr, mid actor.MessageID, payload actor.Message) error
}

// Proxy stands in locally for an actor that lives on a remote node: it
// implements actor.AbstractActor so it can be wrapped in an actor.ActorAddr
// and used exactly like a local actor by LinkTo/Monitor/Request/Tell,
// while actually forwarding every Enqueue to the middleman for
// transmission over the wire. Exactly one Proxy exists per (node, id) at
// a time, enforced by ActorNamespace.GetOrPut.
type Proxy struct {
	node   actor.NodeID
	id     actor.ActorID
	sender Sender

	anchor *actor.Anchor[*Proxy]
	addr   actor.ActorAddr

	exited atomic.Bool
	reason atomic.Int32
}

// NewProxy constructs a proxy for (node, id) that forwards traffic
// through sender. Callers should route construction through
// ActorNamespace.GetOrPut rather than calling this directly, so the
// one-proxy-per-remote-actor invariant holds.
func NewProxy(node actor.NodeID, id actor.ActorID, sender Sender) *Proxy {
	p := &Proxy{node: node, id: id, sender: sender}
	p.anchor = actor.NewAnchor(p)
	p.addr = actor.NewActorAddr(p)
	return p
}

func (p *Proxy) ID() actor.ActorID  { return p.id }
func (p *Proxy) Node() actor.NodeID { return p.node }

func (p *Proxy) CurrentExitReason() (actor.ExitReason, bool) {
	if !p.exited.Load() {
		return actor.ExitNotExited, false
	}
	return actor.ExitReason(p.reason.Load()), true
}

// Enqueue forwards the element to the middleman for transmission to the
// remote node. If the proxy is already known down, or the send itself
// fails (connection gone, dial error), a request mid is bounced back to
// the caller as a SyncExitedMsg so a pending request promise never hangs
// forever; a non-request mid is simply dropped, mirroring Actor.bounce.
func (p *Proxy) Enqueue(sender, receiver actor.ActorAddr, mid actor.MessageID, payload actor.Message, execUnit actor.Resumable) {
	if p.exited.Load() {
		p.bounce(sender, mid, execUnit)
		return
	}
	if err := p.sender.SendRemote(p.node, sender, receiver, mid, payload); err != nil {
		p.bounce(sender, mid, execUnit)
	}
}

func (p *Proxy) bounce(sender actor.ActorAddr, mid actor.MessageID, execUnit actor.Resumable) {
	if !mid.IsRequest() {
		return
	}
	reason, ok := p.CurrentExitReason()
	if !ok {
		reason = actor.ExitUnknown
	}
	sender.Enqueue(p.addr, sender, mid.ResponseID().MarkAnswered(), actor.SyncExitedMsg{Source: p.addr, Reason: reason}, execUnit)
}

// MarkDown records that the remote actor this proxy stands in for has
// terminated. The middleman calls it for every cached proxy of a node
// when the connection to that node closes. Idempotent.
func (p *Proxy) MarkDown(reason actor.ExitReason) {
	if p.exited.CompareAndSwap(false, true) {
		p.reason.Store(int32(reason))
	}
}
