package actor

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const (
	stateIdle int32 = iota
	stateScheduled
	stateRunning
)

// Spawner builds an actor's initial Behavior. It runs exactly once, the
// first time the scheduler resumes the actor ("it becomes
// runnable when the scheduler resumes it for the first time").
type Spawner func(ctx *Context) *Behavior

// Actor is the concrete, schedulable unit of execution: mailbox,
// behavior, lifecycle (links/monitors/attachables/exit reason), and
// synchronous-request bookkeeping all tied together.
type Actor struct {
	*lifecycle
	*requestTable

	id   ActorID
	node NodeID
	name string

	registry *Registry

	mailbox *Mailbox
	cache   cache

	procMu     sync.Mutex
	behavior   *Behavior
	generation uint64
	timer      *time.Timer
	timeoutDue atomic.Bool

	spawner Spawner
	started bool
	ctx     *Context

	state     atomic.Int32
	scheduler *Scheduler
	selfAddr  ActorAddr

	detached     bool
	detachedWake chan struct{}
	detachedDone chan struct{}
}

// Context is handed to a Spawner and to every Case/handler so user code
// can learn who sent the current message, defer a reply, change
// behavior, or quit.
type Context struct {
	actor *Actor

	currentSender ActorAddr
	currentMID    MessageID
}

func (c *Context) Self() ActorAddr { return c.actor.selfAddr }

func (c *Context) Sender() ActorAddr { return c.currentSender }

func (c *Context) MessageID() MessageID { return c.currentMID }

// Become installs b as the actor's new behavior, re-arming its timeout
// and triggering a re-scan of the cache from the front on the next cycle.
func (c *Context) Become(b *Behavior) {
	c.actor.setBehavior(b)
}

// Quit terminates the actor with reason, as if its behavior had become empty.
func (c *Context) Quit(reason ExitReason) {
	c.actor.terminate(reason)
}

// SetTrapExit toggles whether exit_msg from linked peers arrives as an
// ordinary message (true) or becomes this actor's own exit (false, the
// default).
func (c *Context) SetTrapExit(v bool) {
	c.actor.setTrapExit(v)
}

// MakeResponsePromise defers the reply to the message currently being
// processed; the caller becomes responsible for eventually calling
// Deliver (or letting the requester time out / see sync_exited).
func (c *Context) MakeResponsePromise() *ResponsePromise {
	return newResponsePromise(c.actor.selfAddr, c.currentSender, c.currentMID, c.actor)
}

// Request sends payload to target and registers callback against a
// freshly allocated request id. If target has already terminated, the
// callback is invoked synchronously with SyncExitedMsg and nothing is
// sent ("if the target actor is already terminated at send
// time, the sender receives sync_exited_msg with the target's final reason").
func (c *Context) Request(target ActorAddr, timeout time.Duration, payload Message, callback func(Message)) {
	c.actor.request(target, timeout, payload, false, callback)
}

// RequestPriority is Request with the high-priority bit set on the
// outgoing message id, which is preserved through to
// the response.
func (c *Context) RequestPriority(target ActorAddr, timeout time.Duration, payload Message, callback func(Message)) {
	c.actor.request(target, timeout, payload, true, callback)
}

// Spawn creates and registers a new actor. It becomes runnable the first
// time the scheduler resumes it, not at construction time.
func Spawn(reg *Registry, sched *Scheduler, node NodeID, name string, spawner Spawner) *Actor {
	a := &Actor{
		lifecycle:    newLifecycle(),
		requestTable: newRequestTable(),
		id:           NextActorID(),
		node:         node,
		name:         name,
		registry:     reg,
		mailbox:      NewMailbox(),
		spawner:      spawner,
		scheduler:    sched,
	}
	a.ctx = &Context{actor: a}
	a.selfAddr = NewActorAddr(a)
	reg.Register(a)
	a.wake()
	return a
}

// SpawnDetached creates a blocking actor with a dedicated goroutine
// instead of scheduler time, matching the "blocking actors
// spawned with the detached option get a dedicated thread and expose a
// blocking receive that parks on a condition variable" (here: a channel
// wait on a dedicated goroutine, the idiomatic Go stand-in).
func SpawnDetached(reg *Registry, node NodeID, name string, spawner Spawner) *Actor {
	a := &Actor{
		lifecycle:    newLifecycle(),
		requestTable: newRequestTable(),
		id:           NextActorID(),
		node:         node,
		name:         name,
		registry:     reg,
		mailbox:      NewMailbox(),
		spawner:      spawner,
		detached:     true,
		detachedWake: make(chan struct{}, 1),
		detachedDone: make(chan struct{}),
	}
	a.ctx = &Context{actor: a}
	a.selfAddr = NewActorAddr(a)
	reg.Register(a)
	go a.runDetached()
	return a
}

func (a *Actor) ID() ActorID   { return a.id }
func (a *Actor) Node() NodeID  { return a.node }
func (a *Actor) Name() string  { return a.name }
func (a *Actor) Addr() ActorAddr { return a.selfAddr }

func (a *Actor) String() string {
	return fmt.Sprintf("actor(%s/%d)", a.name, a.id)
}

// Enqueue implements Channel. It applies the sync-request bouncer to
// requests arriving at an already-terminated actor, so a pending
// request promise against a dead target resolves instead of hanging.
func (a *Actor) Enqueue(sender, receiver ActorAddr, mid MessageID, payload Message, execUnit Resumable) {
	if reason, exited := a.CurrentExitReason(); exited {
		a.bounce(sender, mid, reason, execUnit)
		return
	}
	elem := &MailboxElement{Sender: sender, Receiver: receiver, MID: mid, Payload: payload}
	if !a.mailbox.Enqueue(elem) {
		reason, _ := a.CurrentExitReason()
		a.bounce(sender, mid, reason, execUnit)
		return
	}
	a.wake()
}

func (a *Actor) bounce(sender ActorAddr, mid MessageID, reason ExitReason, execUnit Resumable) {
	if !mid.IsRequest() {
		return
	}
	sender.Enqueue(a.selfAddr, sender, mid.ResponseID().MarkAnswered(), SyncExitedMsg{Source: a.selfAddr, Reason: reason}, execUnit)
}

func (a *Actor) wake() {
	if a.detached {
		select {
		case a.detachedWake <- struct{}{}:
		default:
		}
		return
	}
	for {
		s := a.state.Load()
		switch s {
		case stateIdle:
			if a.state.CompareAndSwap(stateIdle, stateScheduled) {
				a.scheduler.Schedule(a)
				return
			}
		default:
			return
		}
	}
}

// Tell sends an asynchronous message: fire-and-forget, no request id.
func (a *Actor) Tell(sender ActorAddr, payload Message) {
	a.Enqueue(sender, a.selfAddr, InvalidMessageID, payload, nil)
}

// request is the shared implementation behind Context.Request/RequestPriority.
func (a *Actor) request(target ActorAddr, timeout time.Duration, payload Message, highPriority bool, callback func(Message)) {
	if reason, exited := targetExited(target); exited {
		callback(SyncExitedMsg{Source: target, Reason: reason})
		return
	}
	mid := a.requestTable.newRequestID()
	if highPriority {
		mid = mid.WithHighPriority()
	}
	a.requestTable.register(mid, timeout, callback, nil)
	target.Enqueue(a.selfAddr, target, mid, payload, a)
}

func targetExited(target ActorAddr) (ExitReason, bool) {
	ta := target.Actor()
	if ta == nil {
		return ExitUnknown, true
	}
	return ta.CurrentExitReason()
}

// LinkTo establishes a symmetric link with other. If other has already
// exited, the caller receives exit_msg immediately (as an ordinary
// message if it traps exits, otherwise as its own termination),
// matching the terminate-once contract.
func (a *Actor) LinkTo(other ActorAddr) {
	if reason, exited := targetExited(other); exited {
		a.deliverExit(other, reason)
		return
	}
	oa, ok := other.Actor().(*Actor)
	if !ok {
		// Remote/opaque peer: record our side only; the remote side of
		// the relation is out of scope for the in-process link set.
		a.addLink(other)
		return
	}
	// Add both sides, then re-check for a race against concurrent exit.
	a.addLink(other)
	oa.addLink(a.selfAddr)
	if reason, exited := oa.CurrentExitReason(); exited {
		oa.removeLink(a.selfAddr)
		a.removeLink(other)
		a.deliverExit(other, reason)
	}
}

// UnlinkFrom mutually removes the link with other.
func (a *Actor) UnlinkFrom(other ActorAddr) {
	a.removeLink(other)
	if oa, ok := other.Actor().(*Actor); ok {
		oa.removeLink(a.selfAddr)
	}
}

// Monitor subscribes a to down_msg notifications when other terminates.
// Each call is a distinct subscription: two Monitor(other) calls produce
// two down_msg deliveries here.
func (a *Actor) Monitor(other ActorAddr) {
	if reason, exited := targetExited(other); exited {
		a.Enqueue(other, a.selfAddr, InvalidMessageID, DownMsg{Source: other, Reason: reason}, nil)
		return
	}
	oa, ok := other.Actor().(*Actor)
	if !ok {
		return
	}
	oa.addWatcher(a.selfAddr)
	if reason, exited := oa.CurrentExitReason(); exited {
		oa.removeWatcher(a.selfAddr)
		a.Enqueue(other, a.selfAddr, InvalidMessageID, DownMsg{Source: other, Reason: reason}, nil)
	}
}

// Demonitor removes exactly one outstanding subscription on other.
func (a *Actor) Demonitor(other ActorAddr) {
	if oa, ok := other.Actor().(*Actor); ok {
		oa.removeWatcher(a.selfAddr)
	}
}

// Attach appends an exit callback, or runs it immediately if already exited.
func (a *Actor) Attach(cb Attachable) {
	a.attach(cb)
}

func (a *Actor) deliverExit(source ActorAddr, reason ExitReason) {
	if a.TrapExit() {
		a.Enqueue(source, a.selfAddr, InvalidMessageID, ExitMsg{Source: source, Reason: reason}, nil)
		return
	}
	a.terminate(reason)
}

// setBehavior installs a new behavior, bumping the generation (so a
// stale timer cannot fire against it) and re-arming the new timeout.
func (a *Actor) setBehavior(b *Behavior) {
	a.procMu.Lock()
	defer a.procMu.Unlock()
	a.behavior = b
	a.generation++
	a.timeoutDue.Store(false)
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.armTimeoutLocked()
}

// armTimeoutLocked must be called with procMu held.
func (a *Actor) armTimeoutLocked() {
	d, _, ok := a.behavior.HasTimeout()
	if !ok {
		return
	}
	gen := a.generation
	a.timer = time.AfterFunc(d, func() {
		a.procMu.Lock()
		stillCurrent := a.generation == gen
		a.procMu.Unlock()
		if stillCurrent {
			a.timeoutDue.Store(true)
			a.wake()
		}
	})
}

// Resume implements Resumable: it drains the mailbox (consulting the
// cache first) until the throughput budget is spent, the mailbox and
// cache both miss and no timer is due, or the actor terminates.
func (a *Actor) Resume(unit *ExecutionUnit, maxThroughput int) ResumeStatus {
	if !a.state.CompareAndSwap(stateScheduled, stateRunning) {
		return Done
	}
	a.procMu.Lock()
	if !a.started {
		a.started = true
		a.behavior = a.spawner(a.ctx)
		a.armTimeoutLocked()
	}
	a.procMu.Unlock()

	processed := 0
	for processed < maxThroughput {
		if reason, exited := a.CurrentExitReason(); exited {
			_ = reason
			return Done
		}
		if a.timeoutDue.CompareAndSwap(true, false) {
			a.procMu.Lock()
			_, fn, ok := a.behavior.HasTimeout()
			a.procMu.Unlock()
			if ok && fn != nil {
				fn()
			}
			if a.maybeTerminateOnEmptyBehavior() {
				return Done
			}
			processed++
			continue
		}
		if a.tryCache() {
			processed++
			if a.maybeTerminateOnEmptyBehavior() {
				return Done
			}
			continue
		}
		elem, ok := a.mailbox.Dequeue()
		if !ok {
			break
		}
		if elem.MID.IsResponse() {
			a.requestTable.resolveResponse(elem.MID, elem.Payload)
			processed++
			continue
		}
		a.ctx.currentSender = elem.Sender
		a.ctx.currentMID = elem.MID
		a.procMu.Lock()
		b := a.behavior
		a.procMu.Unlock()
		if b.Invoke(elem.Payload) != Handled {
			a.cache.pushBack(elem)
		}
		processed++
		if a.maybeTerminateOnEmptyBehavior() {
			return Done
		}
	}

	if reason, exited := a.CurrentExitReason(); exited {
		_ = reason
		return Done
	}

	if !a.state.CompareAndSwap(stateRunning, stateIdle) {
		return Done
	}
	// Re-check: a message (or timeout) may have raced in between the last
	// empty check and the state flip to idle.
	if a.timeoutDue.Load() || !a.cacheAndMailboxEmpty() {
		if a.state.CompareAndSwap(stateIdle, stateScheduled) {
			return ResumeLater
		}
	}
	return AwaitingMessage
}

func (a *Actor) cacheAndMailboxEmpty() bool {
	a.procMu.Lock()
	n := a.cache.len()
	a.procMu.Unlock()
	return n == 0 && a.mailbox.Empty()
}

// tryCache scans the cache front-to-back for the first element the
// current behavior handles, consuming it in place. Matching behavior
// cases both test and fully handle a message in one call, so a "miss"
// here never has side effects .
func (a *Actor) tryCache() bool {
	a.procMu.Lock()
	b := a.behavior
	elems := a.cache.elems
	a.procMu.Unlock()
	for i, e := range elems {
		a.ctx.currentSender = e.Sender
		a.ctx.currentMID = e.MID
		if b.Invoke(e.Payload) == Handled {
			a.procMu.Lock()
			a.cache.elems = append(append([]*MailboxElement{}, a.cache.elems[:i]...), a.cache.elems[i+1:]...)
			a.procMu.Unlock()
			return true
		}
	}
	return false
}

// maybeTerminateOnEmptyBehavior terminates the actor normally once its
// behavior has become empty .
func (a *Actor) maybeTerminateOnEmptyBehavior() bool {
	a.procMu.Lock()
	empty := a.behavior.Empty()
	a.procMu.Unlock()
	if empty {
		a.terminate(ExitNormal)
		return true
	}
	return false
}

// terminate performs the single legal not_exited -> terminal transition
// and the full exit fan-out: attachables, links, monitors, mailbox drain
// with the sync bouncer .
func (a *Actor) terminate(reason ExitReason) {
	if !a.tryExit(reason) {
		return
	}
	a.registry.Unregister(a.id)
	if a.timer != nil {
		a.timer.Stop()
	}
	a.fireAttachables(reason)

	for _, peer := range a.linkSnapshot() {
		if pa, ok := peer.Actor().(*Actor); ok {
			pa.removeLink(a.selfAddr)
			pa.deliverExit(a.selfAddr, reason)
		} else {
			peer.Enqueue(a.selfAddr, peer, InvalidMessageID, ExitMsg{Source: a.selfAddr, Reason: reason}, nil)
		}
	}

	for watcher, count := range a.watcherSnapshot() {
		for i := 0; i < count; i++ {
			watcher.Enqueue(a.selfAddr, watcher, InvalidMessageID, DownMsg{Source: a.selfAddr, Reason: reason}, nil)
		}
	}

	a.mailbox.Close()
	for _, elem := range a.mailbox.Drain() {
		a.bounce(elem.Sender, elem.MID, reason, nil)
	}
	a.requestTable.drainAsExited(reason, a.selfAddr)

	if a.detached {
		close(a.detachedDone)
	}
	log.Printf("%s exited: reason=%d", a, reason)
}

// runDetached is the dedicated-goroutine receive loop for actors spawned
// via SpawnDetached: it parks on detachedWake instead of being driven by
// a Scheduler.
func (a *Actor) runDetached() {
	a.procMu.Lock()
	a.behavior = a.spawner(a.ctx)
	a.armTimeoutLocked()
	a.started = true
	a.procMu.Unlock()

	for {
		if _, exited := a.CurrentExitReason(); exited {
			return
		}
		if a.timeoutDue.CompareAndSwap(true, false) {
			a.procMu.Lock()
			_, fn, ok := a.behavior.HasTimeout()
			a.procMu.Unlock()
			if ok && fn != nil {
				fn()
			}
			if a.maybeTerminateOnEmptyBehavior() {
				return
			}
			continue
		}
		if a.tryCache() {
			if a.maybeTerminateOnEmptyBehavior() {
				return
			}
			continue
		}
		elem, ok := a.mailbox.Dequeue()
		if !ok {
			select {
			case <-a.detachedWake:
			case <-a.detachedDone:
				return
			}
			continue
		}
		if elem.MID.IsResponse() {
			a.requestTable.resolveResponse(elem.MID, elem.Payload)
			continue
		}
		a.ctx.currentSender = elem.Sender
		a.ctx.currentMID = elem.MID
		a.procMu.Lock()
		b := a.behavior
		a.procMu.Unlock()
		if b.Invoke(elem.Payload) != Handled {
			a.cache.pushBack(elem)
		}
		if a.maybeTerminateOnEmptyBehavior() {
			return
		}
	}
}
