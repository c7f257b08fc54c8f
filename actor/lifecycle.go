package actor

import (
	"sync"
	"sync/atomic"
)

// lifecycle guards links, attachables, and the slow path of exit-reason
// transitions behind a single per-actor mutex. The atomic
// fields give lock-free fast-path reads of whether (and why) the actor
// has exited.
type lifecycle struct {
	mu sync.Mutex

	exited atomic.Bool
	reason atomic.Int32

	trapExit atomic.Bool

	links      map[ActorAddr]struct{}
	watchers   map[ActorAddr]int // monitor refcount per watching address
	attachable []Attachable
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		links:    make(map[ActorAddr]struct{}),
		watchers: make(map[ActorAddr]int),
	}
}

// CurrentExitReason is the lock-free fast path used by Channel.Enqueue to
// decide whether a message targets a terminal actor.
func (lc *lifecycle) CurrentExitReason() (ExitReason, bool) {
	if !lc.exited.Load() {
		return ExitNotExited, false
	}
	return ExitReason(lc.reason.Load()), true
}

// tryExit performs the single legal not_exited -> terminal transition.
// Returns false if the actor had already exited (the reason is then
// whatever the first transition recorded, ignoring this call's reason).
func (lc *lifecycle) tryExit(reason ExitReason) bool {
	if !lc.exited.CompareAndSwap(false, true) {
		return false
	}
	lc.reason.Store(int32(reason))
	return true
}

func (lc *lifecycle) setTrapExit(v bool) {
	lc.trapExit.Store(v)
}

func (lc *lifecycle) TrapExit() bool {
	return lc.trapExit.Load()
}

// addLink records a (one-sided) link entry. Symmetric bookkeeping is the
// caller's (Actor.LinkTo's) responsibility across both sides.
func (lc *lifecycle) addLink(peer ActorAddr) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.links[peer] = struct{}{}
}

func (lc *lifecycle) removeLink(peer ActorAddr) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	delete(lc.links, peer)
}

func (lc *lifecycle) hasLink(peer ActorAddr) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	_, ok := lc.links[peer]
	return ok
}

func (lc *lifecycle) linkSnapshot() []ActorAddr {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	out := make([]ActorAddr, 0, len(lc.links))
	for a := range lc.links {
		out = append(out, a)
	}
	return out
}

func (lc *lifecycle) addWatcher(addr ActorAddr) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.watchers[addr]++
}

// removeWatcher removes exactly one subscription from addr, matching
// Demonitor's one-call-one-subscription semantics.
func (lc *lifecycle) removeWatcher(addr ActorAddr) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if n, ok := lc.watchers[addr]; ok {
		if n <= 1 {
			delete(lc.watchers, addr)
		} else {
			lc.watchers[addr] = n - 1
		}
	}
}

// watcherSnapshot returns each watching address paired with how many
// distinct Monitor calls are outstanding for it, so terminate can
// deliver one down_msg per distinct monitor call.
func (lc *lifecycle) watcherSnapshot() map[ActorAddr]int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	out := make(map[ActorAddr]int, len(lc.watchers))
	for a, n := range lc.watchers {
		out[a] = n
	}
	return out
}

// attach appends an attachable, or runs it immediately if the actor has
// already exited (and does not retain it in that case).
func (lc *lifecycle) attach(cb Attachable) {
	lc.mu.Lock()
	if lc.exited.Load() {
		reason := ExitReason(lc.reason.Load())
		lc.mu.Unlock()
		cb.ActorExited(reason)
		return
	}
	lc.attachable = append(lc.attachable, cb)
	lc.mu.Unlock()
}

// detach removes attachables matching token; used to cancel a pending
// attachable before it fires.
func (lc *lifecycle) detach(token any) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	out := lc.attachable[:0]
	for _, cb := range lc.attachable {
		if !cb.Matches(token) {
			out = append(out, cb)
		}
	}
	lc.attachable = out
}

// fireAttachables invokes and clears every attachable with the terminal reason.
func (lc *lifecycle) fireAttachables(reason ExitReason) {
	lc.mu.Lock()
	cbs := lc.attachable
	lc.attachable = nil
	lc.mu.Unlock()
	for _, cb := range cbs {
		cb.ActorExited(reason)
	}
}
