package actor

import (
	"fmt"
	"runtime"
	"sync"
)

// Group is a named broadcast channel: Enqueue fans a message out to every
// current subscriber, supplementing with
// the group abstraction CAF exposes alongside individual actors).
type Group struct {
	mgr  *GroupManager
	name string

	mu   sync.RWMutex
	subs map[ActorAddr]struct{}
}

func (g *Group) Enqueue(sender, receiver ActorAddr, mid MessageID, payload Message, execUnit Resumable) {
	g.mu.RLock()
	targets := make([]ActorAddr, 0, len(g.subs))
	for a := range g.subs {
		targets = append(targets, a)
	}
	g.mu.RUnlock()
	for _, t := range targets {
		t.Enqueue(sender, t, mid, payload, execUnit)
	}
}

// Subscription is an auto-unsubscribe membership token. Dropping it
// without calling Unsubscribe still cleans up eventually via the
// finalizer safety net, matching CAF's group::subscription.
type Subscription struct {
	group *Group
	addr  ActorAddr
}

// Unsubscribe removes addr from the group. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.group == nil {
		return
	}
	s.group.mu.Lock()
	delete(s.group.subs, s.addr)
	s.group.mu.Unlock()
	s.group = nil
}

// GroupManager is the process-local registry of named groups, analogous
// to the actor Registry but keyed by group name instead of id.
type GroupManager struct {
	mu     sync.Mutex
	groups map[string]*Group
}

func NewGroupManager() *GroupManager {
	return &GroupManager{groups: make(map[string]*Group)}
}

// Get returns the named group, creating it on first use.
func (m *GroupManager) Get(name string) *Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[name]
	if !ok {
		g = &Group{mgr: m, name: name, subs: make(map[ActorAddr]struct{})}
		m.groups[name] = g
	}
	return g
}

// Subscribe adds addr to the named group and returns a token that undoes
// it. If the caller forgets to call Unsubscribe, a finalizer registered
// on the token removes the membership once it is garbage collected, so a
// leaked Subscription cannot pin a dead actor's address in the group
// forever .
func (m *GroupManager) Subscribe(name string, addr ActorAddr) *Subscription {
	g := m.Get(name)
	g.mu.Lock()
	g.subs[addr] = struct{}{}
	g.mu.Unlock()
	sub := &Subscription{group: g, addr: addr}
	runtime.SetFinalizer(sub, func(s *Subscription) {
		s.Unsubscribe()
	})
	return sub
}

func (g *Group) String() string {
	return fmt.Sprintf("group(%s)", g.name)
}
