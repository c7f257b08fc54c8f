// Package namespace implements the actor_namespace: the per-process
// proxy_map keyed by (node_id, actor_id) that guarantees at most one
// live Proxy represents a given remote actor.
package namespace

import (
	"log"
	"sync"

	"github.com/phuhao00/actorcore/actor"
)

// key identifies a remote actor across the whole process.
type key struct {
	node actor.NodeID
	id   actor.ActorID
}

// ActorNamespace is the proxy_map: it hands out at most one Proxy per
// (node, id), cached behind actor.WeakRef so a lookup can never observe
// a half-evicted entry — eviction itself is driven by Erase/EraseNode
// (an explicit disconnect/teardown signal from the middleman), not by a
// strong-holder count reaching zero; see actor/refcount.go.
type ActorNamespace struct {
	mu      sync.Mutex
	proxies map[key]actor.WeakRef[*Proxy]
}

func New() *ActorNamespace {
	return &ActorNamespace{proxies: make(map[key]actor.WeakRef[*Proxy])}
}

// Get returns the cached proxy for (node, id), if one is still alive.
func (ns *ActorNamespace) Get(node actor.NodeID, id actor.ActorID) (*Proxy, bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ref, ok := ns.proxies[key{node, id}]
	if !ok {
		return nil, false
	}
	p, alive := ref.Peek()
	if !alive {
		delete(ns.proxies, key{node, id})
		return nil, false
	}
	return p, true
}

// GetOrPut returns the existing proxy for (node, id), or builds one with
// make and caches it if none exists yet (or the cached one has expired).
// This is the single path through which a Proxy for a given remote actor
// is ever constructed, which is what makes pointer-equality between two
// ActorAddrs referring to the same remote actor hold.
func (ns *ActorNamespace) GetOrPut(node actor.NodeID, id actor.ActorID, make func() *Proxy) *Proxy {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	k := key{node, id}
	if ref, ok := ns.proxies[k]; ok {
		if p, alive := ref.Peek(); alive {
			return p
		}
		delete(ns.proxies, k)
	}
	p := make()
	ns.proxies[k] = p.anchor.Weak()
	return p
}

// Put installs an already-constructed proxy, unless a still-live proxy
// for the same key already exists — the existing proxy wins so that
// identity (pointer equality between two ActorAddrs for the same remote
// actor) is never broken out from under an existing holder. An expired
// entry is replaced.
func (ns *ActorNamespace) Put(node actor.NodeID, id actor.ActorID, p *Proxy) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	k := key{node, id}
	if ref, ok := ns.proxies[k]; ok {
		if _, alive := ref.Peek(); alive {
			log.Printf("namespace: put(%v, %v) ignored: a live proxy already exists", node, id)
			return
		}
	}
	ns.proxies[k] = p.anchor.Weak()
}

// Erase drops the cache entry for (node, id), typically once the
// middleman learns the remote actor (or its whole node) is gone.
func (ns *ActorNamespace) Erase(node actor.NodeID, id actor.ActorID) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	delete(ns.proxies, key{node, id})
}

// EraseNode drops every cached proxy belonging to node, used when the
// connection to that node is lost entirely.
func (ns *ActorNamespace) EraseNode(node actor.NodeID) []*Proxy {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	var dropped []*Proxy
	for k, ref := range ns.proxies {
		if !k.node.Equal(node) {
			continue
		}
		if p, alive := ref.Peek(); alive {
			dropped = append(dropped, p)
		}
		delete(ns.proxies, k)
	}
	return dropped
}

// Count reports how many proxies are currently cached (including ones
// whose anchor has since expired but not yet been swept).
func (ns *ActorNamespace) Count() int {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return len(ns.proxies)
}
