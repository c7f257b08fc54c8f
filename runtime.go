// Package actorcore wires together the scheduler, registry, group
// manager, and optional network layer into a single runnable process,
// replacing separate IModule/IServer lifecycle interfaces
// (imodule.go/iserver.go) with one Node type sized to an actor system
// rather than a game server.
package actorcore

import (
	"context"
	"fmt"

	"github.com/phuhao00/actorcore/actor"
	"github.com/phuhao00/actorcore/config"
	"github.com/phuhao00/actorcore/groupbackend"
	"github.com/phuhao00/actorcore/middleman"
	"github.com/phuhao00/actorcore/middleman/directory"
	"github.com/phuhao00/actorcore/middleman/discovery"
	"github.com/phuhao00/actorcore/middleman/spawnlog"
	"github.com/phuhao00/actorcore/namespace"
	"github.com/phuhao00/actorcore/wire"
)

// Module is a unit of start/stop lifecycle a Node manages, matching the
// shape of a generic IModule but scoped to actor-system components
// (a published service, a group bridge) instead of game subsystems.
type Module interface {
	OnStart(ctx context.Context) error
	OnStop(ctx context.Context) error
	Name() string
}

// Node is one actorcore process: the scheduler and registry every
// locally spawned actor shares, the group manager, the namespace cache
// of remote-actor proxies, and (if configured) the middleman that
// exposes all of it to the network.
type Node struct {
	ID        actor.NodeID
	Scheduler *actor.Scheduler
	Registry  *actor.Registry
	Groups    *actor.GroupManager
	Namespace *namespace.ActorNamespace
	Middleman *middleman.Middleman
	Bridge    *groupbackend.Bridge

	modules []Module
}

// NewNode assembles the in-process parts of a Node. Networking is added
// separately via EnableNetworking, since a Node that never talks to
// another process doesn't need a transport at all.
func NewNode(cfg config.NodeConfig) *Node {
	workers := cfg.SchedulerWorkers
	if workers <= 0 {
		workers = 4
	}
	throughput := cfg.Throughput
	if throughput <= 0 {
		throughput = 30
	}
	return &Node{
		ID:        actor.NewLocalNodeID(),
		Scheduler: actor.NewScheduler(workers, throughput),
		Registry:  actor.NewRegistry(),
		Groups:    actor.NewGroupManager(),
		Namespace: namespace.New(),
	}
}

// EnableNetworking builds a Middleman over transport for this node,
// wiring in whichever of discovery/directory/spawn-logging are present
// in cfg. Each dependency degrades independently: a zero-value
// ConsulConfig/RedisConfig/MongoConfig simply leaves that integration
// disabled rather than failing the whole node.
func (n *Node) EnableNetworking(cfg *config.RuntimeConfig, transport wire.Transport) error {
	var (
		disc middleman.ServiceDiscovery
		dir  middleman.NodeDirectory
		slog middleman.SpawnLogger
	)
	if cfg.Consul.Addr != "" {
		c, err := discovery.New(cfg.Consul)
		if err != nil {
			return fmt.Errorf("actorcore: consul discovery: %w", err)
		}
		disc = c
	}
	if cfg.Redis.Addr != "" || cfg.Redis.MasterName != "" {
		d, err := directory.New(cfg.Redis)
		if err != nil {
			return fmt.Errorf("actorcore: redis directory: %w", err)
		}
		dir = d
	}
	if cfg.Mongo.Database != "" {
		l, err := spawnlog.New(cfg.Mongo)
		if err != nil {
			return fmt.Errorf("actorcore: mongo spawn log: %w", err)
		}
		slog = l
	}

	n.Middleman = middleman.New(n.ID, n.Registry, n.Namespace, n.Scheduler, transport, disc, dir, slog)
	return nil
}

// EnableGroupBackend mirrors this node's local groups onto NSQ topics so
// every node subscribed to the same group name, not just actors local to
// this process, sees a Publish. Call after NewNode; it is independent of
// EnableNetworking.
func (n *Node) EnableGroupBackend(cfg config.NSQConfig, channel string) error {
	b, err := groupbackend.New(n.Groups, cfg, channel)
	if err != nil {
		return fmt.Errorf("actorcore: group backend: %w", err)
	}
	n.Bridge = b
	return nil
}

// Use registers a Module to be started/stopped alongside the node.
func (n *Node) Use(m Module) {
	n.modules = append(n.modules, m)
}

// Start runs OnStart for every registered module in registration order,
// stopping and unwinding already-started modules if one fails.
func (n *Node) Start(ctx context.Context) error {
	for i, m := range n.modules {
		if err := m.OnStart(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = n.modules[j].OnStop(ctx)
			}
			return fmt.Errorf("actorcore: module %q failed to start: %w", m.Name(), err)
		}
	}
	return nil
}

// Stop runs OnStop for every registered module in reverse registration
// order, then shuts down the scheduler.
func (n *Node) Stop(ctx context.Context) {
	for i := len(n.modules) - 1; i >= 0; i-- {
		_ = n.modules[i].OnStop(ctx)
	}
	if n.Bridge != nil {
		n.Bridge.Close()
	}
	if n.Middleman != nil {
		_ = n.Middleman.Close()
	}
	n.Scheduler.Shutdown()
}
