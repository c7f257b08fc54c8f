// Package middleman implements the single well-known actor that owns
// every network connection a process has to its peers: publish/open a
// local actor for remote access, connect to a peer, dispatch inbound
// frames to local actors or outbound frames to the right connection,
// and relay spawn requests, grounded in libcaf_io's
// middleman_actor_impl.cpp and a raw-socket RPC client/server pairing
// connection-pooling pattern).
package middleman

import (
	"context"
	"encoding"
	"fmt"
	"log"
	"sync"

	"github.com/phuhao00/actorcore/actor"
	"github.com/phuhao00/actorcore/namespace"
	"github.com/phuhao00/actorcore/wire"
)

var (
	// ErrBindFailure is returned by Publish when the transport cannot
	// bind the requested address.
	ErrBindFailure = fmt.Errorf("middleman: failed to bind listen address")
	// ErrNetwork wraps any transport-level send/receive failure that
	// isn't specific enough to warrant its own type.
	ErrNetwork = fmt.Errorf("middleman: network error")
)

// CannotConnectError reports a failed Connect, carrying enough detail
// for a caller to retry against a different address.
type CannotConnectError struct {
	Host string
	Port uint16
	Err  error
}

func (e *CannotConnectError) Error() string {
	return fmt.Sprintf("middleman: cannot connect to %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *CannotConnectError) Unwrap() error { return e.Err }

// RemotePayload is the contract a message must satisfy to cross the
// network: binary marshaling only, with the type registered under name
// on both ends ahead of time (RegisterType). This is the boundary past
// which actorcore does not attempt arbitrary user-type serialization
// .
type RemotePayload interface {
	encoding.BinaryMarshaler
}

type payloadFactory func() encoding.BinaryUnmarshaler

// Middleman owns every outbound/inbound connection for one node and
// bridges them to the local actor.Registry and namespace.ActorNamespace.
type Middleman struct {
	self      actor.NodeID
	registry  *actor.Registry
	ns        *namespace.ActorNamespace
	scheduler *actor.Scheduler
	transport wire.Transport

	mu        sync.Mutex
	conns     map[actor.NodeID]wire.Conn
	listening []string

	typesMu sync.Mutex
	types   map[string]payloadFactory

	spawnMu       sync.Mutex
	spawners      map[string]actor.Spawner
	nextSpawnReq  uint64
	pendingSpawns map[uint64]chan spawnResult

	discovery ServiceDiscovery
	directory NodeDirectory
	spawnLog  SpawnLogger
}

type spawnResult struct {
	id  actor.ActorID
	err string
}

// ServiceDiscovery is the narrow interface middleman needs from a
// service registry (satisfied by middleman/discovery.Client, backed by
// Consul).
type ServiceDiscovery interface {
	Register(id, name, addr string, port int) error
	Deregister(id string) error
	Resolve(name string) (addr string, port int, err error)
}

// NodeDirectory is the narrow interface middleman needs from a shared
// cross-process node directory (satisfied by middleman/directory.Cache,
// backed by Redis).
type NodeDirectory interface {
	Put(node actor.NodeID, addr string) error
	Get(node actor.NodeID) (addr string, ok bool)
}

// SpawnLogger records spawn attempts for audit (satisfied by
// middleman/spawnlog.Log, backed by Mongo). Optional: a nil SpawnLogger
// makes RecordSpawn a no-op.
type SpawnLogger interface {
	RecordSpawn(ctx context.Context, node actor.NodeID, typeName string, ok bool, detail string)
}

// New builds a Middleman for this process. discovery/directory/spawnLog
// may be nil; each absent dependency degrades its feature gracefully
// ("optional: if no config is supplied, spawn logging is
// a no-op", extended the same way to discovery/directory here).
func New(self actor.NodeID, registry *actor.Registry, ns *namespace.ActorNamespace, scheduler *actor.Scheduler, transport wire.Transport, discovery ServiceDiscovery, directory NodeDirectory, spawnLog SpawnLogger) *Middleman {
	return &Middleman{
		self:          self,
		registry:      registry,
		ns:            ns,
		scheduler:     scheduler,
		transport:     transport,
		conns:         make(map[actor.NodeID]wire.Conn),
		types:         make(map[string]payloadFactory),
		spawners:      make(map[string]actor.Spawner),
		pendingSpawns: make(map[uint64]chan spawnResult),
		discovery:     discovery,
		directory:     directory,
		spawnLog:      spawnLog,
	}
}

// RegisterType associates a wire type name with a zero-value factory,
// required on both ends of a connection before a payload of that type
// can be decoded after a remote dispatch.
func (m *Middleman) RegisterType(name string, factory func() encoding.BinaryUnmarshaler) {
	m.typesMu.Lock()
	defer m.typesMu.Unlock()
	m.types[name] = factory
}

// RegisterSpawner makes typeName available to remote spawn() requests.
func (m *Middleman) RegisterSpawner(typeName string, spawner actor.Spawner) {
	m.spawnMu.Lock()
	defer m.spawnMu.Unlock()
	m.spawners[typeName] = spawner
}

// Publish starts accepting inbound connections on listenAddr. If
// discovery is configured, the node also registers itself under
// serviceName so peers can find it by name instead of address.
func (m *Middleman) Publish(ctx context.Context, listenAddr, serviceName string, port int) error {
	err := m.transport.Listen(ctx, listenAddr, m.acceptConn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBindFailure, err)
	}
	m.mu.Lock()
	m.listening = append(m.listening, listenAddr)
	m.mu.Unlock()
	if m.discovery != nil && serviceName != "" {
		if err := m.discovery.Register(serviceName, serviceName, hostOf(listenAddr), port); err != nil {
			log.Printf("middleman: service registration for %s failed: %v", serviceName, err)
		}
	}
	return nil
}

// Unpublish deregisters serviceName from discovery, if configured. The
// underlying listener is left running ("stop accepting
// new peers" out of scope for a single Unpublish call across multiple
// published names sharing one listener).
func (m *Middleman) Unpublish(serviceName string) error {
	if m.discovery == nil {
		return nil
	}
	return m.discovery.Deregister(serviceName)
}

// Connect dials addr, exchanges a hello, and returns the peer's node id.
// When discovery is configured it is always asked first to resolve addr
// as a service name; if that resolution fails, addr is dialed as given.
func (m *Middleman) Connect(ctx context.Context, addr string) (actor.NodeID, error) {
	target := addr
	if m.discovery != nil {
		if host, port, err := m.discovery.Resolve(addr); err == nil {
			target = fmt.Sprintf("%s:%d", host, port)
		}
	}

	conn, err := m.transport.Dial(ctx, target)
	if err != nil {
		return actor.NodeID{}, &CannotConnectError{Host: target, Err: err}
	}

	if err := m.sendHello(conn); err != nil {
		conn.Close()
		return actor.NodeID{}, &CannotConnectError{Host: target, Err: err}
	}
	peer, err := m.recvHello(conn)
	if err != nil {
		conn.Close()
		return actor.NodeID{}, &CannotConnectError{Host: target, Err: err}
	}

	m.mu.Lock()
	m.conns[peer] = conn
	m.mu.Unlock()
	go m.readLoop(peer, conn)

	if m.directory != nil {
		_ = m.directory.Put(peer, target)
	}
	return peer, nil
}

// Close tears down every open connection and stops accepting new ones.
func (m *Middleman) Close() error {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[actor.NodeID]wire.Conn)
	m.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
	return m.transport.Close()
}

func (m *Middleman) acceptConn(conn wire.Conn) {
	peer, err := m.recvHello(conn)
	if err != nil {
		log.Printf("middleman: hello handshake failed from %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	if err := m.sendHello(conn); err != nil {
		log.Printf("middleman: hello reply failed to %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	m.mu.Lock()
	m.conns[peer] = conn
	m.mu.Unlock()
	m.readLoop(peer, conn)
}

func (m *Middleman) sendHello(conn wire.Conn) error {
	buf := actor.EncodeNodeID(m.self)
	return conn.Send(wire.Frame{Kind: wire.KindHello, Payload: buf[:]})
}

func (m *Middleman) recvHello(conn wire.Conn) (actor.NodeID, error) {
	f, err := conn.Recv()
	if err != nil {
		return actor.NodeID{}, err
	}
	if f.Kind != wire.KindHello {
		return actor.NodeID{}, fmt.Errorf("middleman: expected hello, got frame kind %d", f.Kind)
	}
	if len(f.Payload) != 4+actor.HostIDSize {
		return actor.NodeID{}, fmt.Errorf("middleman: malformed hello payload (%d bytes)", len(f.Payload))
	}
	var buf [4 + actor.HostIDSize]byte
	copy(buf[:], f.Payload)
	return actor.DecodeNodeID(buf), nil
}

// SendRemote implements namespace.Sender: it serializes and forwards a
// mailbox element addressed to a remote actor over the connection for
// node.
func (m *Middleman) SendRemote(node actor.NodeID, sender, receiver actor.ActorAddr, mid actor.MessageID, payload actor.Message) error {
	m.mu.Lock()
	conn, ok := m.conns[node]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no connection to %s", ErrNetwork, node)
	}

	rp, ok := payload.(RemotePayload)
	if !ok {
		return fmt.Errorf("middleman: payload %T does not implement RemotePayload", payload)
	}
	typeName := fmt.Sprintf("%T", payload)
	body, err := rp.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", ErrNetwork, typeName, err)
	}

	senderNode := sender.Node()
	enc := wire.NewEncoder()
	enc.WriteUint64(uint64(senderNode.ProcessID))
	enc.WriteBytes(senderNode.HostID[:])
	enc.WriteUint64(uint64(sender.ID()))
	enc.WriteUint64(uint64(receiver.ID()))
	enc.WriteUint64(mid.Uint64())
	enc.WriteString(typeName)
	enc.WriteBytes(body)

	if err := conn.Send(wire.Frame{Kind: wire.KindDispatch, Payload: enc.Bytes()}); err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return nil
}

func (m *Middleman) readLoop(peer actor.NodeID, conn wire.Conn) {
	defer func() {
		m.mu.Lock()
		delete(m.conns, peer)
		m.mu.Unlock()
		conn.Close()
		for _, p := range m.ns.EraseNode(peer) {
			p.MarkDown(actor.ExitUnknown)
		}
		log.Printf("middleman: connection to %s closed", peer)
	}()

	for {
		f, err := conn.Recv()
		if err != nil {
			return
		}
		switch f.Kind {
		case wire.KindDispatch:
			m.handleDispatch(peer, f.Payload)
		case wire.KindSpawnRequest:
			m.handleSpawnRequest(peer, conn, f.Payload)
		case wire.KindSpawnReply:
			m.handleSpawnReply(f.Payload)
		default:
			log.Printf("middleman: dropping unsupported frame kind %d from %s", f.Kind, peer)
		}
	}
}

// RequestSpawn asks the peer identified by node to spawn typeName and
// returns the resulting remote actor's id as a Proxy, mirroring
// the spawn(node, type_name, args) operation. typeName must have
// been registered with RegisterSpawner on the remote end.
func (m *Middleman) RequestSpawn(ctx context.Context, node actor.NodeID, typeName string) (*namespace.Proxy, error) {
	m.mu.Lock()
	conn, ok := m.conns[node]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: no connection to %s", ErrNetwork, node)
	}

	m.spawnMu.Lock()
	m.nextSpawnReq++
	reqID := m.nextSpawnReq
	ch := make(chan spawnResult, 1)
	m.pendingSpawns[reqID] = ch
	m.spawnMu.Unlock()

	enc := wire.NewEncoder()
	enc.WriteUint64(reqID)
	enc.WriteString(typeName)
	if err := conn.Send(wire.Frame{Kind: wire.KindSpawnRequest, Payload: enc.Bytes()}); err != nil {
		m.spawnMu.Lock()
		delete(m.pendingSpawns, reqID)
		m.spawnMu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	select {
	case res := <-ch:
		if res.err != "" {
			return nil, fmt.Errorf("middleman: remote spawn of %q failed: %s", typeName, res.err)
		}
		p := m.ns.GetOrPut(node, res.id, func() *namespace.Proxy {
			return namespace.NewProxy(node, res.id, m)
		})
		return p, nil
	case <-ctx.Done():
		m.spawnMu.Lock()
		delete(m.pendingSpawns, reqID)
		m.spawnMu.Unlock()
		return nil, ctx.Err()
	}
}

func (m *Middleman) handleSpawnRequest(peer actor.NodeID, conn wire.Conn, payload []byte) {
	dec := wire.NewDecoder(payload)
	reqID, err := dec.ReadUint64()
	if err != nil {
		log.Printf("middleman: malformed spawn request from %s: %v", peer, err)
		return
	}
	typeName, err := dec.ReadString()
	if err != nil {
		log.Printf("middleman: malformed spawn request from %s: %v", peer, err)
		return
	}

	m.spawnMu.Lock()
	spawner, ok := m.spawners[typeName]
	m.spawnMu.Unlock()

	reply := wire.NewEncoder()
	reply.WriteUint64(reqID)
	if !ok {
		reply.WriteBool(false)
		reply.WriteString(fmt.Sprintf("unregistered spawn type %q", typeName))
		_ = conn.Send(wire.Frame{Kind: wire.KindSpawnReply, Payload: reply.Bytes()})
		if m.spawnLog != nil {
			m.spawnLog.RecordSpawn(context.Background(), peer, typeName, false, "unregistered type")
		}
		return
	}

	a := actor.Spawn(m.registry, m.scheduler, m.self, typeName, spawner)
	reply.WriteBool(true)
	reply.WriteUint64(uint64(a.ID()))
	if err := conn.Send(wire.Frame{Kind: wire.KindSpawnReply, Payload: reply.Bytes()}); err != nil {
		log.Printf("middleman: failed to reply to spawn request from %s: %v", peer, err)
	}
	if m.spawnLog != nil {
		m.spawnLog.RecordSpawn(context.Background(), peer, typeName, true, a.String())
	}
}

func (m *Middleman) handleSpawnReply(payload []byte) {
	dec := wire.NewDecoder(payload)
	reqID, err := dec.ReadUint64()
	if err != nil {
		return
	}
	ok, err := dec.ReadBool()
	if err != nil {
		return
	}

	m.spawnMu.Lock()
	ch, found := m.pendingSpawns[reqID]
	delete(m.pendingSpawns, reqID)
	m.spawnMu.Unlock()
	if !found {
		return
	}

	if !ok {
		errStr, _ := dec.ReadString()
		ch <- spawnResult{err: errStr}
		return
	}
	id, err := dec.ReadUint64()
	if err != nil {
		ch <- spawnResult{err: err.Error()}
		return
	}
	ch <- spawnResult{id: actor.ActorID(id)}
}

func (m *Middleman) handleDispatch(peer actor.NodeID, payload []byte) {
	dec := wire.NewDecoder(payload)
	senderProcessID, err := dec.ReadUint64()
	if err != nil {
		log.Printf("middleman: dropping malformed dispatch frame from %s: %v", peer, err)
		return
	}
	senderHost, err := dec.ReadBytes()
	if err != nil {
		log.Printf("middleman: dropping malformed dispatch frame from %s: %v", peer, err)
		return
	}
	senderID, err := dec.ReadUint64()
	if err != nil {
		return
	}
	receiverID, err := dec.ReadUint64()
	if err != nil {
		return
	}
	midRaw, err := dec.ReadUint64()
	if err != nil {
		return
	}
	typeName, err := dec.ReadString()
	if err != nil {
		return
	}
	body, err := dec.ReadBytes()
	if err != nil {
		return
	}

	m.typesMu.Lock()
	factory, ok := m.types[typeName]
	m.typesMu.Unlock()
	if !ok {
		log.Printf("middleman: no registered type %q, dropping frame from %s", typeName, peer)
		return
	}
	value := factory()
	if err := value.UnmarshalBinary(body); err != nil {
		log.Printf("middleman: failed to decode %q from %s: %v", typeName, peer, err)
		return
	}

	local, ok := m.registry.Lookup(actor.ActorID(receiverID))
	if !ok {
		log.Printf("middleman: dispatch to unknown local actor %d from %s dropped", receiverID, peer)
		return
	}

	var remoteHost actor.HostID
	copy(remoteHost[:], senderHost)
	senderNode := actor.NodeID{ProcessID: uint32(senderProcessID), HostID: remoteHost}
	senderProxy := m.ns.GetOrPut(senderNode, actor.ActorID(senderID), func() *namespace.Proxy {
		return namespace.NewProxy(senderNode, actor.ActorID(senderID), m)
	})

	local.Enqueue(actor.NewActorAddr(senderProxy), actor.NewActorAddr(local), actor.MessageIDFromUint64(midRaw), value, nil)
}

func hostOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
