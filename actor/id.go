package actor

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
)

// ActorID uniquely identifies an actor within a single process. Assigned
// at construction and never reused for the lifetime of the process.
type ActorID uint32

func (id ActorID) String() string {
	return fmt.Sprintf("%d", uint32(id))
}

var actorIDCounter uint32

// NextActorID draws the next value from the process-wide actor id counter.
func NextActorID() ActorID {
	return ActorID(atomic.AddUint32(&actorIDCounter, 1))
}

// HostIDSize is the length in bytes of a node's host fingerprint, a
// 160-bit hash (the same size crypto/sha1 produces).
const HostIDSize = 20

// HostID is a 160-bit host fingerprint hash. NewLocalNodeID mixes a
// random UUID into it, so it is not stable: two processes on the same
// machine, or two runs of one process, get different HostIDs.
type HostID [HostIDSize]byte

// NodeID identifies a process: a process id plus the host it runs on.
// Two nodes are equal iff both fields match.
type NodeID struct {
	ProcessID uint32
	HostID    HostID
}

func (n NodeID) String() string {
	return fmt.Sprintf("%d@%x", n.ProcessID, n.HostID[:6])
}

// Equal reports whether two node ids name the same process on the same host.
func (n NodeID) Equal(other NodeID) bool {
	return n.ProcessID == other.ProcessID && n.HostID == other.HostID
}

func (n NodeID) IsZero() bool {
	return n.ProcessID == 0 && n.HostID == HostID{}
}

// NewLocalNodeID derives a node id for the running process: the OS pid
// plus a host fingerprint hashed down to 20 bytes with SHA-1, seeded by
// the hostname and a random UUID so that two processes on the same
// machine that both fail to read a hostname still end up with distinct
// fingerprints.
func NewLocalNodeID() NodeID {
	host, _ := os.Hostname()
	seed := host + "|" + uuid.NewString()
	sum := sha1.Sum([]byte(seed))
	var hid HostID
	copy(hid[:], sum[:])
	return NodeID{ProcessID: uint32(os.Getpid()), HostID: hid}
}

// EncodeNodeID writes a node id as the 4+20 byte wire form named in
// ("comparable, hashable, serializable as 4 + 20 bytes").
func EncodeNodeID(n NodeID) [4 + HostIDSize]byte {
	var buf [4 + HostIDSize]byte
	binary.BigEndian.PutUint32(buf[:4], n.ProcessID)
	copy(buf[4:], n.HostID[:])
	return buf
}

// DecodeNodeID is the inverse of EncodeNodeID.
func DecodeNodeID(buf [4 + HostIDSize]byte) NodeID {
	var n NodeID
	n.ProcessID = binary.BigEndian.Uint32(buf[:4])
	copy(n.HostID[:], buf[4:])
	return n
}
