package help

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// IDGenerator is a Snowflake-style 64-bit unique ID generator: a
// millisecond timestamp, a node id, and a per-millisecond sequence
// packed into one integer. actorcore uses it for spawn-log entry ids
// and other cross-process correlation tokens, not for any
// gameplay-domain entity.
type IDGenerator struct {
	mutex    sync.Mutex
	epoch    int64
	nodeID   int64
	sequence int64
	lastTime int64
}

const (
	sequenceBits  = 12
	nodeIDBits    = 10
	timestampBits = 41

	maxNodeID   = (1 << nodeIDBits) - 1
	maxSequence = (1 << sequenceBits) - 1

	nodeIDShift    = sequenceBits
	timestampShift = sequenceBits + nodeIDBits

	customEpoch = 1577836800000 // 2020-01-01 00:00:00 UTC, in milliseconds
)

var (
	defaultGenerator *IDGenerator
	once             sync.Once
)

// GetDefaultIDGenerator returns the process-wide default generator.
func GetDefaultIDGenerator() *IDGenerator {
	once.Do(func() {
		defaultGenerator = NewIDGenerator(1)
	})
	return defaultGenerator
}

// NewIDGenerator creates a generator scoped to nodeID (0-1023).
func NewIDGenerator(nodeID int64) *IDGenerator {
	if nodeID < 0 || nodeID > maxNodeID {
		panic(fmt.Sprintf("node ID must be between 0 and %d", maxNodeID))
	}
	return &IDGenerator{epoch: customEpoch, nodeID: nodeID}
}

// GenerateID returns the next unique id, blocking briefly if the
// per-millisecond sequence space is exhausted.
func (g *IDGenerator) GenerateID() uint64 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	now := time.Now().UnixMilli()
	if now < g.lastTime {
		panic("clock moved backwards")
	}

	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			for now <= g.lastTime {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now

	timestamp := now - g.epoch
	id := (timestamp << timestampShift) | (g.nodeID << nodeIDShift) | g.sequence
	return uint64(id)
}

// GenerateIDString is GenerateID formatted as a decimal string.
func (g *IDGenerator) GenerateIDString() string {
	return Uint64ToString(g.GenerateID())
}

// SimpleIDGenerator is a plain incrementing counter with an optional
// string prefix, used where Snowflake's clock dependency isn't needed
// (tests, single-process demos).
type SimpleIDGenerator struct {
	mutex   sync.Mutex
	counter uint64
	prefix  string
}

// NewSimpleIDGenerator creates a counter starting just after startFrom.
func NewSimpleIDGenerator(prefix string, startFrom uint64) *SimpleIDGenerator {
	return &SimpleIDGenerator{counter: startFrom, prefix: prefix}
}

// Next returns the next id as a string, with the configured prefix.
func (s *SimpleIDGenerator) Next() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.counter++
	if s.prefix != "" {
		return fmt.Sprintf("%s%d", s.prefix, s.counter)
	}
	return strconv.FormatUint(s.counter, 10)
}

// NextUint64 returns the next id as a uint64.
func (s *SimpleIDGenerator) NextUint64() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.counter++
	return s.counter
}

// GenerateUniqueID draws the next id from the default generator.
func GenerateUniqueID() uint64 {
	return GetDefaultIDGenerator().GenerateID()
}

// GenerateUniqueIDString draws the next id from the default generator,
// formatted as a decimal string.
func GenerateUniqueIDString() string {
	return GetDefaultIDGenerator().GenerateIDString()
}

func Uint64ToString(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func StringToUint64(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
