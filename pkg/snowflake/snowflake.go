package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// Epoch is 2024-01-01T00:00:00Z in milliseconds. Changing it invalidates ordering
	// against ids already persisted.
	Epoch int64 = 1704067200000

	NodeBits uint8 = 10
	StepBits uint8 = 12

	nodeMask  = -1 ^ (-1 << NodeBits)
	stepMask  = -1 ^ (-1 << StepBits)
	timeShift = NodeBits + StepBits
	nodeShift = StepBits
)

// ErrInvalidNode is returned for node ids outside [0, 1023]
var ErrInvalidNode = errors.New("snowflake: node id out of range")

// IDGenerator produces unique, time-ordered 63-bit ids for one node.
// Safe for concurrent use.
type IDGenerator struct {
	mu        sync.Mutex
	nowMillis func() int64
	timestamp int64
	nodeID    int64
	step      int64
}

// NewIDGenerator creates a new ID generator
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	if nodeID < 0 || nodeID > nodeMask {
		return nil, ErrInvalidNode
	}

	return &IDGenerator{
		nowMillis: func() int64 { return time.Now().UnixMilli() },
		nodeID:    nodeID,
	}, nil
}

// NextID generates a new ID. If the wall clock steps backwards the generator
// keeps issuing ids from the last seen millisecond so ordering is preserved.
func (g *IDGenerator) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowMillis()
	if now < g.timestamp {
		now = g.timestamp
	}

	if now == g.timestamp {
		g.step = (g.step + 1) & stepMask
		if g.step == 0 {
			for now <= g.timestamp {
				now = g.nowMillis()
			}
		}
	} else {
		g.step = 0
	}

	g.timestamp = now

	return ((now - Epoch) << timeShift) | (g.nodeID << nodeShift) | g.step
}

// ID is a decoded identifier
type ID struct {
	Time time.Time
	Node int64
	Step int64
}

// Parse splits an id into its components
func Parse(id int64) ID {
	return ID{
		Time: time.UnixMilli((id >> timeShift) + Epoch),
		Node: (id >> nodeShift) & nodeMask,
		Step: id & stepMask,
	}
}
