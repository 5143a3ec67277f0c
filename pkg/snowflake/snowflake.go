package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// Epoch 2024-01-01T00:00:00Z in milliseconds
	Epoch int64 = 1704067200000

	NodeBits uint8 = 10
	StepBits uint8 = 12

	nodeMax   = -1 ^ (-1 << NodeBits)
	stepMask  = -1 ^ (-1 << StepBits)
	timeShift = NodeBits + StepBits
	nodeShift = StepBits
)

// ErrInvalidNode is returned for node ids outside [0, 1023]
var ErrInvalidNode = errors.New("snowflake: node id out of range")

// IDGenerator produces time ordered 63-bit ids, unique per node
type IDGenerator struct {
	mu     sync.Mutex
	lastMs int64
	nodeID int64
	step   int64
	now    func() time.Time
}

// NewIDGenerator creates a generator for the given node
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	if nodeID < 0 || nodeID > nodeMax {
		return nil, ErrInvalidNode
	}
	return &IDGenerator{nodeID: nodeID, now: time.Now}, nil
}

// NextID returns the next id. Ids from one generator are strictly increasing.
func (g *IDGenerator) NextID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms < g.lastMs {
		// clock moved backwards; keep issuing from the last seen millisecond
		ms = g.lastMs
	}

	if ms == g.lastMs {
		g.step = (g.step + 1) & stepMask
		if g.step == 0 {
			for ms <= g.lastMs {
				ms = g.now().UnixMilli()
			}
		}
	} else {
		g.step = 0
	}
	g.lastMs = ms

	return uint64((ms-Epoch)<<timeShift | g.nodeID<<nodeShift | g.step)
}

// Time returns the creation time encoded in id
func Time(id uint64) time.Time {
	return time.UnixMilli(int64(id>>timeShift) + Epoch)
}

// Node returns the node encoded in id
func Node(id uint64) int64 {
	return int64(id>>nodeShift) & nodeMax
}
