package tracking

import "sync"

// TickCache answers joint lookups from a Source, asking the source at most
// once per joint and hand until Reset. Call Reset once per tick, after the
// source has been latched, so that several consumers share one reading.
type TickCache struct {
	src Source

	mu    sync.Mutex
	hands map[Handedness]*cachedHand
}

type cachedPose struct {
	pose    Pose
	ok      bool
	queried bool
}

type cachedHand [NumJoints + 1]cachedPose

// NewTickCache wraps src.
func NewTickCache(src Source) *TickCache {
	return &TickCache{src: src, hands: make(map[Handedness]*cachedHand)}
}

// Reset forgets every cached lookup.
func (c *TickCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.hands)
}

// TryGetJointPose returns the cached lookup, querying the source on the
// first request of the tick.
func (c *TickCache) TryGetJointPose(j Joint, hand Handedness) (Pose, bool) {
	if j <= None || int(j) > NumJoints {
		return c.src.TryGetJointPose(j, hand)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.hands[hand]
	if !ok {
		h = new(cachedHand)
		c.hands[hand] = h
	}
	e := &h[j]
	if !e.queried {
		e.pose, e.ok = c.src.TryGetJointPose(j, hand)
		e.queried = true
	}
	return e.pose, e.ok
}
