package voice

import (
	"time"
)

// Channel identifies an audio output channel. Each channel plays at most
// one item at a time.
type Channel string

const (
	ChannelClip   Channel = "clip"
	ChannelSpeech Channel = "speech"
)

// Item is a pending announcement. Text is the resolved copy for speech
// items and the clip identifier for clip items.
type Item struct {
	Channel    Channel
	Text       string
	Priority   int
	Urgent     bool
	EnqueuedAt time.Time
}

// playQueue keeps items ordered by descending priority with FIFO ordering
// inside a priority class. Capacity is bounded; overflow evicts the oldest
// item of the lowest priority class, preferring an older item over the one
// being inserted. An insert that would itself be the sole lowest-priority
// item in a full queue is dropped instead.
type playQueue struct {
	items    []Item
	capacity int
}

func newPlayQueue(capacity int) *playQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &playQueue{capacity: capacity}
}

// push inserts the item at its priority position and reports whether it was
// admitted.
func (q *playQueue) push(item Item) bool {
	idx := len(q.items)
	for i, it := range q.items {
		if it.Priority < item.Priority {
			idx = i
			break
		}
	}
	q.items = append(q.items, Item{})
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = item

	if len(q.items) <= q.capacity {
		return true
	}

	// FIFO within a class puts the new item after its equal-priority
	// elders, so evicting the first of the lowest class only hits the new
	// item when it is that class's sole member.
	evict := q.oldestLowest()
	q.items = append(q.items[:evict], q.items[evict+1:]...)
	return evict != idx
}

// pushFront places an urgent item at the head regardless of priority.
func (q *playQueue) pushFront(item Item) {
	q.items = append([]Item{item}, q.items...)
	if len(q.items) > q.capacity {
		q.items = q.items[:q.capacity]
	}
}

// pop removes and returns the head item.
func (q *playQueue) pop() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

func (q *playQueue) clear() {
	q.items = q.items[:0]
}

func (q *playQueue) len() int {
	return len(q.items)
}

// oldestLowest returns the index of the first item of the minimal priority
// class. Within a class items are FIFO, so the first one is the oldest.
func (q *playQueue) oldestLowest() int {
	lowest := q.items[0].Priority
	idx := 0
	for i, it := range q.items {
		if it.Priority < lowest {
			lowest = it.Priority
			idx = i
		}
	}
	return idx
}
