package detector

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/xaoc-labs/modcore/internal/core"
)

// Violation is a detector classification result. Violations are normal
// outputs, never errors.
type Violation struct {
	// Reason is the stable reason code: "rate", "duplicate",
	// "mention_flood", "newline_flood" or "repeat".
	Reason string

	// Detail is a human-readable description for the audit trail.
	Detail string
}

// entry is one observed activity: a normalized message content or a command
// name, with its arrival time.
type entry struct {
	at    time.Time
	value string
}

// window is a fixed-capacity ordered history of recent activity for one
// user. Oldest entries are evicted when capacity is exceeded or when they
// age out. Owned exclusively by its detector shard; never shared.
type window struct {
	capacity int
	entries  []entry
}

func newWindow(capacity int) *window {
	return &window{capacity: capacity}
}

func (w *window) add(e entry) {
	if len(w.entries) >= w.capacity {
		n := copy(w.entries, w.entries[1:])
		w.entries = w.entries[:n]
	}
	w.entries = append(w.entries, e)
}

// since returns the entries at or after cutoff. The returned slice aliases
// the window and must only be read under the shard lock.
func (w *window) since(cutoff time.Time) []entry {
	for i, e := range w.entries {
		if !e.at.Before(cutoff) {
			return w.entries[i:]
		}
	}
	return nil
}

// pruneBefore drops entries older than cutoff, returning how many were
// evicted.
func (w *window) pruneBefore(cutoff time.Time) int {
	kept := w.since(cutoff)
	evicted := len(w.entries) - len(kept)
	if evicted > 0 {
		w.entries = append(w.entries[:0], kept...)
	}
	return evicted
}

const windowShards = 16

// windowShard groups a subset of users' windows behind one lock, so
// unrelated users rarely contend and never serialize behind a global mutex.
type windowShard struct {
	mu      sync.Mutex
	windows map[core.Key]*window
}

type shardedWindows struct {
	capacity int
	shards   [windowShards]*windowShard
}

func newShardedWindows(capacity int) *shardedWindows {
	sw := &shardedWindows{capacity: capacity}
	for i := range sw.shards {
		sw.shards[i] = &windowShard{windows: make(map[core.Key]*window)}
	}
	return sw
}

func (sw *shardedWindows) shardFor(key core.Key) *windowShard {
	h := fnv.New32a()
	h.Write([]byte(key.String()))
	return sw.shards[h.Sum32()%windowShards]
}

// withWindow runs fn against the key's window under the shard lock,
// creating the window if needed.
func (sw *shardedWindows) withWindow(key core.Key, fn func(*window)) {
	sh := sw.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, ok := sh.windows[key]
	if !ok {
		w = newWindow(sw.capacity)
		sh.windows[key] = w
	}
	fn(w)
}

// sweep evicts entries older than cutoff from every window and drops users
// whose window becomes empty. Returns evicted entry count and remaining
// tracked users.
func (sw *shardedWindows) sweep(cutoff time.Time) (evicted, tracked int) {
	for _, sh := range sw.shards {
		sh.mu.Lock()
		for key, w := range sh.windows {
			evicted += w.pruneBefore(cutoff)
			if len(w.entries) == 0 {
				delete(sh.windows, key)
			}
		}
		tracked += len(sh.windows)
		sh.mu.Unlock()
	}
	return evicted, tracked
}

func (sw *shardedWindows) trackedUsers() int {
	n := 0
	for _, sh := range sw.shards {
		sh.mu.Lock()
		n += len(sh.windows)
		sh.mu.Unlock()
	}
	return n
}
