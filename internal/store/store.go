package store

import (
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/xaoc-labs/modcore/internal/core"
)

// RiskState is the mutable per-(community, user) risk record. It is created
// lazily on first reference and only ever reset, never destroyed. All
// mutation happens under the owning shard's lock via Update.
type RiskState struct {
	Score       float64
	LastUpdated time.Time

	// Violations is a human-readable audit trail. Appends are unbounded;
	// readers only ever surface the most recent entries.
	Violations []string

	SpamCount        int
	PhishingCount    int
	HoneypotCount    int
	NewAccountCount  int
	CommandSpamCount int
}

// UserRisk pairs a user with a copy of their risk state, for listings.
type UserRisk struct {
	UserID string
	State  RiskState
}

const shardCount = 32

type shard struct {
	mu     sync.Mutex
	states map[core.Key]*RiskState
}

// RiskStore is a sharded in-memory store of RiskState keyed by
// (community, user). Mutations for the same key are linearizable; unrelated
// keys land on independent shards and never contend on a global lock.
type RiskStore struct {
	shards [shardCount]*shard
	clock  core.Clock
	logger *log.Logger
}

// NewRiskStore creates an empty store. State is process-lifetime only and
// rebuilt empty on start.
func NewRiskStore(clock core.Clock) *RiskStore {
	if clock == nil {
		clock = core.SystemClock()
	}
	s := &RiskStore{
		clock:  clock,
		logger: log.New(log.Writer(), "[STORE] ", log.LstdFlags),
	}
	for i := range s.shards {
		s.shards[i] = &shard{states: make(map[core.Key]*RiskState)}
	}
	return s
}

func (s *RiskStore) shardFor(key core.Key) *shard {
	h := fnv.New32a()
	h.Write([]byte(key.String()))
	return s.shards[h.Sum32()%shardCount]
}

// getOrCreate must be called with the shard lock held.
func (sh *shard) getOrCreate(key core.Key, now time.Time) *RiskState {
	st, ok := sh.states[key]
	if !ok {
		st = &RiskState{LastUpdated: now}
		sh.states[key] = st
	}
	return st
}

// Update runs fn against the key's state under the shard lock, creating a
// zero-valued state first if none exists. After fn returns the score is
// clamped at zero; a negative score is an invariant violation and is logged,
// not propagated.
func (s *RiskStore) Update(key core.Key, fn func(*RiskState)) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := sh.getOrCreate(key, s.clock.Now())
	fn(st)
	if st.Score < 0 {
		s.logger.Printf("invariant violation: negative score %.2f for %s, clamping to 0", st.Score, key)
		st.Score = 0
	}
}

// Snapshot returns a copy of the key's state, creating a zero-valued entry
// if none exists. The copy's Violations slice is detached from the stored
// one, so callers can hold it without a lock.
func (s *RiskStore) Snapshot(key core.Key) RiskState {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := sh.getOrCreate(key, s.clock.Now())
	return copyState(st)
}

func copyState(st *RiskState) RiskState {
	out := *st
	out.Violations = append([]string(nil), st.Violations...)
	return out
}

// ListHighRisk returns every user in the community at or above the score
// threshold, unordered. Callers sort.
func (s *RiskStore) ListHighRisk(communityID string, threshold float64) []UserRisk {
	var out []UserRisk
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, st := range sh.states {
			if key.CommunityID == communityID && st.Score >= threshold {
				out = append(out, UserRisk{UserID: key.UserID, State: copyState(st)})
			}
		}
		sh.mu.Unlock()
	}
	return out
}

// ForEach visits every tracked state exactly once, holding the owning shard
// lock while fn runs. Used by the decay sweep; fn must not call back into
// the store.
func (s *RiskStore) ForEach(fn func(core.Key, *RiskState)) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, st := range sh.states {
			fn(key, st)
		}
		sh.mu.Unlock()
	}
}

// Reset zeroes the key's score, counters and audit trail, refreshing
// LastUpdated. The entry itself stays tracked.
func (s *RiskStore) Reset(key core.Key) {
	s.Update(key, func(st *RiskState) {
		*st = RiskState{LastUpdated: s.clock.Now()}
	})
}

// ResetCommunity drops every entry for the community. Administrative bulk
// clear; this is the only way callers bound memory growth per community.
func (s *RiskStore) ResetCommunity(communityID string) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key := range sh.states {
			if key.CommunityID == communityID {
				delete(sh.states, key)
			}
		}
		sh.mu.Unlock()
	}
}

// ResetAll drops every entry.
func (s *RiskStore) ResetAll() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.states = make(map[core.Key]*RiskState)
		sh.mu.Unlock()
	}
}

// Size returns the number of tracked (community, user) entries.
func (s *RiskStore) Size() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.states)
		sh.mu.Unlock()
	}
	return n
}
