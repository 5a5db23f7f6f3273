package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaoc-labs/modcore/internal/core"
)

func testKey(user string) core.Key {
	return core.Key{CommunityID: "guild-1", UserID: user}
}

func TestUpdateCreatesAndMutates(t *testing.T) {
	clock := core.NewFixedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	s := NewRiskStore(clock)

	s.Update(testKey("alice"), func(st *RiskState) {
		st.Score += 10
		st.SpamCount++
	})

	got := s.Snapshot(testKey("alice"))
	assert.Equal(t, 10.0, got.Score)
	assert.Equal(t, 1, got.SpamCount)
	assert.Equal(t, 1, s.Size())
}

func TestUpdateClampsNegativeScore(t *testing.T) {
	s := NewRiskStore(nil)

	s.Update(testKey("alice"), func(st *RiskState) {
		st.Score = -5
	})

	assert.Equal(t, 0.0, s.Snapshot(testKey("alice")).Score)
}

func TestSnapshotDetachesViolations(t *testing.T) {
	s := NewRiskStore(nil)
	s.Update(testKey("alice"), func(st *RiskState) {
		st.Violations = append(st.Violations, "first")
	})

	snap := s.Snapshot(testKey("alice"))
	snap.Violations[0] = "mutated"

	assert.Equal(t, "first", s.Snapshot(testKey("alice")).Violations[0])
}

func TestSnapshotCreatesZeroEntry(t *testing.T) {
	clock := core.NewFixedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	s := NewRiskStore(clock)

	got := s.Snapshot(testKey("ghost"))
	assert.Equal(t, 0.0, got.Score)
	assert.Equal(t, clock.Now(), got.LastUpdated)
	assert.Equal(t, 1, s.Size())
}

func TestListHighRisk(t *testing.T) {
	s := NewRiskStore(nil)

	s.Update(testKey("low"), func(st *RiskState) { st.Score = 10 })
	s.Update(testKey("mid"), func(st *RiskState) { st.Score = 50 })
	s.Update(testKey("high"), func(st *RiskState) { st.Score = 90 })
	s.Update(core.Key{CommunityID: "guild-2", UserID: "other"}, func(st *RiskState) { st.Score = 200 })

	got := s.ListHighRisk("guild-1", 50)
	require.Len(t, got, 2)
	users := []string{got[0].UserID, got[1].UserID}
	assert.ElementsMatch(t, []string{"mid", "high"}, users)
}

func TestResetKeepsEntryTracked(t *testing.T) {
	clock := core.NewFixedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	s := NewRiskStore(clock)

	s.Update(testKey("alice"), func(st *RiskState) {
		st.Score = 80
		st.HoneypotCount = 1
		st.Violations = append(st.Violations, "honeypot")
	})

	clock.Advance(time.Minute)
	s.Reset(testKey("alice"))

	got := s.Snapshot(testKey("alice"))
	assert.Equal(t, 0.0, got.Score)
	assert.Equal(t, 0, got.HoneypotCount)
	assert.Empty(t, got.Violations)
	assert.Equal(t, clock.Now(), got.LastUpdated)
	assert.Equal(t, 1, s.Size())
}

func TestResetCommunityDropsOnlyThatCommunity(t *testing.T) {
	s := NewRiskStore(nil)
	s.Update(testKey("alice"), func(st *RiskState) { st.Score = 40 })
	s.Update(core.Key{CommunityID: "guild-2", UserID: "bob"}, func(st *RiskState) { st.Score = 40 })

	s.ResetCommunity("guild-1")

	assert.Equal(t, 1, s.Size())
	assert.Equal(t, 40.0, s.Snapshot(core.Key{CommunityID: "guild-2", UserID: "bob"}).Score)
}

func TestForEachVisitsEveryEntryOnce(t *testing.T) {
	s := NewRiskStore(nil)
	for i := 0; i < 50; i++ {
		s.Update(testKey(fmt.Sprintf("user-%d", i)), func(st *RiskState) { st.Score = 1 })
	}

	visits := make(map[core.Key]int)
	s.ForEach(func(key core.Key, st *RiskState) {
		visits[key]++
	})

	require.Len(t, visits, 50)
	for _, n := range visits {
		assert.Equal(t, 1, n)
	}
}

func TestConcurrentUpdatesAreLinearized(t *testing.T) {
	s := NewRiskStore(nil)
	key := testKey("alice")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(key, func(st *RiskState) { st.Score += 1 })
		}()
	}
	wg.Wait()

	assert.Equal(t, 100.0, s.Snapshot(key).Score)
}
