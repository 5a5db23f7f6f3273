package quarantine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaoc-labs/modcore/internal/core"
	"github.com/xaoc-labs/modcore/internal/heat"
	"github.com/xaoc-labs/modcore/internal/store"
)

func testKey(user string) core.Key {
	return core.Key{CommunityID: "guild-1", UserID: user}
}

func newTestEngine() *heat.Engine {
	clock := core.NewFixedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	return heat.NewEngine(store.NewRiskStore(clock), clock, heat.Config{})
}

func TestQuarantineSnapshotsAndRestricts(t *testing.T) {
	ctx := context.Background()
	gw := NewMemGateway()
	c := NewController(gw, NewMemRecordStore(), newTestEngine(), nil)

	gw.Grant("guild-1", "alice", "member")
	gw.Grant("guild-1", "alice", "uploader")

	outcome, err := c.Quarantine(ctx, testKey("alice"), "heat 80.0 (High)")
	require.NoError(t, err)
	assert.Equal(t, OutcomeContained, outcome)

	held, err := gw.ListPrivileges(ctx, "guild-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{RestrictedPrivilege}, held)

	quarantined, err := c.IsQuarantined(ctx, testKey("alice"))
	require.NoError(t, err)
	assert.True(t, quarantined)

	users, err := c.ListQuarantined(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, users)

	require.NotEmpty(t, gw.Notifications)
	assert.Contains(t, gw.Notifications[0], "alice: ")
	assert.Contains(t, gw.Notifications[0], "heat 80.0 (High)")
}

func TestQuarantineIsIdempotent(t *testing.T) {
	ctx := context.Background()
	gw := NewMemGateway()
	records := NewMemRecordStore()
	c := NewController(gw, records, newTestEngine(), nil)

	gw.Grant("guild-1", "alice", "member")

	_, err := c.Quarantine(ctx, testKey("alice"), "first")
	require.NoError(t, err)

	outcome, err := c.Quarantine(ctx, testKey("alice"), "second")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyQuarantined, outcome)

	// The original snapshot is untouched
	snapshot, ok, err := records.Get(ctx, testKey("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"member"}, snapshot)
}

func TestReleaseRestoresExactSnapshot(t *testing.T) {
	ctx := context.Background()
	gw := NewMemGateway()
	engine := newTestEngine()
	c := NewController(gw, NewMemRecordStore(), engine, nil)

	gw.Grant("guild-1", "alice", "member")
	gw.Grant("guild-1", "alice", "uploader")
	engine.RecordViolation(testKey("alice"), heat.KindHoneypot, "honeypot trigger")

	_, err := c.Quarantine(ctx, testKey("alice"), "honeypot")
	require.NoError(t, err)

	outcome, err := c.Release(ctx, testKey("alice"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReleased, outcome)

	held, err := gw.ListPrivileges(ctx, "guild-1", "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"member", "uploader"}, held)

	// Release is a full pardon
	assert.Equal(t, 0.0, engine.Score(testKey("alice")))

	users, err := c.ListQuarantined(ctx, "guild-1")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestReleaseIgnoresPrivilegesGrantedDuringQuarantine(t *testing.T) {
	ctx := context.Background()
	gw := NewMemGateway()
	c := NewController(gw, NewMemRecordStore(), newTestEngine(), nil)

	gw.Grant("guild-1", "alice", "member")

	_, err := c.Quarantine(ctx, testKey("alice"), "spam")
	require.NoError(t, err)

	// Another actor grants a privilege while alice is contained; release
	// must neither remove it nor treat it as part of the snapshot.
	gw.Grant("guild-1", "alice", "vip")

	outcome, err := c.Release(ctx, testKey("alice"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReleased, outcome)

	held, err := gw.ListPrivileges(ctx, "guild-1", "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"member", "vip"}, held)
}

func TestReleaseSkipsDeletedPrivileges(t *testing.T) {
	ctx := context.Background()
	gw := NewMemGateway()
	c := NewController(gw, NewMemRecordStore(), newTestEngine(), nil)

	gw.Grant("guild-1", "alice", "member")
	gw.Grant("guild-1", "alice", "uploader")

	_, err := c.Quarantine(ctx, testKey("alice"), "spam")
	require.NoError(t, err)

	// The uploader role is deleted while alice is contained
	gw.DeletePrivilege("guild-1", "uploader")

	outcome, err := c.Release(ctx, testKey("alice"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReleased, outcome)

	held, err := gw.ListPrivileges(ctx, "guild-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"member"}, held)
}

func TestReleaseOfActiveUserMakesNoChanges(t *testing.T) {
	ctx := context.Background()
	gw := NewMemGateway()
	c := NewController(gw, NewMemRecordStore(), newTestEngine(), nil)

	gw.Grant("guild-1", "alice", "member")

	outcome, err := c.Release(ctx, testKey("alice"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotQuarantined, outcome)

	held, err := gw.ListPrivileges(ctx, "guild-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"member"}, held)
	assert.Empty(t, gw.Notifications)
}

func TestReleaseAfterManualUnquarantine(t *testing.T) {
	ctx := context.Background()
	gw := NewMemGateway()
	records := NewMemRecordStore()
	c := NewController(gw, records, newTestEngine(), nil)

	gw.Grant("guild-1", "alice", "member")
	_, err := c.Quarantine(ctx, testKey("alice"), "spam")
	require.NoError(t, err)

	// A moderator strips the restricted privilege out of band
	require.NoError(t, gw.SetPrivileges(ctx, "guild-1", "alice", []string{RestrictedPrivilege}, nil))

	outcome, err := c.Release(ctx, testKey("alice"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotQuarantined, outcome)

	// The stale snapshot is dropped so listings agree with the gateway
	_, ok, err := records.Get(ctx, testKey("alice"))
	require.NoError(t, err)
	assert.False(t, ok)

	users, err := c.ListQuarantined(ctx, "guild-1")
	require.NoError(t, err)
	assert.Empty(t, users)
}

// failingGateway wraps MemGateway and fails selected operations.
type failingGateway struct {
	*MemGateway
	failSet       bool
	failCommunity bool
	setErr        error
}

func (g *failingGateway) SetPrivileges(ctx context.Context, communityID, userID string, remove, add []string) error {
	if g.failSet {
		if g.setErr != nil {
			return fmt.Errorf("set privileges for %s: %w", userID, g.setErr)
		}
		return ErrGatewayUnavailable
	}
	return g.MemGateway.SetPrivileges(ctx, communityID, userID, remove, add)
}

func (g *failingGateway) CommunityPrivileges(ctx context.Context, communityID string) ([]string, error) {
	if g.failCommunity {
		return nil, ErrGatewayUnavailable
	}
	return g.MemGateway.CommunityPrivileges(ctx, communityID)
}

func TestFailedQuarantineLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	gw := &failingGateway{MemGateway: NewMemGateway(), failSet: true}
	records := NewMemRecordStore()
	c := NewController(gw, records, newTestEngine(), nil)

	gw.Grant("guild-1", "alice", "member")

	outcome, err := c.Quarantine(ctx, testKey("alice"), "spam")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGatewayUnavailable))
	assert.Equal(t, OutcomeFailed, outcome)

	_, ok, err := records.Get(ctx, testKey("alice"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPermissionDeniedSurvivesWrapping(t *testing.T) {
	ctx := context.Background()
	gw := &failingGateway{MemGateway: NewMemGateway(), failSet: true, setErr: ErrPermissionDenied}
	records := NewMemRecordStore()
	c := NewController(gw, records, newTestEngine(), nil)

	gw.Grant("guild-1", "alice", "member")

	outcome, err := c.Quarantine(ctx, testKey("alice"), "spam")
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	// Callers classify through errors.Is across the gateway's and the
	// controller's wrapping layers
	assert.True(t, errors.Is(err, ErrPermissionDenied))
	assert.False(t, errors.Is(err, ErrGatewayUnavailable))

	_, ok, err := records.Get(ctx, testKey("alice"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFailedCommunityLookupKeepsRecordForRetry(t *testing.T) {
	ctx := context.Background()
	gw := &failingGateway{MemGateway: NewMemGateway()}
	records := NewMemRecordStore()
	c := NewController(gw, records, newTestEngine(), nil)

	gw.Grant("guild-1", "alice", "member")
	_, err := c.Quarantine(ctx, testKey("alice"), "spam")
	require.NoError(t, err)

	gw.failCommunity = true
	outcome, err := c.Release(ctx, testKey("alice"))
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	// Nothing was mutated; a later release can still restore
	_, ok, err := records.Get(ctx, testKey("alice"))
	require.NoError(t, err)
	assert.True(t, ok)

	gw.failCommunity = false
	outcome, err = c.Release(ctx, testKey("alice"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReleased, outcome)

	held, err := gw.ListPrivileges(ctx, "guild-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"member"}, held)
}

func TestMemRecordStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	rs := NewMemRecordStore()

	require.NoError(t, rs.Put(ctx, testKey("alice"), []string{"member", "uploader"}))
	require.NoError(t, rs.Put(ctx, testKey("bob"), nil))

	snapshot, ok, err := rs.Get(ctx, testKey("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"member", "uploader"}, snapshot)

	users, err := rs.List(ctx, "guild-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)

	require.NoError(t, rs.Delete(ctx, testKey("alice")))
	_, ok, err = rs.Get(ctx, testKey("alice"))
	require.NoError(t, err)
	assert.False(t, ok)
}
