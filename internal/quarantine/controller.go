package quarantine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/xaoc-labs/modcore/internal/core"
	"github.com/xaoc-labs/modcore/internal/events"
	"github.com/xaoc-labs/modcore/internal/heat"
	"github.com/xaoc-labs/modcore/internal/monitoring"
)

// Outcome is the result of a containment transition.
type Outcome string

const (
	OutcomeContained          Outcome = "contained"
	OutcomeAlreadyQuarantined Outcome = "already_quarantined"
	OutcomeReleased           Outcome = "released"
	OutcomeNotQuarantined     Outcome = "not_quarantined"
	OutcomeFailed             Outcome = "failed"
)

// Controller is the quarantine state machine. A user is Active when no
// containment record exists and Quarantined while one does; transitions are
// triggered externally, never by the controller polling.
//
// Transitions for the same key are serialized behind a per-key mutex so a
// quarantine and a release cannot interleave. Gateway calls are
// single-attempt: a wrong retry could double-apply a role change.
type Controller struct {
	gateway PrivilegeGateway
	records RecordStore
	heat    *heat.Engine
	emitter events.Emitter
	logger  *log.Logger

	mu    sync.Mutex
	locks map[core.Key]*sync.Mutex
}

// NewController creates a containment controller. emitter may be nil.
func NewController(gateway PrivilegeGateway, records RecordStore, engine *heat.Engine, emitter events.Emitter) *Controller {
	return &Controller{
		gateway: gateway,
		records: records,
		heat:    engine,
		emitter: emitter,
		logger:  log.New(log.Writer(), "[QRTN] ", log.LstdFlags),
	}
}

func (c *Controller) keyLock(key core.Key) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks == nil {
		c.locks = make(map[core.Key]*sync.Mutex)
	}
	lk, ok := c.locks[key]
	if !ok {
		lk = &sync.Mutex{}
		c.locks[key] = lk
	}
	return lk
}

func (c *Controller) emit(eventType string, key core.Key, data map[string]interface{}) {
	if c.emitter != nil {
		c.emitter.Emit(eventType, key, data)
	}
}

// Quarantine snapshots the user's current privileges, strips them and
// grants the restricted privilege. Idempotent: a user already holding the
// restricted privilege is reported as such without re-snapshotting. On any
// gateway failure no snapshot is persisted, so no orphaned record can
// outlive a failed transition.
func (c *Controller) Quarantine(ctx context.Context, key core.Key, reason string) (Outcome, error) {
	lk := c.keyLock(key)
	lk.Lock()
	defer lk.Unlock()

	restricted, err := c.gateway.EnsureRestricted(ctx, key.CommunityID)
	if err != nil {
		c.fail("quarantine", key, reason, err)
		return OutcomeFailed, fmt.Errorf("ensure restricted privilege: %w", err)
	}

	current, err := c.gateway.ListPrivileges(ctx, key.CommunityID, key.UserID)
	if err != nil {
		c.fail("quarantine", key, reason, err)
		return OutcomeFailed, fmt.Errorf("list privileges: %w", err)
	}

	if contains(current, restricted) {
		c.logger.Printf("user already quarantined | user=%s", key)
		monitoring.QuarantinesTotal.WithLabelValues(string(OutcomeAlreadyQuarantined)).Inc()
		return OutcomeAlreadyQuarantined, nil
	}

	snapshot := current
	if err := c.gateway.SetPrivileges(ctx, key.CommunityID, key.UserID, snapshot, []string{restricted}); err != nil {
		c.fail("quarantine", key, reason, err)
		return OutcomeFailed, fmt.Errorf("apply restricted privileges: %w", err)
	}

	// Privileges are already swapped; losing the record here only costs
	// the restore set, so log and carry on.
	if err := c.records.Put(ctx, key, snapshot); err != nil {
		c.logger.Printf("containment record not persisted | user=%s err=%v", key, err)
	}

	if err := c.gateway.Notify(ctx, key.UserID,
		fmt.Sprintf("You have been quarantined in community %s. Reason: %s. Contact a moderator for review.", key.CommunityID, reason)); err != nil {
		c.logger.Printf("quarantine notification failed | user=%s err=%v", key, err)
	}

	c.logger.Printf("user quarantined | user=%s reason=%q snapshot=%d privileges", key, reason, len(snapshot))
	monitoring.QuarantinesTotal.WithLabelValues(string(OutcomeContained)).Inc()
	c.emit(events.TypeQuarantined, key, map[string]interface{}{"reason": reason})
	return OutcomeContained, nil
}

// Release removes the restricted privilege and restores the snapshotted
// set. Privileges that no longer exist in the community are silently
// skipped. The containment record is deleted unconditionally once a restore
// is attempted, so a failed restore can never leave a stale snapshot
// behind. A successful release resets the user's heat: release is a full
// pardon.
func (c *Controller) Release(ctx context.Context, key core.Key) (Outcome, error) {
	lk := c.keyLock(key)
	lk.Lock()
	defer lk.Unlock()

	restricted, exists, err := c.gateway.LookupRestricted(ctx, key.CommunityID)
	if err != nil {
		c.fail("release", key, "", err)
		return OutcomeFailed, fmt.Errorf("lookup restricted privilege: %w", err)
	}
	if !exists {
		c.dropStaleRecord(ctx, key)
		monitoring.ReleasesTotal.WithLabelValues(string(OutcomeNotQuarantined)).Inc()
		return OutcomeNotQuarantined, nil
	}

	current, err := c.gateway.ListPrivileges(ctx, key.CommunityID, key.UserID)
	if err != nil {
		c.fail("release", key, "", err)
		return OutcomeFailed, fmt.Errorf("list privileges: %w", err)
	}
	if !contains(current, restricted) {
		// Restriction was lifted out of band; the snapshot is dead weight
		// and must not keep the user on the quarantined listing.
		c.dropStaleRecord(ctx, key)
		monitoring.ReleasesTotal.WithLabelValues(string(OutcomeNotQuarantined)).Inc()
		return OutcomeNotQuarantined, nil
	}

	snapshot, hasRecord, err := c.records.Get(ctx, key)
	if err != nil {
		c.logger.Printf("containment record unreadable, releasing without restore | user=%s err=%v", key, err)
		hasRecord = false
	}

	var restore []string
	if hasRecord && len(snapshot) > 0 {
		existing, err := c.gateway.CommunityPrivileges(ctx, key.CommunityID)
		if err != nil {
			// Nothing mutated yet; keep the record for the next attempt.
			c.fail("release", key, "", err)
			return OutcomeFailed, fmt.Errorf("list community privileges: %w", err)
		}
		for _, p := range snapshot {
			if contains(existing, p) {
				restore = append(restore, p)
			}
		}
	}

	restoreErr := c.gateway.SetPrivileges(ctx, key.CommunityID, key.UserID, []string{restricted}, restore)

	// Restore was attempted; the record is spent either way.
	if err := c.records.Delete(ctx, key); err != nil {
		c.logger.Printf("containment record not deleted | user=%s err=%v", key, err)
	}

	if restoreErr != nil {
		c.fail("release", key, "", restoreErr)
		return OutcomeFailed, fmt.Errorf("restore privileges: %w", restoreErr)
	}

	c.heat.ResetUser(key)

	if err := c.gateway.Notify(ctx, key.UserID,
		fmt.Sprintf("Your restrictions in community %s have been lifted.", key.CommunityID)); err != nil {
		c.logger.Printf("release notification failed | user=%s err=%v", key, err)
	}

	c.logger.Printf("user released | user=%s restored=%d privileges", key, len(restore))
	monitoring.ReleasesTotal.WithLabelValues(string(OutcomeReleased)).Inc()
	c.emit(events.TypeReleased, key, map[string]interface{}{"restored": len(restore)})
	return OutcomeReleased, nil
}

// IsQuarantined reports whether the user currently holds the restricted
// privilege.
func (c *Controller) IsQuarantined(ctx context.Context, key core.Key) (bool, error) {
	restricted, exists, err := c.gateway.LookupRestricted(ctx, key.CommunityID)
	if err != nil {
		return false, fmt.Errorf("lookup restricted privilege: %w", err)
	}
	if !exists {
		return false, nil
	}
	current, err := c.gateway.ListPrivileges(ctx, key.CommunityID, key.UserID)
	if err != nil {
		return false, fmt.Errorf("list privileges: %w", err)
	}
	return contains(current, restricted), nil
}

// ListQuarantined returns the user IDs with a containment record in the
// community.
func (c *Controller) ListQuarantined(ctx context.Context, communityID string) ([]string, error) {
	return c.records.List(ctx, communityID)
}

// dropStaleRecord removes a containment record for a user found not to be
// quarantined, so listings cannot disagree with the gateway's view.
func (c *Controller) dropStaleRecord(ctx context.Context, key core.Key) {
	if _, ok, err := c.records.Get(ctx, key); err != nil || !ok {
		return
	}
	c.logger.Printf("dropping stale containment record | user=%s", key)
	if err := c.records.Delete(ctx, key); err != nil {
		c.logger.Printf("stale containment record not deleted | user=%s err=%v", key, err)
	}
}

func (c *Controller) fail(op string, key core.Key, reason string, err error) {
	stats := c.heat.Stats(key)
	c.logger.Printf("%s failed | user=%s reason=%q score=%.1f tier=%s err=%v",
		op, key, reason, stats.Score, stats.Tier, err)
	if op == "quarantine" {
		monitoring.QuarantinesTotal.WithLabelValues(string(OutcomeFailed)).Inc()
	} else {
		monitoring.ReleasesTotal.WithLabelValues(string(OutcomeFailed)).Inc()
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
