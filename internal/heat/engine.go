package heat

import (
	"fmt"
	"log"
	"time"

	"github.com/xaoc-labs/modcore/internal/core"
	"github.com/xaoc-labs/modcore/internal/monitoring"
	"github.com/xaoc-labs/modcore/internal/store"
)

// recentViolations is how many audit entries a stats snapshot surfaces.
const recentViolations = 10

// Config holds the engine's escalation thresholds.
type Config struct {
	// QuarantineThreshold: score at or above which ShouldQuarantine is true
	QuarantineThreshold float64

	// TimeoutThreshold: score at or above which ShouldTimeout is true
	TimeoutThreshold float64

	// HighRiskThreshold: default score floor for ListHighRisk
	HighRiskThreshold float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		QuarantineThreshold: 75.0,
		TimeoutThreshold:    50.0,
		HighRiskThreshold:   50.0,
	}
}

// Engine accumulates weighted violation scores per (community, user),
// applies decay, and answers threshold queries. It owns no external actions;
// callers decide whether to escalate.
type Engine struct {
	store  *store.RiskStore
	clock  core.Clock
	config Config
	logger *log.Logger
}

// NewEngine creates a risk engine over the given store. Zero-valued config
// fields fall back to defaults.
func NewEngine(st *store.RiskStore, clock core.Clock, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.QuarantineThreshold == 0 {
		cfg.QuarantineThreshold = def.QuarantineThreshold
	}
	if cfg.TimeoutThreshold == 0 {
		cfg.TimeoutThreshold = def.TimeoutThreshold
	}
	if cfg.HighRiskThreshold == 0 {
		cfg.HighRiskThreshold = def.HighRiskThreshold
	}
	if clock == nil {
		clock = core.SystemClock()
	}
	return &Engine{
		store:  st,
		clock:  clock,
		config: cfg,
		logger: log.New(log.Writer(), "[HEAT] ", log.LstdFlags),
	}
}

// RecordViolation adds the kind's weight to the user's score, bumps the
// matching counter and appends a timestamped audit entry. Side effect is on
// state only.
func (e *Engine) RecordViolation(key core.Key, kind Kind, detail string) float64 {
	weight := kind.Weight()
	now := e.clock.Now()

	var score float64
	e.store.Update(key, func(st *store.RiskState) {
		st.Score += weight
		st.LastUpdated = now
		entry := fmt.Sprintf("[%s] %s (+%.1f)", now.Format(time.RFC3339), detail, weight)
		st.Violations = append(st.Violations, entry)

		switch kind {
		case KindSpam, KindSpamBurst:
			st.SpamCount++
		case KindPhishing:
			st.PhishingCount++
		case KindHoneypot:
			st.HoneypotCount++
		case KindNewAccount:
			st.NewAccountCount++
		case KindCommandSpam:
			st.CommandSpamCount++
		}
		score = st.Score
	})

	monitoring.ViolationsTotal.WithLabelValues(string(kind)).Inc()
	monitoring.TrackedUsers.Set(float64(e.store.Size()))
	e.logger.Printf("violation recorded | user=%s kind=%s detail=%q score=%.1f tier=%s",
		key, kind, detail, score, TierFor(score))
	return score
}

// Score returns the user's current score.
func (e *Engine) Score(key core.Key) float64 {
	return e.store.Snapshot(key).Score
}

// ShouldQuarantine reports whether the user's score has reached the
// quarantine threshold.
func (e *Engine) ShouldQuarantine(key core.Key) bool {
	return e.Score(key) >= e.config.QuarantineThreshold
}

// ShouldTimeout reports whether the user's score has reached the timeout
// threshold. Not mutually exclusive with ShouldQuarantine; callers check
// quarantine first.
func (e *Engine) ShouldTimeout(key core.Key) bool {
	return e.Score(key) >= e.config.TimeoutThreshold
}

// DecayAll subtracts rate from every tracked score, clamped at zero, and
// refreshes LastUpdated on entries it changed. Visits each entry exactly
// once, under the same per-shard exclusion ordinary writers take. Returns
// the number of entries reduced.
func (e *Engine) DecayAll(rate float64) int {
	now := e.clock.Now()
	decayed := 0
	e.store.ForEach(func(_ core.Key, st *store.RiskState) {
		if st.Score <= 0 {
			return
		}
		st.Score -= rate
		if st.Score < 0 {
			st.Score = 0
		}
		st.LastUpdated = now
		decayed++
	})

	monitoring.DecaySweepsTotal.Inc()
	monitoring.DecayedUsersTotal.Add(float64(decayed))
	monitoring.TrackedUsers.Set(float64(e.store.Size()))
	return decayed
}

// ResetUser zeroes the user's score, counters and audit trail.
func (e *Engine) ResetUser(key core.Key) {
	e.store.Reset(key)
	e.logger.Printf("heat reset | user=%s", key)
}

// ResetCommunity drops all tracked state for the community.
func (e *Engine) ResetCommunity(communityID string) {
	e.store.ResetCommunity(communityID)
	e.logger.Printf("heat reset | community=%s", communityID)
}

// UserStats is a point-in-time view of one user's risk state.
type UserStats struct {
	Score            float64   `json:"score"`
	Tier             string    `json:"tier"`
	SpamCount        int       `json:"spam_count"`
	PhishingCount    int       `json:"phishing_count"`
	HoneypotCount    int       `json:"honeypot_count"`
	NewAccountCount  int       `json:"new_account_count"`
	CommandSpamCount int       `json:"command_spam_count"`
	RecentViolations []string  `json:"recent_violations"`
	LastUpdated      time.Time `json:"last_updated"`
}

// Stats returns a snapshot of the user's score, tier, counters and the most
// recent audit entries.
func (e *Engine) Stats(key core.Key) UserStats {
	st := e.store.Snapshot(key)
	recent := st.Violations
	if len(recent) > recentViolations {
		recent = recent[len(recent)-recentViolations:]
	}
	return UserStats{
		Score:            st.Score,
		Tier:             TierFor(st.Score).String(),
		SpamCount:        st.SpamCount,
		PhishingCount:    st.PhishingCount,
		HoneypotCount:    st.HoneypotCount,
		NewAccountCount:  st.NewAccountCount,
		CommandSpamCount: st.CommandSpamCount,
		RecentViolations: recent,
		LastUpdated:      st.LastUpdated,
	}
}

// HighRiskUser is one entry of a high-risk listing.
type HighRiskUser struct {
	UserID string  `json:"user_id"`
	Score  float64 `json:"score"`
	Tier   string  `json:"tier"`
}

// ListHighRisk returns all users in the community at or above threshold.
// A threshold of 0 uses the configured default. Output is unordered.
func (e *Engine) ListHighRisk(communityID string, threshold float64) []HighRiskUser {
	if threshold == 0 {
		threshold = e.config.HighRiskThreshold
	}
	entries := e.store.ListHighRisk(communityID, threshold)
	out := make([]HighRiskUser, 0, len(entries))
	for _, ent := range entries {
		out = append(out, HighRiskUser{
			UserID: ent.UserID,
			Score:  ent.State.Score,
			Tier:   TierFor(ent.State.Score).String(),
		})
	}
	return out
}

// QuarantineThreshold exposes the configured quarantine score floor.
func (e *Engine) QuarantineThreshold() float64 { return e.config.QuarantineThreshold }

// TimeoutThreshold exposes the configured timeout score floor.
func (e *Engine) TimeoutThreshold() float64 { return e.config.TimeoutThreshold }
