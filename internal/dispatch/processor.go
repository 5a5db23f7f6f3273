// Package dispatch wires decoded activity events through the detectors,
// the risk engine and the containment controller. It is the only place the
// escalation cascade lives: quarantine first, timeout second, courtesy
// warning last.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/xaoc-labs/modcore/internal/core"
	"github.com/xaoc-labs/modcore/internal/detector"
	"github.com/xaoc-labs/modcore/internal/events"
	"github.com/xaoc-labs/modcore/internal/heat"
	"github.com/xaoc-labs/modcore/internal/monitoring"
	"github.com/xaoc-labs/modcore/internal/quarantine"
	"github.com/xaoc-labs/modcore/internal/screen"
)

// Config holds the pipeline's escalation tuning.
type Config struct {
	// MessageTimeout: timeout duration applied for message violations
	MessageTimeout time.Duration

	// CommandTimeout: timeout duration applied for command violations
	CommandTimeout time.Duration

	// Warn: emit a courtesy warning for low-heat message violations
	Warn bool
}

// DefaultConfig returns the standard escalation tuning.
func DefaultConfig() Config {
	return Config{
		MessageTimeout: 10 * time.Minute,
		CommandTimeout: 15 * time.Minute,
		Warn:           true,
	}
}

// Deps are the collaborators the processor drives.
type Deps struct {
	Engine     *heat.Engine
	Messages   *detector.MessageDetector
	Commands   *detector.CommandDetector
	Screens    *screen.Screens
	Controller *quarantine.Controller
	Actions    core.ActionSink
	Emitter    events.Emitter
	Clock      core.Clock
}

// Processor is the event-dispatch pipeline. One instance serves every
// community; per-key exclusion lives in the stores and detectors it calls,
// so unrelated users never serialize here.
type Processor struct {
	deps   Deps
	config Config
	logger *log.Logger
}

// NewProcessor creates the pipeline. Zero-valued config fields fall back to
// defaults; Emitter may be nil.
func NewProcessor(deps Deps, cfg Config) *Processor {
	def := DefaultConfig()
	if cfg.MessageTimeout == 0 {
		cfg.MessageTimeout = def.MessageTimeout
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = def.CommandTimeout
	}
	if deps.Clock == nil {
		deps.Clock = core.SystemClock()
	}
	return &Processor{
		deps:   deps,
		config: cfg,
		logger: log.New(log.Writer(), "[DISPATCH] ", log.LstdFlags),
	}
}

// HandleMessage runs a message event through the content screens and the
// message detector, then escalates. Failures of external actions are
// logged with full context and never crash the path for other users.
func (p *Processor) HandleMessage(ctx context.Context, evt core.MessageEvent) error {
	if evt.AuthorExempt {
		return nil
	}
	key := evt.Key()

	if f := p.deps.Screens.CheckMessage(evt.ChannelID, evt.Content); f != nil {
		p.submitAction(core.ActionRequest{
			Kind:        core.ActionDeleteMessage,
			CommunityID: evt.CommunityID,
			UserID:      evt.UserID,
			ChannelID:   evt.ChannelID,
			MessageID:   evt.MessageID,
			Reason:      f.Detail,
		})
		if !f.Honeypot {
			p.logger.Printf("message screened | user=%s reason=%s", key, f.Reason)
			return nil
		}
		score := p.deps.Engine.RecordViolation(key, heat.KindHoneypot, f.Detail)
		p.emitViolation(key, f.Reason, heat.KindHoneypot, score)
		return p.escalate(ctx, key, score, f.Detail, p.config.MessageTimeout, false)
	}

	v := p.deps.Messages.Evaluate(key, evt.Content, evt.MentionCount)
	if v == nil {
		return nil
	}

	kind := messageKind(v.Reason)
	p.submitAction(core.ActionRequest{
		Kind:        core.ActionDeleteMessage,
		CommunityID: evt.CommunityID,
		UserID:      evt.UserID,
		ChannelID:   evt.ChannelID,
		MessageID:   evt.MessageID,
		Reason:      v.Detail,
	})
	score := p.deps.Engine.RecordViolation(key, kind, v.Detail)
	p.emitViolation(key, v.Reason, kind, score)
	return p.escalate(ctx, key, score, v.Detail, p.config.MessageTimeout, p.config.Warn)
}

// HandleCommand runs a command invocation through the command detector and
// escalates. Command violations use a longer timeout and no courtesy
// warning.
func (p *Processor) HandleCommand(ctx context.Context, evt core.CommandEvent) error {
	if evt.AuthorExempt {
		return nil
	}
	key := evt.Key()

	v := p.deps.Commands.Evaluate(key, evt.CommandName)
	if v == nil {
		return nil
	}

	score := p.deps.Engine.RecordViolation(key, heat.KindCommandSpam, v.Detail)
	p.emitViolation(key, v.Reason, heat.KindCommandSpam, score)
	return p.escalate(ctx, key, score, v.Detail, p.config.CommandTimeout, false)
}

// HandleJoin applies the account-age policy: kick accounts too young to
// stay, flag young-but-tolerated ones. Flagged joins accumulate heat but do
// not themselves escalate.
func (p *Processor) HandleJoin(_ context.Context, evt core.JoinEvent) error {
	if evt.IsBot {
		return nil
	}
	key := evt.Key()

	age := p.deps.Clock.Now().Sub(evt.AccountCreatedAt)
	verdict, days := p.deps.Screens.CheckJoin(age)
	switch verdict {
	case screen.JoinKick:
		p.submitAction(core.ActionRequest{
			Kind:        core.ActionKick,
			CommunityID: evt.CommunityID,
			UserID:      evt.UserID,
			Reason:      fmt.Sprintf("account too new (%d days old)", days),
		})
	case screen.JoinFlag:
		detail := fmt.Sprintf("suspicious new account (%d days old)", days)
		score := p.deps.Engine.RecordViolation(key, heat.KindNewAccount, detail)
		p.emitViolation(key, "new_account", heat.KindNewAccount, score)
	}
	return nil
}

// escalate applies the priority cascade after a recorded violation. Score
// and tier are computed once and reused; quarantine wins when both the
// quarantine and timeout thresholds are crossed.
func (p *Processor) escalate(ctx context.Context, key core.Key, score float64, detail string, timeout time.Duration, warn bool) error {
	tier := heat.TierFor(score)

	if score >= p.deps.Engine.QuarantineThreshold() {
		monitoring.HighRiskSignalsTotal.Inc()
		p.emit(events.TypeHighRisk, key, map[string]interface{}{
			"score": score,
			"tier":  tier.String(),
		})
		reason := fmt.Sprintf("heat %.1f (%s) - %s", score, tier, detail)
		if _, err := p.deps.Controller.Quarantine(ctx, key, reason); err != nil {
			return fmt.Errorf("quarantine %s: %w", key, err)
		}
		return nil
	}

	if score >= p.deps.Engine.TimeoutThreshold() {
		p.submitAction(core.ActionRequest{
			Kind:        core.ActionTimeout,
			CommunityID: key.CommunityID,
			UserID:      key.UserID,
			Duration:    timeout,
			Reason:      detail,
		})
		return nil
	}

	if warn {
		p.submitAction(core.ActionRequest{
			Kind:        core.ActionWarn,
			CommunityID: key.CommunityID,
			UserID:      key.UserID,
			Reason:      "please stop spamming",
		})
	}
	return nil
}

func (p *Processor) submitAction(req core.ActionRequest) {
	req.ID = uuid.NewString()
	monitoring.ActionsEmittedTotal.WithLabelValues(string(req.Kind)).Inc()
	p.emit(events.TypeAction, core.Key{CommunityID: req.CommunityID, UserID: req.UserID},
		map[string]interface{}{"kind": string(req.Kind), "reason": req.Reason})
	if err := p.deps.Actions.Submit(req); err != nil {
		p.logger.Printf("action submission failed | kind=%s user=%s:%s reason=%q err=%v",
			req.Kind, req.CommunityID, req.UserID, req.Reason, err)
	}
}

func (p *Processor) emitViolation(key core.Key, reason string, kind heat.Kind, score float64) {
	p.emit(events.TypeViolation, key, map[string]interface{}{
		"reason": reason,
		"kind":   string(kind),
		"score":  score,
	})
}

func (p *Processor) emit(eventType string, key core.Key, data map[string]interface{}) {
	if p.deps.Emitter != nil {
		p.deps.Emitter.Emit(eventType, key, data)
	}
}

func messageKind(reason string) heat.Kind {
	if reason == "rate" {
		return heat.KindSpamBurst
	}
	return heat.KindSpam
}
