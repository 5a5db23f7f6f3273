// Package screen holds the stateless per-event content screens: honeypot
// channel hits, chat invite links, staged image-bait attacks, and the
// account-age policy for joins. Screens classify; they never act.
package screen

import (
	"fmt"
	"regexp"
	"time"
)

var (
	inviteLinkRe = regexp.MustCompile(`(https?:\/\/)?(www\.)?(discord\.(gg|io|me|li)|discordapp\.com\/invite|discord\.com\/invite)\/[^\s\/]+`)
	imageBaitRe  = regexp.MustCompile(`https://cdn\.discordapp\.com/attachments/\d+/\d+/([1-4]\.jpg)\?`)
)

// Config tunes the content screens.
type Config struct {
	// HoneypotChannelID: messages in this channel are honeypot triggers.
	// Empty disables the honeypot screen.
	HoneypotChannelID string

	// InviteLinks enables the invite-link screen
	InviteLinks bool

	// ImageBait enables the staged four-image bait screen
	ImageBait bool

	// KickUnderDays: joins from accounts younger than this are kicked
	KickUnderDays int

	// FlagUnderDays: joins younger than this (but old enough to stay) are
	// flagged as suspicious new accounts
	FlagUnderDays int
}

// DefaultConfig returns the standard screen tuning.
func DefaultConfig() Config {
	return Config{
		InviteLinks:   true,
		ImageBait:     true,
		KickUnderDays: 1,
		FlagUnderDays: 7,
	}
}

// Finding is a positive screen classification.
type Finding struct {
	// Reason is the stable reason code: "honeypot", "invite_link" or
	// "image_bait".
	Reason string

	// Detail is a human-readable description for logging and audit.
	Detail string

	// Honeypot marks findings that feed the honeypot violation kind;
	// other findings only warrant message deletion.
	Honeypot bool
}

// Screens evaluates message content and join metadata against the
// configured policies.
type Screens struct {
	config Config
}

// New creates the screens. Zero-valued age thresholds fall back to
// defaults; the boolean toggles are taken as configured.
func New(cfg Config) *Screens {
	def := DefaultConfig()
	if cfg.KickUnderDays == 0 {
		cfg.KickUnderDays = def.KickUnderDays
	}
	if cfg.FlagUnderDays == 0 {
		cfg.FlagUnderDays = def.FlagUnderDays
	}
	return &Screens{config: cfg}
}

// CheckMessage classifies a message, honeypot first. Returns nil when
// clean. First match wins; a honeypot hit is never also reported as an
// invite link.
func (s *Screens) CheckMessage(channelID, content string) *Finding {
	if s.config.HoneypotChannelID != "" && channelID == s.config.HoneypotChannelID {
		return &Finding{
			Reason:   "honeypot",
			Detail:   fmt.Sprintf("message in honeypot channel %s", channelID),
			Honeypot: true,
		}
	}

	if s.config.InviteLinks && inviteLinkRe.MatchString(content) {
		return &Finding{Reason: "invite_link", Detail: "message contains a server invite link"}
	}

	if s.config.ImageBait && isImageBait(content) {
		return &Finding{Reason: "image_bait", Detail: "message carries the staged four-image bait set"}
	}

	return nil
}

// isImageBait reports whether the content links all four staged bait images
// (1.jpg through 4.jpg) from the CDN. Partial sets are not flagged.
func isImageBait(content string) bool {
	matches := imageBaitRe.FindAllStringSubmatch(content, -1)
	if len(matches) < 4 {
		return false
	}
	found := make(map[string]bool, 4)
	for _, m := range matches {
		found[m[1]] = true
	}
	return len(found) == 4
}

// JoinVerdict is the account-age policy outcome for a join.
type JoinVerdict int

const (
	// JoinClean: account old enough, nothing to do
	JoinClean JoinVerdict = iota

	// JoinFlag: young account, record a new-account violation
	JoinFlag

	// JoinKick: account too young to stay
	JoinKick
)

// CheckJoin applies the account-age policy. accountAge is how old the
// joining account is at join time; the returned day count is for logging.
func (s *Screens) CheckJoin(accountAge time.Duration) (JoinVerdict, int) {
	days := int(accountAge.Hours() / 24)
	switch {
	case days < s.config.KickUnderDays:
		return JoinKick, days
	case days < s.config.FlagUnderDays:
		return JoinFlag, days
	default:
		return JoinClean, days
	}
}
