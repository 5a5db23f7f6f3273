package heat

// Kind names a category of detected bad behavior. Each kind carries a fixed
// score weight.
type Kind string

const (
	KindSpam        Kind = "spam"         // ordinary spam message
	KindSpamBurst   Kind = "spam_burst"   // short-interval message flood
	KindPhishing    Kind = "phishing"     // phishing link
	KindHoneypot    Kind = "honeypot"     // honeypot channel trigger
	KindNewAccount  Kind = "new_account"  // suspicious new-account join
	KindCommandSpam Kind = "command_spam" // command-surface spam
)

// Weight returns the score delta applied when this kind is recorded.
func (k Kind) Weight() float64 {
	switch k {
	case KindSpam:
		return 10.0
	case KindSpamBurst:
		return 25.0
	case KindPhishing:
		return 50.0
	case KindHoneypot:
		return 100.0
	case KindNewAccount:
		return 15.0
	case KindCommandSpam:
		return 40.0
	default:
		return 0
	}
}

// Tier is the discrete danger classification derived from a score.
type Tier int

const (
	TierSafe Tier = iota
	TierLow
	TierModerate
	TierHigh
	TierCritical
)

func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "Critical"
	case TierHigh:
		return "High"
	case TierModerate:
		return "Moderate"
	case TierLow:
		return "Low"
	default:
		return "Safe"
	}
}

// TierFor maps a score to its danger tier. Bands are contiguous and
// inclusive on their lower bound.
func TierFor(score float64) Tier {
	switch {
	case score >= 100:
		return TierCritical
	case score >= 75:
		return TierHigh
	case score >= 50:
		return TierModerate
	case score >= 25:
		return TierLow
	default:
		return TierSafe
	}
}
