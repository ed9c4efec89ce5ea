package priority

import (
	"math"
	"time"

	"github.com/inboxpilot/inboxpilot/internal/core"
)

// Score computes the priority score for a classified email. Higher means
// more urgent. The function is pure and total: identical inputs always
// produce the identical score, the only time dependence is the explicit now
// parameter, and a config that never went through Normalize is replaced by
// the defaults instead of failing.
func Score(email *core.EmailContext, cfg Config, now time.Time) float64 {
	if email == nil {
		return 0
	}
	if !cfg.valid() {
		cfg = DefaultConfig()
	}

	base, ok := cfg.CategoryWeights[email.Category]
	if !ok {
		base = cfg.DefaultCategoryWeight
	}

	score := base
	score += recencyContribution(cfg, now.Sub(email.ReceivedAt))
	if !email.IsRead {
		score += cfg.UnreadBonus
	}
	score += cfg.SentimentWeights[email.Sentiment]

	switch email.TriageState {
	case core.TriageSnoozed:
		if email.SnoozedUntil != nil && email.SnoozedUntil.After(now) {
			score *= cfg.SnoozeSuppressionFactor
		}
	case core.TriageDone:
		// Done emails sink to the floor regardless of other factors.
		if score > cfg.DoneScoreFloor {
			score = cfg.DoneScoreFloor
		}
	default:
		if m, ok := cfg.TriageMultipliers[email.TriageState]; ok {
			score *= m
		}
	}

	return score
}

// recencyContribution decays exponentially with age, halving every
// RecencyHalfLife and approaching zero without ever going negative.
// Emails dated in the future count as brand new.
func recencyContribution(cfg Config, age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	halfLives := float64(age) / float64(cfg.RecencyHalfLife)
	return cfg.RecencyWeight * math.Exp2(-halfLives)
}
