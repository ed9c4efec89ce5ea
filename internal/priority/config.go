// Package priority computes numeric priority scores for classified emails.
package priority

import (
	"encoding/json"
	"math"
	"time"

	"github.com/inboxpilot/inboxpilot/internal/core"
	"github.com/inboxpilot/inboxpilot/internal/logging"
)

// Config holds the named coefficients of the scoring formula. It is loaded
// per user, normalized against the hard-coded defaults, and treated as a
// value object afterwards - never mutated.
type Config struct {
	// Category weight table with a fallback for categories not in the table.
	CategoryWeights       map[string]float64 `json:"category_weights"`
	DefaultCategoryWeight float64            `json:"default_category_weight"`

	// Recency contribution decays exponentially towards zero.
	RecencyWeight   float64       `json:"recency_weight"`
	RecencyHalfLife time.Duration `json:"-"`

	// Added when the email is unread.
	UnreadBonus float64 `json:"unread_bonus"`

	// Negative sentiment raises the score; positive and neutral do not.
	SentimentWeights map[core.Sentiment]float64 `json:"sentiment_weights"`

	// Applied as a post-multiplier while an email is actively snoozed.
	// Near zero but not zero, so ordering among snoozed emails stays stable.
	SnoozeSuppressionFactor float64 `json:"snooze_suppression_factor"`

	// Done emails are clamped down to this ceiling.
	DoneScoreFloor float64 `json:"done_score_floor"`

	// Multipliers for the remaining triage states. Missing states count as 1.
	TriageMultipliers map[core.TriageState]float64 `json:"triage_multipliers"`
}

// DefaultConfig returns the hard-coded scoring defaults every stored
// configuration is normalized against.
func DefaultConfig() Config {
	return Config{
		CategoryWeights: map[string]float64{
			"invoice":    40,
			"urgent":     50,
			"personal":   25,
			"work":       30,
			"newsletter": 5,
			"promotion":  2,
			"social":     8,
		},
		DefaultCategoryWeight: 15,
		RecencyWeight:         30,
		RecencyHalfLife:       12 * time.Hour,
		UnreadBonus:           10,
		SentimentWeights: map[core.Sentiment]float64{
			core.SentimentNegative: 8,
			core.SentimentNeutral:  0,
			core.SentimentPositive: 0,
		},
		SnoozeSuppressionFactor: 0.05,
		DoneScoreFloor:          1,
		TriageMultipliers: map[core.TriageState]float64{
			core.TriageUnassigned: 1,
			core.TriageTriaged:    1,
		},
	}
}

// valid reports whether the config came through normalization. A zero-value
// Config handed to Score falls back to the defaults instead of failing.
func (c Config) valid() bool {
	return c.CategoryWeights != nil && c.RecencyHalfLife > 0
}

// rawConfig mirrors the loosely-typed stored shape. Pointer fields
// distinguish absent values from explicit zeroes.
type rawConfig struct {
	CategoryWeights         map[string]float64 `json:"category_weights"`
	DefaultCategoryWeight   *float64           `json:"default_category_weight"`
	RecencyWeight           *float64           `json:"recency_weight"`
	RecencyHalfLifeHours    *float64           `json:"recency_half_life_hours"`
	UnreadBonus             *float64           `json:"unread_bonus"`
	SentimentWeights        map[string]float64 `json:"sentiment_weights"`
	SnoozeSuppressionFactor *float64           `json:"snooze_suppression_factor"`
	DoneScoreFloor          *float64           `json:"done_score_floor"`
	TriageMultipliers       map[string]float64 `json:"triage_multipliers"`
}

// Normalize turns loosely-typed stored configuration into a strict Config.
// It is total: any missing, mistyped, or out-of-range field is replaced by
// its default, and the result is always usable. Malformed input is logged,
// never propagated.
func Normalize(raw json.RawMessage) Config {
	cfg := DefaultConfig()
	if len(raw) == 0 {
		return cfg
	}

	var rc rawConfig
	if err := json.Unmarshal(raw, &rc); err != nil {
		// encoding/json keeps decoding past type errors, so whatever
		// fields did parse are still applied below.
		logging.WithField("error", err).Warn("priority config partially malformed, defaulting bad fields")
	}

	if rc.CategoryWeights != nil {
		weights := make(map[string]float64, len(rc.CategoryWeights))
		for cat, w := range rc.CategoryWeights {
			if finiteWeight(w) {
				weights[cat] = w
			}
		}
		cfg.CategoryWeights = weights
	}
	if rc.DefaultCategoryWeight != nil && finiteWeight(*rc.DefaultCategoryWeight) {
		cfg.DefaultCategoryWeight = *rc.DefaultCategoryWeight
	}
	if rc.RecencyWeight != nil && finiteWeight(*rc.RecencyWeight) {
		cfg.RecencyWeight = *rc.RecencyWeight
	}
	if rc.RecencyHalfLifeHours != nil && *rc.RecencyHalfLifeHours > 0 && !math.IsInf(*rc.RecencyHalfLifeHours, 0) {
		cfg.RecencyHalfLife = time.Duration(*rc.RecencyHalfLifeHours * float64(time.Hour))
	}
	if rc.UnreadBonus != nil && finiteWeight(*rc.UnreadBonus) {
		cfg.UnreadBonus = *rc.UnreadBonus
	}
	if rc.SentimentWeights != nil {
		weights := map[core.Sentiment]float64{
			core.SentimentNegative: 0,
			core.SentimentNeutral:  0,
			core.SentimentPositive: 0,
		}
		for name, w := range rc.SentimentWeights {
			s := core.Sentiment(name)
			if _, ok := weights[s]; ok && finiteWeight(w) {
				weights[s] = w
			}
		}
		cfg.SentimentWeights = weights
	}
	if rc.SnoozeSuppressionFactor != nil {
		f := *rc.SnoozeSuppressionFactor
		if finiteWeight(f) && f <= 1 {
			cfg.SnoozeSuppressionFactor = f
		}
	}
	if rc.DoneScoreFloor != nil && finiteWeight(*rc.DoneScoreFloor) {
		cfg.DoneScoreFloor = *rc.DoneScoreFloor
	}
	if rc.TriageMultipliers != nil {
		mult := make(map[core.TriageState]float64, len(rc.TriageMultipliers))
		for name, m := range rc.TriageMultipliers {
			state := core.TriageState(name)
			switch state {
			case core.TriageUnassigned, core.TriageTriaged:
				if finiteWeight(m) {
					mult[state] = m
				}
			}
		}
		cfg.TriageMultipliers = mult
	}

	return cfg
}

// finiteWeight accepts non-negative finite values.
func finiteWeight(f float64) bool {
	return f >= 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
