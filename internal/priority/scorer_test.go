package priority

import (
	"testing"
	"time"

	"github.com/inboxpilot/inboxpilot/internal/core"
)

var scoreNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testEmail() *core.EmailContext {
	return &core.EmailContext{
		ID:          "email-1",
		Category:    "work",
		Labels:      []string{"inbox"},
		Sentiment:   core.SentimentNeutral,
		ReceivedAt:  scoreNow.Add(-2 * time.Hour),
		IsRead:      false,
		TriageState: core.TriageUnassigned,
	}
}

func TestScore_Deterministic(t *testing.T) {
	email := testEmail()
	cfg := DefaultConfig()

	first := Score(email, cfg, scoreNow)
	second := Score(email, cfg, scoreNow)

	if first != second {
		t.Errorf("identical inputs scored differently: %v vs %v", first, second)
	}
}

func TestScore_MonotonicRecency(t *testing.T) {
	cfg := DefaultConfig()

	recent := testEmail()
	recent.ReceivedAt = scoreNow.Add(-time.Hour)

	old := testEmail()
	old.ReceivedAt = scoreNow.Add(-48 * time.Hour)

	if Score(recent, cfg, scoreNow) <= Score(old, cfg, scoreNow) {
		t.Error("more recent email should score higher, all else equal")
	}
}

func TestScore_RecencyNeverNegative(t *testing.T) {
	cfg := DefaultConfig()
	ancient := testEmail()
	ancient.ReceivedAt = scoreNow.Add(-10 * 365 * 24 * time.Hour)
	ancient.IsRead = true

	base := cfg.CategoryWeights["work"]
	if got := Score(ancient, cfg, scoreNow); got < base {
		t.Errorf("score %v dropped below category weight %v; recency went negative", got, base)
	}
}

func TestScore_FutureReceivedAtCountsAsNew(t *testing.T) {
	cfg := DefaultConfig()

	future := testEmail()
	future.ReceivedAt = scoreNow.Add(time.Hour)

	now := testEmail()
	now.ReceivedAt = scoreNow

	if Score(future, cfg, scoreNow) != Score(now, cfg, scoreNow) {
		t.Error("future-dated email should score like a brand new one")
	}
}

func TestScore_UnreadBonus(t *testing.T) {
	cfg := DefaultConfig()

	unread := testEmail()
	read := testEmail()
	read.IsRead = true

	diff := Score(unread, cfg, scoreNow) - Score(read, cfg, scoreNow)
	if diff != cfg.UnreadBonus {
		t.Errorf("unread bonus = %v, want %v", diff, cfg.UnreadBonus)
	}
}

func TestScore_NegativeSentimentRaises(t *testing.T) {
	cfg := DefaultConfig()

	negative := testEmail()
	negative.Sentiment = core.SentimentNegative

	neutral := testEmail()
	positive := testEmail()
	positive.Sentiment = core.SentimentPositive

	if Score(negative, cfg, scoreNow) <= Score(neutral, cfg, scoreNow) {
		t.Error("negative sentiment should raise the score")
	}
	if Score(positive, cfg, scoreNow) != Score(neutral, cfg, scoreNow) {
		t.Error("positive sentiment should not change the score")
	}
}

func TestScore_CategoryFallback(t *testing.T) {
	cfg := DefaultConfig()

	unknown := testEmail()
	unknown.Category = "carrier-pigeon"

	known := testEmail()
	known.Category = "work"

	want := cfg.DefaultCategoryWeight - cfg.CategoryWeights["work"]
	got := Score(unknown, cfg, scoreNow) - Score(known, cfg, scoreNow)
	if got != want {
		t.Errorf("unknown category delta = %v, want %v", got, want)
	}
}

func TestScore_SnoozeSuppression(t *testing.T) {
	cfg := DefaultConfig()

	until := scoreNow.Add(4 * time.Hour)
	snoozed := testEmail()
	snoozed.TriageState = core.TriageSnoozed
	snoozed.SnoozedUntil = &until

	active := testEmail()

	snoozedScore := Score(snoozed, cfg, scoreNow)
	activeScore := Score(active, cfg, scoreNow)

	if snoozedScore >= activeScore {
		t.Error("actively snoozed email should score below its non-snoozed twin")
	}
	if snoozedScore != activeScore*cfg.SnoozeSuppressionFactor {
		t.Errorf("snoozed score = %v, want %v", snoozedScore, activeScore*cfg.SnoozeSuppressionFactor)
	}
	if snoozedScore == 0 {
		t.Error("suppression must multiply, not zero, so snoozed emails keep their order")
	}
}

func TestScore_SnoozeExpired(t *testing.T) {
	cfg := DefaultConfig()

	until := scoreNow.Add(-time.Minute)
	expired := testEmail()
	expired.TriageState = core.TriageSnoozed
	expired.SnoozedUntil = &until

	active := testEmail()

	if Score(expired, cfg, scoreNow) != Score(active, cfg, scoreNow) {
		t.Error("a snooze that already elapsed should not suppress the score")
	}
}

func TestScore_SnoozedWithoutUntil(t *testing.T) {
	cfg := DefaultConfig()

	snoozed := testEmail()
	snoozed.TriageState = core.TriageSnoozed
	snoozed.SnoozedUntil = nil

	if Score(snoozed, cfg, scoreNow) != Score(testEmail(), cfg, scoreNow) {
		t.Error("snoozed state without a deadline should not suppress")
	}
}

func TestScore_DoneClampsToFloor(t *testing.T) {
	cfg := DefaultConfig()

	done := testEmail()
	done.Category = "urgent"
	done.TriageState = core.TriageDone

	if got := Score(done, cfg, scoreNow); got != cfg.DoneScoreFloor {
		t.Errorf("done score = %v, want floor %v", got, cfg.DoneScoreFloor)
	}
}

func TestScore_ZeroConfigFallsBackToDefaults(t *testing.T) {
	email := testEmail()

	if Score(email, Config{}, scoreNow) != Score(email, DefaultConfig(), scoreNow) {
		t.Error("a config that skipped normalization should score like the defaults")
	}
}

func TestScore_NilEmail(t *testing.T) {
	if got := Score(nil, DefaultConfig(), scoreNow); got != 0 {
		t.Errorf("nil email score = %v, want 0", got)
	}
}
