package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/inboxpilot/inboxpilot/internal/core"
	"github.com/inboxpilot/inboxpilot/internal/logging"
	"github.com/inboxpilot/inboxpilot/internal/priority"
	"github.com/inboxpilot/inboxpilot/internal/rules"
	"github.com/inboxpilot/inboxpilot/internal/storage"
)

// RunConfig bounds a batch evaluation run.
type RunConfig struct {
	BatchSize          int           // emails per account per run
	AccountParallelism int           // accounts processed concurrently
	CacheTTL           time.Duration // per-user rules/config cache lifetime
}

// DefaultRunConfig returns sensible defaults
func DefaultRunConfig() RunConfig {
	return RunConfig{
		BatchSize:          200,
		AccountParallelism: 4,
		CacheTTL:           10 * time.Minute,
	}
}

// Runner drives batch evaluation: for every account with pending classified
// emails it loads the user's scoring config and rules once, scores each
// email, and applies the rule pass. Accounts are independent, so they run
// with bounded parallelism; within one email, rules run strictly in order.
type Runner struct {
	emails *storage.EmailStore
	rules  *storage.RuleStore
	prefs  *storage.PrefStore
	links  *storage.LinkStore
	engine *Engine
	cache  *gocache.Cache
	cfg    RunConfig
}

// NewRunner creates a batch runner over the given database.
func NewRunner(db *storage.DB, cfg RunConfig) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultRunConfig().BatchSize
	}
	if cfg.AccountParallelism <= 0 {
		cfg.AccountParallelism = DefaultRunConfig().AccountParallelism
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultRunConfig().CacheTTL
	}

	links := storage.NewLinkStore(db)
	return &Runner{
		emails: storage.NewEmailStore(db),
		rules:  storage.NewRuleStore(db),
		prefs:  storage.NewPrefStore(db),
		links:  links,
		engine: New(links),
		cache:  gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		cfg:    cfg,
	}
}

// Report summarizes one evaluation run.
type Report struct {
	Accounts     int           `json:"accounts"`
	Emails       int           `json:"emails"`
	LinksCreated int           `json:"links_created"`
	Failures     int           `json:"failures"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Run evaluates every account with pending emails. Per-account failures
// are isolated: one broken account never stops the others. A run may be
// cancelled between emails via ctx; because link creation is idempotent,
// re-running over a partially processed set is always safe.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	users, err := r.emails.UsersWithPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	report := &Report{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.cfg.AccountParallelism)

	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(userID core.UserID) {
			defer wg.Done()
			defer func() { <-sem }()

			acct := r.runAccount(ctx, userID)

			mu.Lock()
			report.Accounts++
			report.Emails += acct.emails
			report.LinksCreated += acct.links
			report.Failures += acct.failures
			mu.Unlock()
		}(userID)
	}

	wg.Wait()
	report.Elapsed = time.Since(start)

	logging.WithFields(logging.Fields{
		"accounts": report.Accounts,
		"emails":   report.Emails,
		"links":    report.LinksCreated,
		"failures": report.Failures,
		"elapsed":  report.Elapsed,
	}).Info("evaluation run complete")

	return report, ctx.Err()
}

type accountReport struct {
	emails   int
	links    int
	failures int
}

// runAccount evaluates one account's pending emails. The user's config and
// rules load once and stay read-only for the account; overrides and
// existing links load once per batch.
func (r *Runner) runAccount(ctx context.Context, userID core.UserID) accountReport {
	var acct accountReport
	log := logging.WithField("user_id", string(userID))

	cfg, ruleList, err := r.userSetup(ctx, userID)
	if err != nil {
		log.WithField("error", err).Error("failed to load account setup")
		acct.failures++
		return acct
	}

	overrides, err := r.links.OverrideKeys(ctx, userID)
	if err != nil {
		log.WithField("error", err).Error("failed to load override set")
		acct.failures++
		return acct
	}
	existing, err := r.links.ExistingKeys(ctx, userID)
	if err != nil {
		log.WithField("error", err).Error("failed to load existing link set")
		acct.failures++
		return acct
	}

	emails, err := r.emails.ListPending(ctx, userID, r.cfg.BatchSize)
	if err != nil {
		log.WithField("error", err).Error("failed to list pending emails")
		acct.failures++
		return acct
	}

	for _, email := range emails {
		if ctx.Err() != nil {
			return acct
		}

		acct.emails++
		email.PriorityScore = priority.Score(email, cfg, time.Now().UTC())
		if err := r.emails.SetPriorityScore(ctx, email.ID, email.PriorityScore); err != nil {
			// Score persistence is separate from link creation; the rule
			// pass still runs.
			log.WithFields(logging.Fields{
				"email_id": string(email.ID),
				"error":    err,
			}).Error("failed to persist priority score")
			acct.failures++
		}

		result := r.engine.Apply(ctx, userID, email, ruleList, overrides, existing)
		acct.links += len(result.Created)
		acct.failures += len(result.Failures)

		if len(result.Failures) > 0 {
			// Leave the email pending so the failed inserts get retried
			// on the next run.
			continue
		}
		if err := r.emails.MarkEvaluated(ctx, email.ID); err != nil {
			log.WithFields(logging.Fields{
				"email_id": string(email.ID),
				"error":    err,
			}).Error("failed to mark email evaluated")
			acct.failures++
		}
	}

	return acct
}

// userSetup returns the user's normalized scoring config and enabled rules.
// The setup is cached across runs; rule and config edits take effect once
// CacheTTL elapses, never mid-run.
func (r *Runner) userSetup(ctx context.Context, userID core.UserID) (priority.Config, []*rules.Rule, error) {
	type setup struct {
		cfg   priority.Config
		rules []*rules.Rule
	}

	key := "setup:" + string(userID)
	if cached, ok := r.cache.Get(key); ok {
		s := cached.(setup)
		return s.cfg, s.rules, nil
	}

	raw, err := r.prefs.PriorityConfig(ctx, userID)
	if err != nil {
		return priority.Config{}, nil, fmt.Errorf("load priority config: %w", err)
	}
	ruleList, err := r.rules.ListEnabled(ctx, userID)
	if err != nil {
		return priority.Config{}, nil, fmt.Errorf("load rules: %w", err)
	}

	s := setup{cfg: priority.Normalize(raw), rules: ruleList}
	r.cache.SetDefault(key, s)
	return s.cfg, s.rules, nil
}
