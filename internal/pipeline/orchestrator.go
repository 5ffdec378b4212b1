package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flipscout/flipscout/internal/domain"
	"github.com/flipscout/flipscout/internal/notify"
)

// DealSubmitter is the slice of the deal lifecycle manager the orchestrator
// needs: submit a candidate and ask whether the active slot is free.
type DealSubmitter interface {
	Submit(ctx context.Context, score domain.OpportunityScore) (domain.Deal, error)
	SlotFree(ctx context.Context) (bool, error)
}

// Broadcaster delivers notifications filtered by event type.
type Broadcaster interface {
	Notify(ctx context.Context, event, title, message string) error
}

// CycleSink receives the summary of every finished scan cycle. Implementations
// must not block.
type CycleSink interface {
	CycleFinished(report CycleReport)
}

// OrchestratorConfig controls the scan loop.
type OrchestratorConfig struct {
	ScanInterval   time.Duration
	LockKey        string
	LockTTL        time.Duration
	Workers        int
	ResurfaceLimit int
	NotifyRetries  int
	NotifyBackoff  time.Duration

	// DedupTTL suppresses re-evaluation of listings whose URL and asking
	// price have not changed within the window. Zero disables suppression.
	DedupTTL time.Duration
}

// DefaultOrchestratorConfig returns the standard loop settings: a 15-minute
// scan cadence with a lock TTL slightly above it.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		ScanInterval:   15 * time.Minute,
		LockKey:        "scan_cycle",
		LockTTL:        20 * time.Minute,
		Workers:        4,
		ResurfaceLimit: 5,
		NotifyRetries:  3,
		NotifyBackoff:  2 * time.Second,
		DedupTTL:       time.Hour,
	}
}

// Orchestrator drives the scan/evaluate/submit loop on a ticker. A
// distributed lock keeps concurrent instances from racing a cycle; losing the
// lock skips the cycle rather than waiting.
type Orchestrator struct {
	scanner   *Scanner
	evaluator *Evaluator
	deals     DealSubmitter
	skips     domain.SkipStore
	locks     domain.LockManager
	notifier  Broadcaster
	reports   *ReportArchiver
	cycles    CycleSink
	dedup     *Dedup
	trigger   chan struct{}
	cfg       OrchestratorConfig
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator. The lock manager, notifier, and
// report archiver may be nil; the corresponding steps are skipped.
func NewOrchestrator(
	scanner *Scanner,
	evaluator *Evaluator,
	deals DealSubmitter,
	skips domain.SkipStore,
	locks domain.LockManager,
	notifier Broadcaster,
	reports *ReportArchiver,
	cfg OrchestratorConfig,
	logger *slog.Logger,
) *Orchestrator {
	def := DefaultOrchestratorConfig()
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = def.ScanInterval
	}
	if cfg.LockKey == "" {
		cfg.LockKey = def.LockKey
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.ResurfaceLimit <= 0 {
		cfg.ResurfaceLimit = def.ResurfaceLimit
	}
	if cfg.NotifyBackoff <= 0 {
		cfg.NotifyBackoff = def.NotifyBackoff
	}
	o := &Orchestrator{
		scanner:   scanner,
		evaluator: evaluator,
		deals:     deals,
		skips:     skips,
		locks:     locks,
		notifier:  notifier,
		reports:   reports,
		trigger:   make(chan struct{}, 1),
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "orchestrator")),
	}
	if cfg.DedupTTL > 0 {
		o.dedup = NewDedup(cfg.DedupTTL)
	}
	return o
}

// WithCycleSink streams finished cycle reports to sink, on top of the
// logging and archival finishCycle already does. It returns o for chaining.
func (o *Orchestrator) WithCycleSink(sink CycleSink) *Orchestrator {
	o.cycles = sink
	return o
}

// TriggerCh returns a channel that requests one extra scan cycle per send.
// Sends must be non-blocking; a pending trigger coalesces with later ones.
func (o *Orchestrator) TriggerCh() chan<- struct{} {
	return o.trigger
}

// Run executes scan cycles until the context is cancelled. The first cycle
// starts immediately.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.InfoContext(ctx, "scan loop starting",
		slog.Duration("interval", o.cfg.ScanInterval),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o.cycle(ctx)

		ticker := time.NewTicker(o.cfg.ScanInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				o.logger.Info("scan loop stopped")
				return nil
			case <-ticker.C:
				o.cycle(ctx)
			case <-o.trigger:
				o.logger.InfoContext(ctx, "scan cycle triggered manually")
				o.cycle(ctx)
			}
		}
	})
	return g.Wait()
}

// RunOnce executes a single scan cycle and returns. Used by one-shot scans
// and tests.
func (o *Orchestrator) RunOnce(ctx context.Context) {
	o.cycle(ctx)
}

// cycle runs one scan pass. Errors inside a cycle are logged, not returned:
// a failed cycle must not kill the loop.
func (o *Orchestrator) cycle(ctx context.Context) {
	if o.locks != nil {
		unlock, err := o.locks.Acquire(ctx, o.cfg.LockKey, o.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				o.logger.InfoContext(ctx, "cycle lock held elsewhere, skipping")
				return
			}
			o.logger.ErrorContext(ctx, "cycle lock acquire failed", slog.String("error", err.Error()))
			return
		}
		defer unlock()
	}

	report := CycleReport{
		StartedAt: time.Now().UTC(),
		Queries:   o.scanner.cfg.Queries,
	}

	// Parked conflict skips get first claim on a freed slot.
	o.resurface(ctx, &report)

	listings, discarded, err := o.scanner.Scan(ctx)
	if err != nil {
		o.logger.ErrorContext(ctx, "scan failed", slog.String("error", err.Error()))
		return
	}
	report.Scanned = len(listings) + discarded
	report.Discarded = discarded

	if o.dedup != nil {
		fresh := listings[:0]
		for _, l := range listings {
			if o.dedup.Seen(l) {
				report.Deduped++
				continue
			}
			fresh = append(fresh, l)
		}
		listings = fresh
	}

	scores, noData, err := o.evaluator.EvaluateAll(ctx, listings, o.cfg.Workers)
	if err != nil {
		o.logger.ErrorContext(ctx, "evaluation failed", slog.String("error", err.Error()))
		return
	}
	report.Evaluated = len(scores)
	report.NoPriceData = noData

	o.submitBest(ctx, scores, &report)

	report.FinishedAt = time.Now().UTC()
	o.finishCycle(ctx, report)

	if o.dedup != nil {
		o.dedup.Cleanup()
	}
}

// submitBest offers candidates to the deal manager in descending score order
// until one is accepted or every candidate has been classified.
func (o *Orchestrator) submitBest(ctx context.Context, scores []domain.OpportunityScore, report *CycleReport) {
	ranked := rank(scores)
	if len(ranked) > 0 {
		report.TopScore = ranked[0].TotalScore
	}

	for i, score := range ranked {
		d, err := o.deals.Submit(ctx, score)
		switch {
		case err == nil:
			report.SubmittedDeal = d.ID
			o.notifyPending(ctx, d)
			return
		case errors.Is(err, domain.ErrSafetyRejected):
			report.SafetyRejects++
		case errors.Is(err, domain.ErrQualityRejected):
			report.QualityCut++
		case errors.Is(err, domain.ErrConflict):
			// The slot is taken, so every later candidate would conflict
			// too. Submit already parked this one for resurfacing.
			report.Conflicts = len(ranked) - i
			return
		default:
			o.logger.ErrorContext(ctx, "deal submission failed",
				slog.String("item", score.Listing.Identity.Name),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}

// resurface re-submits the best parked conflict skip when the slot is free.
func (o *Orchestrator) resurface(ctx context.Context, report *CycleReport) {
	if o.skips == nil {
		return
	}

	free, err := o.deals.SlotFree(ctx)
	if err != nil {
		o.logger.ErrorContext(ctx, "slot check failed", slog.String("error", err.Error()))
		return
	}
	if !free {
		return
	}

	parked, err := o.skips.ListResurfaceable(ctx, o.cfg.ResurfaceLimit)
	if err != nil {
		o.logger.ErrorContext(ctx, "list resurfaceable failed", slog.String("error", err.Error()))
		return
	}

	for _, sk := range parked {
		if err := o.skips.MarkResurfaced(ctx, sk.ID); err != nil {
			o.logger.WarnContext(ctx, "mark resurfaced failed",
				slog.String("skip_id", sk.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if o.dedup != nil {
			o.dedup.Forget(sk.Listing)
		}

		// Re-evaluate against current prices; the parked score may be stale.
		score, err := o.evaluator.Evaluate(ctx, sk.Listing)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientData) {
				continue
			}
			o.logger.ErrorContext(ctx, "resurfaced evaluation failed",
				slog.String("item", sk.Listing.Identity.Name),
				slog.String("error", err.Error()),
			)
			continue
		}

		d, err := o.deals.Submit(ctx, score)
		if err != nil {
			o.logger.InfoContext(ctx, "resurfaced candidate not submitted",
				slog.String("item", sk.Listing.Identity.Name),
				slog.String("reason", err.Error()),
			)
			continue
		}

		o.logger.InfoContext(ctx, "resurfaced candidate submitted",
			slog.String("deal_id", d.ID),
			slog.String("item", d.Identity.Name),
		)
		report.SubmittedDeal = d.ID
		o.notifyPending(ctx, d)
		return
	}
}

// notifyPending delivers the approval request with bounded retries. The
// channel is at-least-once; a duplicate is preferable to a missed deal.
func (o *Orchestrator) notifyPending(ctx context.Context, d domain.Deal) {
	if o.notifier == nil {
		return
	}

	title, message := notify.FormatPendingDeal(d)
	backoff := o.cfg.NotifyBackoff
	for attempt := 0; ; attempt++ {
		err := o.notifier.Notify(ctx, notify.EventDealPending, title, message)
		if err == nil {
			return
		}
		if attempt >= o.cfg.NotifyRetries || ctx.Err() != nil {
			o.logger.ErrorContext(ctx, "pending-deal notification failed",
				slog.String("deal_id", d.ID),
				slog.Int("attempts", attempt+1),
				slog.String("error", err.Error()),
			)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (o *Orchestrator) finishCycle(ctx context.Context, report CycleReport) {
	o.logger.InfoContext(ctx, "scan cycle finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("evaluated", report.Evaluated),
		slog.Int("no_price_data", report.NoPriceData),
		slog.Int("safety_rejects", report.SafetyRejects),
		slog.Int("quality_cut", report.QualityCut),
		slog.Int("conflicts", report.Conflicts),
		slog.String("submitted_deal", report.SubmittedDeal),
		slog.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)

	if o.reports != nil {
		o.reports.Archive(ctx, report)
	}

	if o.cycles != nil {
		o.cycles.CycleFinished(report)
	}

	if o.notifier != nil {
		submitted := 0
		if report.SubmittedDeal != "" {
			submitted = 1
		}
		title, message := notify.FormatCycleSummary(notify.CycleStats{
			Query:         fmt.Sprintf("%v", report.Queries),
			Scanned:       report.Scanned,
			Evaluated:     report.Evaluated,
			SafetyRejects: report.SafetyRejects,
			QualityCut:    report.QualityCut,
			Conflicts:     report.Conflicts,
			Submitted:     submitted,
			Elapsed:       report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond).String(),
		})
		if err := o.notifier.Notify(ctx, notify.EventScanSummary, title, message); err != nil {
			o.logger.WarnContext(ctx, "cycle summary notification failed", slog.String("error", err.Error()))
		}
	}
}

// rank sorts scores best first using the domain tie-breaking rules.
func rank(scores []domain.OpportunityScore) []domain.OpportunityScore {
	out := make([]domain.OpportunityScore, len(scores))
	copy(out, scores)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Better(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
