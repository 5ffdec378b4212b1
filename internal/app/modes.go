package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/flipscout/flipscout/internal/deal"
	"github.com/flipscout/flipscout/internal/domain"
	"github.com/flipscout/flipscout/internal/grading"
	"github.com/flipscout/flipscout/internal/notify"
	"github.com/flipscout/flipscout/internal/pipeline"
	"github.com/flipscout/flipscout/internal/pricetruth"
	"github.com/flipscout/flipscout/internal/scoring"
	"github.com/flipscout/flipscout/internal/server"
	"github.com/flipscout/flipscout/internal/server/handler"
	"github.com/flipscout/flipscout/internal/server/ws"
	"github.com/flipscout/flipscout/internal/vault"
)

// ScanMode runs the scan loop headless: no HTTP API, no WebSocket feed.
// Deals still land in pending_approval and wait for a decision delivered via
// a separate serve instance or directly through the database.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	g, ctx := errgroup.WithContext(ctx)

	manager := a.buildManager(deps, nil)
	orch := a.buildOrchestrator(deps, manager)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	a.startArchiveLoop(ctx, g, deps)

	return g.Wait()
}

// ServeMode runs only the HTTP + WebSocket API: deal queries, the decision
// channel, the audit trail, and the skip log. No scanning happens.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := a.startHub(ctx, g)
	manager := a.buildManager(deps, hub)
	a.startHTTPServer(ctx, g, deps, manager, hub, nil)

	return g.Wait()
}

// FullMode runs the scan loop and the API server in one process. Deal
// transitions made by either side fan out to WebSocket subscribers.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := a.startHub(ctx, g)
	manager := a.buildManager(deps, hub)

	orch := a.buildOrchestrator(deps, manager).WithCycleSink(hub)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		scan := handler.NewScanHandler(a.logger).WithTriggerChannel(orch.TriggerCh())
		a.startHTTPServer(ctx, g, deps, manager, hub, scan)
	}

	a.startArchiveLoop(ctx, g, deps)

	return g.Wait()
}

// startHub creates the WebSocket hub and runs its broadcast loop.
func (a *App) startHub(ctx context.Context, g *errgroup.Group) *ws.Hub {
	hub := ws.NewHub(a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})
	return hub
}

// buildManager assembles the deal lifecycle manager. Lifecycle events fan
// out to the notifier and, when present, the WebSocket hub.
func (a *App) buildManager(deps *Dependencies, hub *ws.Hub) *deal.Manager {
	var hubSink deal.EventSink
	if hub != nil {
		hubSink = hub
	}
	return deal.NewManager(
		deps.DealStore,
		deps.SkipStore,
		deal.MultiSink(notify.NewTransitionSink(deps.Notifier, a.logger), hubSink),
		deal.Config{
			MinTotalScore: a.cfg.Deal.MinTotalScore,
			MinProfit:     a.cfg.Deal.MinProfit,
			MaxInvestment: a.cfg.Deal.MaxInvestment,
		},
		a.logger,
	)
}

// buildOrchestrator assembles the scan loop: scanner, four-stage evaluator,
// deal submission, distributed locking, notifications, and cycle reports.
func (a *App) buildOrchestrator(deps *Dependencies, manager *deal.Manager) *pipeline.Orchestrator {
	scanner := pipeline.NewScanner(
		deps.ListingSource,
		deps.ObservationStore,
		pipeline.ScannerConfig{
			Queries: a.cfg.Scan.Queries,
			PriceRange: domain.PriceRange{
				Min: a.cfg.Scan.MinPrice,
				Max: a.cfg.Scan.MaxPrice,
			},
			PageSize: a.cfg.Scan.PageSize,
		},
		a.logger,
	)

	evaluator := pipeline.NewEvaluator(
		deps.ObservationStore,
		deps.ConsensusCache,
		pricetruth.NewAggregator(pricetruth.Config{
			MinSources:    a.cfg.Pricing.MinSources,
			IQRMultiplier: a.cfg.Pricing.IQRMultiplier,
			MaxConfidence: a.cfg.Pricing.MaxConfidence,
		}),
		grading.NewModel(),
		vault.NewGate(vault.Config{
			CustodialMinimum: a.cfg.Vault.CustodialMinimum,
			SafetyBuffer:     a.cfg.Vault.SafetyBuffer,
		}),
		scoring.NewScorer(a.scorerConfig()),
		a.cfg.Scan.TrendWindow.Duration,
		a.logger,
	)

	var reports *pipeline.ReportArchiver
	if deps.BlobWriter != nil {
		reports = pipeline.NewReportArchiver(deps.BlobWriter, a.logger)
	}

	return pipeline.NewOrchestrator(
		scanner,
		evaluator,
		manager,
		deps.SkipStore,
		deps.LockManager,
		deps.Notifier,
		reports,
		pipeline.OrchestratorConfig{
			ScanInterval:   a.cfg.Scan.Interval.Duration,
			LockKey:        a.cfg.Scan.LockKey,
			LockTTL:        a.cfg.Scan.LockTTL.Duration,
			Workers:        a.cfg.Scan.Workers,
			ResurfaceLimit: a.cfg.Scan.ResurfaceLimit,
			NotifyRetries:  a.cfg.Notify.Retries,
			NotifyBackoff:  a.cfg.Notify.Backoff.Duration,
			DedupTTL:       a.cfg.Scan.DedupTTL.Duration,
		},
		a.logger,
	)
}

// scorerConfig translates the file configuration into scorer parameters,
// leaving zero values to fall back to the scorer's own defaults.
func (a *App) scorerConfig() scoring.Config {
	sc := a.cfg.Scoring

	fees := scoring.DefaultFees()
	if sc.ProcessingFee > 0 {
		fees.ProcessingFee = decimal.NewFromFloat(sc.ProcessingFee)
	}
	if sc.PlatformFeeRate > 0 {
		fees.PlatformFeeRate = decimal.NewFromFloat(sc.PlatformFeeRate)
	}

	return scoring.Config{
		Fees:             fees,
		ProfitScale:      sc.ProfitScale,
		ReturnScale:      sc.ReturnScale,
		MinTrustRating:   sc.MinTrustRating,
		MinReturnRatio:   sc.MinReturnRatio,
		ThinMarginBuffer: sc.ThinMarginBuffer,
		PerFlagPenalty:   sc.PerFlagPenalty,
	}
}

// dealService adapts the lifecycle manager and the deal store to the read
// and write surface the HTTP handlers need. State-changing calls go through
// the manager so every transition is validated, audited, and broadcast;
// reads go straight to the store.
type dealService struct {
	*deal.Manager
	store domain.DealStore
}

func (s dealService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Deal, error) {
	return s.store.List(ctx, opts)
}

func (s dealService) GetByID(ctx context.Context, id string) (domain.Deal, error) {
	return s.store.GetByID(ctx, id)
}

func (s dealService) CountNonTerminal(ctx context.Context) (int64, error) {
	return s.store.CountNonTerminal(ctx)
}

// startHTTPServer assembles the API server and runs it until the context is
// cancelled, then shuts it down gracefully.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, manager *deal.Manager, hub *ws.Hub, scan *handler.ScanHandler) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Deals:  handler.NewDealHandler(dealService{Manager: manager, store: deps.DealStore}, a.logger),
		Audit:  handler.NewAuditHandler(deps.AuditStore, a.logger),
		Skips:  handler.NewSkipHandler(deps.SkipStore, a.logger),
		Scan:   scan,
	}

	var limiter domain.RateLimiter
	if a.cfg.Server.RateLimit > 0 {
		limiter = deps.RateLimiter
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.ApiKey,
		RateLimit:   a.cfg.Server.RateLimit,
	}, handlers, hub, limiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startArchiveLoop exports terminal deals to cold storage once a day. Runs
// only when S3 is enabled.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}

	g.Go(func() error {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				// Cutoff at the start of the current month so each archive
				// file covers only closed months.
				now := time.Now().UTC()
				cutoff := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
				n, err := deps.Archiver.ArchiveCompleted(ctx, cutoff)
				if err != nil {
					a.logger.WarnContext(ctx, "deal archive failed", slog.String("error", err.Error()))
					continue
				}
				if n > 0 {
					a.logger.InfoContext(ctx, "archived terminal deals", slog.Int64("count", n))
				}
			}
		}
	})
}
