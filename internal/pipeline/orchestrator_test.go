package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flipscout/flipscout/internal/deal"
	"github.com/flipscout/flipscout/internal/domain"
	"github.com/flipscout/flipscout/internal/marketplace"
	"github.com/flipscout/flipscout/internal/pipeline"
	"github.com/flipscout/flipscout/internal/store/memory"
)

type cycleFixture struct {
	orchestrator *pipeline.Orchestrator
	manager      *deal.Manager
	deals        *memory.DealStore
	skips        *memory.SkipStore
	observations *memory.ObservationStore
	source       *marketplace.Fake
}

func newCycleFixture(t *testing.T, listings ...domain.Listing) *cycleFixture {
	t.Helper()
	logger := discardLogger()

	deals := memory.NewDealStore()
	skips := memory.NewSkipStore()
	observations := memory.NewObservationStore()
	source := marketplace.NewFake(listings...)

	manager := deal.NewManager(deals, skips, nil, deal.DefaultConfig(), logger)

	scanner := pipeline.NewScanner(source, observations, pipeline.ScannerConfig{
		Queries:    []string{"charizard holo"},
		PriceRange: domain.PriceRange{Min: 50, Max: 1000},
	}, logger)

	orchestrator := pipeline.NewOrchestrator(
		scanner,
		buildEvaluator(observations),
		manager,
		skips,
		nil, // no distributed lock in-process
		nil,
		nil,
		pipeline.OrchestratorConfig{ScanInterval: time.Hour},
		logger,
	)

	return &cycleFixture{
		orchestrator: orchestrator,
		manager:      manager,
		deals:        deals,
		skips:        skips,
		observations: observations,
		source:       source,
	}
}

func TestCycleSubmitsBestCandidate(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	listing := testListing("near mint, pack fresh", 280)
	fx := newCycleFixture(t, listing)
	seedObservations(t, fx.observations, listing.Identity, 590, 600, 610)

	fx.orchestrator.RunOnce(ctx)

	active, err := fx.deals.GetActive(ctx)
	rq.NoError(err)
	rq.Equal(domain.StatePendingApproval, active.State)
	rq.Equal(listing.Identity, active.Identity)

	entries, err := fx.deals.Audit().ListByDeal(ctx, active.ID)
	rq.NoError(err)
	rq.Len(entries, 3)
}

type recordedCycles struct {
	reports []pipeline.CycleReport
}

func (r *recordedCycles) CycleFinished(report pipeline.CycleReport) {
	r.reports = append(r.reports, report)
}

func TestCycleReportReachesSink(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	listing := testListing("near mint, pack fresh", 280)
	fx := newCycleFixture(t, listing)
	seedObservations(t, fx.observations, listing.Identity, 590, 600, 610)

	sink := &recordedCycles{}
	fx.orchestrator.WithCycleSink(sink)

	fx.orchestrator.RunOnce(ctx)

	rq.Len(sink.reports, 1)
	report := sink.reports[0]
	rq.Equal(1, report.Scanned)
	rq.Equal(1, report.Evaluated)
	rq.NotEmpty(report.SubmittedDeal)
	rq.False(report.FinishedAt.IsZero())
}

// With only one price source, no consensus exists and no deal may be created.
func TestCycleWithoutConsensusCreatesNoDeal(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	listing := testListing("near mint", 280)
	fx := newCycleFixture(t, listing)

	fx.orchestrator.RunOnce(ctx)

	n, err := fx.deals.CountNonTerminal(ctx)
	rq.NoError(err)
	rq.Zero(n)
}

// An unsafe candidate is recorded in the skip log, never committed.
func TestCycleSafetyRejectIsLogged(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	listing := testListing("heavy crease and torn corner", 120)
	fx := newCycleFixture(t, listing)
	seedObservations(t, fx.observations, listing.Identity, 290, 300, 310)

	fx.orchestrator.RunOnce(ctx)

	n, err := fx.deals.CountNonTerminal(ctx)
	rq.NoError(err)
	rq.Zero(n)

	logged, err := fx.skips.List(ctx, domain.ListOpts{})
	rq.NoError(err)
	rq.NotEmpty(logged)
	rq.Equal(domain.SkipSafetyRejected, logged[0].Reason)
}

// A parked conflict skip is re-submitted once the slot frees.
func TestCycleResurfacesParkedCandidate(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	first := testListing("near mint, pack fresh", 280)
	parked := testListing("near mint, pack fresh", 290)
	parked.Identity = domain.Identity{Name: "Blastoise Shadowless", Category: "trading_card"}
	parked.URL = "https://example.com/item/2"

	fx := newCycleFixture(t, first)
	seedObservations(t, fx.observations, first.Identity, 590, 600, 610)
	seedObservations(t, fx.observations, parked.Identity, 640, 650, 660)

	// First cycle commits the first listing.
	fx.orchestrator.RunOnce(ctx)
	active, err := fx.deals.GetActive(ctx)
	rq.NoError(err)

	// The second listing now conflicts and gets parked.
	fx.source.Seed(parked)
	fx.orchestrator.RunOnce(ctx)
	queue, err := fx.skips.ListResurfaceable(ctx, 0)
	rq.NoError(err)
	rq.Len(queue, 1)

	// Reject the active deal, freeing the slot; the next cycle resurfaces
	// the parked candidate even though the marketplace returns nothing new.
	_, err = fx.manager.OnDecision(ctx, active.ID, domain.DecisionReject, 0)
	rq.NoError(err)

	fx.source.Seed()
	fx.orchestrator.RunOnce(ctx)

	next, err := fx.deals.GetActive(ctx)
	rq.NoError(err)
	rq.Equal(domain.StatePendingApproval, next.State)
	rq.Equal("Blastoise Shadowless", next.Identity.Name)

	queue, err = fx.skips.ListResurfaceable(ctx, 0)
	rq.NoError(err)
	rq.Empty(queue)
}
