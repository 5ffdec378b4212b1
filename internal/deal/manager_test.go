package deal_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flipscout/flipscout/internal/deal"
	"github.com/flipscout/flipscout/internal/domain"
	"github.com/flipscout/flipscout/internal/store/memory"
)

func newManager(t *testing.T) (*deal.Manager, *memory.DealStore, *memory.SkipStore) {
	t.Helper()
	deals := memory.NewDealStore()
	skips := memory.NewSkipStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := deal.NewManager(deals, skips, nil, deal.DefaultConfig(), logger)
	return m, deals, skips
}

func passingScore(name string) domain.OpportunityScore {
	return domain.OpportunityScore{
		Listing: domain.Listing{
			Identity:     domain.Identity{Name: name, Category: "trading_card"},
			Condition:    "near mint, pack fresh",
			Price:        280,
			ShippingCost: 5,
			SellerRating: 99.2,
		},
		Safety: domain.SafetyVerdict{
			Safe:           true,
			WorstCaseValue: 360,
			Threshold:      300,
			Margin:         60,
		},
		TotalScore:      78.5,
		ProfitScore:     82,
		TrustScore:      99.2,
		ProfitPotential: 520,
		ReturnRatio:     3.4,
		Eligible:        true,
	}
}

type recordingSink struct {
	mu     sync.Mutex
	states []domain.DealState
}

func (s *recordingSink) DealTransition(_ domain.Deal, _, to domain.DealState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, to)
}

func TestMultiSinkFansOutAndDropsNil(t *testing.T) {
	rq := require.New(t)
	a := &recordingSink{}
	b := &recordingSink{}

	sink := deal.MultiSink(a, nil, b)
	rq.NotNil(sink)

	sink.DealTransition(domain.Deal{}, domain.StateFound, domain.StateScored)
	rq.Equal([]domain.DealState{domain.StateScored}, a.states)
	rq.Equal([]domain.DealState{domain.StateScored}, b.states)

	rq.Nil(deal.MultiSink())
	rq.Nil(deal.MultiSink(nil, nil))
}

func TestSubmitCreatesPendingDealWithFullAuditTrail(t *testing.T) {
	rq := require.New(t)
	m, deals, _ := newManager(t)
	ctx := context.Background()

	d, err := m.Submit(ctx, passingScore("Charizard Base Set Holo"))
	rq.NoError(err)
	rq.Equal(domain.StatePendingApproval, d.State)
	rq.NotEmpty(d.ID)

	entries, err := deals.Audit().ListByDeal(ctx, d.ID)
	rq.NoError(err)
	rq.Len(entries, 3)
	rq.Equal(domain.StateFound, entries[0].NewState)
	rq.Equal(domain.StateScored, entries[1].NewState)
	rq.Equal(domain.StatePendingApproval, entries[2].NewState)
	for i, e := range entries {
		rq.Equal(int64(i+1), e.SequenceNo)
		rq.NotEmpty(e.Reason)
	}
}

func TestSubmitRejectsUnsafeCandidate(t *testing.T) {
	rq := require.New(t)
	m, deals, skips := newManager(t)
	ctx := context.Background()

	score := passingScore("Jolteon 1st Edition")
	score.Safety = domain.SafetyVerdict{Safe: false, WorstCaseValue: 180, Threshold: 300, Margin: -120}
	score.Eligible = false

	_, err := m.Submit(ctx, score)
	rq.ErrorIs(err, domain.ErrSafetyRejected)

	n, err := deals.CountNonTerminal(ctx)
	rq.NoError(err)
	rq.Zero(n)

	logged, err := skips.List(ctx, domain.ListOpts{})
	rq.NoError(err)
	rq.Len(logged, 1)
	rq.Equal(domain.SkipSafetyRejected, logged[0].Reason)
}

func TestSubmitRejectsBelowThresholds(t *testing.T) {
	rq := require.New(t)
	m, _, skips := newManager(t)
	ctx := context.Background()

	score := passingScore("Bulk Lot Modern")
	score.ProfitPotential = 120

	_, err := m.Submit(ctx, score)
	rq.ErrorIs(err, domain.ErrQualityRejected)

	logged, err := skips.List(ctx, domain.ListOpts{})
	rq.NoError(err)
	rq.Len(logged, 1)
	rq.Equal(domain.SkipQualityRejected, logged[0].Reason)
}

func TestSingleActiveSlotUnderParallelSubmits(t *testing.T) {
	rq := require.New(t)
	m, deals, skips := newManager(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Submit(ctx, passingScore("Pikachu Illustrator"))
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	rq.Equal(1, ok)
	rq.Equal(n-1, conflicts)

	count, err := deals.CountNonTerminal(ctx)
	rq.NoError(err)
	rq.Equal(int64(1), count)

	resurfaceable, err := skips.ListResurfaceable(ctx, 0)
	rq.NoError(err)
	rq.Len(resurfaceable, n-1)
}

func TestApproveIsIdempotent(t *testing.T) {
	rq := require.New(t)
	m, deals, _ := newManager(t)
	ctx := context.Background()

	d, err := m.Submit(ctx, passingScore("Blastoise Shadowless"))
	rq.NoError(err)

	first, err := m.OnDecision(ctx, d.ID, domain.DecisionApprove, 285)
	rq.NoError(err)
	rq.Equal(domain.StateApproved, first.State)
	rq.InDelta(285, first.InvestmentAmount, 1e-9)
	rq.NotNil(first.ApprovedAt)

	// Replay of the identical decision: no error, no second audit entry.
	second, err := m.OnDecision(ctx, d.ID, domain.DecisionApprove, 285)
	rq.NoError(err)
	rq.Equal(domain.StateApproved, second.State)

	entries, err := deals.Audit().ListByDeal(ctx, d.ID)
	rq.NoError(err)
	var approvals int
	for _, e := range entries {
		if e.NewState == domain.StateApproved {
			approvals++
		}
	}
	rq.Equal(1, approvals)
}

func TestConflictingDecisionAfterApprovalFails(t *testing.T) {
	rq := require.New(t)
	m, _, _ := newManager(t)
	ctx := context.Background()

	d, err := m.Submit(ctx, passingScore("Venusaur 1st Edition"))
	rq.NoError(err)

	_, err = m.OnDecision(ctx, d.ID, domain.DecisionApprove, 0)
	rq.NoError(err)

	_, err = m.OnDecision(ctx, d.ID, domain.DecisionReject, 0)
	rq.ErrorIs(err, domain.ErrInvalidTransition)
}

func TestRejectReleasesSlot(t *testing.T) {
	rq := require.New(t)
	m, _, _ := newManager(t)
	ctx := context.Background()

	d, err := m.Submit(ctx, passingScore("Lugia Neo Genesis"))
	rq.NoError(err)

	rejected, err := m.OnDecision(ctx, d.ID, domain.DecisionReject, 0)
	rq.NoError(err)
	rq.Equal(domain.StateRejectedManual, rejected.State)
	rq.True(rejected.State.Terminal())

	free, err := m.SlotFree(ctx)
	rq.NoError(err)
	rq.True(free)

	// The slot is open again for the next candidate.
	_, err = m.Submit(ctx, passingScore("Umbreon Gold Star"))
	rq.NoError(err)
}

func TestCompleteLifecycle(t *testing.T) {
	rq := require.New(t)
	m, _, _ := newManager(t)
	ctx := context.Background()

	d, err := m.Submit(ctx, passingScore("Mewtwo Base Set"))
	rq.NoError(err)
	_, err = m.OnDecision(ctx, d.ID, domain.DecisionApprove, 0)
	rq.NoError(err)

	done, err := m.Complete(ctx, d.ID, "item received and vaulted")
	rq.NoError(err)
	rq.Equal(domain.StateCompleted, done.State)
	rq.NotNil(done.CompletedAt)

	free, err := m.SlotFree(ctx)
	rq.NoError(err)
	rq.True(free)
}

func TestApproveDefaultsInvestmentToListingCost(t *testing.T) {
	rq := require.New(t)
	m, _, _ := newManager(t)
	ctx := context.Background()

	d, err := m.Submit(ctx, passingScore("Gyarados Holo"))
	rq.NoError(err)

	approved, err := m.OnDecision(ctx, d.ID, domain.DecisionApprove, 0)
	rq.NoError(err)
	rq.InDelta(285, approved.InvestmentAmount, 1e-9) // price + shipping
}

func TestApproveOverInvestmentCapFails(t *testing.T) {
	rq := require.New(t)
	m, _, _ := newManager(t)
	ctx := context.Background()

	d, err := m.Submit(ctx, passingScore("Rayquaza Gold Star"))
	rq.NoError(err)

	_, err = m.OnDecision(ctx, d.ID, domain.DecisionApprove, 5000)
	rq.ErrorIs(err, domain.ErrInvalidTransition)

	got, err := m.Active(ctx)
	rq.NoError(err)
	rq.Equal(domain.StatePendingApproval, got.State)
}

func TestConflictSkipsResurfaceBestFirst(t *testing.T) {
	rq := require.New(t)
	m, _, skips := newManager(t)
	ctx := context.Background()

	_, err := m.Submit(ctx, passingScore("Espeon Gold Star"))
	rq.NoError(err)

	low := passingScore("Snorlax Jungle")
	low.TotalScore = 65
	high := passingScore("Shining Charizard")
	high.TotalScore = 91

	_, err = m.Submit(ctx, low)
	rq.ErrorIs(err, domain.ErrConflict)
	_, err = m.Submit(ctx, high)
	rq.ErrorIs(err, domain.ErrConflict)

	queue, err := skips.ListResurfaceable(ctx, 0)
	rq.NoError(err)
	rq.Len(queue, 2)
	rq.Equal("Shining Charizard", queue[0].Listing.Identity.Name)
	rq.Equal("Snorlax Jungle", queue[1].Listing.Identity.Name)

	rq.NoError(skips.MarkResurfaced(ctx, queue[0].ID))
	queue, err = skips.ListResurfaceable(ctx, 0)
	rq.NoError(err)
	rq.Len(queue, 1)
}

func TestOnDecisionUnknownDeal(t *testing.T) {
	rq := require.New(t)
	m, _, _ := newManager(t)

	_, err := m.OnDecision(context.Background(), "no-such-deal", domain.DecisionApprove, 0)
	rq.ErrorIs(err, domain.ErrNotFound)
}
