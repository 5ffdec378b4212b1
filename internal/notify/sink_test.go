package notify_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flipscout/flipscout/internal/domain"
	"github.com/flipscout/flipscout/internal/notify"
)

type captureSender struct {
	ch chan string
}

func (c *captureSender) Send(_ context.Context, title, _ string) error {
	c.ch <- title
	return nil
}

func (c *captureSender) Name() string { return "capture" }

func sinkFixture(events []string) (*notify.TransitionSink, *captureSender) {
	sender := &captureSender{ch: make(chan string, 8)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := notify.NewNotifier([]notify.Sender{sender}, events, logger)
	return notify.NewTransitionSink(n, logger), sender
}

func sinkDeal() domain.Deal {
	return domain.Deal{
		ID:               "d-1",
		Identity:         domain.Identity{Name: "Charizard Base Set Holo", Category: "trading_card"},
		State:            domain.StateApproved,
		InvestmentAmount: 285,
	}
}

func TestTransitionSinkDeliversDecisionsButNotPending(t *testing.T) {
	rq := require.New(t)
	sink, sender := sinkFixture(nil)
	d := sinkDeal()

	// Pending deals carry the full approval request sent by the scan loop;
	// the sink stays silent for them.
	sink.DealTransition(d, domain.StateScored, domain.StatePendingApproval)
	sink.DealTransition(d, domain.StatePendingApproval, domain.StateApproved)

	select {
	case title := <-sender.ch:
		rq.Contains(title, "Deal approved")
	case <-time.After(2 * time.Second):
		t.Fatal("approval notification never delivered")
	}

	select {
	case title := <-sender.ch:
		t.Fatalf("unexpected notification %q", title)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTransitionSinkHonoursEventFilter(t *testing.T) {
	rq := require.New(t)
	sink, sender := sinkFixture([]string{notify.EventDealCompleted})
	d := sinkDeal()

	sink.DealTransition(d, domain.StatePendingApproval, domain.StateApproved)
	sink.DealTransition(d, domain.StateApproved, domain.StateCompleted)

	select {
	case title := <-sender.ch:
		rq.Contains(title, "Deal completed")
	case <-time.After(2 * time.Second):
		t.Fatal("completion notification never delivered")
	}
}

func TestEventForStateMapsDecisionStates(t *testing.T) {
	rq := require.New(t)

	rq.Equal(notify.EventDealPending, notify.EventForState(domain.StatePendingApproval))
	rq.Equal(notify.EventDealApproved, notify.EventForState(domain.StateApproved))
	rq.Equal(notify.EventDealRejected, notify.EventForState(domain.StateRejectedManual))
	rq.Equal(notify.EventDealCompleted, notify.EventForState(domain.StateCompleted))
	rq.Empty(notify.EventForState(domain.StateRejectedSafety))
}
