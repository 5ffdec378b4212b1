package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/flipscout/flipscout/internal/domain"
)

// sinkSendTimeout bounds one transition notification, including sender
// retries.
const sinkSendTimeout = 30 * time.Second

// TransitionSink forwards committed deal transitions to the notifier as
// deal_approved / deal_rejected / deal_completed events. Pending deals are
// excluded: the scan loop sends the full approval request for those.
// It implements the deal manager's event sink and never blocks.
type TransitionSink struct {
	notifier *Notifier
	logger   *slog.Logger
}

// NewTransitionSink creates a TransitionSink delivering through n.
func NewTransitionSink(n *Notifier, logger *slog.Logger) *TransitionSink {
	return &TransitionSink{
		notifier: n,
		logger:   logger.With(slog.String("component", "transition_sink")),
	}
}

// DealTransition dispatches the notification for a committed state change in
// the background.
func (s *TransitionSink) DealTransition(d domain.Deal, from, to domain.DealState) {
	event := EventForState(to)
	if event == "" || event == EventDealPending {
		return
	}

	title, message := FormatDealTransition(d, to)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sinkSendTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, event, title, message); err != nil {
			s.logger.WarnContext(ctx, "transition notification failed",
				slog.String("deal_id", d.ID),
				slog.String("to_state", string(to)),
				slog.String("error", err.Error()),
			)
		}
	}()
}
