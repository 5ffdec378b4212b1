package domain

import "time"

// DealState is the lifecycle state of a capital commitment. Deals are created
// in StateFound and only ever advance along the transitions permitted by
// CanTransitionTo; they are never deleted, so terminal states persist for
// audit.
type DealState string

const (
	StateFound           DealState = "found"
	StateScored          DealState = "scored"
	StatePendingApproval DealState = "pending_approval"
	StateApproved        DealState = "approved"
	StateCompleted       DealState = "completed"
	StateRejectedSafety  DealState = "rejected_safety"
	StateRejectedQuality DealState = "rejected_quality"
	StateRejectedManual  DealState = "rejected_manual"
	StateSkipped         DealState = "skipped"
)

// Terminal reports whether the state ends the deal's lifecycle.
func (s DealState) Terminal() bool {
	switch s {
	case StateCompleted, StateRejectedSafety, StateRejectedQuality, StateRejectedManual, StateSkipped:
		return true
	}
	return false
}

// TerminalStates returns every state for which Terminal reports true.
func TerminalStates() []DealState {
	return []DealState{StateCompleted, StateRejectedSafety, StateRejectedQuality, StateRejectedManual, StateSkipped}
}

// Active reports whether the state occupies the single active-deal slot.
// Found and Scored are short-lived intermediate states that exist only inside
// a submission, but they hold the slot too so the non-terminal count can never
// exceed one even mid-submission.
func (s DealState) Active() bool {
	return !s.Terminal()
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s DealState) CanTransitionTo(next DealState) bool {
	switch s {
	case StateFound:
		return next == StateScored
	case StateScored:
		return next == StatePendingApproval ||
			next == StateRejectedSafety ||
			next == StateRejectedQuality ||
			next == StateSkipped
	case StatePendingApproval:
		return next == StateApproved || next == StateRejectedManual
	case StateApproved:
		return next == StateCompleted
	}
	return false
}

// Decision is an external human decision on a pending deal. The decision
// channel is at-least-once, so decisions must be applied idempotently.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Deal is the unit of capital commitment. It snapshots the opportunity that
// created it; the snapshot is immutable while the state advances.
type Deal struct {
	ID               string           `json:"id"`
	Identity         Identity         `json:"identity"`
	Listing          Listing          `json:"listing"`
	Score            OpportunityScore `json:"score"`
	State            DealState        `json:"state"`
	InvestmentAmount float64          `json:"investment_amount"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	ApprovedAt       *time.Time       `json:"approved_at,omitempty"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
}

// AuditLogEntry is one append-only row in a deal's audit trail. Entries for a
// deal are strictly ordered by SequenceNo with no gaps or reordering; the
// audit log is the sole source of historical truth.
type AuditLogEntry struct {
	DealID     string    `json:"deal_id"`
	SequenceNo int64     `json:"sequence_no"`
	OldState   DealState `json:"old_state"` // empty for the creating entry
	NewState   DealState `json:"new_state"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// SkipReason classifies why a candidate was parked instead of committed.
type SkipReason string

const (
	SkipSafetyRejected  SkipReason = "safety_rejected"
	SkipQualityRejected SkipReason = "quality_rejected"
	SkipConflict        SkipReason = "conflict"
)

// SkippedListing records a candidate that was evaluated but not committed, so
// it stays inspectable and can resurface once the active slot frees.
type SkippedListing struct {
	ID           string            `json:"id"`
	Listing      Listing           `json:"listing"`
	Score        *OpportunityScore `json:"score,omitempty"` // nil for gate rejections
	Reason       SkipReason        `json:"reason"`
	Detail       string            `json:"detail"`
	TotalScore   float64           `json:"total_score"`
	CreatedAt    time.Time         `json:"created_at"`
	ResurfacedAt *time.Time        `json:"resurfaced_at,omitempty"`
}
