package notify

import (
	"fmt"
	"strings"

	"github.com/flipscout/flipscout/internal/domain"
)

// Event types used to filter notifications.
const (
	EventDealPending   = "deal_pending"
	EventDealApproved  = "deal_approved"
	EventDealRejected  = "deal_rejected"
	EventDealCompleted = "deal_completed"
	EventScanSummary   = "scan_summary"
)

// FormatPendingDeal renders the approval-request message for a deal awaiting
// an operator decision.
func FormatPendingDeal(d domain.Deal) (title, message string) {
	s := d.Score
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", d.Identity.Name, d.Identity.Category)
	fmt.Fprintf(&b, "Ask: $%.2f + $%.2f shipping\n", d.Listing.Price, d.Listing.ShippingCost)
	fmt.Fprintf(&b, "Consensus: $%.2f (confidence %.0f%%, %d sources)\n",
		s.Consensus.Price, s.Consensus.Confidence*100, s.Consensus.SourcesUsed)
	fmt.Fprintf(&b, "Expected profit: $%.2f (%.1fx return)\n", s.ProfitPotential, s.ReturnRatio)
	fmt.Fprintf(&b, "Worst case: $%.2f vs floor $%.2f\n", s.Safety.WorstCaseValue, s.Safety.Threshold)
	fmt.Fprintf(&b, "Score: %.1f/100\n", s.TotalScore)
	if len(s.RiskFlags) > 0 {
		flags := make([]string, len(s.RiskFlags))
		for i, f := range s.RiskFlags {
			flags[i] = string(f)
		}
		fmt.Fprintf(&b, "Risks: %s\n", strings.Join(flags, ", "))
	}
	if d.Listing.URL != "" {
		fmt.Fprintf(&b, "%s\n", d.Listing.URL)
	}
	b.WriteString("Reply to approve or reject.")

	return fmt.Sprintf("Deal pending: %s", d.Identity.Name), b.String()
}

// FormatDealTransition renders a short status message for a committed state
// change.
func FormatDealTransition(d domain.Deal, to domain.DealState) (title, message string) {
	switch to {
	case domain.StateApproved:
		return fmt.Sprintf("Deal approved: %s", d.Identity.Name),
			fmt.Sprintf("Committed $%.2f to %s.", d.InvestmentAmount, d.Identity.Name)
	case domain.StateRejectedManual:
		return fmt.Sprintf("Deal rejected: %s", d.Identity.Name),
			fmt.Sprintf("%s was rejected; the deal slot is free again.", d.Identity.Name)
	case domain.StateCompleted:
		return fmt.Sprintf("Deal completed: %s", d.Identity.Name),
			fmt.Sprintf("%s completed after a $%.2f investment.", d.Identity.Name, d.InvestmentAmount)
	default:
		return fmt.Sprintf("Deal %s: %s", to, d.Identity.Name),
			fmt.Sprintf("%s moved to %s.", d.Identity.Name, to)
	}
}

// EventForState maps a committed deal state to its notification event type.
func EventForState(s domain.DealState) string {
	switch s {
	case domain.StatePendingApproval:
		return EventDealPending
	case domain.StateApproved:
		return EventDealApproved
	case domain.StateRejectedManual:
		return EventDealRejected
	case domain.StateCompleted:
		return EventDealCompleted
	default:
		return ""
	}
}

// CycleStats summarises one scan cycle for the end-of-cycle notification.
type CycleStats struct {
	Query         string
	Scanned       int
	Evaluated     int
	SafetyRejects int
	QualityCut    int
	Conflicts     int
	Submitted     int
	Elapsed       string
}

// FormatCycleSummary renders the scan-cycle summary message.
func FormatCycleSummary(st CycleStats) (title, message string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Query %q: %d listings scanned, %d evaluated in %s.\n",
		st.Query, st.Scanned, st.Evaluated, st.Elapsed)
	fmt.Fprintf(&b, "Safety rejections: %d, below thresholds: %d, slot conflicts: %d.\n",
		st.SafetyRejects, st.QualityCut, st.Conflicts)
	if st.Submitted > 0 {
		b.WriteString("A deal is pending approval.")
	} else {
		b.WriteString("No deal submitted this cycle.")
	}
	return "Scan cycle finished", b.String()
}
