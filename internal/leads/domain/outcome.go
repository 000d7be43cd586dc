package domain

import (
	"time"

	"leadflow_backend/platform/apperr"
)

// CallResponse is the first step of the call popup: did the call connect.
type CallResponse string

const (
	ResponseConnected    CallResponse = "connected"
	ResponseNotConnected CallResponse = "not_connected"
)

// FinalAction is the second step of the call popup.
type FinalAction string

const (
	ActionFollowUp FinalAction = "follow_up"
	ActionDrop     FinalAction = "drop"
)

// CallOutcome is the full submission of one call attempt. The UI gathers it
// over two wizard steps; the engine validates it as a single input object.
type CallOutcome struct {
	Response    CallResponse
	FinalAction FinalAction

	NotConnectedReason string
	DropReason         string
	Remarks            string
	Priority           Priority
	NextCallAt         *time.Time
	DurationMin        int
}

// OutcomeDecision is the mutation one accepted call outcome produces. All of
// it is applied to the lead atomically.
type OutcomeDecision struct {
	Tag        Tag
	CallCount  int
	Priority   Priority
	NextCallAt *time.Time

	// ReleaseOwnership returns the lead to the distribution pool under a new
	// owner (disqualification-reassignment cycle).
	ReleaseOwnership bool
	// ReassignmentCount is the lead's cycle counter after this decision.
	ReassignmentCount int

	// Reason is recorded in the call log and assignment trail.
	Reason string
}

// DecideOutcome runs the call-attempt state machine for a single submission.
// It is a pure function of the lead, the tenant policy, the submission, and
// the clock; it performs no I/O and mutates nothing.
func DecideOutcome(lead Lead, policy AssignmentPolicy, outcome CallOutcome, now time.Time) (OutcomeDecision, error) {
	// Minimum call-gap rule comes before any other validation.
	if lead.LastCallAt != nil && policy.CallGap() > 0 {
		if now.Sub(*lead.LastCallAt) < policy.CallGap() {
			return OutcomeDecision{}, apperr.Validation("call attempt too soon after previous call")
		}
	}

	if lead.Tag.Terminal() {
		return OutcomeDecision{}, apperr.Validation("lead is in a terminal state")
	}
	if !lead.Assigned() {
		return OutcomeDecision{}, apperr.Validation("lead has no owner")
	}

	switch outcome.Response {
	case ResponseConnected, ResponseNotConnected:
	default:
		return OutcomeDecision{}, apperr.FieldValidation("status", "response must be connected or not_connected")
	}

	decision := OutcomeDecision{
		Tag:               lead.Tag,
		CallCount:         lead.CallCount,
		Priority:          lead.Priority,
		NextCallAt:        lead.NextCallAt,
		ReassignmentCount: lead.ReassignmentCount,
	}

	if outcome.Response == ResponseNotConnected {
		if outcome.NotConnectedReason == "" {
			return OutcomeDecision{}, apperr.FieldValidation("notConnectedReason", "a not-connected reason is required")
		}
		decision.CallCount++
		decision.Reason = outcome.NotConnectedReason
	} else {
		if outcome.Remarks == "" {
			return OutcomeDecision{}, apperr.FieldValidation("remarks", "call remarks are required")
		}
		if !outcome.Priority.Valid() {
			return OutcomeDecision{}, apperr.FieldValidation("priority", "a priority is required")
		}
		if outcome.NextCallAt == nil {
			return OutcomeDecision{}, apperr.FieldValidation("nextCallAt", "a follow-up time is required")
		}
		decision.Priority = outcome.Priority
		decision.Reason = outcome.Remarks
	}

	// An explicit drop wins over everything, attempt count included.
	if outcome.FinalAction == ActionDrop {
		if outcome.DropReason == "" {
			return OutcomeDecision{}, apperr.FieldValidation("dropReason", "a drop reason is required")
		}
		decision.Tag = TagDropped
		decision.NextCallAt = nil
		decision.Reason = outcome.DropReason
		return decision, nil
	}
	if outcome.FinalAction != ActionFollowUp {
		return OutcomeDecision{}, apperr.FieldValidation("finalAction", "final action must be follow_up or drop")
	}

	if outcome.NextCallAt != nil && !outcome.NextCallAt.After(now) {
		return OutcomeDecision{}, apperr.FieldValidation("nextCallAt", "follow-up time must be in the future")
	}

	if outcome.Response == ResponseConnected {
		decision.Tag = TagFollowUp
		decision.NextCallAt = outcome.NextCallAt
		return decision, nil
	}

	// Not connected, follow up. The attempt limit fires per reassignment
	// cycle: with a limit of 3, attempts 3, 6, 9... trigger disqualification
	// while call_count itself stays monotone.
	threshold := policy.MaxCallAttempts * (lead.ReassignmentCount + 1)
	if policy.AutoRulesActive() && policy.AutoDisqualification && decision.CallCount >= threshold {
		if policy.ReassignmentOnDisqualified && lead.ReassignmentCount < policy.MaxReassignmentLimit {
			decision.Tag = TagNewLead
			decision.ReleaseOwnership = true
			decision.ReassignmentCount = lead.ReassignmentCount + 1
			decision.NextCallAt = nil
			return decision, nil
		}
		decision.Tag = TagDropped
		decision.NextCallAt = nil
		return decision, nil
	}

	decision.Tag = TagNotConnected
	if outcome.NextCallAt != nil {
		decision.NextCallAt = outcome.NextCallAt
	}
	return decision, nil
}
