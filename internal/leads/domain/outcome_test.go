package domain

import (
	"testing"
	"time"

	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
)

func autoPolicy() AssignmentPolicy {
	p := DefaultPolicy(uuid.New())
	p.Mode = ModeAuto
	p.MaxCallAttempts = 3
	p.AutoDisqualification = true
	return p
}

func ownedLead() Lead {
	owner := uuid.New()
	return Lead{
		ID:           uuid.New(),
		TenantID:     uuid.New(),
		OwnerAgentID: &owner,
		Tag:          TagNewLead,
		Priority:     PriorityMedium,
	}
}

func TestDecideOutcomeCallGapRejectsEarlySubmission(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	policy := autoPolicy()
	policy.CallTimeGapMinutes = 30

	lead := ownedLead()
	last := now.Add(-10 * time.Minute)
	lead.LastCallAt = &last

	_, err := DecideOutcome(lead, policy, CallOutcome{
		Response:           ResponseNotConnected,
		FinalAction:        ActionFollowUp,
		NotConnectedReason: "no answer",
	}, now)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecideOutcomeCallGapAllowsAfterWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	policy := autoPolicy()
	policy.CallTimeGapMinutes = 30

	lead := ownedLead()
	last := now.Add(-31 * time.Minute)
	lead.LastCallAt = &last

	decision, err := DecideOutcome(lead, policy, CallOutcome{
		Response:           ResponseNotConnected,
		FinalAction:        ActionFollowUp,
		NotConnectedReason: "no answer",
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.CallCount != 1 {
		t.Fatalf("expected call count 1, got %d", decision.CallCount)
	}
	if decision.Tag != TagNotConnected {
		t.Fatalf("expected tag %q, got %q", TagNotConnected, decision.Tag)
	}
}

func TestDecideOutcomeNotConnectedRequiresReason(t *testing.T) {
	now := time.Now()
	_, err := DecideOutcome(ownedLead(), autoPolicy(), CallOutcome{
		Response:    ResponseNotConnected,
		FinalAction: ActionFollowUp,
	}, now)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecideOutcomeConnectedRequiresRemarksPriorityAndFollowUp(t *testing.T) {
	now := time.Now()
	next := now.Add(time.Hour)

	cases := []CallOutcome{
		{Response: ResponseConnected, FinalAction: ActionFollowUp, Priority: PriorityHigh, NextCallAt: &next},
		{Response: ResponseConnected, FinalAction: ActionFollowUp, Remarks: "spoke", NextCallAt: &next},
		{Response: ResponseConnected, FinalAction: ActionFollowUp, Remarks: "spoke", Priority: PriorityHigh},
	}
	for i, outcome := range cases {
		if _, err := DecideOutcome(ownedLead(), autoPolicy(), outcome, now); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}

	decision, err := DecideOutcome(ownedLead(), autoPolicy(), CallOutcome{
		Response:    ResponseConnected,
		FinalAction: ActionFollowUp,
		Remarks:     "spoke to the lead",
		Priority:    PriorityHigh,
		NextCallAt:  &next,
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Tag != TagFollowUp {
		t.Fatalf("expected tag %q, got %q", TagFollowUp, decision.Tag)
	}
	if decision.Priority != PriorityHigh {
		t.Fatalf("expected priority updated to High, got %q", decision.Priority)
	}
	if decision.NextCallAt == nil || !decision.NextCallAt.Equal(next) {
		t.Fatalf("expected next call at %v, got %v", next, decision.NextCallAt)
	}
}

func TestDecideOutcomePastFollowUpRejected(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)

	_, err := DecideOutcome(ownedLead(), autoPolicy(), CallOutcome{
		Response:    ResponseConnected,
		FinalAction: ActionFollowUp,
		Remarks:     "spoke",
		Priority:    PriorityLow,
		NextCallAt:  &past,
	}, now)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecideOutcomeDropRequiresReasonAndIsUnconditional(t *testing.T) {
	now := time.Now()

	_, err := DecideOutcome(ownedLead(), autoPolicy(), CallOutcome{
		Response:           ResponseNotConnected,
		FinalAction:        ActionDrop,
		NotConnectedReason: "no answer",
	}, now)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for missing drop reason, got %v", err)
	}

	lead := ownedLead()
	lead.CallCount = 1

	decision, err := DecideOutcome(lead, autoPolicy(), CallOutcome{
		Response:           ResponseNotConnected,
		FinalAction:        ActionDrop,
		NotConnectedReason: "no answer",
		DropReason:         "wrong number",
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Tag != TagDropped {
		t.Fatalf("expected tag %q, got %q", TagDropped, decision.Tag)
	}
	if decision.Reason != "wrong number" {
		t.Fatalf("expected drop reason recorded, got %q", decision.Reason)
	}
	if decision.CallCount != 2 {
		t.Fatalf("expected call count 2, got %d", decision.CallCount)
	}
}

func TestDecideOutcomeAttemptLimitDropsOnThirdFailure(t *testing.T) {
	now := time.Now()
	policy := autoPolicy()

	lead := ownedLead()
	lead.CallCount = 2
	lead.Tag = TagNotConnected

	decision, err := DecideOutcome(lead, policy, CallOutcome{
		Response:           ResponseNotConnected,
		FinalAction:        ActionFollowUp,
		NotConnectedReason: "switched off",
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Tag != TagDropped {
		t.Fatalf("expected tag %q, got %q", TagDropped, decision.Tag)
	}
	if decision.CallCount != 3 {
		t.Fatalf("expected call count 3, got %d", decision.CallCount)
	}
	if decision.Reason != "switched off" {
		t.Fatalf("expected reason recorded, got %q", decision.Reason)
	}
}

func TestDecideOutcomeReassignmentCycles(t *testing.T) {
	now := time.Now()
	policy := autoPolicy()
	policy.ReassignmentOnDisqualified = true
	policy.MaxReassignmentLimit = 2

	lead := ownedLead()
	lead.Tag = TagNotConnected

	// Attempt 3 of cycle 0: reassign, not drop.
	lead.CallCount = 2
	decision, err := DecideOutcome(lead, policy, CallOutcome{
		Response:           ResponseNotConnected,
		FinalAction:        ActionFollowUp,
		NotConnectedReason: "no answer",
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.ReleaseOwnership {
		t.Fatalf("expected ownership release on attempt 3")
	}
	if decision.Tag != TagNewLead {
		t.Fatalf("expected tag reset to %q, got %q", TagNewLead, decision.Tag)
	}
	if decision.ReassignmentCount != 1 {
		t.Fatalf("expected reassignment count 1, got %d", decision.ReassignmentCount)
	}

	// Attempt 6 of cycle 1: reassign again.
	lead.CallCount = 5
	lead.ReassignmentCount = 1
	decision, err = DecideOutcome(lead, policy, CallOutcome{
		Response:           ResponseNotConnected,
		FinalAction:        ActionFollowUp,
		NotConnectedReason: "no answer",
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.ReleaseOwnership || decision.ReassignmentCount != 2 {
		t.Fatalf("expected second reassignment cycle, got %+v", decision)
	}

	// Attempt 9 of cycle 2: limit exhausted, dropped permanently.
	lead.CallCount = 8
	lead.ReassignmentCount = 2
	decision, err = DecideOutcome(lead, policy, CallOutcome{
		Response:           ResponseNotConnected,
		FinalAction:        ActionFollowUp,
		NotConnectedReason: "no answer",
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.ReleaseOwnership {
		t.Fatalf("expected no further reassignment")
	}
	if decision.Tag != TagDropped {
		t.Fatalf("expected tag %q, got %q", TagDropped, decision.Tag)
	}
}

func TestDecideOutcomeAutoRulesInertInManualMode(t *testing.T) {
	now := time.Now()
	policy := autoPolicy()
	policy.Mode = ModeManual // flags stay enabled but must not fire

	lead := ownedLead()
	lead.CallCount = 2
	lead.Tag = TagNotConnected

	decision, err := DecideOutcome(lead, policy, CallOutcome{
		Response:           ResponseNotConnected,
		FinalAction:        ActionFollowUp,
		NotConnectedReason: "no answer",
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Tag != TagNotConnected {
		t.Fatalf("expected tag %q in manual mode, got %q", TagNotConnected, decision.Tag)
	}
	if decision.ReleaseOwnership {
		t.Fatalf("expected ownership retained in manual mode")
	}
}

func TestDecideOutcomeTerminalLeadRejected(t *testing.T) {
	lead := ownedLead()
	lead.Tag = TagWon

	_, err := DecideOutcome(lead, autoPolicy(), CallOutcome{
		Response:           ResponseNotConnected,
		FinalAction:        ActionFollowUp,
		NotConnectedReason: "no answer",
	}, time.Now())
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecideOutcomeCallCountNeverDecreases(t *testing.T) {
	now := time.Now()
	policy := autoPolicy()
	policy.AutoDisqualification = false

	lead := ownedLead()
	for n := 1; n <= 5; n++ {
		decision, err := DecideOutcome(lead, policy, CallOutcome{
			Response:           ResponseNotConnected,
			FinalAction:        ActionFollowUp,
			NotConnectedReason: "no answer",
		}, now)
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", n, err)
		}
		if decision.CallCount != n {
			t.Fatalf("attempt %d: expected call count %d, got %d", n, n, decision.CallCount)
		}
		lead.CallCount = decision.CallCount
		lead.Tag = decision.Tag
	}
}
