package domain

import (
	"testing"

	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
)

func TestPolicyValidateRejectsNegativeLimits(t *testing.T) {
	cases := []func(*AssignmentPolicy){
		func(p *AssignmentPolicy) { p.LeadsPerEmployeePerDay = -1 },
		func(p *AssignmentPolicy) { p.MaxActiveLeadsBalance = -5 },
		func(p *AssignmentPolicy) { p.RevertTimeHours = -24 },
		func(p *AssignmentPolicy) { p.MaxCallAttempts = 0 },
		func(p *AssignmentPolicy) { p.CallTimeGapMinutes = -1 },
		func(p *AssignmentPolicy) { p.MaxReassignmentLimit = -2 },
	}
	for i, mutate := range cases {
		p := DefaultPolicy(uuid.New())
		mutate(&p)
		if err := p.Validate(); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestPolicyValidateRejectsReassignmentLimitWithoutReassignment(t *testing.T) {
	p := DefaultPolicy(uuid.New())
	p.ReassignmentOnDisqualified = false
	p.MaxReassignmentLimit = 2
	if err := p.Validate(); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	p.ReassignmentOnDisqualified = true
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAgentEligibility(t *testing.T) {
	policy := DefaultPolicy(uuid.New())
	policy.LeadsPerEmployeePerDay = 10
	policy.MaxActiveLeadsBalance = 20

	agent := Agent{AssignedToday: 9, ActiveBalance: 19}
	if !agent.Eligible(policy) {
		t.Fatalf("expected agent under both caps to be eligible")
	}

	agent.AssignedToday = 10
	if agent.Eligible(policy) {
		t.Fatalf("expected agent at daily limit to be ineligible")
	}

	agent.AssignedToday = 0
	agent.ActiveBalance = 20
	if agent.Eligible(policy) {
		t.Fatalf("expected agent at balance cap to be ineligible")
	}
}

func TestAgentOverridesShadowPolicy(t *testing.T) {
	policy := DefaultPolicy(uuid.New())
	policy.LeadsPerEmployeePerDay = 10

	limit := 3
	agent := Agent{DailyLimit: &limit, AssignedToday: 3}
	if agent.Eligible(policy) {
		t.Fatalf("expected per-agent daily limit to shadow the policy limit")
	}

	agent.DailyLimitUnlimited = true
	if !agent.Eligible(policy) {
		t.Fatalf("expected unlimited flag to lift the daily limit")
	}

	cap := 1
	agent = Agent{MaxActiveBalance: &cap, ActiveBalance: 1}
	if agent.Eligible(policy) {
		t.Fatalf("expected per-agent balance cap to shadow the policy cap")
	}
}
