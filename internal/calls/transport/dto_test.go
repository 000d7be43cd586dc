package transport

import (
	"testing"

	"leadflow_backend/internal/leads/domain"
)

func TestToDomainClampsNegativeDuration(t *testing.T) {
	req := HitCallRequest{
		Status:      string(domain.ResponseConnected),
		FinalAction: string(domain.ActionFollowUp),
		DurationMin: -7,
	}

	outcome := req.ToDomain()
	if outcome.DurationMin != 0 {
		t.Fatalf("negative duration should clamp to 0, got %d", outcome.DurationMin)
	}

	req.DurationMin = 12
	if got := req.ToDomain().DurationMin; got != 12 {
		t.Fatalf("positive duration should pass through, got %d", got)
	}
}
