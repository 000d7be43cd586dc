package sweeper

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskTenantSweep = "assignment.tenant.sweep"

type TenantSweepPayload struct {
	TenantID string `json:"tenantId"`
}

func NewTenantSweepTask(payload TenantSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTenantSweep, data), nil
}

func ParseTenantSweepPayload(task *asynq.Task) (TenantSweepPayload, error) {
	var payload TenantSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return TenantSweepPayload{}, err
	}
	return payload, nil
}
