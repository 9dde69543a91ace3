package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskNurtureProcess = "nurture.process"

const TaskReviewsSync = "reviews.sync"

// TriggerPayload records who asked for a run.
type TriggerPayload struct {
	Trigger     string    `json:"trigger"`
	RequestedAt time.Time `json:"requestedAt"`
}

func NewNurtureProcessTask(payload TriggerPayload) (*asynq.Task, error) {
	return newTriggerTask(TaskNurtureProcess, payload)
}

func NewReviewsSyncTask(payload TriggerPayload) (*asynq.Task, error) {
	return newTriggerTask(TaskReviewsSync, payload)
}

func newTriggerTask(taskType string, payload TriggerPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

// ParseTriggerPayload tolerates an empty payload, which periodic tasks use.
func ParseTriggerPayload(task *asynq.Task) (TriggerPayload, error) {
	var payload TriggerPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return TriggerPayload{}, err
	}
	return payload, nil
}
