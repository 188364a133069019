package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TaskNotificationOutboxDue = "notification.outbox.due"

const TaskStatusTimer = "sfr.status.timer"

type NotificationOutboxDuePayload struct {
	OutboxID  string `json:"outboxId"`
	RequestID int64  `json:"requestId"`
}

type StatusTimerPayload struct {
	RequestID int64 `json:"requestId"`
}

func NewNotificationOutboxDueTask(payload NotificationOutboxDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationOutboxDue, data), nil
}

func ParseNotificationOutboxDuePayload(task *asynq.Task) (NotificationOutboxDuePayload, error) {
	var payload NotificationOutboxDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationOutboxDuePayload{}, err
	}
	return payload, nil
}

func NewStatusTimerTask(payload StatusTimerPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatusTimer, data), nil
}

func ParseStatusTimerPayload(task *asynq.Task) (StatusTimerPayload, error) {
	var payload StatusTimerPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return StatusTimerPayload{}, err
	}
	if payload.RequestID <= 0 {
		return StatusTimerPayload{}, fmt.Errorf("status timer payload has no request id")
	}
	return payload, nil
}

// statusTimerTaskID names a timer by request and instant, so enqueueing the
// same instant twice is rejected by asynq as a duplicate.
func statusTimerTaskID(requestID int64, at time.Time) string {
	return fmt.Sprintf("sfr-status-%d-%d", requestID, at.Unix())
}
