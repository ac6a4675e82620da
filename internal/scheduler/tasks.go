package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskImportSubmit = "imports.submit"

type ImportSubmitPayload struct {
	SessionID string `json:"sessionId"`
	LockToken string `json:"lockToken"`
}

func NewImportSubmitTask(payload ImportSubmitPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskImportSubmit, data), nil
}

func ParseImportSubmitPayload(task *asynq.Task) (ImportSubmitPayload, error) {
	var payload ImportSubmitPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ImportSubmitPayload{}, err
	}
	return payload, nil
}
