package queue

import (
	"encoding/json"
	"fmt"

	"github.com/dunamismax/stylizer/internal/domain"
	"github.com/hibiken/asynq"
)

const TypeArchiveConversion = "conversion:archive"

// ArchiveConversionPayload carries a finished conversion to the worker. PNG is
// empty for failed conversions.
type ArchiveConversionPayload struct {
	Conversion domain.Conversion `json:"conversion"`
	PNG        []byte            `json:"png,omitempty"`
}

func NewArchiveConversionTask(payload ArchiveConversionPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal archive payload: %w", err)
	}
	return asynq.NewTask(TypeArchiveConversion, body), nil
}

func ParseArchiveConversionPayload(task *asynq.Task) (ArchiveConversionPayload, error) {
	var payload ArchiveConversionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ArchiveConversionPayload{}, fmt.Errorf("unmarshal archive payload: %w", err)
	}
	if payload.Conversion.ID == "" {
		return ArchiveConversionPayload{}, fmt.Errorf("archive payload is missing conversion id")
	}
	return payload, nil
}
