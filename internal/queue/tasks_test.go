package queue

import (
	"testing"
	"time"

	"github.com/dunamismax/stylizer/internal/domain"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveConversionTaskRoundTrip(t *testing.T) {
	payload := ArchiveConversionPayload{
		Conversion: domain.Conversion{
			ID:        "conv-123",
			Filename:  "portrait.jpg",
			Status:    domain.ConversionStatusSucceeded,
			Width:     256,
			Height:    256,
			CreatedAt: time.Now().UTC(),
		},
		PNG: []byte{0x89, 'P', 'N', 'G'},
	}

	task, err := NewArchiveConversionTask(payload)
	require.NoError(t, err)
	assert.Equal(t, TypeArchiveConversion, task.Type())

	parsed, err := ParseArchiveConversionPayload(task)
	require.NoError(t, err)
	assert.Equal(t, payload.Conversion.ID, parsed.Conversion.ID)
	assert.Equal(t, payload.PNG, parsed.PNG)
}

func TestParseArchiveConversionPayloadRejectsMissingID(t *testing.T) {
	_, err := ParseArchiveConversionPayload(asynq.NewTask(TypeArchiveConversion, []byte(`{"conversion":{}}`)))
	assert.Error(t, err)

	_, err = ParseArchiveConversionPayload(asynq.NewTask(TypeArchiveConversion, []byte(`not json`)))
	assert.Error(t, err)
}
