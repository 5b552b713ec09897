package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dunamismax/stylizer/internal/config"
	"github.com/dunamismax/stylizer/internal/domain"
	"github.com/dunamismax/stylizer/internal/queue"
	"github.com/dunamismax/stylizer/internal/store"
	"github.com/dunamismax/stylizer/internal/webhook"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	objects  map[string][]byte
	writes   int
	writeErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (f *fakeStorage) ObjectExists(_ context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStorage) WriteObject(_ context.Context, key string, data []byte, _ string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) PresignedGetURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.example/" + key, nil
}

type sentEvent struct {
	endpoint string
	event    string
	payload  map[string]any
}

type fakeWebhook struct {
	sent []sentEvent
	err  error
}

func (f *fakeWebhook) Send(_ context.Context, endpoint, event string, payload any) error {
	f.sent = append(f.sent, sentEvent{endpoint: endpoint, event: event, payload: payload.(map[string]any)})
	return f.err
}

func succeededPayload() queue.ArchiveConversionPayload {
	return queue.ArchiveConversionPayload{
		Conversion: domain.Conversion{
			ID:        "conv-1",
			Filename:  "me.jpg",
			Status:    domain.ConversionStatusSucceeded,
			Policy:    "standard",
			Width:     256,
			Height:    256,
			CreatedAt: time.Now().UTC(),
		},
		PNG: []byte("\x89PNG fake"),
	}
}

func TestArchiveStoresOutputAndRecord(t *testing.T) {
	storage := newFakeStorage()
	conversions := store.NewMemoryConversionStore()
	hook := &fakeWebhook{}
	s := newServer(zerolog.Nop(), Deps{
		Storage:    storage,
		Store:      conversions,
		Webhook:    hook,
		WebhookURL: "https://hooks.example/stylizer",
	})

	require.NoError(t, s.archive(context.Background(), succeededPayload()))

	assert.Equal(t, []byte("\x89PNG fake"), storage.objects["outputs/conv-1.png"])

	got, ok, err := conversions.Get(context.Background(), "conv-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "outputs/conv-1.png", got.ObjectKey)

	require.Len(t, hook.sent, 1)
	assert.Equal(t, webhook.EventConversionArchived, hook.sent[0].event)
	assert.Equal(t, "https://objects.example/outputs/conv-1.png", hook.sent[0].payload["download_url"])
}

func TestArchiveIsIdempotentOnRetry(t *testing.T) {
	storage := newFakeStorage()
	s := newServer(zerolog.Nop(), Deps{Storage: storage, Store: store.NewMemoryConversionStore()})

	require.NoError(t, s.archive(context.Background(), succeededPayload()))
	require.NoError(t, s.archive(context.Background(), succeededPayload()))
	assert.Equal(t, 1, storage.writes)
}

func TestArchiveFailedConversionSkipsStorage(t *testing.T) {
	storage := newFakeStorage()
	conversions := store.NewMemoryConversionStore()
	hook := &fakeWebhook{}
	s := newServer(zerolog.Nop(), Deps{
		Storage:    storage,
		Store:      conversions,
		Webhook:    hook,
		WebhookURL: "https://hooks.example/stylizer",
	})

	err := s.archive(context.Background(), queue.ArchiveConversionPayload{
		Conversion: domain.Conversion{
			ID:           "conv-2",
			Status:       domain.ConversionStatusFailed,
			ErrorKind:    string(domain.KindDecode),
			ErrorMessage: "decode source image: image: unknown format",
		},
	})
	require.NoError(t, err)
	assert.Zero(t, storage.writes)

	got, ok, err := conversions.Get(context.Background(), "conv-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got.ObjectKey)

	require.Len(t, hook.sent, 1)
	assert.Equal(t, webhook.EventConversionFailed, hook.sent[0].event)
	assert.NotContains(t, hook.sent[0].payload, "download_url")
}

func TestArchiveSurfacesErrorsForRetry(t *testing.T) {
	storage := newFakeStorage()
	storage.writeErr = errors.New("bucket unavailable")
	s := newServer(zerolog.Nop(), Deps{Storage: storage, Store: store.NewMemoryConversionStore()})
	assert.ErrorContains(t, s.archive(context.Background(), succeededPayload()), "bucket unavailable")

	hook := &fakeWebhook{err: errors.New("503")}
	s = newServer(zerolog.Nop(), Deps{
		Storage:    newFakeStorage(),
		Store:      store.NewMemoryConversionStore(),
		Webhook:    hook,
		WebhookURL: "https://hooks.example/stylizer",
	})
	assert.ErrorContains(t, s.archive(context.Background(), succeededPayload()), "dispatch webhook")
}

func TestHandleArchiveConversionSkipsRetryOnBadPayload(t *testing.T) {
	s := newServer(zerolog.Nop(), Deps{Storage: newFakeStorage(), Store: store.NewMemoryConversionStore()})

	err := s.handleArchiveConversion(context.Background(), asynq.NewTask(queue.TypeArchiveConversion, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	task, err := queue.NewArchiveConversionTask(succeededPayload())
	require.NoError(t, err)
	assert.NoError(t, s.handleArchiveConversion(context.Background(), task))
}

func TestNewServerRequiresDependencies(t *testing.T) {
	queueCfg := config.QueueConfig{RedisAddr: "localhost:6379", Name: "archive"}
	workerCfg := config.WorkerConfig{Concurrency: 1}

	_, err := NewServer(zerolog.Nop(), queueCfg, workerCfg, Deps{Store: store.NewMemoryConversionStore()})
	assert.Error(t, err)
	_, err = NewServer(zerolog.Nop(), queueCfg, workerCfg, Deps{Storage: newFakeStorage()})
	assert.Error(t, err)
}
