package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAddsSigningHeaders(t *testing.T) {
	var (
		gotSig  string
		gotTS   string
		gotEvt  string
		gotBody []byte
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		gotTS = r.Header.Get(HeaderTimestamp)
		gotEvt = r.Header.Get(HeaderEvent)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{
		SigningSecret: "test-secret",
		Timeout:       2 * time.Second,
		MaxAttempts:   1,
	})

	err := client.Send(context.Background(), srv.URL, EventConversionArchived, map[string]any{"conversion_id": "conv-1"})
	require.NoError(t, err)

	require.NotEmpty(t, gotTS)
	assert.Equal(t, Sign("test-secret", gotTS, gotBody), gotSig)
	assert.Equal(t, EventConversionArchived, gotEvt)
}

func TestSendRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})

	require.NoError(t, client.Send(context.Background(), srv.URL, EventConversionArchived, map[string]string{}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{MaxAttempts: 2, InitialBackoff: time.Millisecond})
	err := client.Send(context.Background(), srv.URL, EventConversionFailed, map[string]string{})
	assert.ErrorContains(t, err, "after 2 attempts")
}

func TestSendSkipsEmptyEndpoint(t *testing.T) {
	assert.NoError(t, NewClient(Config{}).Send(context.Background(), " ", EventConversionArchived, nil))
}
