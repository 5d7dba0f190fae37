package beaconsdk

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsStreamDelivery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/realtime/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		// connected frames and heartbeats must be swallowed
		fmt.Fprint(w, "event: connected\ndata: {}\n\n")
		fmt.Fprint(w, "event: heartbeat\ndata: {}\n\n")
		fmt.Fprint(w, "event: file.created\ndata: {\"file_id\":\"f-1\",\"filename\":\"a.txt\"}\n\n")
		fmt.Fprint(w, "event: file.deleted\ndata: {\"file_id\":\"f-2\"}\n\n")
		flusher.Flush()

		<-r.Context().Done()
	})
	sdk, _ := newTestSDK(t, mux)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sdk.Events.Connect(ctx, "lib-1"))

	var got []*RemoteEvent
	timeout := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-sdk.Events.Events():
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}

	assert.Equal(t, EventFileCreated, got[0].Type)
	assert.Equal(t, "lib-1", got[0].LibraryID)
	assert.Equal(t, "f-1", got[0].Data.FileID)
	assert.Equal(t, "a.txt", got[0].Data.Filename)
	assert.True(t, got[0].IsFileEvent())

	assert.Equal(t, EventFileDeleted, got[1].Type)
	assert.Equal(t, "f-2", got[1].Data.FileID)
}

func TestEventsConnectIsIdempotentPerLibrary(t *testing.T) {
	connects := make(chan struct{}, 8)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/realtime/events", func(w http.ResponseWriter, r *http.Request) {
		connects <- struct{}{}
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	sdk, _ := newTestSDK(t, mux)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sdk.Events.Connect(ctx, "lib-1"))
	require.NoError(t, sdk.Events.Connect(ctx, "lib-1"))
	require.NoError(t, sdk.Events.Connect(ctx, "lib-2"))

	// one stream per library, not per call
	count := 0
	deadline := time.After(3 * time.Second)
	for count < 2 {
		select {
		case <-connects:
			count++
		case <-deadline:
			t.Fatalf("expected 2 streams, saw %d", count)
		}
	}
	select {
	case <-connects:
		t.Fatal("duplicate Connect opened an extra stream")
	case <-time.After(200 * time.Millisecond):
	}

	assert.True(t, sdk.Events.IsConnected())
	sdk.Events.Close()
	assert.False(t, sdk.Events.IsConnected())
}

func TestRemoteEventClassification(t *testing.T) {
	tests := []struct {
		eventType string
		isFile    bool
	}{
		{EventFileCreated, true},
		{EventFileUpdated, true},
		{EventFileDeleted, true},
		{EventDirectoryCreated, false},
		{EventDirectoryDeleted, false},
		{"library.renamed", false},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			ev := &RemoteEvent{Type: tt.eventType}
			assert.Equal(t, tt.isFile, ev.IsFileEvent())
		})
	}
}
