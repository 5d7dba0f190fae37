package beaconsdk

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/imroc/req/v3"
)

const (
	eventsURL               = "/api/realtime/events"
	eventsBufferSize        = 16
	eventsReconnectDelay    = 1 * time.Second
	eventsMaxReconnectDelay = 30 * time.Second
)

// EventsAPI consumes the server's SSE stream of library change events. The
// stream is advisory only: it nudges the engine into an early sync pass,
// while correctness always rests on full reconciliation.
type EventsAPI struct {
	client  *req.Client
	events  chan *RemoteEvent
	mu      sync.Mutex
	streams map[string]context.CancelFunc
}

func newEventsAPI(client *req.Client) *EventsAPI {
	return &EventsAPI{
		client:  client,
		events:  make(chan *RemoteEvent, eventsBufferSize),
		streams: make(map[string]context.CancelFunc),
	}
}

// Connect subscribes to events for one library and keeps the subscription
// alive with backoff until Close or context cancellation. Each library gets
// its own stream; all streams deliver into the single Events channel.
func (e *EventsAPI) Connect(ctx context.Context, libraryID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.streams[libraryID]; ok {
		return nil
	}

	streamCtx, cancel := context.WithCancel(ctx)
	e.streams[libraryID] = cancel

	go e.streamLoop(streamCtx, libraryID)
	return nil
}

// Events returns the channel change notifications are delivered on.
func (e *EventsAPI) Events() <-chan *RemoteEvent {
	return e.events
}

// IsConnected reports whether any stream loop is running.
func (e *EventsAPI) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.streams) > 0
}

// Close stops every stream loop.
func (e *EventsAPI) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, cancel := range e.streams {
		cancel()
		delete(e.streams, id)
	}
}

func (e *EventsAPI) streamLoop(ctx context.Context, libraryID string) {
	delay := eventsReconnectDelay

	for {
		err := e.consumeStream(ctx, libraryID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Debug("event stream disconnected", "library", libraryID, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > eventsMaxReconnectDelay {
			delay = eventsMaxReconnectDelay
		}
	}
}

func (e *EventsAPI) consumeStream(ctx context.Context, libraryID string) error {
	resp, err := e.client.R().
		DisableAutoReadResponse().
		SetContext(ctx).
		SetRetryCount(0).
		SetQueryParam("library_id", libraryID).
		SetHeader("Accept", "text/event-stream").
		Get(eventsURL)

	if err != nil {
		return fmt.Errorf("event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.IsErrorState() {
		return fmt.Errorf("event stream: status %d", resp.GetStatusCode())
	}

	scanner := bufio.NewScanner(resp.Body)
	var eventType, eventData string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			e.dispatch(ctx, libraryID, eventType, eventData)
			eventType, eventData = "", ""
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			eventData = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	return scanner.Err()
}

func (e *EventsAPI) dispatch(ctx context.Context, libraryID, eventType, eventData string) {
	// heartbeats and the initial connected frame carry no file payload
	if eventType == "" || eventType == "heartbeat" || eventType == "connected" {
		return
	}

	event := &RemoteEvent{
		Type:      eventType,
		LibraryID: libraryID,
	}
	if eventData != "" {
		if err := jsonUnmarshal([]byte(eventData), &event.Data); err != nil {
			slog.Debug("event decode failed", "type", eventType, "error", err)
		}
	}

	select {
	case e.events <- event:
	case <-ctx.Done():
	default:
		// a slow consumer only loses a nudge, never data
		slog.Debug("event dropped, buffer full", "type", eventType)
	}
}
