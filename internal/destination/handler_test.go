package destination

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/constants"
	"chronicle/internal/event"
	"chronicle/internal/logger"
)

func sinkTestEvent() event.Event {
	return event.NewBuilder().
		WithID("evt-1").
		WithEntity("order", "order-1").
		WithType(event.TypeCreated).
		WithTimestamp(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)).
		WithData(map[string]interface{}{"amount": 42.0}).
		Build()
}

type staticHandler struct {
	name string
}

func (s staticHandler) Name() string { return s.name }

func (s staticHandler) Deliver(context.Context, event.Event, map[string]interface{}) Result {
	return Result{Success: true}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(staticHandler{name: "webhook"})
	r.Register(staticHandler{name: "queue"})

	h, ok := r.Get("webhook")
	require.True(t, ok)
	assert.Equal(t, "webhook", h.Name())

	_, ok = r.Get("pager")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"webhook", "queue"}, r.Names())
}

func TestFileHandler_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	h := NewFileHandler("", logger.NopLogger())

	evt := sinkTestEvent()
	opts := map[string]interface{}{"path": path}

	res := h.Deliver(context.Background(), evt, opts)
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, evt.ID, res.MessageID)

	second := sinkTestEvent()
	second.ID = "evt-2"
	require.True(t, h.Deliver(context.Background(), second, opts).Success)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var decoded event.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &decoded))
		ids = append(ids, decoded.ID)
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"evt-1", "evt-2"}, ids)
}

func TestFileHandler_DefaultPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.jsonl")
	h := NewFileHandler(path, logger.NopLogger())

	res := h.Deliver(context.Background(), sinkTestEvent(), nil)
	require.NoError(t, res.Err)

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileHandler_MissingPath(t *testing.T) {
	h := NewFileHandler("", logger.NopLogger())

	res := h.Deliver(context.Background(), sinkTestEvent(), nil)

	assert.False(t, res.Success)
	assert.ErrorContains(t, res.Err, "path option")
}

func TestFileHandler_ConcurrentWritesStayWholeLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	h := NewFileHandler(path, logger.NopLogger())

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			evt := sinkTestEvent()
			evt.ID = fmt.Sprintf("evt-%d", i)
			h.Deliver(context.Background(), evt, nil)
		}(i)
	}
	wg.Wait()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var decoded event.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &decoded))
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, writers, lines)
}

func TestWebhookHandler_Deliver(t *testing.T) {
	var received event.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := NewWebhookHandler(srv.Client(), logger.NopLogger())
	res := h.Deliver(context.Background(), sinkTestEvent(), map[string]interface{}{"url": srv.URL})

	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.MessageID)
	assert.Equal(t, "evt-1", received.ID)
}

func TestWebhookHandler_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	h := NewWebhookHandler(srv.Client(), logger.NopLogger())
	res := h.Deliver(context.Background(), sinkTestEvent(), map[string]interface{}{"url": srv.URL})

	assert.False(t, res.Success)
	assert.ErrorContains(t, res.Err, "status 502")
}

func TestWebhookHandler_MissingURL(t *testing.T) {
	h := NewWebhookHandler(nil, logger.NopLogger())

	res := h.Deliver(context.Background(), sinkTestEvent(), nil)

	assert.False(t, res.Success)
	assert.ErrorContains(t, res.Err, "url option")
}

func TestAPIHandler_Deliver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "audit", r.Header.Get("X-Source"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	h := NewAPIHandler(srv.Client(), logger.NopLogger())
	res := h.Deliver(context.Background(), sinkTestEvent(), map[string]interface{}{
		"url":        srv.URL,
		"method":     "put",
		"auth_token": "secret-token",
		"headers":    map[string]interface{}{"X-Source": "audit"},
	})

	require.NoError(t, res.Err)
	assert.True(t, res.Success)
}

func TestAPIHandler_DefaultsToPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := NewAPIHandler(srv.Client(), logger.NopLogger())
	res := h.Deliver(context.Background(), sinkTestEvent(), map[string]interface{}{"url": srv.URL})

	require.NoError(t, res.Err)
	assert.True(t, res.Success)
}

func TestHeaderOptions(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]interface{}
		want    map[string]string
	}{
		{"absent", map[string]interface{}{}, map[string]string{}},
		{"string map", map[string]interface{}{"headers": map[string]string{"A": "1"}}, map[string]string{"A": "1"}},
		{"interface map drops non-strings", map[string]interface{}{"headers": map[string]interface{}{"A": "1", "B": 2}}, map[string]string{"A": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, headerOptions(tt.options))
		})
	}
}

type recordingProducer struct {
	mu     sync.Mutex
	topics []string
	events []event.Event
	err    error
}

func (p *recordingProducer) Publish(_ context.Context, topic string, evt event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func TestQueueHandler_Deliver(t *testing.T) {
	producer := &recordingProducer{}
	h := NewQueueHandler(producer, "audit.routed", logger.NopLogger())

	assert.Equal(t, constants.DestinationQueue, h.Name())

	res := h.Deliver(context.Background(), sinkTestEvent(), nil)
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, "evt-1", res.MessageID)
	assert.Equal(t, []string{"audit.routed"}, producer.topics)

	res = h.Deliver(context.Background(), sinkTestEvent(), map[string]interface{}{"topic": "audit.alerts"})
	require.NoError(t, res.Err)
	assert.Equal(t, "audit.alerts", producer.topics[1])
}

func TestQueueHandler_MissingTopic(t *testing.T) {
	h := NewQueueHandler(&recordingProducer{}, "", logger.NopLogger())

	res := h.Deliver(context.Background(), sinkTestEvent(), nil)

	assert.False(t, res.Success)
	assert.ErrorContains(t, res.Err, "topic option")
}

func TestQueueHandler_PublishError(t *testing.T) {
	h := NewQueueHandler(&recordingProducer{err: errors.New("broker down")}, "audit.routed", logger.NopLogger())

	res := h.Deliver(context.Background(), sinkTestEvent(), nil)

	assert.False(t, res.Success)
	assert.ErrorContains(t, res.Err, "broker down")
}

func TestDatabaseHandler_NotConfigured(t *testing.T) {
	h := NewDatabaseHandler(nil, logger.NopLogger())

	res := h.Deliver(context.Background(), sinkTestEvent(), nil)

	assert.False(t, res.Success)
	assert.ErrorContains(t, res.Err, "not configured")
}
