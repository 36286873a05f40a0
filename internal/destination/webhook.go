package destination

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"chronicle/internal/constants"
	"chronicle/internal/event"
	"chronicle/internal/logger"
	"chronicle/pkg/circuitbreaker"
)

// WebhookHandler POSTs the event as JSON to the url option. Calls run
// through a circuit breaker so a dead endpoint stops consuming dispatch
// slots quickly.
type WebhookHandler struct {
	client  *http.Client
	breaker *circuitbreaker.Wrapper
	logger  logger.Logger
}

func NewWebhookHandler(client *http.Client, log logger.Logger) *WebhookHandler {
	if client == nil {
		client = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	}
	return &WebhookHandler{
		client:  client,
		breaker: circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("webhook")),
		logger:  log,
	}
}

func (h *WebhookHandler) Name() string {
	return constants.DestinationWebhook
}

func (h *WebhookHandler) Deliver(ctx context.Context, evt event.Event, options map[string]interface{}) Result {
	url := stringOption(options, "url", "")
	if url == "" {
		return Result{Err: fmt.Errorf("webhook destination requires a url option")}
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to encode event: %w", err)}
	}

	_, err = h.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := h.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
			return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return nil, nil
	})

	h.breaker.RecordRequest(err == nil)

	if err != nil {
		return Result{Err: fmt.Errorf("webhook delivery failed: %w", err)}
	}

	return Result{Success: true, MessageID: uuid.New().String()}
}
