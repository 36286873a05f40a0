package destination

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"chronicle/internal/constants"
	"chronicle/internal/event"
	"chronicle/internal/logger"
	"chronicle/pkg/circuitbreaker"
)

// APIHandler calls an arbitrary HTTP API with the event as the JSON
// body. Method, headers and bearer auth come from the rule's options.
type APIHandler struct {
	client  *http.Client
	breaker *circuitbreaker.Wrapper
	logger  logger.Logger
}

func NewAPIHandler(client *http.Client, log logger.Logger) *APIHandler {
	if client == nil {
		client = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	}
	return &APIHandler{
		client:  client,
		breaker: circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("api")),
		logger:  log,
	}
}

func (h *APIHandler) Name() string {
	return constants.DestinationAPI
}

func (h *APIHandler) Deliver(ctx context.Context, evt event.Event, options map[string]interface{}) Result {
	url := stringOption(options, "url", "")
	if url == "" {
		return Result{Err: fmt.Errorf("api destination requires a url option")}
	}

	method := strings.ToUpper(stringOption(options, "method", http.MethodPost))

	body, err := json.Marshal(evt)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to encode event: %w", err)}
	}

	_, err = h.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for key, value := range headerOptions(options) {
			req.Header.Set(key, value)
		}
		if token := stringOption(options, "auth_token", ""); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := h.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
			return nil, fmt.Errorf("api returned status %d", resp.StatusCode)
		}
		return nil, nil
	})

	h.breaker.RecordRequest(err == nil)

	if err != nil {
		return Result{Err: fmt.Errorf("api delivery failed: %w", err)}
	}

	return Result{Success: true, MessageID: uuid.New().String()}
}

func headerOptions(options map[string]interface{}) map[string]string {
	headers := make(map[string]string)
	raw, ok := options["headers"]
	if !ok {
		return headers
	}
	switch typed := raw.(type) {
	case map[string]string:
		for k, v := range typed {
			headers[k] = v
		}
	case map[string]interface{}:
		for k, v := range typed {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}
	return headers
}
