package destination

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"chronicle/internal/constants"
	"chronicle/internal/event"
	"chronicle/internal/logger"
)

// FileHandler appends events as JSON lines to the path option. Writes
// to the same file are serialized.
type FileHandler struct {
	mu          sync.Mutex
	defaultPath string
	logger      logger.Logger
}

func NewFileHandler(defaultPath string, log logger.Logger) *FileHandler {
	return &FileHandler{defaultPath: defaultPath, logger: log}
}

func (h *FileHandler) Name() string {
	return constants.DestinationFile
}

func (h *FileHandler) Deliver(ctx context.Context, evt event.Event, options map[string]interface{}) Result {
	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}

	path := stringOption(options, "path", h.defaultPath)
	if path == "" {
		return Result{Err: fmt.Errorf("file destination requires a path option")}
	}

	line, err := json.Marshal(evt)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to encode event: %w", err)}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to open sink file: %w", err)}
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return Result{Err: fmt.Errorf("failed to write sink file: %w", err)}
	}

	return Result{Success: true, MessageID: evt.ID}
}
