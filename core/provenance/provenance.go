package provenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Phase marks whether a record opens or closes an operation.
type Phase string

const (
	PhaseStart    Phase = "start"
	PhaseComplete Phase = "complete"
)

// Record is one audit entry of a batch operation.
type Record struct {
	OperationID uuid.UUID      `json:"operation_id"`
	ToolID      string         `json:"tool_id"`
	Operation   string         `json:"operation"`
	Phase       Phase          `json:"phase"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Success     bool           `json:"success"`
	Error       string         `json:"error,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Sink receives provenance records. It is write-only.
type Sink interface {
	Emit(ctx context.Context, record Record) error
}

// NopSink drops every record.
type NopSink struct{}

func (NopSink) Emit(context.Context, Record) error { return nil }

// LogSink writes records to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// NewLogSink returns a sink writing to logger, or to slog.Default if nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{Logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, record Record) error {
	s.Logger.InfoContext(ctx, "Provenance",
		"operation_id", record.OperationID.String(),
		"tool_id", record.ToolID,
		"operation", record.Operation,
		"phase", string(record.Phase),
		"success", record.Success,
		"inputs", record.Inputs,
		"outputs", record.Outputs,
		"error", record.Error,
	)
	return nil
}

// CompleteFunc closes an operation opened by Track.
type CompleteFunc func(outputs map[string]any, err error)

// Track emits the start record of an operation and returns the function
// emitting its completion. Sink failures are logged and never returned.
func Track(ctx context.Context, sink Sink, logger *slog.Logger, toolID string, operation string, inputs map[string]any) CompleteFunc {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	operationID := uuid.New()
	emit := func(record Record) {
		if err := sink.Emit(ctx, record); err != nil {
			logger.Warn("Failed to emit provenance record", "operation", operation, "phase", string(record.Phase), "error", err)
		}
	}

	emit(Record{
		OperationID: operationID,
		ToolID:      toolID,
		Operation:   operation,
		Phase:       PhaseStart,
		Inputs:      inputs,
		Success:     true,
		Timestamp:   time.Now().UTC(),
	})

	return func(outputs map[string]any, err error) {
		record := Record{
			OperationID: operationID,
			ToolID:      toolID,
			Operation:   operation,
			Phase:       PhaseComplete,
			Outputs:     outputs,
			Success:     err == nil,
			Timestamp:   time.Now().UTC(),
		}
		if err != nil {
			record.Error = err.Error()
		}
		emit(record)
	}
}
