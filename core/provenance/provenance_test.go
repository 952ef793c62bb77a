package provenance

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Emit(ctx context.Context, record Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func TestTrack(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	t.Run("Emits start and complete with the same operation id", func(t *testing.T) {
		sink := &MockSink{}
		var records []Record
		sink.On("Emit", mock.Anything, mock.AnythingOfType("provenance.Record")).
			Run(func(args mock.Arguments) { records = append(records, args.Get(1).(Record)) }).
			Return(nil)

		complete := Track(ctx, sink, logger, "kgraph", "build_entities", map[string]any{"mentions": 3})
		complete(map[string]any{"created": 2}, nil)

		sink.AssertNumberOfCalls(t, "Emit", 2)
		require.Len(t, records, 2)
		assert.Equal(t, PhaseStart, records[0].Phase)
		assert.Equal(t, PhaseComplete, records[1].Phase)
		assert.Equal(t, records[0].OperationID, records[1].OperationID)
		assert.Equal(t, 3, records[0].Inputs["mentions"])
		assert.Equal(t, 2, records[1].Outputs["created"])
		assert.True(t, records[1].Success)
		assert.Equal(t, "kgraph", records[1].ToolID)
	})

	t.Run("Failed operation is recorded as unsuccessful", func(t *testing.T) {
		sink := &MockSink{}
		sink.On("Emit", mock.Anything, mock.MatchedBy(func(r Record) bool { return r.Phase == PhaseStart })).Return(nil).Once()
		sink.On("Emit", mock.Anything, mock.MatchedBy(func(r Record) bool {
			return r.Phase == PhaseComplete && !r.Success && r.Error == "boom"
		})).Return(nil).Once()

		complete := Track(ctx, sink, logger, "kgraph", "build_edges", nil)
		complete(nil, errors.New("boom"))

		sink.AssertExpectations(t)
	})

	t.Run("Sink errors do not propagate", func(t *testing.T) {
		buffer := &bytes.Buffer{}
		sink := &MockSink{}
		sink.On("Emit", mock.Anything, mock.Anything).Return(errors.New("sink down"))

		complete := Track(ctx, sink, slog.New(slog.NewTextHandler(buffer, nil)), "kgraph", "compute_ranks", nil)
		assert.NotPanics(t, func() { complete(nil, nil) })
		assert.Contains(t, buffer.String(), "sink down")
	})

	t.Run("Nil sink falls back to no-op", func(t *testing.T) {
		complete := Track(ctx, nil, logger, "kgraph", "query", nil)
		assert.NotPanics(t, func() { complete(nil, nil) })
	})
}

func TestLogSink(t *testing.T) {
	t.Run("Writes record fields", func(t *testing.T) {
		buffer := &bytes.Buffer{}
		sink := NewLogSink(slog.New(slog.NewTextHandler(buffer, nil)))

		err := sink.Emit(context.Background(), Record{ToolID: "kgraph", Operation: "build_entities", Phase: PhaseStart, Success: true})

		require.NoError(t, err)
		assert.Contains(t, buffer.String(), "operation=build_entities")
		assert.Contains(t, buffer.String(), "phase=start")
	})
}
