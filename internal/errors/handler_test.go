package errors

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/jzx17/imgqueue/pkg/types"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// TestErrorContext tests basic functionality of error context
func TestErrorContext(t *testing.T) {
	testErr := types.NewItemError("decode", "/in/a.png", types.ReasonDecode, errors.New("bad header"))
	item := types.NewWorkItem("/in/a.png", "/out/a.png")

	errCtx := NewErrorContext(testErr, "invert", item)

	if errCtx.Error != testErr {
		t.Errorf("Expected error %v, got %v", testErr, errCtx.Error)
	}
	if errCtx.OperationName != "invert" {
		t.Errorf("Expected operation name invert, got %s", errCtx.OperationName)
	}
	if errCtx.Item != item {
		t.Errorf("Expected item %+v, got %+v", item, errCtx.Item)
	}
	if errCtx.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", errCtx.Attempts)
	}
	if errCtx.Reason() != types.ReasonDecode {
		t.Errorf("Expected decode reason, got %v", errCtx.Reason())
	}
	if errCtx.Timestamp.IsZero() {
		t.Errorf("Expected timestamp to be set")
	}
	if len(errCtx.Metadata) != 0 {
		t.Errorf("Expected empty metadata, got %d items", len(errCtx.Metadata))
	}
}

func TestErrorHandlerStrategy(t *testing.T) {
	tests := []struct {
		strategy ErrorHandlerStrategy
		expected string
	}{
		{FailFastStrategy, "FailFast"},
		{ContinueOnErrorStrategy, "ContinueOnError"},
		{ErrorHandlerStrategy(99), "Unknown"},
	}

	for _, test := range tests {
		if result := test.strategy.String(); result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    ErrorHandlerStrategy
		wantErr bool
	}{
		{"", ContinueOnErrorStrategy, false},
		{"continue", ContinueOnErrorStrategy, false},
		{"ContinueOnError", ContinueOnErrorStrategy, false},
		{"fail-fast", FailFastStrategy, false},
		{" FailFast ", FailFastStrategy, false},
		{"panic", ContinueOnErrorStrategy, true},
	}

	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStrategy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, types.ErrInvalidInput) {
			t.Errorf("ParseStrategy(%q) error should wrap ErrInvalidInput", tt.in)
		}
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandler(t *testing.T) {
	if h := NewHandler(FailFastStrategy, nil); h.Name() != "FailFast" {
		t.Errorf("Expected FailFast handler, got %s", h.Name())
	}
	if h := NewHandler(ContinueOnErrorStrategy, nil); h.Name() != "ContinueOnError" {
		t.Errorf("Expected ContinueOnError handler, got %s", h.Name())
	}
	// absorb reasons only matter under fail-fast
	if h := NewHandler(ContinueOnErrorStrategy, nil, types.ReasonDecode); !h.CanHandle(errors.New("plain")) {
		t.Errorf("continue-on-error must absorb every reason")
	}
}

func TestNewHandler_FailFastWithAbsorbedReasons(t *testing.T) {
	h := NewHandler(FailFastStrategy, nil, types.ReasonDecode, types.ReasonUnsupported)

	decodeErr := types.NewItemError("decode", "/in/a.png", types.ReasonDecode, errors.New("truncated"))
	ioErr := types.NewItemError("write", "/out/a.png", types.ReasonIO, errors.New("disk full"))

	if err := h.HandleError(context.Background(), NewErrorContext(decodeErr, "transform", types.WorkItem{})); err != nil {
		t.Errorf("decode failure should be absorbed, got %v", err)
	}
	err := h.HandleError(context.Background(), NewErrorContext(ioErr, "transform", types.WorkItem{}))
	if !errors.Is(err, ioErr) {
		t.Errorf("io failure should abort the run, got %v", err)
	}
}

// TestFailFastHandler tests fail-fast handler
func TestFailFastHandler(t *testing.T) {
	logger, buf := newTestLogger()
	handler := NewFailFastHandler(logger)

	if !handler.CanHandle(errors.New("any")) {
		t.Errorf("FailFast handler should handle all errors")
	}

	cause := types.NewItemError("write", "/out/a.png", types.ReasonIO, errors.New("disk full"))
	errCtx := NewErrorContext(cause, "invert", types.NewWorkItem("/in/a.png", "/out/a.png"))
	errCtx.WorkerID = 2

	result := handler.HandleError(context.Background(), errCtx)
	if result == nil {
		t.Fatal("FailFast handler should return an error")
	}
	if !errors.Is(result, cause) {
		t.Errorf("Expected returned error to wrap the cause, got %v", result)
	}

	out := buf.String()
	for _, want := range []string{"level=ERROR", "worker_id=2", "reason=io", "source=/in/a.png"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

// TestContinueOnErrorHandler tests continue-on-error handler
func TestContinueOnErrorHandler(t *testing.T) {
	t.Run("absorbs every failure by default", func(t *testing.T) {
		logger, buf := newTestLogger()
		handler := NewContinueOnErrorHandler(&ContinueOnErrorConfig{Logger: logger})

		errCtx := NewErrorContext(errors.New("boom"), "invert", types.NewWorkItem("/in/b.png", "/out/b.png"))
		errCtx.Attempts = 3

		if err := handler.HandleError(context.Background(), errCtx); err != nil {
			t.Errorf("Expected failure to be absorbed, got %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "attempts=3") {
			t.Errorf("unexpected log output: %s", out)
		}
	})

	t.Run("nil config", func(t *testing.T) {
		handler := NewContinueOnErrorHandler(nil)
		errCtx := NewErrorContext(errors.New("boom"), "invert", types.WorkItem{})
		if err := handler.HandleError(context.Background(), errCtx); err != nil {
			t.Errorf("Expected nil, got %v", err)
		}
	})

	t.Run("limited reasons", func(t *testing.T) {
		handler := NewContinueOnErrorHandler(&ContinueOnErrorConfig{
			IgnoredReasons: []types.FailureReason{types.ReasonDecode},
		})

		decodeErr := types.NewItemError("decode", "x", types.ReasonDecode, errors.New("bad"))
		ioErr := types.NewItemError("write", "x", types.ReasonIO, errors.New("disk"))

		if !handler.CanHandle(decodeErr) || handler.CanHandle(ioErr) {
			t.Errorf("CanHandle should follow the configured reasons")
		}
		if err := handler.HandleError(context.Background(), NewErrorContext(decodeErr, "invert", types.WorkItem{})); err != nil {
			t.Errorf("decode failure should be absorbed, got %v", err)
		}
		if err := handler.HandleError(context.Background(), NewErrorContext(ioErr, "invert", types.WorkItem{})); err != ioErr {
			t.Errorf("io failure should be returned, got %v", err)
		}
	})
}
