package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithLogger(context.Background(), logger)

	ctx = With(ctx, "run_id", "abc")
	FromContext(ctx).Info("Run started.")

	assert.Contains(t, buf.String(), "run_id=abc")
	assert.Contains(t, buf.String(), `msg="Run started."`)
}

func TestWithRunID_TagsOnce(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	ctx = WithRunID(ctx, "r1")
	ctx = WithRunID(ctx, "r1")
	FromContext(ctx).Info("Node finished.")

	assert.Equal(t, "r1", RunID(ctx))
	assert.Equal(t, 1, strings.Count(buf.String(), "run_id=r1"))
	assert.Empty(t, RunID(context.Background()))
}
