package utils

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFanoutHandlerLevels(t *testing.T) {
	var debugBuf, infoBuf bytes.Buffer
	debugTarget := slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoTarget := slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewFanoutHandler(debugTarget, infoTarget))
	logger.Debug("verbose detail")
	logger.Info("headline")

	assert.Contains(t, debugBuf.String(), "verbose detail")
	assert.Contains(t, debugBuf.String(), "headline")

	// the info target never sees debug records
	assert.NotContains(t, infoBuf.String(), "verbose detail")
	assert.Contains(t, infoBuf.String(), "headline")
}

func TestFanoutHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	target := slog.NewTextHandler(&buf, nil)

	logger := slog.New(NewFanoutHandler(target)).With("component", "sync")
	logger.Info("pass finished")

	assert.Contains(t, buf.String(), "component=sync")
}

func TestFanoutHandlerEnabled(t *testing.T) {
	quiet := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError})
	chatty := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})

	h := NewFanoutHandler(quiet, chatty)
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))

	errorsOnly := NewFanoutHandler(quiet)
	assert.False(t, errorsOnly.Enabled(context.Background(), slog.LevelInfo))
}
