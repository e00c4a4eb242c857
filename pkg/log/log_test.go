package log

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func jsonCtx(buf *bytes.Buffer) context.Context {
	logger := zerolog.New(buf)
	return logger.WithContext(context.Background())
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithComponent(jsonCtx(&buf), "cycle")

	FromCtx(ctx).Info().Msg("contact cycle started")
	assert.JSONEq(t, `{"level":"info","component":"cycle","message":"contact cycle started"}`, buf.String())
}

func TestWatermillLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWatermillLoggerFromCtx(jsonCtx(&buf)).With(watermill.LogFields{"topic": "verve.events"})

	logger.Error("publish failed", errors.New("redis down"), watermill.LogFields{"attempt": 2})
	assert.JSONEq(t, `{
		"level":"error",
		"component":"watermill",
		"topic":"verve.events",
		"attempt":2,
		"error":"redis down",
		"message":"publish failed"
	}`, buf.String())
}

func TestGooseLogger(t *testing.T) {
	var buf bytes.Buffer
	NewGooseLoggerFromCtx(jsonCtx(&buf)).Printf("OK   %s", "00001_archive.sql")
	assert.JSONEq(t, `{"level":"debug","component":"goose","message":"OK   00001_archive.sql"}`, buf.String())
}
