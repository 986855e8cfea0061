package internal

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestDecorateLogger(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)

	ctx := RequestContext(context.Background())
	SetRequestContextRestart(ctx, "5", "txn1", true)
	SetRequestContextResponseInfo(ctx, "6", 3, 2)
	DecorateLogger(ctx, l.Info()).Msg("done")

	line := gjson.ParseBytes(buf.Bytes())
	assert.Equal(t, "5", line.Get("p").Str)
	assert.Equal(t, "6", line.Get("q").Str)
	assert.Equal(t, "txn1", line.Get("t").Str)
	assert.Equal(t, int64(3), line.Get("r").Int())
	assert.Equal(t, int64(2), line.Get("l").Int())
	assert.True(t, line.Get("restart").Bool())
}

func TestDecorateLoggerWithoutRequestContext(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)
	SetRequestContextResponseInfo(context.Background(), "6", 3, 2) // must not panic
	DecorateLogger(context.Background(), l.Info()).Msg("done")
	assert.False(t, gjson.GetBytes(buf.Bytes(), "q").Exists())
}
