package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHandlerFormat tests the single-line record layout.
func TestHandlerFormat(t *testing.T) {
	SetLevel(slog.LevelDebug)
	defer SetLevel(slog.LevelInfo)

	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf)).With("tx", "abcd")

	log.Info("verified", "contracts", 2)

	line := buf.String()
	assert.Contains(t, line, "[INF] verified")
	assert.Contains(t, line, "tx=abcd")
	assert.Contains(t, line, "contracts=2")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

// TestHandlerLevel tests that records below the minimum level are dropped.
func TestHandlerLevel(t *testing.T) {
	SetLevel(slog.LevelWarn)
	defer SetLevel(slog.LevelInfo)

	h := NewHandler(&bytes.Buffer{})

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}

	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestTimed(t *testing.T) {
	attr := Timed(time.Now().Add(-time.Second))

	assert.Equal(t, "elapsed", attr.Key)
	assert.GreaterOrEqual(t, attr.Value.Duration(), time.Second)
}
