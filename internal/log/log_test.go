package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LevelWarn)

	Debug("hidden debug")
	Info("hidden info")
	Warn("shown warn", "room", "A101")
	Error("shown error", errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown warn room=A101")
	assert.Contains(t, out, "[ERROR] shown error err=boom")
}

func TestFormatKVs(t *testing.T) {
	tests := []struct {
		name string
		kv   []any
		want string
	}{
		{name: "pairs", kv: []any{"a", 1, "b", "x"}, want: " a=1 b=x"},
		{name: "odd count drops last", kv: []any{"a", 1, "b"}, want: " a=1"},
		{name: "non string key skipped", kv: []any{3, "v", "k", "w"}, want: " k=w"},
		{name: "value with space quoted", kv: []any{"title", "Algo avancée"}, want: ` title="Algo avancée"`},
		{name: "empty value quoted", kv: []any{"k", ""}, want: ` k=""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatKVs(tt.kv...))
		})
	}
}

func TestWithCarriesPairs(t *testing.T) {
	buf := capture(t, LevelDebug)

	l := With("run_id", "01H")
	l.Debug("room fetched", "room", "B2")
	l.Error("room failed", errors.New("timeout"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "room fetched run_id=01H room=B2")
	assert.Contains(t, lines[1], "room failed err=timeout run_id=01H")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("chatty"))
}
