package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_RoleField(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "runner")

	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "runner", entry["role"])
	assert.Equal(t, "hello", entry["message"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry["func"], "TestNewLogger_RoleField")
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "test")

	require.NoError(t, l.SetLevel("WARN"))
	l.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	l.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")

	assert.Error(t, l.SetLevel("loud"))
}

func TestLogger_ChildAndContext(t *testing.T) {
	var buf bytes.Buffer
	parent := newLogger(&buf, "test")

	child := parent.GetChildLogger()
	child.Logger = child.With().Str("sample", "s1").Logger()
	child.Info().Msg("child")
	assert.Contains(t, buf.String(), `"sample":"s1"`)

	buf.Reset()
	parent.Info().Msg("parent")
	assert.NotContains(t, buf.String(), "sample")

	ctx := child.WithContext(context.Background())
	buf.Reset()
	FromContext(ctx).Info().Msg("from ctx")
	assert.Contains(t, buf.String(), `"sample":"s1"`)

	assert.NotNil(t, FromContext(context.Background()))
}

func TestNop(t *testing.T) {
	l := Nop()
	require.NotNil(t, l)
	l.Error().Msg("discarded")
}
