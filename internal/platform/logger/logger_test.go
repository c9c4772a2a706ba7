package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, Debug, ParseLevel("DEBUG"))
	assert.Equal(t, Warn, ParseLevel(" warning "))
	assert.Equal(t, Info, ParseLevel(""))
	assert.Equal(t, Info, ParseLevel("verbose"))
}

func TestJSONLogger_WritesFieldsAndApp(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: Info, Format: FormatJSON, App: "odontolegal", Output: &buf})

	l.With(map[string]any{"request_id": "r-1"}).Warn("audit append failed", map[string]any{
		"entity_kind": "case",
		"":            "ignored",
	})

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "WARN", got["level"])
	assert.Equal(t, "audit append failed", got["msg"])
	assert.Equal(t, "odontolegal", got["app"])
	assert.Equal(t, "r-1", got["request_id"])
	assert.Equal(t, "case", got["entity_kind"])
	assert.NotContains(t, got, "")
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: Warn, Format: FormatText, Output: &buf})

	l.Info("hidden", nil)
	l.Error("shown", map[string]any{"k": 1})

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.True(t, strings.Contains(out, "msg=shown"))
	assert.True(t, strings.Contains(out, "k=1"))
}
