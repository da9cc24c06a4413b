package format

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"logcourier/src/internal/config"
	"logcourier/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func testEntry() core.LogEntry {
	return core.LogEntry{
		Time:    time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Source:  "api",
		Level:   core.LevelWarn,
		Message: "slow request",
		Fields:  json.RawMessage(`{"duration_ms": 1532}`),
	}
}

func TestNew(t *testing.T) {
	logger := newTestLogger()

	testCases := []struct {
		format   string
		expected string
		wantErr  bool
	}{
		{"", "raw", false},
		{"raw", "raw", false},
		{"json", "json", false},
		{"text", "text", false},
		{"yaml", "", true},
	}

	for _, tc := range testCases {
		t.Run("Format_"+tc.format, func(t *testing.T) {
			f, err := New(&config.TargetConfig{Format: tc.format}, logger)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, f.Name())
		})
	}
}

func TestRawFormatter(t *testing.T) {
	f, err := NewRawFormatter(newTestLogger())
	require.NoError(t, err)

	out, err := f.Format(testEntry())
	require.NoError(t, err)
	assert.Equal(t, "slow request\n", string(out))
}

func TestJSONFormatter(t *testing.T) {
	t.Run("StandardFields", func(t *testing.T) {
		f, err := NewJSONFormatter(nil, newTestLogger())
		require.NoError(t, err)

		out, err := f.Format(testEntry())
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(string(out), "\n"))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.Equal(t, "warn", decoded["level"])
		assert.Equal(t, "api", decoded["source"])
		assert.Equal(t, "slow request", decoded["message"])
		assert.Equal(t, float64(1532), decoded["duration_ms"])
	})

	t.Run("CustomFieldNames", func(t *testing.T) {
		f, err := NewJSONFormatter(&config.JSONFormatterOptions{
			TimestampField: "@timestamp",
			MessageField:   "msg",
		}, newTestLogger())
		require.NoError(t, err)

		out, err := f.Format(testEntry())
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.Contains(t, decoded, "@timestamp")
		assert.Equal(t, "slow request", decoded["msg"])
	})

	t.Run("ErrorField", func(t *testing.T) {
		f, err := NewJSONFormatter(nil, newTestLogger())
		require.NoError(t, err)

		entry := testEntry()
		entry.Error = "connection reset"
		out, err := f.Format(entry)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.Equal(t, "connection reset", decoded["error"])
	})

	t.Run("FieldsDoNotOverrideStandard", func(t *testing.T) {
		f, err := NewJSONFormatter(nil, newTestLogger())
		require.NoError(t, err)

		entry := testEntry()
		entry.Fields = json.RawMessage(`{"level": "spoofed"}`)
		out, err := f.Format(entry)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.Equal(t, "warn", decoded["level"])
	})

	t.Run("FormatBatch", func(t *testing.T) {
		f, err := NewJSONFormatter(nil, newTestLogger())
		require.NoError(t, err)

		out, err := f.FormatBatch([]core.LogEntry{testEntry(), testEntry()})
		require.NoError(t, err)

		var decoded []map[string]any
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.Len(t, decoded, 2)
	})
}

func TestTextFormatter(t *testing.T) {
	t.Run("DefaultTemplate", func(t *testing.T) {
		f, err := NewTextFormatter(nil, newTestLogger())
		require.NoError(t, err)

		out, err := f.Format(testEntry())
		require.NoError(t, err)
		s := string(out)
		assert.Contains(t, s, "[WARN]")
		assert.Contains(t, s, "api")
		assert.Contains(t, s, "slow request")
		assert.True(t, strings.HasSuffix(s, "\n"))
	})

	t.Run("CustomTemplate", func(t *testing.T) {
		f, err := NewTextFormatter(&config.TextFormatterOptions{
			Template: "{{.Level}}|{{.Message}}",
		}, newTestLogger())
		require.NoError(t, err)

		out, err := f.Format(testEntry())
		require.NoError(t, err)
		assert.Equal(t, "warn|slow request\n", string(out))
	})

	t.Run("InvalidTemplate", func(t *testing.T) {
		_, err := NewTextFormatter(&config.TextFormatterOptions{
			Template: "{{.Message",
		}, newTestLogger())
		assert.Error(t, err)
	})
}
