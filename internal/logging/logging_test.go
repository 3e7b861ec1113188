package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldLogRespectsLevelPriority(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Format: JSONFormat, Level: WarnLevel, Output: &buf})

	l.Info("should be suppressed", nil)
	l.Warn("should appear", nil)

	out := buf.String()
	assert.NotContains(t, out, "should be suppressed")
	assert.Contains(t, out, "should appear")
}

func TestJSONFormatEmitsValidJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Format: JSONFormat, Level: DebugLevel, Output: &buf})

	l.Error("build failed", map[string]interface{}{"repoId": "repo1", "cardCount": 3})

	line := strings.TrimSpace(buf.String())
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "build failed", entry["message"])
	fields := entry["fields"].(map[string]interface{})
	assert.Equal(t, "repo1", fields["repoId"])
}

func TestHumanFormatIncludesLevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Format: HumanFormat, Level: DebugLevel, Output: &buf})

	l.Debug("cache miss", map[string]interface{}{"key": "abc"})

	out := buf.String()
	assert.Contains(t, out, "[debug]")
	assert.Contains(t, out, "cache miss")
	assert.Contains(t, out, "key=abc")
}

func TestNewLoggerDefaultsToStdoutWithoutPanicking(t *testing.T) {
	l := NewLogger(Config{Format: JSONFormat, Level: InfoLevel})
	assert.NotNil(t, l)
}

func TestDebugLevelAllowsEverything(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Format: HumanFormat, Level: DebugLevel, Output: &buf})

	l.Debug("d", nil)
	l.Info("i", nil)
	l.Warn("w", nil)
	l.Error("e", nil)

	out := buf.String()
	for _, want := range []string{"d", "i", "w", "e"} {
		assert.Contains(t, out, want)
	}
}
