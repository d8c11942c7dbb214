package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(&buf, zerolog.DebugLevel, "planner").With("run_id", "r1")
	l.Debugw("select task", map[string]any{"task": 4, "score": 9000})
	l.Infof("planned %d tasks", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "planner", first["component"])
	assert.Equal(t, "r1", first["run_id"])
	assert.Equal(t, "select task", first["message"])
	assert.EqualValues(t, 4, first["task"])
	assert.Contains(t, lines[1], "planned 3 tasks")
}

func TestZerologLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(&buf, zerolog.WarnLevel, "cli")
	l.Debugf("hidden")
	l.Debugw("hidden", map[string]any{"k": 1})
	l.Infof("hidden")
	l.Warnf("shown")
	l.Errorf("shown")
	assert.Equal(t, 2, strings.Count(buf.String(), "shown"))
	assert.NotContains(t, buf.String(), "hidden")
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	var c Config
	c.SetDefaults()
	assert.Equal(t, Config{Level: "info", Format: "console", Output: "stderr"}, c)
	assert.NoError(t, c.Validate())

	assert.Error(t, Config{Level: "loud", Format: "json"}.Validate())
	assert.Error(t, Config{Level: "info", Format: "xml"}.Validate())
}

func TestConfigureFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "showplan.log")
	require.NoError(t, Configure(Config{Level: "debug", Format: "json", Output: path}))
	t.Cleanup(func() { _ = Configure(Config{Output: "stderr"}) })

	New("test").Debugf("debug %d", 1)
	New("test").Errorf("boom")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), "debug 1")
	assert.Contains(t, string(data), "boom")

	assert.Error(t, Configure(Config{Level: "nope"}))
}
