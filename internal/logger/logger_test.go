package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer for testing.
// Returns the buffer and a cleanup function to restore original output.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
	mu.Unlock()

	reconfigure()

	cleanup := func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		reconfigure()
	}

	return buf, cleanup
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DEBUG")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.Contains(t, out, "DEBUG")
		assert.Contains(t, out, "INFO")
		assert.Contains(t, out, "WARN")
		assert.Contains(t, out, "ERROR")
		assert.Contains(t, out, "debug message")
	})

	t.Run("InfoLevelFiltersDebug", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")

		Debug("debug message")
		Info("info message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.Contains(t, out, "info message")
	})

	t.Run("WarnLevelFiltersDebugAndInfo", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("WARN")

		Debug("debug message")
		Info("info message")
		Warn("warn message")

		out := buf.String()
		assert.NotContains(t, out, "DEBUG")
		assert.NotContains(t, out, "INFO")
		assert.Contains(t, out, "WARN")
	})

	t.Run("ErrorLevelShowsOnlyErrors", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("ERROR")

		Debug("debug message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.NotContains(t, out, "DEBUG")
		assert.NotContains(t, out, "WARN")
		assert.Contains(t, out, "error message")
	})

	t.Run("InvalidLevelIsIgnored", func(t *testing.T) {
		SetLevel("INFO")
		SetLevel("NOT-A-LEVEL")
		assert.Equal(t, LevelInfo, Level(currentLevel.Load()))
	})
}

func TestSetFormat(t *testing.T) {
	t.Run("JSONFormatProducesValidJSON", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetFormat("json")
		SetLevel("INFO")

		Info("class loaded", Class("student.class"), UID(1001))

		var entry map[string]any
		require.NoError(t, json.NewDecoder(buf).Decode(&entry))
		assert.Equal(t, "student.class", entry[KeyClass])
		assert.EqualValues(t, 1001, entry[KeyUID])

		SetFormat("text")
	})

	t.Run("InvalidFormatIsIgnored", func(t *testing.T) {
		SetFormat("text")
		SetFormat("xml")
		format, _ := currentFormat.Load().(string)
		assert.Equal(t, "text", format)
	})
}

func TestContextFields(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	SetLevel("DEBUG")
	defer SetFormat("text")

	lc := NewLogContext("Evaluate").WithClass("research.class").WithUser(3000, 500)
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "evaluated user")

	var entry map[string]any
	require.NoError(t, json.NewDecoder(buf).Decode(&entry))
	assert.Equal(t, "Evaluate", entry[KeyMethod])
	assert.Equal(t, "research.class", entry[KeyClass])
	assert.EqualValues(t, 3000, entry[KeyUID])
	assert.EqualValues(t, 500, entry[KeyGID])
}

func TestFromContext_NilContext(t *testing.T) {
	assert.Nil(t, FromContext(nil))
	assert.Nil(t, FromContext(context.Background()))
}

func TestLogContext_Clone(t *testing.T) {
	lc := NewLogContext("Reload").WithClass("x.class")
	clone := lc.Clone()

	clone.Class = "y.class"
	assert.Equal(t, "x.class", lc.Class)
	assert.Equal(t, "y.class", clone.Class)
}

func TestFieldConstructors(t *testing.T) {
	assert.Equal(t, KeyUID, UID(1001).Key)
	assert.Equal(t, KeyGID, GID(500).Key)
	assert.Equal(t, KeyClass, Class("a.class").Key)
	assert.Equal(t, KeyFilepath, Filepath("/etc/userctl/a.class").Key)
	assert.Equal(t, KeyPriority, Priority(1.5).Key)

	argv := Argv([]string{"systemctl", "set-property", "user-1001.slice", "CPUQuota=50%"})
	assert.Equal(t, KeyArgv, argv.Key)
	assert.Equal(t, "systemctl set-property user-1001.slice CPUQuota=50%", argv.Value.String())
}

func TestErr(t *testing.T) {
	assert.Equal(t, "", Err(nil).Value.String())
	assert.Contains(t, Err(assert.AnError).Value.String(), "assert.AnError")
}

func TestDiagnosticFormat(t *testing.T) {
	msg := Diagnostic(12, "/etc/userctl/a.class", "Failed to parse key=value")
	assert.Equal(t, "12:/etc/userctl/a.class Failed to parse key=value", msg)
	assert.True(t, strings.HasPrefix(msg, "12:"))
}

func TestInitWithWriter(t *testing.T) {
	buf := new(bytes.Buffer)
	InitWithWriter(buf, "DEBUG", "text", false)
	defer InitWithWriter(new(bytes.Buffer), "INFO", "text", false)

	Debug("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestDuration(t *testing.T) {
	lc := NewLogContext("Reload")
	assert.GreaterOrEqual(t, lc.DurationMs(), float64(0))
}
