package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, Init(path))
	defer Close()

	Info("session %s created", "abc")
	Error("step %d failed", 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "level=info")
	assert.Contains(t, out, "session abc created")
	assert.Contains(t, out, "step 2 failed")
}

func TestInitBadPath(t *testing.T) {
	err := Init(filepath.Join(t.TempDir(), "missing", "dir", "run.log"))
	assert.Error(t, err)
}

func TestVerboseControlsDebug(t *testing.T) {
	var buf bytes.Buffer
	UseWriter(&buf)
	defer Close()

	SetVerbose(false)
	Debug("hidden")
	SetVerbose(true)
	Debug("shown")
	SetVerbose(false)

	assert.False(t, strings.Contains(buf.String(), "hidden"))
	assert.True(t, strings.Contains(buf.String(), "shown"))
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	UseWriter(&buf)
	defer Close()

	WithFields(logrus.Fields{"device": "emulator-5554"}).Warn("slow device")
	assert.Contains(t, buf.String(), "device=emulator-5554")
}

func TestCloseDiscards(t *testing.T) {
	var buf bytes.Buffer
	UseWriter(&buf)
	Close()
	Info("dropped")
	assert.Empty(t, buf.String())
}

func TestSetLevelFiltersInfo(t *testing.T) {
	var buf bytes.Buffer
	UseWriter(&buf)
	defer Close()
	defer SetVerbose(false)

	SetLevel(logrus.WarnLevel)
	Info("hidden")
	Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
