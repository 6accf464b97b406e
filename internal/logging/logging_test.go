package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfo(t *testing.T) {
	l, c, err := New(Options{})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestNewParsesLevel(t *testing.T) {
	l, c, err := New(Options{Level: "warn"})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}

func TestVerboseForcesDebug(t *testing.T) {
	l, c, err := New(Options{Level: "error", Verbose: true})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, c, err := New(Options{Level: "loud"})
	require.Error(t, err)
	assert.NotNil(t, c)
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zonelight.log")
	l, c, err := New(Options{File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	l.WithField("channel", "POWER").Info("zone changed")
	require.NoError(t, c.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "zone changed")
	assert.Contains(t, string(data), "channel=POWER")
}

func TestComponentField(t *testing.T) {
	l, c, err := New(Options{})
	require.NoError(t, err)
	defer c.Close()

	var buf bytes.Buffer
	l.SetOutput(&buf)
	Component(l, "mqtt").Info("connected")
	assert.Contains(t, buf.String(), "component=mqtt")
}
