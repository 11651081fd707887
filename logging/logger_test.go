package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := require.New(t)

	var buf bytes.Buffer
	l, err := New(Options{Level: "debug", Output: &buf})
	r.NoError(err)
	defer l.Close()

	r.Equal(logrus.DebugLevel, l.GetLevel())
	_, err = uuid.Parse(l.RunID())
	r.NoError(err)

	l.Run().Debug("connecting")
	r.Contains(buf.String(), "connecting")
	r.Contains(buf.String(), "run_id="+l.RunID())
}

func TestNew_File(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), "logs", "extractor.log")

	var buf bytes.Buffer
	l, err := New(Options{File: path, Output: &buf})
	r.NoError(err)

	l.Info("exported")
	l.Debug("hidden")
	l.Close()

	content, err := os.ReadFile(path)
	r.NoError(err)
	r.Contains(string(content), "exported")
	r.NotContains(string(content), "hidden")
	r.Contains(buf.String(), "exported")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	require.Error(t, err)
}
