package state_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keboola/db-extractor-common-sub000/state"
)

func TestTracker_LoadMissing(t *testing.T) {
	r := require.New(t)

	s, err := state.Load(filepath.Join(t.TempDir(), "in", "state.json"))
	r.NoError(err)
	r.Empty(s)

	_, ok := s.LastFetchedRow()
	r.False(ok)
}

func TestTracker_LoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	s, err := state.Load(path)
	require.NoError(t, err)
	require.Empty(t, s)
}

func TestTracker_SaveLoad(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), "out", "state.json")
	tracker := state.NewTracker(path)

	r.NoError(tracker.Save(state.State{}.WithLastFetchedRow("42")))

	content, err := os.ReadFile(path)
	r.NoError(err)
	r.JSONEq(`{"lastFetchedRow": "42"}`, string(content))

	loaded, err := tracker.Load()
	r.NoError(err)
	value, ok := loaded.LastFetchedRow()
	r.True(ok)
	r.Equal("42", value)
}

func TestTracker_SaveIsStable(t *testing.T) {
	r := require.New(t)
	dir := t.TempDir()

	prior := state.State{}.WithLastFetchedRow("2")
	r.NoError(state.Save(filepath.Join(dir, "first.json"), prior))

	loaded, err := state.Load(filepath.Join(dir, "first.json"))
	r.NoError(err)
	r.NoError(state.Save(filepath.Join(dir, "second.json"), loaded))

	first, err := os.ReadFile(filepath.Join(dir, "first.json"))
	r.NoError(err)
	second, err := os.ReadFile(filepath.Join(dir, "second.json"))
	r.NoError(err)
	r.Equal(first, second)
}

func TestState_LastFetchedRow(t *testing.T) {
	r := require.New(t)

	// numbers written by hand keep their precision
	path := filepath.Join(t.TempDir(), "state.json")
	r.NoError(os.WriteFile(path, []byte(`{"lastFetchedRow": 9007199254740993, "other": {"a": 1}}`), 0o600))

	s, err := state.Load(path)
	r.NoError(err)
	value, ok := s.LastFetchedRow()
	r.True(ok)
	r.Equal("9007199254740993", value)

	next := s.WithLastFetchedRow("9007199254740994")
	r.Contains(next, "other")
	old, _ := s.LastFetchedRow()
	r.Equal("9007199254740993", old)

	r.Equal("7", mustValue(t, state.State{state.LastFetchedRowKey: json.Number("7")}))
	r.Equal("1.5", mustValue(t, state.State{state.LastFetchedRowKey: 1.5}))

	_, ok = state.State{state.LastFetchedRowKey: nil}.LastFetchedRow()
	r.False(ok)
}

func mustValue(t *testing.T, s state.State) string {
	t.Helper()
	v, ok := s.LastFetchedRow()
	require.True(t, ok)
	return v
}

func TestTracker_LoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"lastFetchedRow": `), 0o600))

	_, err := state.Load(path)
	require.Error(t, err)
}
