package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"sync"

	"github.com/keboola/db-extractor-common-sub000/core/format"
)

// LastFetchedRowKey holds the incremental fetching watermark.
const LastFetchedRowKey = "lastFetchedRow"

// State is the component state carried between runs. Unknown keys are kept untouched.
type State map[string]any

// LastFetchedRow returns the watermark as a string, whatever JSON type it was stored as.
func (s State) LastFetchedRow() (string, bool) {
	v, ok := s[LastFetchedRowKey]
	if !ok || v == nil {
		return "", false
	}

	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	default:
		return format.FormatValue(val), true
	}
}

// WithLastFetchedRow returns a copy of the state with the watermark set.
func (s State) WithLastFetchedRow(value string) State {
	c := s.Clone()
	c[LastFetchedRowKey] = value
	return c
}

func (s State) Clone() State {
	c := make(State, len(s)+1)
	maps.Copy(c, s)
	return c
}

// Tracker persists the state in a single file.
type Tracker struct {
	sync.Mutex
	path       string
	serializer format.Serializer
}

type TrackerOption func(*Tracker)

func WithSerializer(s format.Serializer) TrackerOption {
	return func(t *Tracker) {
		t.serializer = s
	}
}

func NewTracker(path string, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		path:       path,
		serializer: format.NewJSON(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Path() string {
	return t.path
}

// Load reads the state. A missing or empty file is an empty state.
func (t *Tracker) Load() (State, error) {
	t.Lock()
	defer t.Unlock()

	var s State
	err := format.ReadFile(t.path, &s, t.serializer)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, io.EOF) {
		return State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state.Load: %s: %w", t.path, err)
	}
	if s == nil {
		s = State{}
	}
	return s, nil
}

// Save replaces the state file atomically.
func (t *Tracker) Save(s State) error {
	t.Lock()
	defer t.Unlock()

	if s == nil {
		s = State{}
	}
	if err := format.WriteFile(t.path, s, t.serializer); err != nil {
		return fmt.Errorf("state.Save: %s: %w", t.path, err)
	}
	return nil
}

func Load(path string) (State, error) {
	return NewTracker(path).Load()
}

func Save(path string, s State) error {
	return NewTracker(path).Save(s)
}
