// Package players defines the mutually-exclusive audio player services the
// device can run and how each one is started.
package players

import (
	"errors"
	"fmt"
)

// ErrUnknownPlayer indicates a player key that is not in the registry.
var ErrUnknownPlayer = errors.New("unknown player")

// Entry describes one player service.
type Entry struct {
	Key     string `json:"key"`     // Identifier used by the API and the status snapshot
	Process string `json:"process"` // Process name as it appears in the process table
	Script  string `json:"script"`  // Startup script name under the script directory
}

// UnknownPlayerError is returned by Resolve for keys not in the registry.
type UnknownPlayerError struct {
	Key string
}

func (e *UnknownPlayerError) Error() string {
	return fmt.Sprintf("Invalid player: %s", e.Key)
}

// Unwrap lets callers match the error with errors.Is(err, ErrUnknownPlayer).
func (e *UnknownPlayerError) Unwrap() error {
	return ErrUnknownPlayer
}

// defaultEntries is the set of players shipped on the device.
var defaultEntries = []Entry{
	{Key: "naa", Process: "networkaudiod", Script: "S95naa"},
	{Key: "raat", Process: "raat_app", Script: "S95roonready"},
	{Key: "mpd", Process: "mpd", Script: "S95mpd"},
	{Key: "aprenderer", Process: "ap2renderer", Script: "S95aprenderer"},
	{Key: "squeeze2upn", Process: "squeeze2upnp", Script: "S95apsq"},
	{Key: "aplayer", Process: "aplayer", Script: "S95aplayer"},
	{Key: "apscream", Process: "apscream", Script: "S95apscream"},
	{Key: "shairport", Process: "shairport-sync", Script: "S95shairport"},
	{Key: "lms", Process: "squeezelite", Script: "S95squeezelite"},
	{Key: "spotify", Process: "librespot", Script: "S95spotify"},
	{Key: "qobuz", Process: "qobuz-connect", Script: "S95qobuz"},
	{Key: "tidalconnect", Process: "tidalconnect", Script: "S95tidal"},
}

// Registry is an immutable lookup table of player entries.
type Registry struct {
	entries   []Entry
	byKey     map[string]Entry
	byProcess map[string]Entry
}

// Default returns the registry of players shipped on the device.
func Default() *Registry {
	r, err := New(defaultEntries)
	if err != nil {
		panic(err)
	}
	return r
}

// New builds a registry. Keys, process names and scripts must be non-empty
// and keys must be unique.
func New(entries []Entry) (*Registry, error) {
	r := &Registry{
		entries:   make([]Entry, 0, len(entries)),
		byKey:     make(map[string]Entry, len(entries)),
		byProcess: make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		if e.Key == "" || e.Process == "" || e.Script == "" {
			return nil, fmt.Errorf("incomplete player entry %+v", e)
		}
		if _, dup := r.byKey[e.Key]; dup {
			return nil, fmt.Errorf("duplicate player key %q", e.Key)
		}
		r.entries = append(r.entries, e)
		r.byKey[e.Key] = e
		if _, seen := r.byProcess[e.Process]; !seen {
			r.byProcess[e.Process] = e
		}
	}
	return r, nil
}

// Resolve returns the entry for key.
func (r *Registry) Resolve(key string) (Entry, error) {
	e, ok := r.byKey[key]
	if !ok {
		return Entry{}, &UnknownPlayerError{Key: key}
	}
	return e, nil
}

// LookupProcess returns the entry whose process is named name.
func (r *Registry) LookupProcess(name string) (Entry, bool) {
	e, ok := r.byProcess[name]
	return e, ok
}

// Entries returns all entries in registration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Keys returns all player keys in registration order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.Key
	}
	return keys
}
