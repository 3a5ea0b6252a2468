// Package directory serves group membership from a YAML file that the wall's
// membership service rewrites whenever apps are regrouped.
package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/pscheid92/selectionsync/internal/domain"
	"gopkg.in/yaml.v3"
)

// File is the on-disk layout. Apps not listed are ungrouped timelines.
//
//	apps:
//	  - app: 0
//	    group: 1
//	    type: timeline
type File struct {
	Apps []domain.AppState `yaml:"apps"`
}

// Join reports that an app entered a timeline group it was not in before.
type Join struct {
	AppID int
	Group int
}

// Directory is a domain.GroupDirectory backed by a YAML file. It is safe for
// concurrent use; Reload swaps the whole snapshot atomically.
type Directory struct {
	path      string
	totalApps int

	mu     sync.RWMutex
	states []domain.AppState
}

var _ domain.GroupDirectory = (*Directory)(nil)

// Load reads path and returns a directory covering totalApps slots.
func Load(path string, totalApps int) (*Directory, error) {
	d := &Directory{path: path, totalApps: totalApps}
	if _, err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Static returns a directory with every slot ungrouped, for deployments
// without a membership file.
func Static(totalApps int) *Directory {
	return &Directory{totalApps: totalApps, states: defaults(totalApps)}
}

// Reload rereads the file and returns the apps that joined a timeline group.
// On error the previous snapshot stays in place.
func (d *Directory) Reload() ([]Join, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory file: %w", err)
	}
	states, err := Parse(data, d.totalApps)
	if err != nil {
		return nil, fmt.Errorf("invalid directory file %s: %w", d.path, err)
	}

	d.mu.Lock()
	previous := d.states
	d.states = states
	d.mu.Unlock()

	var joins []Join
	for app, state := range states {
		group := timelineGroup(state)
		if group == nil {
			continue
		}
		if previous != nil && domain.SameGroup(timelineGroup(previous[app]), group) {
			continue
		}
		joins = append(joins, Join{AppID: app, Group: *group})
	}
	return joins, nil
}

// Parse decodes a directory file into an index-stable state slice.
func Parse(data []byte, totalApps int) ([]domain.AppState, error) {
	var file File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	states := defaults(totalApps)
	seen := make(map[int]struct{}, len(file.Apps))
	for _, entry := range file.Apps {
		if entry.AppID < 0 || entry.AppID >= totalApps {
			return nil, fmt.Errorf("app %d outside [0, %d): %w", entry.AppID, totalApps, domain.ErrUnknownApp)
		}
		if _, dup := seen[entry.AppID]; dup {
			return nil, fmt.Errorf("app %d listed twice", entry.AppID)
		}
		seen[entry.AppID] = struct{}{}

		if entry.Type == "" {
			entry.Type = domain.TypeTimeline
		}
		if _, ok := domain.ParseApplicationType(string(entry.Type)); !ok {
			return nil, fmt.Errorf("app %d has unknown type %q", entry.AppID, entry.Type)
		}
		states[entry.AppID] = entry
	}
	return states, nil
}

// GroupFor returns the app's group when it currently shows context.
func (d *Directory) GroupFor(appID int, context domain.ApplicationType) *int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if appID < 0 || appID >= len(d.states) {
		return nil
	}
	state := d.states[appID]
	if state.Type != context || state.Group == nil {
		return nil
	}
	group := *state.Group
	return &group
}

// StatesFor returns one entry per slot. Apps showing another type are
// reported without a group.
func (d *Directory) StatesFor(context domain.ApplicationType) []domain.AppState {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.AppState, len(d.states))
	for i, state := range d.states {
		out[i] = domain.AppState{AppID: state.AppID, Type: state.Type}
		if state.Type == context && state.Group != nil {
			group := *state.Group
			out[i].Group = &group
		}
	}
	return out
}

func (d *Directory) TypeFor(appID int) domain.ApplicationType {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if appID < 0 || appID >= len(d.states) {
		return ""
	}
	return d.states[appID].Type
}

// Watch reloads the file whenever it changes and calls onJoin for every app
// that entered a group. It blocks until ctx is cancelled.
func (d *Directory) Watch(ctx context.Context, onJoin func(ctx context.Context, join Join)) error {
	return watch(ctx, d.path, func() {
		joins, err := d.Reload()
		if err != nil {
			slog.WarnContext(ctx, "Keeping previous group directory", "error", err)
			return
		}
		for _, join := range joins {
			onJoin(ctx, join)
		}
	})
}

func defaults(totalApps int) []domain.AppState {
	states := make([]domain.AppState, totalApps)
	for i := range states {
		states[i] = domain.AppState{AppID: i, Type: domain.TypeTimeline}
	}
	return states
}

func timelineGroup(state domain.AppState) *int {
	if state.Type != domain.TypeTimeline {
		return nil
	}
	return state.Group
}
