package directory

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pscheid92/selectionsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

const threeApps = `
apps:
  - app: 0
    group: 1
  - app: 1
    group: 1
    type: timeline
  - app: 2
    group: 1
    type: mapExplorer
`

func TestLoad_ParsesMembership(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.yaml")
	writeFile(t, path, threeApps)

	dir, err := Load(path, 4)
	require.NoError(t, err)

	assert.Equal(t, 1, *dir.GroupFor(0, domain.TypeTimeline))
	assert.Nil(t, dir.GroupFor(2, domain.TypeTimeline), "map explorer is not in a timeline group")
	assert.Equal(t, 1, *dir.GroupFor(2, domain.TypeMapExplorer))
	assert.Nil(t, dir.GroupFor(3, domain.TypeTimeline), "unlisted apps are ungrouped")
	assert.Nil(t, dir.GroupFor(9, domain.TypeTimeline))

	states := dir.StatesFor(domain.TypeTimeline)
	require.Len(t, states, 4)
	for i, state := range states {
		assert.Equal(t, i, state.AppID)
	}
	assert.Nil(t, states[2].Group)
	assert.Equal(t, domain.TypeMapExplorer, dir.TypeFor(2))
	assert.Equal(t, domain.TypeTimeline, dir.TypeFor(3))
}

func TestGroupFor_ReturnsCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.yaml")
	writeFile(t, path, threeApps)
	dir, err := Load(path, 3)
	require.NoError(t, err)

	*dir.GroupFor(0, domain.TypeTimeline) = 42

	assert.Equal(t, 1, *dir.GroupFor(0, domain.TypeTimeline))
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"out of range", "apps:\n  - app: 5\n"},
		{"negative", "apps:\n  - app: -1\n"},
		{"duplicate", "apps:\n  - app: 0\n  - app: 0\n"},
		{"bad type", "apps:\n  - app: 0\n    type: tetris\n"},
		{"unknown field", "apps:\n  - app: 0\n    grop: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), 3)
			assert.Error(t, err)
		})
	}
}

func TestParse_EmptyFileMeansUngrouped(t *testing.T) {
	states, err := Parse(nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []domain.AppState{{AppID: 0, Type: domain.TypeTimeline}, {AppID: 1, Type: domain.TypeTimeline}}, states)
}

func TestReload_ReportsJoinsAndKeepsSnapshotOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.yaml")
	writeFile(t, path, threeApps)
	dir, err := Load(path, 4)
	require.NoError(t, err)

	writeFile(t, path, threeApps+"  - app: 3\n    group: 1\n")
	joins, err := dir.Reload()
	require.NoError(t, err)
	assert.Equal(t, []Join{{AppID: 3, Group: 1}}, joins)

	writeFile(t, path, "apps: [")
	_, err = dir.Reload()
	assert.Error(t, err)
	assert.Equal(t, 1, *dir.GroupFor(3, domain.TypeTimeline))
}

func TestStatic_AllUngrouped(t *testing.T) {
	dir := Static(3)
	assert.Len(t, dir.StatesFor(domain.TypeTimeline), 3)
	assert.Nil(t, dir.GroupFor(1, domain.TypeTimeline))
}

func TestWatch_CallsOnJoin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.yaml")
	writeFile(t, path, "apps: []\n")
	dir, err := Load(path, 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var joins []Join
	go func() {
		_ = dir.Watch(ctx, func(_ context.Context, join Join) {
			mu.Lock()
			joins = append(joins, join)
			mu.Unlock()
		})
	}()

	assert.Eventually(t, func() bool {
		writeFile(t, path, "apps:\n  - app: 1\n    group: 7\n")
		mu.Lock()
		defer mu.Unlock()
		return len(joins) > 0
	}, 2*time.Second, 50*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, Join{AppID: 1, Group: 7}, joins[0])
}
