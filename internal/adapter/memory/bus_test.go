package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/selectionsync/internal/domain"
	"github.com/pscheid92/selectionsync/internal/selection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSubscriber(t *testing.T, ctx context.Context, bus *Bus, handler domain.MessageHandler) {
	t.Helper()
	before := bus.Subscribers()
	go func() { _ = bus.Start(ctx, handler) }()
	require.Eventually(t, func() bool { return bus.Subscribers() == before+1 }, time.Second, time.Millisecond)
}

func TestBus_FansOutToAllSubscribers(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	got := make([]string, 0)
	handler := func(_ context.Context, payload []byte) {
		mu.Lock()
		got = append(got, string(payload))
		mu.Unlock()
	}
	startSubscriber(t, ctx, bus, handler)
	startSubscriber(t, ctx, bus, handler)

	payload := []byte("hello")
	require.NoError(t, bus.Publish(ctx, payload))
	payload[0] = 'j'

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2 && got[0] == "hello" && got[1] == "hello"
	}, time.Second, time.Millisecond)
}

func TestBus_StartReturnsOnCancel(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	startSubscriber(t, ctx, bus, func(context.Context, []byte) {})

	cancel()

	assert.Eventually(t, func() bool { return bus.Subscribers() == 0 }, time.Second, time.Millisecond)
}

func TestBus_ReadyAfterFirstSubscriber(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	select {
	case <-bus.Ready():
		t.Fatal("ready before any subscriber")
	default:
	}

	// Nothing is listening yet: the message reaches nobody and is not replayed later.
	require.NoError(t, bus.Publish(ctx, []byte("early")))

	got := make(chan string, 2)
	go func() {
		_ = bus.Start(ctx, func(_ context.Context, payload []byte) { got <- string(payload) })
	}()

	select {
	case <-bus.Ready():
	case <-time.After(time.Second):
		t.Fatal("bus never became ready")
	}
	require.NoError(t, bus.Publish(ctx, []byte("late")))

	select {
	case msg := <-got:
		assert.Equal(t, "late", msg)
	case <-time.After(time.Second):
		t.Fatal("message after Ready was not delivered")
	}
}

type directory struct{ groups []*int }

func (d directory) GroupFor(appID int, _ domain.ApplicationType) *int { return d.groups[appID] }
func (d directory) TypeFor(int) domain.ApplicationType { return domain.TypeTimeline }
func (d directory) StatesFor(domain.ApplicationType) []domain.AppState {
	states := make([]domain.AppState, len(d.groups))
	for i, g := range d.groups {
		states[i] = domain.AppState{AppID: i, Group: g, Type: domain.TypeTimeline}
	}
	return states
}

// Two processes sharing one bus converge on the same state.
func TestBus_TwoEnginesConverge(t *testing.T) {
	one := 1
	dir := directory{groups: []*int{&one, &one, nil}}
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engines := make([]*selection.Engine, 2)
	for local := range engines {
		engine, err := selection.NewEngine(selection.NewStore(3), dir, bus, nil, clockwork.NewRealClock(), selection.Config{LocalApp: local})
		require.NoError(t, err)
		t.Cleanup(engine.Stop)
		engines[local] = engine
		startSubscriber(t, ctx, bus, engine.Handle)
	}

	require.NoError(t, engines[0].SetSelected(ctx, 4, true))
	require.NoError(t, engines[1].Highlight(ctx, 9))

	for _, engine := range engines {
		assert.Eventually(t, func() bool {
			snap, err := engine.Snapshot(ctx, engine.LocalApp())
			return err == nil && len(snap.Selection) == 1 && snap.Highlighted[9] == selection.DefaultHighlightDuration
		}, time.Second, 5*time.Millisecond)
	}
}
