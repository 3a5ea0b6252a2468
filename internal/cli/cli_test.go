package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pscheid92/selectionsync/internal/adapter/memory"
	"github.com/pscheid92/selectionsync/internal/domain"
	"github.com/pscheid92/selectionsync/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingBus records published payloads and otherwise behaves like the
// in-process bus.
type capturingBus struct {
	*memory.Bus

	mu        sync.Mutex
	published [][]byte
}

func (b *capturingBus) Publish(ctx context.Context, payload []byte) error {
	b.mu.Lock()
	b.published = append(b.published, payload)
	b.mu.Unlock()
	return b.Bus.Publish(ctx, payload)
}

func (b *capturingBus) messages(t *testing.T) []protocol.Message {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs := make([]protocol.Message, 0, len(b.published))
	for _, payload := range b.published {
		msg, err := protocol.Decode(payload)
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	return msgs
}

func newTestOptions(bus Bus) *RootOptions {
	return &RootOptions{
		DialBus: func(context.Context, *RootOptions) (Bus, func() error, error) {
			return bus, func() error { return nil }, nil
		},
		HTTPClient: http.DefaultClient,
	}
}

func execute(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommandWithOptions(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"select", "highlight", "reset", "reset-all", "sync", "watch", "state", "version"}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestRoot_RejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, newTestOptions(&capturingBus{Bus: memory.NewBus()}), "reset-all", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestSelect_PublishesSelectMessage(t *testing.T) {
	bus := &capturingBus{Bus: memory.NewBus()}

	out, err := execute(t, newTestOptions(bus), "select", "12", "--origin", "3", "--group", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "published select")

	msgs := bus.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.KindSelect, msgs[0].Kind)
	assert.Equal(t, 3, *msgs[0].Origin)
	assert.Equal(t, 12, *msgs[0].Index)
	assert.True(t, *msgs[0].Selected)
	assert.Equal(t, 1, *msgs[0].Group)
}

func TestSelect_OffWithoutGroup(t *testing.T) {
	bus := &capturingBus{Bus: memory.NewBus()}

	_, err := execute(t, newTestOptions(bus), "select", "4", "--off")
	require.NoError(t, err)

	msgs := bus.messages(t)
	require.Len(t, msgs, 1)
	assert.False(t, *msgs[0].Selected)
	assert.Nil(t, msgs[0].Group)
}

func TestSelect_RejectsBadIndex(t *testing.T) {
	bus := &capturingBus{Bus: memory.NewBus()}

	for _, arg := range []string{"-1", "abc"} {
		_, err := execute(t, newTestOptions(bus), "select", "--", arg)
		require.Error(t, err, arg)
	}
	assert.Empty(t, bus.messages(t))
}

func TestReset_Commands(t *testing.T) {
	bus := &capturingBus{Bus: memory.NewBus()}
	opts := newTestOptions(bus)

	_, err := execute(t, opts, "reset", "--group", "2")
	require.NoError(t, err)
	_, err = execute(t, opts, "reset-all")
	require.NoError(t, err)
	_, err = execute(t, opts, "reset", "--group", "2", "--context", "tetris")
	require.Error(t, err)

	msgs := bus.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, protocol.KindResetGroup, msgs[0].Kind)
	assert.Equal(t, 2, *msgs[0].Group)
	assert.Equal(t, domain.ContextTimeline, *msgs[0].ContextType)
	assert.Equal(t, protocol.KindResetAll, msgs[1].Kind)
}

func TestSync_EmptyListClears(t *testing.T) {
	bus := &capturingBus{Bus: memory.NewBus()}

	out, err := execute(t, newTestOptions(bus), "sync", "--origin", "2", "--format", "json")
	require.NoError(t, err)

	var printed protocol.Message
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	assert.Equal(t, protocol.KindSync, printed.Kind)

	msgs := bus.messages(t)
	require.Len(t, msgs, 1)
	assert.NotNil(t, msgs[0].Indices)
	assert.Empty(t, msgs[0].Indices)
}

func TestPublish_DialFailure(t *testing.T) {
	opts := &RootOptions{DialBus: func(context.Context, *RootOptions) (Bus, func() error, error) {
		return nil, nil, errors.New("connection refused")
	}}

	_, err := execute(t, opts, "highlight", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWatch_PrintsMessagesUntilCount(t *testing.T) {
	bus := &capturingBus{Bus: memory.NewBus()}

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := execute(t, newTestOptions(bus), "watch", "--count", "2")
		done <- result{out, err}
	}()

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, time.Millisecond)

	ctx := context.Background()
	require.NoError(t, bus.Bus.Publish(ctx, []byte(`{"kind":"highlight","origin":1,"index":5}`)))
	require.NoError(t, bus.Bus.Publish(ctx, []byte(`not json`)))
	payload, err := protocol.Encode(protocol.NewResetAll())
	require.NoError(t, err)
	require.NoError(t, bus.Bus.Publish(ctx, payload))

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Contains(t, res.out, "highlight origin=1 index=5")
		assert.Contains(t, res.out, "malformed message")
		assert.Contains(t, res.out, "resetAll")
	case <-time.After(time.Second):
		t.Fatal("watch did not stop after --count messages")
	}
}

func TestState_FormatsSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/state", r.URL.Path)
		_ = json.NewEncoder(w).Encode(domain.SlotSnapshot{
			AppID:       2,
			Selection:   []domain.TimelineSelection{{AppID: 0, Index: 7}},
			Highlighted: map[int]int{9: 11, 3: 20},
		})
	}))
	defer server.Close()

	opts := newTestOptions(nil)
	out, err := execute(t, opts, "state", "--server", server.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "app 2")
	assert.Contains(t, out, "selected (1): 7@0")
	assert.Contains(t, out, "highlighted (2): 3(20) 9(11)")
}

func TestState_ReportsHTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := execute(t, newTestOptions(nil), "state", "--server", server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestVersion_Local(t *testing.T) {
	out, err := execute(t, newTestOptions(nil), "version", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version"`)
}
