package selection

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/selectionsync/internal/adapter/metrics"
	"github.com/pscheid92/selectionsync/internal/domain"
	"github.com/pscheid92/selectionsync/internal/platform/correlation"
	"github.com/pscheid92/selectionsync/internal/protocol"
)

const (
	DefaultHighlightDuration = 25
	defaultCommandTimeout    = 5 * time.Second
	stopTimeout              = 10 * time.Second
	commandBufferSize        = 256
)

type result[T any] struct {
	val T
	err error
}

// engineCmd is the command interface for the Engine actor. fail delivers an
// error reply when the command could not be executed.
type engineCmd interface{ fail(err error) }

type applyCmd struct {
	ctx   context.Context
	msg   protocol.Message
	reply chan result[struct{}]
}

func (c applyCmd) fail(err error) { c.reply <- result[struct{}]{err: err} }

type tickCmd struct {
	reply chan result[int]
}

func (c tickCmd) fail(err error) { c.reply <- result[int]{err: err} }

type mergeCmd struct {
	ctx    context.Context
	target int
	group  int
	reply  chan result[struct{}]
}

func (c mergeCmd) fail(err error) { c.reply <- result[struct{}]{err: err} }

type snapshotCmd struct {
	appID int
	reply chan result[domain.SlotSnapshot]
}

func (c snapshotCmd) fail(err error) { c.reply <- result[domain.SlotSnapshot]{err: err} }

type replayCmd struct {
	reply chan result[struct{}]
}

func (c replayCmd) fail(err error) { c.reply <- result[struct{}]{err: err} }

type stopCmd struct{}

func (stopCmd) fail(error) {}

// Config configures an Engine.
type Config struct {
	// LocalApp is the slot this process displays. Observer callbacks fire for it only.
	LocalApp          int
	HighlightDuration int
	CommandTimeout    time.Duration
	Metrics           *metrics.SyncMetrics
}

// Engine owns the Store and applies every mutation on a single goroutine.
// Local intents are never applied directly: they are published and come back
// through Handle like any peer's message.
type Engine struct {
	cmdCh     chan engineCmd
	done      chan struct{}
	clock     clockwork.Clock
	store     *Store
	directory domain.GroupDirectory
	publisher domain.Publisher
	observer  domain.Observer
	metrics   *metrics.SyncMetrics

	localApp          int
	highlightDuration int
	commandTimeout    time.Duration
}

// NewEngine starts the engine goroutine. Call Stop to shut it down.
func NewEngine(store *Store, directory domain.GroupDirectory, publisher domain.Publisher, observer domain.Observer, clock clockwork.Clock, cfg Config) (*Engine, error) {
	if !store.Contains(cfg.LocalApp) {
		return nil, fmt.Errorf("local app %d outside [0, %d): %w", cfg.LocalApp, store.Len(), domain.ErrUnknownApp)
	}
	if cfg.HighlightDuration <= 0 {
		cfg.HighlightDuration = DefaultHighlightDuration
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewSyncMetrics(prometheus.NewRegistry())
	}
	if observer == nil {
		observer = NopObserver{}
	}

	e := &Engine{
		cmdCh:             make(chan engineCmd, commandBufferSize),
		done:              make(chan struct{}),
		clock:             clock,
		store:             store,
		directory:         directory,
		publisher:         publisher,
		observer:          observer,
		metrics:           cfg.Metrics,
		localApp:          cfg.LocalApp,
		highlightDuration: cfg.HighlightDuration,
		commandTimeout:    cfg.CommandTimeout,
	}
	go e.run()
	return e, nil
}

// LocalApp returns the slot displayed by this process.
func (e *Engine) LocalApp() int {
	return e.localApp
}

// --- Send path ---

// SetSelected broadcasts a selection change for the local app.
func (e *Engine) SetSelected(ctx context.Context, index int, selected bool) error {
	group := e.directory.GroupFor(e.localApp, domain.ContextTimeline)
	return e.publish(ctx, protocol.NewSelect(e.localApp, index, selected, group))
}

// Highlight broadcasts a highlight refresh for index in the local app's group.
func (e *Engine) Highlight(ctx context.Context, index int) error {
	group := e.directory.GroupFor(e.localApp, domain.ContextTimeline)
	return e.publish(ctx, protocol.NewHighlight(e.localApp, index, group))
}

// ResetGroup broadcasts a reset of every app of contextType in group.
func (e *Engine) ResetGroup(ctx context.Context, group int, contextType domain.ApplicationType) error {
	return e.publish(ctx, protocol.NewResetGroup(group, contextType))
}

// ResetAll broadcasts a reset of every app.
func (e *Engine) ResetAll(ctx context.Context) error {
	return e.publish(ctx, protocol.NewResetAll())
}

// PublishSync broadcasts the full list of rows the local app has selected so
// peers that missed a message converge.
func (e *Engine) PublishSync(ctx context.Context) error {
	snap, err := e.Snapshot(ctx, e.localApp)
	if err != nil {
		return err
	}
	var owned []int
	for _, sel := range snap.Selection {
		if sel.AppID == e.localApp {
			owned = append(owned, sel.Index)
		}
	}
	group := e.directory.GroupFor(e.localApp, domain.ContextTimeline)
	if err := e.publish(ctx, protocol.NewSync(e.localApp, owned, group)); err != nil {
		return err
	}
	e.metrics.Reconciles.Inc()
	return nil
}

func (e *Engine) publish(ctx context.Context, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := e.publisher.Publish(ctx, data); err != nil {
		e.metrics.PublishFailures.Inc()
		return fmt.Errorf("publish %s: %w", msg.Kind, err)
	}
	e.metrics.MessagesPublished.WithLabelValues(string(msg.Kind)).Inc()
	slog.DebugContext(correlation.WithID(ctx, msg.ID), "Published message", "kind", msg.Kind)
	return nil
}

// --- Receive path ---

// Handle decodes and applies one raw bus message. Malformed or inapplicable
// messages are logged and dropped.
func (e *Engine) Handle(ctx context.Context, payload []byte) {
	msg, err := protocol.Decode(payload)
	if err != nil {
		e.metrics.MessagesDropped.WithLabelValues("malformed").Inc()
		slog.WarnContext(ctx, "Dropping malformed message", "error", err)
		return
	}

	ctx = correlation.WithID(ctx, msg.ID)
	if err := e.Apply(ctx, msg); err != nil {
		slog.WarnContext(ctx, "Failed to apply message", "kind", msg.Kind, "error", err)
	}
}

// Apply applies a decoded message to the store and notifies the observer.
func (e *Engine) Apply(ctx context.Context, msg protocol.Message) error {
	if err := msg.Validate(); err != nil {
		e.metrics.MessagesDropped.WithLabelValues("malformed").Inc()
		return err
	}
	reply := make(chan result[struct{}], 1)
	if err := e.enqueue(ctx, applyCmd{ctx: ctx, msg: msg, reply: reply}); err != nil {
		return err
	}
	_, err := await(ctx, e, reply)
	return err
}

// Merge copies the state of group's first other member onto target. It is
// called directly when membership changes, not broadcast.
func (e *Engine) Merge(ctx context.Context, target, group int) error {
	reply := make(chan result[struct{}], 1)
	if err := e.enqueue(ctx, mergeCmd{ctx: ctx, target: target, group: group, reply: reply}); err != nil {
		return err
	}
	_, err := await(ctx, e, reply)
	return err
}

// Tick decays every highlight by one step and returns how many expired.
func (e *Engine) Tick(ctx context.Context) (int, error) {
	reply := make(chan result[int], 1)
	if err := e.enqueue(ctx, tickCmd{reply: reply}); err != nil {
		return 0, err
	}
	return await(ctx, e, reply)
}

// Snapshot returns a copy of one slot's state.
func (e *Engine) Snapshot(ctx context.Context, appID int) (domain.SlotSnapshot, error) {
	reply := make(chan result[domain.SlotSnapshot], 1)
	if err := e.enqueue(ctx, snapshotCmd{appID: appID, reply: reply}); err != nil {
		return domain.SlotSnapshot{}, err
	}
	return await(ctx, e, reply)
}

// Replay sends the local slot's full state to the observer through the bulk
// replace callbacks, ordered with every other notification.
func (e *Engine) Replay(ctx context.Context) error {
	reply := make(chan result[struct{}], 1)
	if err := e.enqueue(ctx, replayCmd{reply: reply}); err != nil {
		return err
	}
	_, err := await(ctx, e, reply)
	return err
}

// Stop shuts down the engine goroutine. Pending commands fail with ErrEngineStopped.
func (e *Engine) Stop() {
	select {
	case e.cmdCh <- stopCmd{}:
	case <-e.done:
		return
	}

	timeout := e.clock.NewTimer(stopTimeout)
	defer timeout.Stop()

	select {
	case <-e.done:
		slog.Info("Selection engine stopped")
	case <-timeout.Chan():
		slog.Warn("Selection engine stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (e *Engine) enqueue(ctx context.Context, cmd engineCmd) error {
	select {
	case e.cmdCh <- cmd:
		return nil
	case <-e.done:
		return domain.ErrEngineStopped
	case <-ctx.Done():
		return fmt.Errorf("enqueue command: %w", ctx.Err())
	}
}

func await[T any](ctx context.Context, e *Engine, reply <-chan result[T]) (T, error) {
	timer := e.clock.NewTimer(e.commandTimeout)
	defer timer.Stop()

	select {
	case r := <-reply:
		return r.val, r.err
	case <-timer.Chan():
		var zero T
		return zero, fmt.Errorf("%w after %v", domain.ErrCommandTimeout, e.commandTimeout)
	case <-e.done:
		var zero T
		return zero, domain.ErrEngineStopped
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("await command: %w", ctx.Err())
	}
}

// --- Actor ---

func (e *Engine) run() {
	defer close(e.done)

	for cmd := range e.cmdCh {
		e.metrics.CommandQueueDepth.Set(float64(len(e.cmdCh)))
		if _, ok := cmd.(stopCmd); ok {
			e.drain()
			return
		}
		e.dispatch(cmd)
	}
}

func (e *Engine) dispatch(cmd engineCmd) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Selection engine command panicked", "panic", r, "command_type", fmt.Sprintf("%T", cmd))
			cmd.fail(fmt.Errorf("command panicked: %v", r))
		}
	}()

	switch c := cmd.(type) {
	case applyCmd:
		c.reply <- result[struct{}]{err: e.handleApply(c.ctx, c.msg)}
	case tickCmd:
		c.reply <- result[int]{val: e.handleTick()}
	case mergeCmd:
		c.reply <- result[struct{}]{err: e.handleMerge(c.ctx, c.target, c.group)}
	case replayCmd:
		e.replaceLocal()
		c.reply <- result[struct{}]{}
	case snapshotCmd:
		if !e.store.Contains(c.appID) {
			c.reply <- result[domain.SlotSnapshot]{err: fmt.Errorf("snapshot app %d: %w", c.appID, domain.ErrUnknownApp)}
			return
		}
		c.reply <- result[domain.SlotSnapshot]{val: e.store.Snapshot(c.appID)}
	default:
		slog.Warn("Selection engine received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
	}
}

func (e *Engine) drain() {
	for {
		select {
		case cmd := <-e.cmdCh:
			cmd.fail(domain.ErrEngineStopped)
		default:
			return
		}
	}
}

func (e *Engine) handleApply(ctx context.Context, msg protocol.Message) error {
	if msg.Origin != nil && !e.store.Contains(*msg.Origin) {
		e.metrics.MessagesDropped.WithLabelValues("unknown_app").Inc()
		return fmt.Errorf("%s from app %d: %w", msg.Kind, *msg.Origin, domain.ErrUnknownApp)
	}
	e.metrics.MessagesReceived.WithLabelValues(string(msg.Kind)).Inc()

	switch msg.Kind {
	case protocol.KindSelect:
		e.applySelect(*msg.Origin, *msg.Index, *msg.Selected, msg.Group)
	case protocol.KindHighlight:
		e.applyHighlight(msg.Origin, *msg.Index, msg.Group)
	case protocol.KindResetGroup:
		e.applyResetGroup(*msg.Group, *msg.ContextType)
	case protocol.KindResetAll:
		e.applyResetAll()
	case protocol.KindSync:
		e.applySync(*msg.Origin, msg.Indices, msg.Group)
	}
	slog.DebugContext(ctx, "Applied message", "kind", msg.Kind)
	return nil
}

// scope returns the slots a message affects: every member of group, or only
// the origin's own slot when the message carries no group.
func (e *Engine) scope(origin *int, group *int) []int {
	if group == nil {
		if origin == nil {
			return nil
		}
		return []int{*origin}
	}
	var targets []int
	for _, state := range e.directory.StatesFor(domain.ContextTimeline) {
		if e.store.Contains(state.AppID) && domain.SameGroup(state.Group, group) {
			targets = append(targets, state.AppID)
		}
	}
	return targets
}

func (e *Engine) applySelect(origin, index int, selected bool, group *int) {
	sel := domain.TimelineSelection{AppID: origin, Index: index}
	mutated := e.store.SetSelected(sel, selected, e.scope(&origin, group))
	if slices.Contains(mutated, e.localApp) {
		e.observer.OnItemSelectionChanged(index, selected)
	}
}

func (e *Engine) applyHighlight(origin *int, index int, group *int) {
	mutated := e.store.SetHighlighted(index, e.scope(origin, group), e.highlightDuration)
	if slices.Contains(mutated, e.localApp) {
		e.observer.OnItemsHighlighted([]int{index}, true)
	}
}

func (e *Engine) applyResetGroup(group int, contextType domain.ApplicationType) {
	for _, state := range e.directory.StatesFor(domain.ContextTimeline) {
		app := state.AppID
		if !e.store.Contains(app) || e.directory.TypeFor(app) != contextType {
			continue
		}
		if !domain.SameGroup(e.directory.GroupFor(app, contextType), &group) {
			continue
		}
		e.store.ResetSlot(app)
		if app == e.localApp {
			e.replaceLocal()
		}
	}
}

func (e *Engine) applyResetAll() {
	if slices.Contains(e.store.ResetAll(), e.localApp) {
		e.replaceLocal()
	}
}

func (e *Engine) applySync(origin int, indices []int, group *int) {
	added, removed := e.store.ReplaceOwned(origin, indices, e.scope(&origin, group))
	for _, index := range removed[e.localApp] {
		e.observer.OnItemSelectionChanged(index, false)
	}
	for _, index := range added[e.localApp] {
		e.observer.OnItemSelectionChanged(index, true)
	}
}

func (e *Engine) handleTick() int {
	expired := e.store.Tick()
	e.metrics.Ticks.Inc()

	total := 0
	for _, indices := range expired {
		total += len(indices)
	}
	e.metrics.HighlightsExpired.Add(float64(total))

	if local := expired[e.localApp]; len(local) > 0 {
		e.observer.OnItemsHighlighted(local, false)
	}
	return total
}

func (e *Engine) handleMerge(ctx context.Context, target, group int) error {
	if !e.store.Contains(target) {
		return fmt.Errorf("merge target %d: %w", target, domain.ErrUnknownApp)
	}

	source := -1
	for _, state := range e.directory.StatesFor(domain.ContextTimeline) {
		if state.AppID != target && e.store.Contains(state.AppID) && domain.SameGroup(state.Group, &group) {
			source = state.AppID
			break
		}
	}
	if source < 0 {
		slog.InfoContext(ctx, "No merge source in group, keeping state", "target", target, "group", group)
		return nil
	}

	e.store.Merge(target, source)
	e.metrics.Merges.Inc()
	slog.InfoContext(ctx, "Merged app into group", "target", target, "source", source, "group", group)

	if target == e.localApp {
		e.replaceLocal()
	}
	return nil
}

func (e *Engine) replaceLocal() {
	e.observer.OnReplaceSelection(e.store.Selection(e.localApp))
	e.observer.OnReplaceHighlighted(e.store.Highlighted(e.localApp))
}
