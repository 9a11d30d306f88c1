package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bnema/tempvc/internal/domain"
	"github.com/bnema/tempvc/internal/ports"
)

const (
	DefaultGracePeriod    = 20 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

type VoiceConfig struct {
	CategoryID     domain.ChannelID
	GracePeriod    time.Duration
	RequestTimeout time.Duration
	Templates      []domain.TriggerTemplate
}

type VoiceDeps struct {
	Channels  ports.ChannelService
	State     ports.StateRepository
	Scheduler ports.Scheduler
	Clock     ports.Clock
	Recorder  ports.Recorder
	Logger    *slog.Logger
}

type Snapshot struct {
	Templates []domain.TriggerTemplate
	Channels  []domain.TrackedChannel
}

// VoiceManager owns the join-to-create templates and every temporary channel
// spawned from them. Gateway events may arrive one at a time while deletion
// timers fire on their own goroutines; mu guards the tables and is never held
// across a platform request.
type VoiceManager struct {
	channels  ports.ChannelService
	state     ports.StateRepository
	scheduler ports.Scheduler
	clock     ports.Clock
	recorder  ports.Recorder
	logger    *slog.Logger

	categoryID     domain.ChannelID
	gracePeriod    time.Duration
	requestTimeout time.Duration

	mu        sync.Mutex
	templates map[domain.ChannelID]*domain.TriggerTemplate
	order     []domain.ChannelID
	managed   map[domain.ChannelID]*managedChannel
	closed    bool
	restored  bool

	restoreMu sync.Mutex
	persistMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

type managedChannel struct {
	tracked domain.TrackedChannel
	pending *deletionTask
}

// deletionTask is a pending grace-period deletion. Its fields are guarded by
// VoiceManager.mu.
type deletionTask struct {
	timer     ports.Timer
	cancelled bool
}

func (t *deletionTask) cancel() {
	if t.cancelled {
		return
	}
	t.cancelled = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

func NewVoiceManager(cfg VoiceConfig, deps VoiceDeps) (*VoiceManager, error) {
	if deps.Channels == nil {
		return nil, errors.New("channel service is nil")
	}
	if deps.Scheduler == nil {
		deps.Scheduler = ports.SystemScheduler{}
	}
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Recorder == nil {
		deps.Recorder = ports.NopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	templates := make(map[domain.ChannelID]*domain.TriggerTemplate, len(cfg.Templates))
	order := make([]domain.ChannelID, 0, len(cfg.Templates))
	for _, template := range cfg.Templates {
		if template.Sequence == 0 {
			template.Sequence = 1
		}
		if err := template.Validate(); err != nil {
			return nil, fmt.Errorf("template %q: %w: %w", template.DisplayName, domain.ErrInvalidConfig, err)
		}
		if _, exists := templates[template.TriggerChannelID]; exists {
			return nil, fmt.Errorf("duplicate trigger channel %s: %w", template.TriggerChannelID, domain.ErrInvalidConfig)
		}
		template := template
		templates[template.TriggerChannelID] = &template
		order = append(order, template.TriggerChannelID)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &VoiceManager{
		channels:       deps.Channels,
		state:          deps.State,
		scheduler:      deps.Scheduler,
		clock:          deps.Clock,
		recorder:       deps.Recorder,
		logger:         deps.Logger,
		categoryID:     cfg.CategoryID,
		gracePeriod:    cfg.GracePeriod,
		requestTimeout: cfg.RequestTimeout,
		templates:      templates,
		order:          order,
		managed:        map[domain.ChannelID]*managedChannel{},
		restored:       deps.State == nil,
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// Restore loads persisted counters and tracked channels into the manager.
// It runs once; later calls return nil. Nothing is written back to the state
// repository before Restore succeeds, so events handled earlier never
// overwrite the previous run's state.
func (m *VoiceManager) Restore(ctx context.Context) error {
	m.restoreMu.Lock()
	defer m.restoreMu.Unlock()

	m.mu.Lock()
	restored := m.restored
	m.mu.Unlock()
	if restored {
		return nil
	}

	state, err := m.state.Load(ctx)
	if err != nil {
		return fmt.Errorf("load voice state: %w", err)
	}

	m.mu.Lock()
	for trigger, template := range m.templates {
		template.AdvanceTo(state.Counter(trigger))
	}
	adopted := 0
	for _, tracked := range state.Channels {
		if tracked.ChannelID == "" {
			continue
		}
		if _, exists := m.managed[tracked.ChannelID]; exists {
			continue
		}
		tracked.State = domain.ChannelStateActive
		m.managed[tracked.ChannelID] = &managedChannel{tracked: tracked}
		adopted++
	}
	m.restored = true
	tracked := len(m.managed)
	m.mu.Unlock()

	m.recorder.TrackedChannels(tracked)
	m.logger.Info("restored voice state",
		slog.Int("tracked_channels", adopted),
		slog.Int("templates", len(m.order)),
	)
	return nil
}

// Start restores state if Restore has not run yet, then re-checks every
// tracked channel so ones left empty by a restart are scheduled for deletion.
func (m *VoiceManager) Start(ctx context.Context) error {
	if err := m.Restore(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	ids := make([]domain.ChannelID, 0, len(m.managed))
	for id, entry := range m.managed {
		if entry.pending == nil {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.checkEmpty(ctx, id)
	}
	m.persist(ctx)

	return nil
}

// Shutdown cancels every pending deletion. Tracked channels stay in the
// persisted state and are reconciled by the next Start.
func (m *VoiceManager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	for _, entry := range m.managed {
		if entry.pending != nil {
			entry.pending.cancel()
			entry.pending = nil
		}
	}
	m.mu.Unlock()

	m.cancel()
}

func (m *VoiceManager) HandleVoiceStateUpdate(ctx context.Context, transition domain.VoiceStateTransition) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	if err := m.Restore(ctx); err != nil {
		m.fail("load_state", err)
	}

	if transition.Joined() {
		if template, ordinal, ok := m.reserveOrdinal(transition.ChannelID); ok {
			m.spawn(ctx, transition, template, ordinal)
		}
	}

	if transition.Left() {
		m.checkEmpty(ctx, transition.PreviousChannelID)
	}

	if transition.ChannelID != "" {
		m.reoccupy(transition.ChannelID)
	}
}

func (m *VoiceManager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Templates: m.templatesLocked(),
		Channels:  m.trackedLocked(),
	}
}

func (m *VoiceManager) reserveOrdinal(trigger domain.ChannelID) (domain.TriggerTemplate, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	template, ok := m.templates[trigger]
	if !ok {
		return domain.TriggerTemplate{}, 0, false
	}

	ordinal := template.NextOrdinal()
	return *template, ordinal, true
}

func (m *VoiceManager) spawn(ctx context.Context, transition domain.VoiceStateTransition, template domain.TriggerTemplate, ordinal int) {
	defer m.persist(ctx)

	spec := domain.VoiceChannelSpec{
		Name:     template.ChannelName(ordinal),
		Capacity: template.MemberCapacity,
		ParentID: m.categoryID,
		Grants: []domain.PermissionGrant{
			{TargetID: string(transition.GuildID), Allow: domain.PermissionJoin},
		},
	}
	attrs := []slog.Attr{
		slog.String("channel_name", spec.Name),
		slog.String("member_id", string(transition.MemberID)),
		slog.String("trigger_channel_id", string(template.TriggerChannelID)),
	}

	reqCtx, cancel := m.requestContext(ctx)
	defer cancel()

	channelID, err := m.channels.CreateVoiceChannel(reqCtx, transition.GuildID, spec)
	if err != nil {
		m.fail("create_channel", err, attrs...)
		return
	}
	attrs = append(attrs, slog.String("channel_id", string(channelID)))

	if err := m.channels.MoveMember(reqCtx, transition.GuildID, transition.MemberID, channelID); err != nil {
		m.fail("move_member", err, attrs...)
		if deleteErr := m.channels.DeleteChannel(reqCtx, channelID); deleteErr != nil && !errors.Is(deleteErr, domain.ErrNotFound) {
			m.fail("delete_channel", deleteErr, attrs...)
		}
		return
	}

	m.mu.Lock()
	m.managed[channelID] = &managedChannel{tracked: domain.TrackedChannel{
		ChannelID:        channelID,
		GuildID:          transition.GuildID,
		TriggerChannelID: template.TriggerChannelID,
		Name:             spec.Name,
		CreatedAt:        m.clock.Now(),
		State:            domain.ChannelStateActive,
	}}
	tracked := len(m.managed)
	m.mu.Unlock()

	m.recorder.ChannelCreated(template)
	m.recorder.TrackedChannels(tracked)
	m.logger.LogAttrs(ctx, slog.LevelInfo, "created temporary voice channel", attrs...)
}

func (m *VoiceManager) checkEmpty(ctx context.Context, channelID domain.ChannelID) {
	m.mu.Lock()
	entry, ok := m.managed[channelID]
	m.mu.Unlock()
	if !ok {
		return
	}

	reqCtx, cancel := m.requestContext(ctx)
	count, err := m.channels.ChannelMemberCount(reqCtx, entry.tracked.GuildID, channelID)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			m.logger.Debug("temporary voice channel vanished", slog.String("channel_id", string(channelID)))
			m.untrack(ctx, entry)
			return
		}
		m.fail("count_members", err, slog.String("channel_id", string(channelID)))
		return
	}
	if count > 0 {
		return
	}

	m.mu.Lock()
	if m.closed || m.managed[channelID] != entry {
		m.mu.Unlock()
		return
	}
	if entry.pending != nil {
		entry.pending.cancel()
	}
	entry.pending = m.scheduleDeletionLocked(entry)
	m.mu.Unlock()

	m.recorder.DeletionScheduled()
	m.logger.Info("scheduled temporary voice channel deletion",
		slog.String("channel_id", string(channelID)),
		slog.String("channel_name", entry.tracked.Name),
		slog.Duration("grace_period", m.gracePeriod),
	)
}

func (m *VoiceManager) scheduleDeletionLocked(entry *managedChannel) *deletionTask {
	task := &deletionTask{}
	task.timer = m.scheduler.AfterFunc(m.gracePeriod, func() {
		m.runDeletion(entry, task)
	})
	return task
}

func (m *VoiceManager) reoccupy(channelID domain.ChannelID) {
	m.mu.Lock()
	entry, ok := m.managed[channelID]
	if !ok || entry.pending == nil {
		m.mu.Unlock()
		return
	}
	entry.pending.cancel()
	entry.pending = nil
	m.mu.Unlock()

	m.recorder.DeletionCancelled()
	m.logger.Info("cancelled temporary voice channel deletion",
		slog.String("channel_id", string(channelID)),
		slog.String("channel_name", entry.tracked.Name),
	)
}

// runDeletion is the grace-period timer body. The live member count is
// re-read before deleting; the task also re-checks that it has not been
// cancelled or superseded, since the timer may fire while a join is being
// handled.
func (m *VoiceManager) runDeletion(entry *managedChannel, task *deletionTask) {
	if !m.taskCurrent(entry, task) {
		return
	}

	channelID := entry.tracked.ChannelID
	ctx, cancel := m.requestContext(m.ctx)
	defer cancel()

	count, err := m.channels.ChannelMemberCount(ctx, entry.tracked.GuildID, channelID)
	if err != nil {
		if m.interrupted(err) {
			return
		}
		if errors.Is(err, domain.ErrNotFound) {
			m.logger.Debug("temporary voice channel already deleted", slog.String("channel_id", string(channelID)))
		} else {
			m.fail("count_members", err, slog.String("channel_id", string(channelID)))
		}
		m.untrack(m.ctx, entry)
		return
	}

	if count > 0 {
		m.mu.Lock()
		if entry.pending == task {
			entry.pending = nil
		}
		m.mu.Unlock()
		return
	}

	if !m.taskCurrent(entry, task) {
		return
	}

	if err := m.channels.DeleteChannel(ctx, channelID); err != nil {
		if m.interrupted(err) {
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			m.fail("delete_channel", err, slog.String("channel_id", string(channelID)))
		}
		m.untrack(m.ctx, entry)
		return
	}

	m.recorder.ChannelDeleted()
	m.logger.Info("deleted empty temporary voice channel",
		slog.String("channel_id", string(channelID)),
		slog.String("channel_name", entry.tracked.Name),
	)
	m.untrack(m.ctx, entry)
}

func (m *VoiceManager) taskCurrent(entry *managedChannel, task *deletionTask) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return !m.closed && !task.cancelled && entry.pending == task && m.managed[entry.tracked.ChannelID] == entry
}

// interrupted reports whether err came from Shutdown cancelling an in-flight
// request. The channel then stays tracked for the next Start.
func (m *VoiceManager) interrupted(err error) bool {
	if !errors.Is(err, context.Canceled) {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *VoiceManager) untrack(ctx context.Context, entry *managedChannel) {
	m.mu.Lock()
	if m.managed[entry.tracked.ChannelID] != entry {
		m.mu.Unlock()
		return
	}
	if entry.pending != nil {
		entry.pending.cancel()
		entry.pending = nil
	}
	delete(m.managed, entry.tracked.ChannelID)
	tracked := len(m.managed)
	m.mu.Unlock()

	m.recorder.TrackedChannels(tracked)
	m.persist(ctx)
}

func (m *VoiceManager) persist(ctx context.Context) {
	if m.state == nil {
		return
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	if !m.restored {
		m.mu.Unlock()
		return
	}
	state := domain.ManagerState{
		Counters: make(map[domain.ChannelID]int, len(m.templates)),
		Channels: m.trackedLocked(),
	}
	for trigger, template := range m.templates {
		state.Counters[trigger] = template.Sequence
	}
	m.mu.Unlock()

	saveCtx, cancel := m.requestContext(context.WithoutCancel(ctx))
	defer cancel()

	if err := m.state.Save(saveCtx, state); err != nil {
		m.fail("save_state", err)
	}
}

func (m *VoiceManager) templatesLocked() []domain.TriggerTemplate {
	templates := make([]domain.TriggerTemplate, 0, len(m.order))
	for _, trigger := range m.order {
		templates = append(templates, *m.templates[trigger])
	}
	return templates
}

func (m *VoiceManager) trackedLocked() []domain.TrackedChannel {
	channels := make([]domain.TrackedChannel, 0, len(m.managed))
	for _, entry := range m.managed {
		tracked := entry.tracked
		tracked.State = domain.ChannelStateActive
		if entry.pending != nil {
			tracked.State = domain.ChannelStatePendingDeletion
		}
		channels = append(channels, tracked)
	}
	sort.Slice(channels, func(i, j int) bool {
		if !channels[i].CreatedAt.Equal(channels[j].CreatedAt) {
			return channels[i].CreatedAt.Before(channels[j].CreatedAt)
		}
		return channels[i].ChannelID < channels[j].ChannelID
	})
	return channels
}

func (m *VoiceManager) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, m.requestTimeout)
}

func (m *VoiceManager) fail(operation string, err error, attrs ...slog.Attr) {
	m.recorder.OperationFailed(operation, err)
	attrs = append(attrs,
		slog.String("operation", operation),
		slog.String("kind", domain.ErrorKind(err)),
		slog.Any("error", err),
	)
	m.logger.LogAttrs(context.Background(), slog.LevelError, "voice channel operation failed", attrs...)
}
