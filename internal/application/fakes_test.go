package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/tempvc/internal/domain"
	"github.com/bnema/tempvc/internal/ports"
)

type moveCall struct {
	GuildID   domain.GuildID
	MemberID  domain.MemberID
	ChannelID domain.ChannelID
}

type fakeChannels struct {
	mu sync.Mutex

	nextID  int
	created []domain.VoiceChannelSpec
	moves   []moveCall
	deleted []domain.ChannelID
	counts  map[domain.ChannelID]int
	missing map[domain.ChannelID]bool

	createErr error
	moveErr   error
	deleteErr error
	countErr  error

	// countEntered, when set, makes ChannelMemberCount signal on it and then
	// block until its context is done.
	countEntered chan struct{}
}

var _ ports.ChannelService = (*fakeChannels)(nil)

func newFakeChannels() *fakeChannels {
	return &fakeChannels{
		counts:  map[domain.ChannelID]int{},
		missing: map[domain.ChannelID]bool{},
	}
}

func (f *fakeChannels) CreateVoiceChannel(_ context.Context, _ domain.GuildID, spec domain.VoiceChannelSpec) (domain.ChannelID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.created = append(f.created, spec)
	if f.createErr != nil {
		return "", f.createErr
	}

	f.nextID++
	id := domain.ChannelID(fmt.Sprintf("vc-%d", f.nextID))
	f.counts[id] = 0
	return id, nil
}

func (f *fakeChannels) MoveMember(_ context.Context, guildID domain.GuildID, memberID domain.MemberID, channelID domain.ChannelID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.moves = append(f.moves, moveCall{GuildID: guildID, MemberID: memberID, ChannelID: channelID})
	if f.moveErr != nil {
		return f.moveErr
	}

	f.counts[channelID]++
	return nil
}

func (f *fakeChannels) ChannelMemberCount(ctx context.Context, _ domain.GuildID, channelID domain.ChannelID) (int, error) {
	f.mu.Lock()
	entered := f.countEntered
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
		<-ctx.Done()
		return 0, fmt.Errorf("fetch channel %s: %w", channelID, ctx.Err())
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.missing[channelID] {
		return 0, fmt.Errorf("fetch channel %s: %w", channelID, domain.ErrNotFound)
	}
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.counts[channelID], nil
}

func (f *fakeChannels) DeleteChannel(_ context.Context, channelID domain.ChannelID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, channelID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if f.missing[channelID] {
		return fmt.Errorf("delete channel %s: %w", channelID, domain.ErrNotFound)
	}
	f.missing[channelID] = true
	return nil
}

func (f *fakeChannels) setCount(channelID domain.ChannelID, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[channelID] = n
}

func (f *fakeChannels) blockCounts() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countEntered = make(chan struct{}, 1)
	return f.countEntered
}

func (f *fakeChannels) vanish(channelID domain.ChannelID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missing[channelID] = true
}

func (f *fakeChannels) createdSpecs() []domain.VoiceChannelSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.VoiceChannelSpec(nil), f.created...)
}

func (f *fakeChannels) moveCalls() []moveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]moveCall(nil), f.moves...)
}

func (f *fakeChannels) deletedChannels() []domain.ChannelID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChannelID(nil), f.deleted...)
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) ports.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer := &fakeTimer{delay: d, f: f}
	s.timers = append(s.timers, timer)
	return timer
}

func (s *fakeScheduler) all() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeTimer(nil), s.timers...)
}

func (s *fakeScheduler) pending() []*fakeTimer {
	var pending []*fakeTimer
	for _, timer := range s.all() {
		if timer.isPending() {
			pending = append(pending, timer)
		}
	}
	return pending
}

// elapse fires every timer that is still pending, like a clock passing the grace period.
func (s *fakeScheduler) elapse() {
	for _, timer := range s.pending() {
		timer.fire()
	}
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (t *fakeTimer) isPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && !t.fired
}

func (t *fakeTimer) fire() {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.mu.Unlock()

	t.f()
}

// forceFire runs the callback even if Stop was called, modelling a timer
// that fired just before it was cancelled.
func (t *fakeTimer) forceFire() {
	t.mu.Lock()
	t.fired = true
	t.mu.Unlock()

	t.f()
}

type fakeRecorder struct {
	mu        sync.Mutex
	created   map[string]int
	deleted   int
	scheduled int
	cancelled int
	failures  map[string]int
	tracked   int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{created: map[string]int{}, failures: map[string]int{}}
}

func (r *fakeRecorder) ChannelCreated(template domain.TriggerTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created[template.DisplayName]++
}

func (r *fakeRecorder) ChannelDeleted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted++
}

func (r *fakeRecorder) DeletionScheduled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled++
}

func (r *fakeRecorder) DeletionCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled++
}

func (r *fakeRecorder) OperationFailed(operation string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[operation+"/"+domain.ErrorKind(err)]++
}

func (r *fakeRecorder) TrackedChannels(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked = n
}

type inMemoryStateRepo struct {
	mu      sync.Mutex
	state   domain.ManagerState
	saves   int
	loadErr error
}

func (r *inMemoryStateRepo) Load(context.Context) (domain.ManagerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return domain.ManagerState{}, r.loadErr
	}
	return r.state, nil
}

func (r *inMemoryStateRepo) Save(_ context.Context, state domain.ManagerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.saves++
	return nil
}

func (r *inMemoryStateRepo) setLoadErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadErr = err
}

func (r *inMemoryStateRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func (r *inMemoryStateRepo) current() domain.ManagerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}
