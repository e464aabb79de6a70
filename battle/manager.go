// Package battle is the domain service behind the boundary: long-running
// instances advanced by Tick and one-shot battles run by Execute.
//
// Finished battles are announced through a Notifier. The Notifier is always
// called after the manager lock is released, so it may call back into the
// manager.
package battle

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/pool"
	"github.com/wippyai/wasm-bridge/protocol"
)

// Notifier receives a notification. n is only valid during the call.
type Notifier func(ctx context.Context, n *protocol.Notification)

// Option configures a Manager.
type Option func(*Manager)

// WithSeed makes the damage rolls deterministic.
func WithSeed(seed uint64) Option {
	return func(m *Manager) { m.rng = rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithNotifier sets the notification sink.
func WithNotifier(fn Notifier) Option {
	return func(m *Manager) { m.notify = fn }
}

// WithSettings sets the initial settings.
func WithSettings(s Settings) Option {
	return func(m *Manager) { m.settings = s }
}

// WithRecordPool sets how many notification records are kept for reuse.
func WithRecordPool(capacity int) Option {
	return func(m *Manager) { m.records = newRecordPool(capacity) }
}

func newRecordPool(capacity int) *pool.Pool[*protocol.Notification] {
	return pool.New(capacity,
		func() *protocol.Notification { return &protocol.Notification{} },
		func(n *protocol.Notification) *protocol.Notification { n.Reset(); return n },
	)
}

// Manager owns all instances.
type Manager struct {
	instances map[uint32]*Instance
	rng       *rand.Rand
	now       func() time.Time
	notify    Notifier
	logger    *zap.Logger
	records   *pool.Pool[*protocol.Notification]
	settings  Settings
	mu        sync.Mutex
}

// NewManager creates a Manager with DefaultSettings and a random seed.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		instances: make(map[uint32]*Instance),
		now:       time.Now,
		logger:    zap.NewNop(),
		settings:  DefaultSettings(),
		records:   newRecordPool(64),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		WithSeed(rand.Uint64())(m)
	}
	return m
}

// Configure replaces the settings. Running instances keep their health.
func (m *Manager) Configure(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
	m.logger.Info("battle settings updated",
		zap.Int32("initial_health", s.InitialHealth),
		zap.Int32("min_damage", s.MinDamage),
		zap.Int32("max_damage", s.MaxDamage))
	return nil
}

// Settings returns the current settings.
func (m *Manager) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// SetNotifier replaces the notification sink.
func (m *Manager) SetNotifier(fn Notifier) {
	m.mu.Lock()
	m.notify = fn
	m.mu.Unlock()
}

func idString(id uint32) string { return strconv.FormatUint(uint64(id), 10) }

// Create starts an instance between two teams.
func (m *Manager) Create(id, sideA, sideB uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[id]; ok {
		return errors.AlreadyExists(errors.PhaseDomain, "instance", idString(id))
	}
	m.instances[id] = newInstance(id, sideA, sideB, m.settings.InitialHealth)
	m.logger.Debug("instance created",
		zap.Uint32("id", id), zap.Uint32("side_a", sideA), zap.Uint32("side_b", sideB))
	return nil
}

// Destroy removes an instance.
func (m *Manager) Destroy(id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[id]; !ok {
		return errors.NotFound(errors.PhaseDomain, "instance", idString(id))
	}
	delete(m.instances, id)
	m.logger.Debug("instance destroyed", zap.Uint32("id", id))
	return nil
}

// Count returns the number of instances, finished or not.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

// Snapshot returns a copy of an instance.
func (m *Manager) Snapshot(id uint32) (Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.instances[id]
	if !ok {
		return Instance{}, false
	}
	return *in, true
}

// Tick runs one round on every unfinished instance and returns how many it
// advanced. Instances finishing this tick are announced after the lock is
// released.
func (m *Manager) Tick(ctx context.Context) int {
	advanced, finished, notify := m.advance()
	if advanced > 0 {
		m.logger.Debug("tick", zap.Int("advanced", advanced), zap.Int("finished", len(finished)))
	}
	m.deliver(ctx, notify, finished...)
	return advanced
}

// advance runs the rounds of one tick under the lock.
func (m *Manager) advance() (int, []*protocol.Notification, Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]uint32, 0, len(m.instances))
	for id, in := range m.instances {
		if !in.Finished {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var finished []*protocol.Notification
	ts := m.now().UnixMilli()
	for _, id := range ids {
		in := m.instances[id]
		in.round(m.rng, m.settings)
		if in.Finished {
			n := m.records.Get()
			n.BattleID = id
			n.Type = protocol.NotificationInstanceFinished
			n.Timestamp = ts
			n.Payload = in.result(m.settings.InitialHealth).Append(n.Payload)
			finished = append(finished, n)
			m.logger.Info("instance finished",
				zap.Uint32("id", id), zap.Uint32("winner", in.Winner), zap.Int("rounds", in.Round))
		}
	}
	return len(ids), finished, m.notify
}

func (m *Manager) deliver(ctx context.Context, notify Notifier, records ...*protocol.Notification) {
	for _, n := range records {
		if notify != nil {
			notify(ctx, n)
		}
		m.records.Put(n)
	}
}

// ProcessInput applies a player action to the next round of an instance.
//
//	attack  no modifier
//	defend  halves the next hit the team takes
//	skill   adds value to the team's next hit
func (m *Manager) ProcessInput(id, team, action uint32, value int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.instances[id]
	if !ok {
		return errors.NotFound(errors.PhaseDomain, "instance", idString(id))
	}
	if in.Finished {
		return errors.New(errors.PhaseDomain, errors.KindFinished).
			Detail("instance %d already finished", id).
			Build()
	}
	side, ok := in.side(team)
	if !ok {
		return errors.InvalidArgument(errors.PhaseDomain,
			fmt.Sprintf("team %d is not part of instance %d", team, id), team)
	}

	switch action {
	case protocol.ActionAttack:
	case protocol.ActionDefend:
		in.defending[side] = true
	case protocol.ActionSkill:
		if value < 0 {
			return errors.InvalidArgument(errors.PhaseDomain,
				fmt.Sprintf("skill value must not be negative, got %d", value), value)
		}
		in.bonus[side] = int32(min(int64(in.bonus[side])+int64(value), MaxDamage))
	default:
		return errors.InvalidArgument(errors.PhaseDomain,
			fmt.Sprintf("unknown action type %d", action), action)
	}
	return nil
}
