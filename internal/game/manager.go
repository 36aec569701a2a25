package game

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridduel/duel-server-go/internal/game/rules"
)

// Store persists game records keyed by game id. Save must fail with
// ErrVersionConflict when the stored version is not expectedVersion.
type Store interface {
	Create(ctx context.Context, rec *GameRecord) error
	Load(ctx context.Context, gameID string) (*GameRecord, int64, error)
	Save(ctx context.Context, rec *GameRecord, expectedVersion int64) (int64, error)
}

// ResultRecorder is told about every game that ends.
type ResultRecorder interface {
	RecordResult(ctx context.Context, result Result) error
}

// SeatReserver guards against a player sitting in two games at once.
type SeatReserver interface {
	Reserve(ctx context.Context, gameID string, players [2]string) error
	Release(ctx context.Context, gameID string, players [2]string) error
}

// ManagerOption configures optional collaborators.
type ManagerOption func(*Manager)

// WithResultRecorder reports finished games to r.
func WithResultRecorder(r ResultRecorder) ManagerOption {
	return func(m *Manager) { m.results = r }
}

// WithSeatReserver reserves both seats on creation and releases them when
// the game ends.
func WithSeatReserver(s SeatReserver) ManagerOption {
	return func(m *Manager) { m.seats = s }
}

// WithReplayRecorder records every committed record and saves the replay
// when the game ends.
func WithReplayRecorder(r *ReplayRecorder) ManagerOption {
	return func(m *Manager) { m.replays = r }
}

// Manager serializes actions per game: load the current record, apply the
// action, commit with the loaded version, then publish the events.
type Manager struct {
	engine  *Engine
	store   Store
	bus     *rules.EventBus
	logger  *zap.Logger
	results ResultRecorder
	seats   SeatReserver
	replays *ReplayRecorder

	mu    sync.Mutex
	locks map[string]*gameLock
}

// gameLock serializes actions on one game. refs counts the callers holding
// or waiting for it; the entry is dropped when the last one leaves.
type gameLock struct {
	sync.Mutex
	refs int
}

// NewManager wires an engine to a store.
func NewManager(engine *Engine, store Store, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		engine: engine,
		store:  store,
		bus:    rules.NewEventBus(),
		logger: logger,
		locks:  make(map[string]*gameLock),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Events returns the bus every committed event is published on.
func (m *Manager) Events() *rules.EventBus {
	return m.bus
}

// Engine returns the engine the manager applies actions with.
func (m *Manager) Engine() *Engine {
	return m.engine
}

func (m *Manager) lockGame(gameID string) *gameLock {
	m.mu.Lock()
	lock, ok := m.locks[gameID]
	if !ok {
		lock = &gameLock{}
		m.locks[gameID] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.Lock()
	return lock
}

func (m *Manager) unlockGame(gameID string, lock *gameLock) {
	lock.Unlock()

	m.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(m.locks, gameID)
	}
	m.mu.Unlock()
}

// CreateGame starts a new game between players with the given hands.
func (m *Manager) CreateGame(ctx context.Context, players [2]string, hands [2][]Unit) (*GameRecord, error) {
	gameID := uuid.New().String()

	rec, events, err := m.engine.NewGame(gameID, players, hands)
	if err != nil {
		return nil, err
	}

	if m.seats != nil {
		if err := m.seats.Reserve(ctx, gameID, players); err != nil {
			return nil, fmt.Errorf("failed to reserve seats: %w", err)
		}
	}

	if err := m.store.Create(ctx, rec); err != nil {
		if m.seats != nil {
			if rerr := m.seats.Release(ctx, gameID, players); rerr != nil {
				m.logger.Warn("failed to release seats after store error",
					zap.String("game_id", gameID),
					zap.Error(rerr),
				)
			}
		}
		return nil, fmt.Errorf("failed to store game %s: %w", gameID, err)
	}

	if m.replays != nil {
		m.replays.StartRecording(rec)
	}

	m.logger.Info("game created",
		zap.String("game_id", gameID),
		zap.String("player_a", players[0]),
		zap.String("player_b", players[1]),
		zap.Int("hand_a", len(hands[0])),
		zap.Int("hand_b", len(hands[1])),
	)

	m.publish(events)
	return rec.Clone(), nil
}

// Get returns the current record of a game.
func (m *Manager) Get(ctx context.Context, gameID string) (*GameRecord, error) {
	rec, _, err := m.store.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Submit applies one action for actor and commits the result. Rejections are
// returned unchanged and leave the stored record untouched.
func (m *Manager) Submit(ctx context.Context, gameID, actor string, action Action) (*GameRecord, error) {
	lock := m.lockGame(gameID)
	defer m.unlockGame(gameID, lock)

	rec, version, err := m.store.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}

	next, events, err := m.engine.Apply(rec, actor, action)
	if err != nil {
		if IsRejection(err) {
			m.logger.Debug("action rejected",
				zap.String("game_id", gameID),
				zap.String("player_id", actor),
				zap.String("action", actionName(action)),
				zap.Error(err),
			)
		}
		return nil, err
	}

	if _, err := m.store.Save(ctx, next, version); err != nil {
		return nil, fmt.Errorf("failed to commit game %s: %w", gameID, err)
	}

	fields := []zap.Field{
		zap.String("game_id", gameID),
		zap.String("player_id", actor),
		zap.String("action", actionName(action)),
		zap.Int("turn", next.Turn),
	}
	if sum, err := next.ComputeChecksum(); err == nil {
		fields = append(fields, zap.String("checksum", sum.Hash))
	}
	m.logger.Info("action applied", fields...)

	if m.replays != nil {
		m.replays.RecordState(next)
	}
	m.publish(events)

	if !rec.IsOver() && next.IsOver() {
		m.finish(ctx, next)
	}
	return next.Clone(), nil
}

// Concede ends a game on behalf of actor.
func (m *Manager) Concede(ctx context.Context, gameID, actor string) (*GameRecord, error) {
	return m.Submit(ctx, gameID, actor, Concede{})
}

// Replay returns a private copy of a game's replay: the live recording while
// the game runs, the saved file once it has ended.
func (m *Manager) Replay(ctx context.Context, gameID string) (*Replay, error) {
	if m.replays == nil {
		return nil, ErrReplaysDisabled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Game ids are UUIDs; anything else never names a replay file.
	if _, err := uuid.Parse(gameID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrReplayNotFound, gameID)
	}

	if live, ok := m.replays.Replay(gameID); ok {
		return live.Copy(), nil
	}
	replay, err := m.replays.LoadReplay(gameID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrReplayNotFound, gameID)
		}
		return nil, err
	}
	return replay, nil
}

// finish runs the termination notification. Failures are logged; the game
// record is already committed.
func (m *Manager) finish(ctx context.Context, rec *GameRecord) {
	result, _ := Outcome(rec)

	fields := []zap.Field{
		zap.String("game_id", rec.ID),
		zap.String("reason", rec.EndReason.String()),
		zap.Int("turn", rec.Turn),
		zap.Int("health_a", rec.Health[rules.SideA]),
		zap.Int("health_b", rec.Health[rules.SideB]),
	}
	if !result.Draw() {
		fields = append(fields, zap.String("winner", result.WinnerID()))
	}
	m.logger.Info("game over", fields...)

	if m.results != nil {
		if err := m.results.RecordResult(ctx, result); err != nil {
			m.logger.Error("failed to record game result",
				zap.String("game_id", rec.ID),
				zap.Error(err),
			)
		}
	}
	if m.seats != nil {
		if err := m.seats.Release(ctx, rec.ID, rec.Players); err != nil {
			m.logger.Warn("failed to release seats",
				zap.String("game_id", rec.ID),
				zap.Error(err),
			)
		}
	}
	if m.replays != nil {
		if err := m.replays.SaveReplay(rec.ID); err != nil {
			m.logger.Warn("failed to save replay",
				zap.String("game_id", rec.ID),
				zap.Error(err),
			)
		}
	}
}

func (m *Manager) publish(events []rules.Event) {
	now := time.Now().UTC()
	for i := range events {
		events[i].ID = uuid.New().String()
		events[i].Timestamp = now
		if events[i].Metadata == nil {
			events[i].Metadata = map[string]string{}
		}
		events[i].Metadata["sequence"] = strconv.Itoa(i)
	}
	m.bus.PublishBatch(events)
}

// IsNotFound reports whether err means the game does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGameNotFound)
}
