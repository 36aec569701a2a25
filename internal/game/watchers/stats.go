package watchers

import (
	"sync"

	"go.uber.org/zap"

	"github.com/gridduel/duel-server-go/internal/game/rules"
)

// GameStatsKey is the registry key of GameStatsWatcher.
const GameStatsKey = "game_stats"

// SideStats counts what one side did during a game.
type SideStats struct {
	CardsPlayed     int
	ManaSpent       int
	Attacks         int
	HeroDamageDealt int
	UnitDamageDealt int
	UnitsLost       int
}

// GameStats is the running tally of one game.
type GameStats struct {
	GameID string
	Turn   int
	Sides  [2]SideStats
}

// GameStatsWatcher tallies per-side statistics for every live game. A game's
// tally is logged and dropped when its GAME_OVER event arrives.
type GameStatsWatcher struct {
	logger *zap.Logger

	mu    sync.RWMutex
	games map[string]*GameStats
}

// NewGameStatsWatcher creates an empty watcher.
func NewGameStatsWatcher(logger *zap.Logger) *GameStatsWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameStatsWatcher{
		logger: logger,
		games:  make(map[string]*GameStats),
	}
}

// Key implements rules.Watcher.
func (w *GameStatsWatcher) Key() string {
	return GameStatsKey
}

// Watch implements rules.Watcher. Damage and destruction events name the
// side that was hit, so damage is credited to the opponent.
func (w *GameStatsWatcher) Watch(event rules.Event) {
	if event.GameID == "" || !event.Side.Valid() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	stats, ok := w.games[event.GameID]
	if !ok {
		stats = &GameStats{GameID: event.GameID}
		w.games[event.GameID] = stats
	}
	if event.Turn > stats.Turn {
		stats.Turn = event.Turn
	}

	side := event.Side
	switch event.Type {
	case rules.EventCardPlayed:
		stats.Sides[side].CardsPlayed++
	case rules.EventManaSpent:
		stats.Sides[side].ManaSpent += event.Amount
	case rules.EventAttackDeclared:
		stats.Sides[side].Attacks++
	case rules.EventHeroDamaged:
		stats.Sides[side.Opponent()].HeroDamageDealt += event.Amount
	case rules.EventUnitDamaged:
		stats.Sides[side.Opponent()].UnitDamageDealt += event.Amount
	case rules.EventUnitDestroyed:
		stats.Sides[side].UnitsLost++
	case rules.EventGameOver:
		w.logger.Info("game statistics",
			zap.String("game_id", stats.GameID),
			zap.Int("turn", stats.Turn),
			zap.Any("side_a", stats.Sides[rules.SideA]),
			zap.Any("side_b", stats.Sides[rules.SideB]),
		)
		delete(w.games, event.GameID)
	}
}

// Stats returns a copy of the tally for a live game.
func (w *GameStatsWatcher) Stats(gameID string) (GameStats, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	stats, ok := w.games[gameID]
	if !ok {
		return GameStats{}, false
	}
	return *stats, true
}

// Live returns the number of games being tallied.
func (w *GameStatsWatcher) Live() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.games)
}

var _ rules.Watcher = (*GameStatsWatcher)(nil)
