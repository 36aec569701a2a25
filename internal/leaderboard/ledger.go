package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gridduel/duel-server-go/internal/game"
	"github.com/gridduel/duel-server-go/internal/repository"
)

const (
	// WinPoints is added to the winner's score.
	WinPoints = 5
	// LossPoints is taken from the loser's score; scores never drop below zero.
	LossPoints = 5
	// MaxScore caps every score.
	MaxScore = 65535
	// MaxNameLength is the longest display name accepted, in bytes.
	MaxNameLength = 20
)

var (
	ErrNameRequired = errors.New("display name is required")
	ErrNameTooLong  = fmt.Errorf("display name exceeds %d bytes", MaxNameLength)
)

// Ledger keeps player scores and makes sure nobody plays two games at once.
// It is the scoring collaborator a game.Manager reports finished games to.
type Ledger struct {
	repo   repository.StatsRepository
	logger *zap.Logger
}

// NewLedger creates a ledger over repo.
func NewLedger(repo repository.StatsRepository, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{repo: repo, logger: logger}
}

// Register adds a player with a display name and a score of zero.
func (l *Ledger) Register(ctx context.Context, playerID, name string) error {
	if strings.TrimSpace(playerID) == "" {
		return fmt.Errorf("player id is required")
	}
	if strings.TrimSpace(name) == "" {
		return ErrNameRequired
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %q is %d bytes", ErrNameTooLong, name, len(name))
	}
	if err := l.repo.Register(ctx, playerID, name); err != nil {
		return err
	}

	l.logger.Info("player registered",
		zap.String("player_id", playerID),
		zap.String("name", name),
	)
	return nil
}

// Player returns one player's stats.
func (l *Ledger) Player(ctx context.Context, playerID string) (*repository.PlayerStats, error) {
	return l.repo.Get(ctx, playerID)
}

// Reserve seats both players in gameID. It fails if either is unknown or is
// still seated in another game.
func (l *Ledger) Reserve(ctx context.Context, gameID string, players [2]string) error {
	if err := l.repo.ReserveGame(ctx, gameID, players[:]); err != nil {
		return err
	}
	l.logger.Debug("seats reserved",
		zap.String("game_id", gameID),
		zap.Strings("players", players[:]),
	)
	return nil
}

// Release frees both seats held for gameID.
func (l *Ledger) Release(ctx context.Context, gameID string, players [2]string) error {
	return l.repo.ReleaseGame(ctx, gameID, players[:])
}

// RecordResult scores a finished game. Draws are counted without moving
// either score.
func (l *Ledger) RecordResult(ctx context.Context, result game.Result) error {
	var changes []repository.ScoreChange
	if result.Draw() {
		for _, player := range result.Players {
			changes = append(changes, repository.ScoreChange{
				PlayerID: player,
				Max:      MaxScore,
				Outcome:  repository.OutcomeDraw,
			})
		}
	} else {
		changes = []repository.ScoreChange{
			{PlayerID: result.WinnerID(), Delta: WinPoints, Max: MaxScore, Outcome: repository.OutcomeWin},
			{PlayerID: result.LoserID(), Delta: -LossPoints, Max: MaxScore, Outcome: repository.OutcomeLoss},
		}
	}

	if err := l.repo.RecordOutcome(ctx, result.GameID, changes); err != nil {
		return fmt.Errorf("failed to record result of game %s: %w", result.GameID, err)
	}

	l.logger.Info("game result recorded",
		zap.String("game_id", result.GameID),
		zap.String("reason", result.Reason.String()),
		zap.Bool("draw", result.Draw()),
		zap.String("winner", result.WinnerID()),
	)
	return nil
}

// Standings returns up to limit players ordered by score, highest first.
// A limit of zero or less returns everyone.
func (l *Ledger) Standings(ctx context.Context, limit int) ([]repository.PlayerStats, error) {
	return l.repo.Top(ctx, limit)
}

var (
	_ game.ResultRecorder = (*Ledger)(nil)
	_ game.SeatReserver   = (*Ledger)(nil)
)
