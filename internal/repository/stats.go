package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrPlayerExists   = errors.New("player already registered")
	ErrPlayerBusy     = errors.New("player already has an active game")
)

// Outcome is one player's result in a finished game.
type Outcome int

const (
	OutcomeWin Outcome = iota
	OutcomeLoss
	OutcomeDraw
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "WIN"
	case OutcomeLoss:
		return "LOSS"
	case OutcomeDraw:
		return "DRAW"
	default:
		return fmt.Sprintf("OUTCOME_%d", int(o))
	}
}

// PlayerStats is one leaderboard row.
type PlayerStats struct {
	PlayerID   string
	Name       string
	Score      int
	Wins       int
	Losses     int
	Draws      int
	ActiveGame string
	UpdatedAt  time.Time
}

// ScoreChange adjusts one player's score after a game. The resulting score
// is clamped to [0, Max].
type ScoreChange struct {
	PlayerID string
	Delta    int
	Max      int
	Outcome  Outcome
}

// StatsRepository stores player scores and active-game seating.
type StatsRepository interface {
	Register(ctx context.Context, playerID, name string) error
	Get(ctx context.Context, playerID string) (*PlayerStats, error)
	// ReserveGame seats every player in gameID, or none of them if any is
	// unknown or already seated elsewhere.
	ReserveGame(ctx context.Context, gameID string, playerIDs []string) error
	// ReleaseGame clears the seat of every player currently seated in gameID.
	ReleaseGame(ctx context.Context, gameID string, playerIDs []string) error
	// RecordOutcome applies the changes and clears the players' seats in gameID.
	RecordOutcome(ctx context.Context, gameID string, changes []ScoreChange) error
	Top(ctx context.Context, limit int) ([]PlayerStats, error)
}

func clampScore(score, ceiling int) int {
	if score < 0 {
		return 0
	}
	if ceiling > 0 && score > ceiling {
		return ceiling
	}
	return score
}

func rankStats(stats []PlayerStats) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Score != stats[j].Score {
			return stats[i].Score > stats[j].Score
		}
		if stats[i].Name != stats[j].Name {
			return stats[i].Name < stats[j].Name
		}
		return stats[i].PlayerID < stats[j].PlayerID
	})
}

// MemoryStatsRepository is an in-process StatsRepository.
type MemoryStatsRepository struct {
	mu      sync.Mutex
	players map[string]*PlayerStats
	now     func() time.Time
}

// NewMemoryStatsRepository creates an empty repository.
func NewMemoryStatsRepository() *MemoryStatsRepository {
	return &MemoryStatsRepository{
		players: make(map[string]*PlayerStats),
		now:     time.Now,
	}
}

func (r *MemoryStatsRepository) Register(ctx context.Context, playerID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[playerID]; exists {
		return fmt.Errorf("%w: %s", ErrPlayerExists, playerID)
	}
	r.players[playerID] = &PlayerStats{PlayerID: playerID, Name: name, UpdatedAt: r.now()}
	return nil
}

func (r *MemoryStatsRepository) Get(ctx context.Context, playerID string) (*PlayerStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	out := *p
	return &out, nil
}

func (r *MemoryStatsRepository) ReserveGame(ctx context.Context, gameID string, playerIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range playerIDs {
		p, ok := r.players[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
		}
		if p.ActiveGame != "" && p.ActiveGame != gameID {
			return fmt.Errorf("%w: %s is in %s", ErrPlayerBusy, id, p.ActiveGame)
		}
	}
	now := r.now()
	for _, id := range playerIDs {
		r.players[id].ActiveGame = gameID
		r.players[id].UpdatedAt = now
	}
	return nil
}

func (r *MemoryStatsRepository) ReleaseGame(ctx context.Context, gameID string, playerIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range playerIDs {
		if p, ok := r.players[id]; ok && p.ActiveGame == gameID {
			p.ActiveGame = ""
			p.UpdatedAt = r.now()
		}
	}
	return nil
}

func (r *MemoryStatsRepository) RecordOutcome(ctx context.Context, gameID string, changes []ScoreChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range changes {
		if _, ok := r.players[c.PlayerID]; !ok {
			return fmt.Errorf("%w: %s", ErrPlayerNotFound, c.PlayerID)
		}
	}
	now := r.now()
	for _, c := range changes {
		p := r.players[c.PlayerID]
		p.Score = clampScore(p.Score+c.Delta, c.Max)
		switch c.Outcome {
		case OutcomeWin:
			p.Wins++
		case OutcomeLoss:
			p.Losses++
		case OutcomeDraw:
			p.Draws++
		}
		if p.ActiveGame == gameID {
			p.ActiveGame = ""
		}
		p.UpdatedAt = now
	}
	return nil
}

func (r *MemoryStatsRepository) Top(ctx context.Context, limit int) ([]PlayerStats, error) {
	r.mu.Lock()
	stats := make([]PlayerStats, 0, len(r.players))
	for _, p := range r.players {
		stats = append(stats, *p)
	}
	r.mu.Unlock()

	rankStats(stats)
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

// PostgresStatsRepository stores player stats in the player_stats table.
type PostgresStatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a PostgreSQL-backed repository.
func NewStatsRepository(pool *pgxpool.Pool) *PostgresStatsRepository {
	return &PostgresStatsRepository{pool: pool}
}

func (r *PostgresStatsRepository) Register(ctx context.Context, playerID, name string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO player_stats (player_id, name) VALUES ($1, $2)`, playerID, name)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrPlayerExists, playerID)
		}
		return fmt.Errorf("failed to register player %s: %w", playerID, err)
	}
	return nil
}

const statsColumns = `player_id, name, score, wins, losses, draws, active_game, updated_at`

func scanStats(row pgx.Row) (*PlayerStats, error) {
	var p PlayerStats
	if err := row.Scan(&p.PlayerID, &p.Name, &p.Score, &p.Wins, &p.Losses, &p.Draws, &p.ActiveGame, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresStatsRepository) Get(ctx context.Context, playerID string) (*PlayerStats, error) {
	p, err := scanStats(r.pool.QueryRow(ctx, `SELECT `+statsColumns+` FROM player_stats WHERE player_id = $1`, playerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
		}
		return nil, fmt.Errorf("failed to load player %s: %w", playerID, err)
	}
	return p, nil
}

func (r *PostgresStatsRepository) ReserveGame(ctx context.Context, gameID string, playerIDs []string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT player_id, active_game FROM player_stats
			WHERE player_id = ANY($1)
			ORDER BY player_id
			FOR UPDATE
		`, playerIDs)
		if err != nil {
			return fmt.Errorf("failed to lock players: %w", err)
		}
		seated := make(map[string]string, len(playerIDs))
		for rows.Next() {
			var id, active string
			if err := rows.Scan(&id, &active); err != nil {
				rows.Close()
				return err
			}
			seated[id] = active
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range playerIDs {
			active, ok := seated[id]
			if !ok {
				return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
			}
			if active != "" && active != gameID {
				return fmt.Errorf("%w: %s is in %s", ErrPlayerBusy, id, active)
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE player_stats SET active_game = $1, updated_at = now()
			WHERE player_id = ANY($2)
		`, gameID, playerIDs)
		return err
	})
}

func (r *PostgresStatsRepository) ReleaseGame(ctx context.Context, gameID string, playerIDs []string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE player_stats SET active_game = '', updated_at = now()
		WHERE player_id = ANY($2) AND active_game = $1
	`, gameID, playerIDs)
	if err != nil {
		return fmt.Errorf("failed to release game %s: %w", gameID, err)
	}
	return nil
}

func (r *PostgresStatsRepository) RecordOutcome(ctx context.Context, gameID string, changes []ScoreChange) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, c := range changes {
			ceiling := c.Max
			if ceiling <= 0 {
				ceiling = math.MaxInt32
			}
			tag, err := tx.Exec(ctx, `
				UPDATE player_stats SET
					score = LEAST(GREATEST(score + $2, 0), $3),
					wins = wins + $4,
					losses = losses + $5,
					draws = draws + $6,
					active_game = CASE WHEN active_game = $7 THEN '' ELSE active_game END,
					updated_at = now()
				WHERE player_id = $1
			`, c.PlayerID, c.Delta, ceiling,
				boolToInt(c.Outcome == OutcomeWin),
				boolToInt(c.Outcome == OutcomeLoss),
				boolToInt(c.Outcome == OutcomeDraw),
				gameID)
			if err != nil {
				return fmt.Errorf("failed to update player %s: %w", c.PlayerID, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: %s", ErrPlayerNotFound, c.PlayerID)
			}
		}
		return nil
	})
}

func (r *PostgresStatsRepository) Top(ctx context.Context, limit int) ([]PlayerStats, error) {
	query := `SELECT ` + statsColumns + ` FROM player_stats ORDER BY score DESC, name, player_id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings: %w", err)
	}
	defer rows.Close()

	var stats []PlayerStats
	for rows.Next() {
		p, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan standings: %w", err)
		}
		stats = append(stats, *p)
	}
	return stats, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	_ StatsRepository = (*MemoryStatsRepository)(nil)
	_ StatsRepository = (*PostgresStatsRepository)(nil)
)
