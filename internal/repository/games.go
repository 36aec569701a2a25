package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridduel/duel-server-go/internal/game"
)

// MemoryGameStore keeps records in process memory. Records are copied on the
// way in and out so callers never share state with the store.
type MemoryGameStore struct {
	mu    sync.RWMutex
	games map[string]memoryGame
}

type memoryGame struct {
	rec     *game.GameRecord
	version int64
}

// NewMemoryGameStore creates an empty store.
func NewMemoryGameStore() *MemoryGameStore {
	return &MemoryGameStore{games: make(map[string]memoryGame)}
}

func (s *MemoryGameStore) Create(ctx context.Context, rec *game.GameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.games[rec.ID]; exists {
		return fmt.Errorf("%w: %s", game.ErrGameExists, rec.ID)
	}
	s.games[rec.ID] = memoryGame{rec: rec.Clone(), version: 1}
	return nil
}

func (s *MemoryGameStore) Load(ctx context.Context, gameID string) (*game.GameRecord, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.games[gameID]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", game.ErrGameNotFound, gameID)
	}
	return stored.rec.Clone(), stored.version, nil
}

func (s *MemoryGameStore) Save(ctx context.Context, rec *game.GameRecord, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.games[rec.ID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", game.ErrGameNotFound, rec.ID)
	}
	if stored.version != expectedVersion {
		return 0, fmt.Errorf("%w: %s at version %d, expected %d",
			game.ErrVersionConflict, rec.ID, stored.version, expectedVersion)
	}
	next := memoryGame{rec: rec.Clone(), version: stored.version + 1}
	s.games[rec.ID] = next
	return next.version, nil
}

// Count returns the number of stored games.
func (s *MemoryGameStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

// PostgresGameStore persists gob-encoded records in the games table.
type PostgresGameStore struct {
	pool *pgxpool.Pool
}

// NewPostgresGameStore creates a store backed by pool.
func NewPostgresGameStore(pool *pgxpool.Pool) *PostgresGameStore {
	return &PostgresGameStore{pool: pool}
}

func (s *PostgresGameStore) Create(ctx context.Context, rec *game.GameRecord) error {
	data, err := game.EncodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO games (id, version, phase, turn, state)
		VALUES ($1, 1, $2, $3, $4)
	`, rec.ID, rec.Phase.String(), rec.Turn, data)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", game.ErrGameExists, rec.ID)
		}
		return fmt.Errorf("failed to insert game %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresGameStore) Load(ctx context.Context, gameID string) (*game.GameRecord, int64, error) {
	var (
		version int64
		data    []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT version, state FROM games WHERE id = $1`, gameID).Scan(&version, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, fmt.Errorf("%w: %s", game.ErrGameNotFound, gameID)
		}
		return nil, 0, fmt.Errorf("failed to load game %s: %w", gameID, err)
	}

	rec, err := game.DecodeRecord(data)
	if err != nil {
		return nil, 0, err
	}
	return rec, version, nil
}

func (s *PostgresGameStore) Save(ctx context.Context, rec *game.GameRecord, expectedVersion int64) (int64, error) {
	data, err := game.EncodeRecord(rec)
	if err != nil {
		return 0, err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE games
		SET version = version + 1, phase = $3, turn = $4, state = $5, updated_at = now()
		WHERE id = $1 AND version = $2
	`, rec.ID, expectedVersion, rec.Phase.String(), rec.Turn, data)
	if err != nil {
		return 0, fmt.Errorf("failed to save game %s: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE id = $1)`, rec.ID).Scan(&exists); err != nil {
			return 0, fmt.Errorf("failed to check game %s: %w", rec.ID, err)
		}
		if !exists {
			return 0, fmt.Errorf("%w: %s", game.ErrGameNotFound, rec.ID)
		}
		return 0, fmt.Errorf("%w: %s expected version %d", game.ErrVersionConflict, rec.ID, expectedVersion)
	}
	return expectedVersion + 1, nil
}

var (
	_ game.Store = (*MemoryGameStore)(nil)
	_ game.Store = (*PostgresGameStore)(nil)
	_ game.Store = (*RedisGameStore)(nil)
)
