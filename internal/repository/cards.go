package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridduel/duel-server-go/internal/game/catalog"
)

// CardRepository mirrors the card catalog into the cards table so reporting
// queries can join against it.
type CardRepository struct {
	pool *pgxpool.Pool
}

func NewCardRepository(pool *pgxpool.Pool) *CardRepository {
	return &CardRepository{pool: pool}
}

// Upsert writes every card in one transaction, replacing existing rows with
// the same name. It returns the number of rows written.
func (r *CardRepository) Upsert(ctx context.Context, cards []catalog.Card) (int, error) {
	written := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, card := range cards {
			batch.Queue(`
				INSERT INTO cards (name, health, attack, mana_cost, updated_at)
				VALUES ($1, $2, $3, $4, now())
				ON CONFLICT (name) DO UPDATE
				SET health = EXCLUDED.health,
				    attack = EXCLUDED.attack,
				    mana_cost = EXCLUDED.mana_cost,
				    updated_at = now()`,
				card.Name, card.Health, card.Attack, card.ManaCost,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for _, card := range cards {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to upsert card %q: %w", card.Name, err)
			}
			written++
		}
		return results.Close()
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// Count returns the number of stored cards.
func (r *CardRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return n, nil
}
