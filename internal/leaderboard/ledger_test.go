package leaderboard

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gridduel/duel-server-go/internal/game"
	"github.com/gridduel/duel-server-go/internal/game/rules"
	"github.com/gridduel/duel-server-go/internal/repository"
)

func newLedger(t *testing.T, players ...string) (*Ledger, *repository.MemoryStatsRepository) {
	t.Helper()
	repo := repository.NewMemoryStatsRepository()
	ledger := NewLedger(repo, zaptest.NewLogger(t))
	for _, p := range players {
		require.NoError(t, ledger.Register(context.Background(), p, strings.ToUpper(p)))
	}
	return ledger, repo
}

func won(gameID string, winner rules.Side) game.Result {
	return game.Result{
		GameID:  gameID,
		Players: [2]string{"alice", "bob"},
		Reason:  game.EndReasonHeroDefeated,
		Winner:  &winner,
	}
}

func TestRegisterValidatesNames(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t)

	require.NoError(t, ledger.Register(ctx, "p1", strings.Repeat("x", MaxNameLength)))
	assert.ErrorIs(t, ledger.Register(ctx, "p2", strings.Repeat("x", MaxNameLength+1)), ErrNameTooLong)
	assert.ErrorIs(t, ledger.Register(ctx, "p3", "  "), ErrNameRequired)
	assert.Error(t, ledger.Register(ctx, "", "Nobody"))
	assert.ErrorIs(t, ledger.Register(ctx, "p1", "Again"), repository.ErrPlayerExists)
}

func TestRecordResultScoresWinAndLoss(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t, "alice", "bob")

	require.NoError(t, ledger.Reserve(ctx, "g1", [2]string{"alice", "bob"}))
	require.NoError(t, ledger.RecordResult(ctx, won("g1", rules.SideA)))

	alice, err := ledger.Player(ctx, "alice")
	require.NoError(t, err)
	bob, err := ledger.Player(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, WinPoints, alice.Score)
	assert.Equal(t, 1, alice.Wins)
	assert.Equal(t, 0, bob.Score, "scores never go below zero")
	assert.Equal(t, 1, bob.Losses)
	assert.Empty(t, alice.ActiveGame)
	assert.Empty(t, bob.ActiveGame)

	require.NoError(t, ledger.RecordResult(ctx, won("g2", rules.SideB)))
	alice, err = ledger.Player(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, alice.Score)
}

func TestRecordResultCapsScore(t *testing.T) {
	ctx := context.Background()
	ledger, repo := newLedger(t, "alice", "bob")
	require.NoError(t, repo.RecordOutcome(ctx, "seed", []repository.ScoreChange{
		{PlayerID: "alice", Delta: MaxScore - 2, Max: MaxScore, Outcome: repository.OutcomeWin},
	}))

	require.NoError(t, ledger.RecordResult(ctx, won("g1", rules.SideA)))
	alice, err := ledger.Player(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, MaxScore, alice.Score)
}

func TestRecordResultDraw(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t, "alice", "bob")
	require.NoError(t, ledger.RecordResult(ctx, won("g1", rules.SideA)))

	draw := game.Result{GameID: "g2", Players: [2]string{"alice", "bob"}, Reason: game.EndReasonMutualDefeat}
	require.NoError(t, ledger.RecordResult(ctx, draw))

	alice, err := ledger.Player(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, WinPoints, alice.Score)
	assert.Equal(t, 1, alice.Draws)

	err = ledger.RecordResult(ctx, game.Result{GameID: "g3", Players: [2]string{"alice", "ghost"}})
	assert.ErrorIs(t, err, repository.ErrPlayerNotFound)
}

func TestReserveBlocksSecondGame(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t, "alice", "bob", "carol")

	require.NoError(t, ledger.Reserve(ctx, "g1", [2]string{"alice", "bob"}))
	assert.ErrorIs(t, ledger.Reserve(ctx, "g2", [2]string{"carol", "alice"}), repository.ErrPlayerBusy)
	assert.ErrorIs(t, ledger.Reserve(ctx, "g2", [2]string{"carol", "zed"}), repository.ErrPlayerNotFound)

	require.NoError(t, ledger.Release(ctx, "g1", [2]string{"alice", "bob"}))
	require.NoError(t, ledger.Reserve(ctx, "g2", [2]string{"carol", "alice"}))
}

func TestStandings(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t, "alice", "bob")
	require.NoError(t, ledger.RecordResult(ctx, won("g1", rules.SideB)))

	standings, err := ledger.Standings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, standings, 2)
	assert.Equal(t, "bob", standings[0].PlayerID)
	assert.Equal(t, "BOB", standings[0].Name)
	assert.Equal(t, "alice", standings[1].PlayerID)
}
