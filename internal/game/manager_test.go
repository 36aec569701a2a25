package game_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gridduel/duel-server-go/internal/game"
	"github.com/gridduel/duel-server-go/internal/game/rules"
	"github.com/gridduel/duel-server-go/internal/leaderboard"
	"github.com/gridduel/duel-server-go/internal/repository"
)

var striker = game.Unit{Name: "Vanguard", Health: 10, Attack: 10, ManaCost: 1}

type recordingResults struct {
	mu      sync.Mutex
	results []game.Result
	err     error
}

func (r *recordingResults) RecordResult(ctx context.Context, result game.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return r.err
}

func newManager(t *testing.T, opts ...game.ManagerOption) (*game.Manager, *repository.MemoryGameStore) {
	t.Helper()
	store := repository.NewMemoryGameStore()
	m := game.NewManager(game.NewEngine(game.DefaultRules()), store, zaptest.NewLogger(t), opts...)
	return m, store
}

func hands() [2][]game.Unit {
	return [2][]game.Unit{{striker}, {striker}}
}

func TestManagerCreateAndSubmit(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	var seen []rules.Event
	m.Events().Subscribe(func(evt rules.Event) { seen = append(seen, evt) })

	rec, err := m.CreateGame(ctx, [2]string{"alice", "bob"}, hands())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 1, store.Count())
	require.Len(t, seen, 1)
	assert.Equal(t, rules.EventGameCreated, seen[0].Type)
	assert.NotEmpty(t, seen[0].ID)
	assert.False(t, seen[0].Timestamp.IsZero())

	next, err := m.Submit(ctx, rec.ID, "alice", game.PlayCard{HandIndex: 0, Column: 6})
	require.NoError(t, err)
	assert.True(t, next.Board[rules.SideA][6].Occupied)

	stored, err := m.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Mana[rules.SideA].Available)

	types := make([]rules.EventType, len(seen))
	for i, evt := range seen {
		types[i] = evt.Type
	}
	assert.Equal(t, []rules.EventType{rules.EventGameCreated, rules.EventManaSpent, rules.EventCardPlayed}, types)
	assert.Equal(t, rec.ID, seen[2].GameID)
}

func TestManagerRejectionLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)
	rec, err := m.CreateGame(ctx, [2]string{"alice", "bob"}, hands())
	require.NoError(t, err)

	_, err = m.Submit(ctx, rec.ID, "bob", game.EndTurn{})
	assert.ErrorIs(t, err, game.ErrNotYourTurn)

	_, version, err := store.Load(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	_, err = m.Submit(ctx, "missing", "alice", game.EndTurn{})
	assert.True(t, game.IsNotFound(err))
}

func TestManagerSubmitNilAction(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)
	rec, err := m.CreateGame(ctx, [2]string{"alice", "bob"}, hands())
	require.NoError(t, err)

	for _, action := range []game.Action{nil, (*game.PlayCard)(nil), (*game.EndTurn)(nil)} {
		var next *game.GameRecord
		require.NotPanics(t, func() {
			next, err = m.Submit(ctx, rec.ID, "alice", action)
		})
		assert.ErrorIs(t, err, game.ErrUnknownAction)
		assert.Nil(t, next)
	}

	_, version, err := store.Load(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestManagerCreateRejectsBadSetup(t *testing.T) {
	m, store := newManager(t)
	_, err := m.CreateGame(context.Background(), [2]string{"alice", "alice"}, hands())
	assert.ErrorIs(t, err, game.ErrInvalidSetup)
	assert.Equal(t, 0, store.Count())
}

func TestManagerReportsFinishedGames(t *testing.T) {
	ctx := context.Background()
	results := &recordingResults{}
	dir := t.TempDir()
	recorder := game.NewReplayRecorder(zaptest.NewLogger(t), dir)
	m, _ := newManager(t, game.WithResultRecorder(results), game.WithReplayRecorder(recorder))

	rec, err := m.CreateGame(ctx, [2]string{"alice", "bob"}, hands())
	require.NoError(t, err)

	attack := game.Attack{
		Attacker: game.Position{Side: rules.SideA, Column: 0},
		Target:   game.HeroTarget(rules.SideB),
	}
	steps := []struct {
		actor  string
		action game.Action
	}{
		{"alice", game.PlayCard{HandIndex: 0, Column: 0}},
		{"alice", game.EndTurn{}},
		{"bob", game.EndTurn{}},
		{"alice", attack},
		{"alice", game.EndTurn{}},
		{"bob", game.EndTurn{}},
		{"alice", attack},
		{"alice", game.EndTurn{}},
		{"bob", game.EndTurn{}},
		{"alice", attack},
	}
	var last *game.GameRecord
	for _, step := range steps {
		last, err = m.Submit(ctx, rec.ID, step.actor, step.action)
		require.NoError(t, err, "%s by %s", step.action.Type(), step.actor)
	}

	assert.True(t, last.IsOver())
	require.Len(t, results.results, 1)
	assert.Equal(t, "alice", results.results[0].WinnerID())
	assert.Equal(t, 0, results.results[0].Health[rules.SideB])

	_, err = m.Submit(ctx, rec.ID, "bob", game.EndTurn{})
	assert.ErrorIs(t, err, game.ErrGameAlreadyOver)
	assert.Len(t, results.results, 1)

	replay, err := game.LoadReplayFromFile(dir, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, len(steps)+1, replay.Size())
	assert.True(t, replay.Final().IsOver())
	assert.FileExists(t, filepath.Join(dir, rec.ID+".replay"))
}

func TestManagerResultRecorderFailureDoesNotFailAction(t *testing.T) {
	ctx := context.Background()
	results := &recordingResults{err: errors.New("ledger offline")}
	m, _ := newManager(t, game.WithResultRecorder(results))
	rec, err := m.CreateGame(ctx, [2]string{"alice", "bob"}, hands())
	require.NoError(t, err)

	over, err := m.Concede(ctx, rec.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, game.EndReasonConceded, over.EndReason)
	require.Len(t, results.results, 1)
	assert.Equal(t, "alice", results.results[0].WinnerID())
}

func TestManagerWithLedger(t *testing.T) {
	ctx := context.Background()
	ledger := leaderboard.NewLedger(repository.NewMemoryStatsRepository(), zaptest.NewLogger(t))
	for _, p := range []string{"alice", "bob", "carol"} {
		require.NoError(t, ledger.Register(ctx, p, p))
	}
	m, store := newManager(t, game.WithResultRecorder(ledger), game.WithSeatReserver(ledger))

	rec, err := m.CreateGame(ctx, [2]string{"alice", "bob"}, hands())
	require.NoError(t, err)

	_, err = m.CreateGame(ctx, [2]string{"carol", "bob"}, hands())
	assert.ErrorIs(t, err, repository.ErrPlayerBusy)
	_, err = m.CreateGame(ctx, [2]string{"carol", "dave"}, hands())
	assert.ErrorIs(t, err, repository.ErrPlayerNotFound)
	assert.Equal(t, 1, store.Count())

	_, err = m.Concede(ctx, rec.ID, "alice")
	require.NoError(t, err)

	bob, err := ledger.Player(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, leaderboard.WinPoints, bob.Score)
	assert.Empty(t, bob.ActiveGame)

	_, err = m.CreateGame(ctx, [2]string{"carol", "bob"}, hands())
	require.NoError(t, err)
}

func TestManagerSerializesConcurrentSubmits(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	rec, err := m.CreateGame(ctx, [2]string{"alice", "bob"}, hands())
	require.NoError(t, err)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Submit(ctx, rec.ID, "alice", game.EndTurn{}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, game.ErrNotYourTurn)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	final, err := m.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, final.Turn)
	assert.Zero(t, m.LockCount())
}

func TestManagerDropsIdleGameLocks(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	rec, err := m.CreateGame(ctx, [2]string{"alice", "bob"}, hands())
	require.NoError(t, err)

	_, err = m.Submit(ctx, rec.ID, "alice", game.EndTurn{})
	require.NoError(t, err)
	_, err = m.Submit(ctx, rec.ID, "alice", game.EndTurn{})
	assert.ErrorIs(t, err, game.ErrNotYourTurn)
	_, err = m.Submit(ctx, "missing", "alice", game.EndTurn{})
	assert.True(t, game.IsNotFound(err))

	assert.Zero(t, m.LockCount(), "games without a pending action hold no lock entry")
}

func TestManagerReplay(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m, _ := newManager(t, game.WithReplayRecorder(game.NewReplayRecorder(zaptest.NewLogger(t), dir)))
	rec, err := m.CreateGame(ctx, [2]string{"alice", "bob"}, hands())
	require.NoError(t, err)
	_, err = m.Submit(ctx, rec.ID, "alice", game.EndTurn{})
	require.NoError(t, err)

	live, err := m.Replay(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, live.Size())
	live.Next()
	again, err := m.Replay(ctx, rec.ID)
	require.NoError(t, err)
	assert.Zero(t, again.CurrentIndex)

	_, err = m.Concede(ctx, rec.ID, "alice")
	require.NoError(t, err)
	saved, err := m.Replay(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, saved.Size())
	assert.True(t, saved.Final().IsOver())

	_, err = m.Replay(ctx, "../"+rec.ID)
	assert.ErrorIs(t, err, game.ErrReplayNotFound)
	_, err = m.Replay(ctx, "0b6f4c1e-2f51-4d83-9d0a-3c1f6a8e9b10")
	assert.ErrorIs(t, err, game.ErrReplayNotFound)

	plain, _ := newManager(t)
	_, err = plain.Replay(ctx, rec.ID)
	assert.ErrorIs(t, err, game.ErrReplaysDisabled)
}
