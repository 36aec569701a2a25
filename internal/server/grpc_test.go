package server

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/gridduel/duel-server-go/internal/config"
	"github.com/gridduel/duel-server-go/internal/game"
	"github.com/gridduel/duel-server-go/internal/game/catalog"
	"github.com/gridduel/duel-server-go/internal/game/rules"
	"github.com/gridduel/duel-server-go/internal/game/watchers"
	"github.com/gridduel/duel-server-go/internal/leaderboard"
	"github.com/gridduel/duel-server-go/internal/repository"
)

const adminPassword = "let-me-in"

type testEnv struct {
	client *DuelClient
	conn   *grpc.ClientConn
	games  *game.Manager
	ledger *leaderboard.Ledger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	cards, err := catalog.Default()
	require.NoError(t, err)

	ledger := leaderboard.NewLedger(repository.NewMemoryStatsRepository(), logger)
	games := game.NewManager(
		game.NewEngine(game.DefaultRules()),
		repository.NewMemoryGameStore(),
		logger,
		game.WithResultRecorder(ledger),
		game.WithSeatReserver(ledger),
		game.WithReplayRecorder(game.NewReplayRecorder(logger, t.TempDir())),
	)

	stats := watchers.NewGameStatsWatcher(logger)
	registry := rules.NewWatcherRegistry()
	registry.AddWatcher(stats)
	registry.Attach(games.Events())
	t.Cleanup(registry.Detach)

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := &config.Config{}
	cfg.Auth.AdminPasswordHash = string(hash)
	cfg.Server.GRPC.MaxConcurrentStreams = 16

	grpcServer, _ := NewGRPCServer(cfg, NewDuelServer(games, ledger, cards, logger, WithGameStats(stats)), logger)
	listener := bufconn.Listen(1 << 20)
	go func() {
		_ = grpcServer.Serve(listener)
	}()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &testEnv{client: NewDuelClient(conn), conn: conn, games: games, ledger: ledger}
}

func (env *testEnv) register(t *testing.T, players ...string) {
	t.Helper()
	for _, p := range players {
		_, err := env.client.RegisterPlayer(context.Background(), &RegisterPlayerRequest{PlayerID: p, Name: strings.ToUpper(p)})
		require.NoError(t, err)
	}
}

func (env *testEnv) newGame(t *testing.T, handA, handB []string) GameView {
	t.Helper()
	env.register(t, "alice", "bob")
	resp, err := env.client.CreateGame(context.Background(), &CreateGameRequest{
		PlayerA: "alice",
		PlayerB: "bob",
		HandA:   handA,
		HandB:   handB,
	})
	require.NoError(t, err)
	return resp.Game
}

func as(player string) context.Context {
	return WithPlayerID(context.Background(), player)
}

func intp(v int) *int {
	return &v
}

func requireStatus(t *testing.T, err error, code codes.Code, prefix string) {
	t.Helper()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok, "not a status error: %v", err)
	assert.Equal(t, code, st.Code(), st.Message())
	if prefix != "" {
		assert.True(t, strings.HasPrefix(st.Message(), prefix), "message %q lacks prefix %q", st.Message(), prefix)
	}
}

func TestCreateGameDealsDefaultDecks(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "bob")

	resp, err := env.client.CreateGame(context.Background(), &CreateGameRequest{PlayerA: "alice", PlayerB: "bob"})
	require.NoError(t, err)

	view := resp.Game
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, [2]string{"alice", "bob"}, view.Players)
	assert.Equal(t, 1, view.Turn)
	assert.Equal(t, "alice", view.ActivePlayer)
	assert.Equal(t, [2]int{30, 30}, view.Health)
	assert.Equal(t, ManaView{Cap: 1, Available: 1}, view.Mana[0])
	assert.Len(t, view.Hands[0], 10)
	assert.Len(t, view.Hands[1], 10)
	require.Len(t, view.Board[0], game.BoardColumns)
	for _, slot := range view.Board[0] {
		assert.Nil(t, slot)
	}
}

func TestCreateGameValidation(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "bob")
	ctx := context.Background()

	_, err := env.client.CreateGame(ctx, &CreateGameRequest{PlayerA: "alice"})
	requireStatus(t, err, codes.InvalidArgument, "")

	_, err = env.client.CreateGame(ctx, &CreateGameRequest{PlayerA: "alice", PlayerB: "bob", HandA: []string{"Dragon"}})
	requireStatus(t, err, codes.InvalidArgument, "")

	_, err = env.client.CreateGame(ctx, &CreateGameRequest{PlayerA: "alice", PlayerB: "bob", DeckB: "missing"})
	requireStatus(t, err, codes.InvalidArgument, "")

	_, err = env.client.CreateGame(ctx, &CreateGameRequest{PlayerA: "alice", PlayerB: "zed"})
	requireStatus(t, err, codes.NotFound, "")

	_, err = env.client.CreateGame(ctx, &CreateGameRequest{PlayerA: "alice", PlayerB: "bob"})
	require.NoError(t, err)
	_, err = env.client.CreateGame(ctx, &CreateGameRequest{PlayerA: "bob", PlayerB: "alice"})
	requireStatus(t, err, codes.FailedPrecondition, "")
}

func TestPlayCardOverGRPC(t *testing.T) {
	env := newTestEnv(t)
	view := env.newGame(t, []string{"Vanguard"}, []string{"Squire"})

	_, err := env.client.PlayCard(context.Background(), &PlayCardRequest{GameID: view.ID, Column: 3})
	requireStatus(t, err, codes.Unauthenticated, "")

	_, err = env.client.PlayCard(as("bob"), &PlayCardRequest{GameID: view.ID, Column: 3})
	requireStatus(t, err, codes.FailedPrecondition, string(game.CodeNotYourTurn))

	_, err = env.client.PlayCard(as("alice"), &PlayCardRequest{GameID: view.ID, Column: game.BoardColumns})
	requireStatus(t, err, codes.InvalidArgument, string(game.CodeInvalidPosition))

	resp, err := env.client.PlayCard(as("alice"), &PlayCardRequest{GameID: view.ID, Column: 3})
	require.NoError(t, err)
	placed := resp.Game.Board[0][3]
	require.NotNil(t, placed)
	assert.Equal(t, "Vanguard", placed.Name)
	assert.Equal(t, game.ReadinessJustPlaced.String(), placed.Readiness)
	assert.Equal(t, 0, resp.Game.Mana[0].Available)
	assert.Empty(t, resp.Game.Hands[0])
	require.NotNil(t, resp.Game.Stats)
	assert.Equal(t, SideStatsView{CardsPlayed: 1, ManaSpent: 1}, resp.Game.Stats.Sides[0])

	_, err = env.client.GetGame(context.Background(), &GetGameRequest{GameID: "missing"})
	requireStatus(t, err, codes.NotFound, "")
	_, err = env.client.GetGame(context.Background(), &GetGameRequest{})
	requireStatus(t, err, codes.InvalidArgument, "")
}

func TestAttackForms(t *testing.T) {
	env := newTestEnv(t)
	view := env.newGame(t, []string{"Vanguard"}, []string{"Squire"})
	ctx := context.Background()

	_, err := env.client.PlayCard(as("alice"), &PlayCardRequest{GameID: view.ID, Column: 0})
	require.NoError(t, err)

	_, err = env.client.Attack(as("alice"), &AttackRequest{GameID: view.ID, OwnPosition: intp(0), EnemyPosition: intp(game.HeroPosition)})
	requireStatus(t, err, codes.FailedPrecondition, string(game.CodeUnitNotReady))

	_, err = env.client.EndTurn(as("alice"), &EndTurnRequest{GameID: view.ID})
	require.NoError(t, err)
	_, err = env.client.PlayCard(as("bob"), &PlayCardRequest{GameID: view.ID, Column: 0})
	require.NoError(t, err)
	_, err = env.client.EndTurn(as("bob"), &EndTurnRequest{GameID: view.ID})
	require.NoError(t, err)

	resp, err := env.client.Attack(as("alice"), &AttackRequest{GameID: view.ID, OwnPosition: intp(0), EnemyPosition: intp(game.HeroPosition)})
	require.NoError(t, err)
	assert.Equal(t, 20, resp.Game.Health[1])
	assert.Equal(t, game.ReadinessActed.String(), resp.Game.Board[0][0].Readiness)

	_, err = env.client.Attack(as("alice"), &AttackRequest{GameID: view.ID, AttackerColumn: intp(0), TargetColumn: intp(0)})
	requireStatus(t, err, codes.FailedPrecondition, string(game.CodeUnitNotReady))

	_, err = env.client.Attack(as("alice"), &AttackRequest{GameID: view.ID, AttackerColumn: intp(0)})
	requireStatus(t, err, codes.InvalidArgument, "")
	_, err = env.client.Attack(as("alice"), &AttackRequest{GameID: view.ID, OwnPosition: intp(0)})
	requireStatus(t, err, codes.InvalidArgument, "")
	_, err = env.client.Attack(as("alice"), &AttackRequest{GameID: view.ID, OwnPosition: intp(0), EnemyPosition: intp(9)})
	requireStatus(t, err, codes.InvalidArgument, string(game.CodeInvalidPosition))

	_, err = env.client.EndTurn(as("alice"), &EndTurnRequest{GameID: view.ID})
	require.NoError(t, err)
	_, err = env.client.EndTurn(as("bob"), &EndTurnRequest{GameID: view.ID})
	require.NoError(t, err)

	resp, err = env.client.Attack(as("alice"), &AttackRequest{GameID: view.ID, AttackerColumn: intp(0), TargetColumn: intp(0)})
	require.NoError(t, err)
	assert.Nil(t, resp.Game.Board[1][0], "squire is destroyed")
	require.NotNil(t, resp.Game.Board[0][0])
	assert.Equal(t, 9, resp.Game.Board[0][0].Health)

	final, err := env.client.GetGame(ctx, &GetGameRequest{GameID: view.ID})
	require.NoError(t, err)
	assert.Equal(t, resp.Game, final.Game)
}

func TestConcedeUpdatesStandings(t *testing.T) {
	env := newTestEnv(t)
	view := env.newGame(t, []string{"Vanguard"}, []string{"Squire"})

	resp, err := env.client.Concede(as("bob"), &ConcedeRequest{GameID: view.ID})
	require.NoError(t, err)
	assert.Equal(t, game.PhaseOver.String(), resp.Game.Phase)
	assert.Equal(t, game.EndReasonConceded.String(), resp.Game.EndReason)
	assert.Equal(t, "alice", resp.Game.Winner)
	assert.Nil(t, resp.Game.Stats, "finished games drop their live statistics")

	_, err = env.client.EndTurn(as("alice"), &EndTurnRequest{GameID: view.ID})
	requireStatus(t, err, codes.FailedPrecondition, string(game.CodeGameAlreadyOver))

	finished := []*AttackRequest{
		{GameID: view.ID, OwnPosition: intp(9), EnemyPosition: intp(0)},
		{GameID: view.ID, OwnPosition: intp(0)},
		{GameID: view.ID},
		{GameID: view.ID, AttackerColumn: intp(0), TargetColumn: intp(0), TargetHero: true},
	}
	for _, req := range finished {
		_, err = env.client.Attack(as("bob"), req)
		requireStatus(t, err, codes.FailedPrecondition, string(game.CodeGameAlreadyOver))
	}
	_, err = env.client.PlayCard(as("alice"), &PlayCardRequest{GameID: view.ID, HandIndex: -1, Column: 42})
	requireStatus(t, err, codes.FailedPrecondition, string(game.CodeGameAlreadyOver))

	standings, err := env.client.Standings(context.Background(), &StandingsRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, standings.Players, 2)
	assert.Equal(t, StandingView{Rank: 1, PlayerID: "alice", Name: "ALICE", Score: leaderboard.WinPoints, Wins: 1}, standings.Players[0])
	assert.Equal(t, "bob", standings.Players[1].PlayerID)
	assert.Equal(t, 1, standings.Players[1].Losses)
}

func TestGetReplay(t *testing.T) {
	env := newTestEnv(t)
	view := env.newGame(t, []string{"Vanguard"}, []string{"Squire"})

	_, err := env.client.PlayCard(as("alice"), &PlayCardRequest{GameID: view.ID, HandIndex: 0, Column: 2})
	require.NoError(t, err)

	live, err := env.client.GetReplay(context.Background(), &GetReplayRequest{GameID: view.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, live.Total)
	require.Len(t, live.States, 2)
	assert.Nil(t, live.States[0].Board[0][2])
	require.NotNil(t, live.States[1].Board[0][2])
	assert.Equal(t, "Vanguard", live.States[1].Board[0][2].Name)

	_, err = env.client.Concede(as("bob"), &ConcedeRequest{GameID: view.ID})
	require.NoError(t, err)

	saved, err := env.client.GetReplay(context.Background(), &GetReplayRequest{GameID: view.ID, From: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, saved.Total)
	assert.Equal(t, 1, saved.From)
	require.Len(t, saved.States, 1)
	assert.Equal(t, game.PhaseActive.String(), saved.States[0].Phase)

	tail, err := env.client.GetReplay(context.Background(), &GetReplayRequest{GameID: view.ID, From: 2})
	require.NoError(t, err)
	require.Len(t, tail.States, 1)
	assert.Equal(t, "alice", tail.States[0].Winner)

	past, err := env.client.GetReplay(context.Background(), &GetReplayRequest{GameID: view.ID, From: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, past.Total)
	assert.Empty(t, past.States)

	_, err = env.client.GetReplay(context.Background(), &GetReplayRequest{GameID: view.ID, From: -1})
	requireStatus(t, err, codes.InvalidArgument, "")
	_, err = env.client.GetReplay(context.Background(), &GetReplayRequest{GameID: "../../etc/passwd"})
	requireStatus(t, err, codes.NotFound, "")
	_, err = env.client.GetReplay(context.Background(), &GetReplayRequest{GameID: "0b6f4c1e-2f51-4d83-9d0a-3c1f6a8e9b10"})
	requireStatus(t, err, codes.NotFound, "")
}

func TestRegisterPlayerValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.RegisterPlayer(ctx, &RegisterPlayerRequest{Name: "Nobody"})
	requireStatus(t, err, codes.InvalidArgument, "")
	_, err = env.client.RegisterPlayer(ctx, &RegisterPlayerRequest{PlayerID: "p1", Name: strings.Repeat("x", leaderboard.MaxNameLength+1)})
	requireStatus(t, err, codes.InvalidArgument, "")

	_, err = env.client.RegisterPlayer(ctx, &RegisterPlayerRequest{PlayerID: "p1", Name: "First"})
	require.NoError(t, err)
	_, err = env.client.RegisterPlayer(ctx, &RegisterPlayerRequest{PlayerID: "p1", Name: "Again"})
	requireStatus(t, err, codes.AlreadyExists, "")
}

func TestForceConcedeRequiresAdminPassword(t *testing.T) {
	env := newTestEnv(t)
	view := env.newGame(t, []string{"Vanguard"}, []string{"Squire"})
	req := &ForceConcedeRequest{GameID: view.ID, PlayerID: "alice"}

	_, err := env.client.ForceConcede(context.Background(), req)
	requireStatus(t, err, codes.PermissionDenied, "")

	_, err = env.client.ForceConcede(WithAdminPassword(context.Background(), "wrong"), req)
	requireStatus(t, err, codes.PermissionDenied, "")

	resp, err := env.client.ForceConcede(WithAdminPassword(context.Background(), adminPassword), req)
	require.NoError(t, err)
	assert.Equal(t, "bob", resp.Game.Winner)
}

func TestHealthService(t *testing.T) {
	env := newTestEnv(t)

	resp, err := healthpb.NewHealthClient(env.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{game.ErrSlotOccupied, codes.FailedPrecondition},
		{game.ErrNotOwned, codes.PermissionDenied},
		{game.ErrFriendlyTarget, codes.InvalidArgument},
		{game.ErrGameNotFound, codes.NotFound},
		{game.ErrReplayNotFound, codes.NotFound},
		{game.ErrReplaysDisabled, codes.Unimplemented},
		{game.ErrVersionConflict, codes.Aborted},
		{repository.ErrPlayerBusy, codes.FailedPrecondition},
		{leaderboard.ErrNameTooLong, codes.InvalidArgument},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{assert.AnError, codes.Internal},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(toStatus(tt.err)))
		})
	}
	assert.NoError(t, toStatus(nil))
}
