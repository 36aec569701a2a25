package server

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gridduel/duel-server-go/internal/game"
	"github.com/gridduel/duel-server-go/internal/game/catalog"
	"github.com/gridduel/duel-server-go/internal/game/rules"
	"github.com/gridduel/duel-server-go/internal/game/watchers"
	"github.com/gridduel/duel-server-go/internal/leaderboard"
)

// Default decks dealt when CreateGame names neither a deck nor a hand.
const (
	DefaultDeckA = "starter-a"
	DefaultDeckB = "starter-b"
)

const (
	defaultReplayPage = 50
	maxReplayPage     = 200
)

// duelServer implements DuelServiceServer on top of the game manager.
type duelServer struct {
	logger  *zap.Logger
	games   *game.Manager
	ledger  *leaderboard.Ledger
	catalog *catalog.Catalog
	stats   *watchers.GameStatsWatcher
}

// DuelServerOption configures optional collaborators of the duel server.
type DuelServerOption func(*duelServer)

// WithGameStats attaches live statistics to every returned game view.
func WithGameStats(w *watchers.GameStatsWatcher) DuelServerOption {
	return func(s *duelServer) { s.stats = w }
}

// NewDuelServer creates the gRPC handler set. ledger may be nil, in which case
// the player and standings methods report Unimplemented.
func NewDuelServer(games *game.Manager, ledger *leaderboard.Ledger, cards *catalog.Catalog, logger *zap.Logger, opts ...DuelServerOption) DuelServiceServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &duelServer{
		logger:  logger,
		games:   games,
		ledger:  ledger,
		catalog: cards,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *duelServer) CreateGame(ctx context.Context, req *CreateGameRequest) (*GameResponse, error) {
	players := [2]string{strings.TrimSpace(req.PlayerA), strings.TrimSpace(req.PlayerB)}
	if players[0] == "" || players[1] == "" {
		return nil, status.Errorf(codes.InvalidArgument, "player_a and player_b are required")
	}

	handA, err := s.dealHand(req.HandA, req.DeckA, DefaultDeckA)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "hand for %s: %v", players[0], err)
	}
	handB, err := s.dealHand(req.HandB, req.DeckB, DefaultDeckB)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "hand for %s: %v", players[1], err)
	}

	rec, err := s.games.CreateGame(ctx, players, [2][]game.Unit{handA, handB})
	if err != nil {
		s.logger.Warn("create game failed",
			zap.String("player_a", players[0]),
			zap.String("player_b", players[1]),
			zap.String("host", extractHostFromContext(ctx)),
			zap.Error(err),
		)
		return nil, toStatus(err)
	}
	return s.response(rec), nil
}

// dealHand resolves explicit card names first, then a deck name, then the
// fallback deck.
func (s *duelServer) dealHand(names []string, deck, fallback string) ([]game.Unit, error) {
	if len(names) > 0 {
		cards, err := s.catalog.Cards(names)
		if err != nil {
			return nil, err
		}
		return game.UnitsFromCards(cards), nil
	}
	if strings.TrimSpace(deck) == "" {
		deck = fallback
	}
	cards, err := s.catalog.Deck(deck)
	if err != nil {
		return nil, err
	}
	return game.UnitsFromCards(cards), nil
}

func (s *duelServer) GetGame(ctx context.Context, req *GetGameRequest) (*GameResponse, error) {
	gameID, err := requireGameID(req.GameID)
	if err != nil {
		return nil, err
	}
	rec, err := s.games.Get(ctx, gameID)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.response(rec), nil
}

func (s *duelServer) PlayCard(ctx context.Context, req *PlayCardRequest) (*GameResponse, error) {
	return s.submit(ctx, req.GameID, func(*game.GameRecord, string) (game.Action, error) {
		return game.PlayCard{HandIndex: req.HandIndex, Column: req.Column}, nil
	})
}

func (s *duelServer) EndTurn(ctx context.Context, req *EndTurnRequest) (*GameResponse, error) {
	return s.submit(ctx, req.GameID, func(*game.GameRecord, string) (game.Action, error) {
		return game.EndTurn{}, nil
	})
}

func (s *duelServer) Attack(ctx context.Context, req *AttackRequest) (*GameResponse, error) {
	return s.submit(ctx, req.GameID, func(rec *game.GameRecord, actor string) (game.Action, error) {
		return attackFromRequest(rec, actor, req)
	})
}

// attackFromRequest decodes either form of AttackRequest. The attacker is
// always on the actor's own row and the target on the opponent's.
func attackFromRequest(rec *game.GameRecord, actor string, req *AttackRequest) (game.Action, error) {
	side, ok := rec.SideOf(actor)
	if !ok {
		// Let the engine produce the ownership rejection.
		side = rec.ActiveSide()
	}

	if req.OwnPosition != nil || req.EnemyPosition != nil {
		if req.OwnPosition == nil || req.EnemyPosition == nil {
			return nil, status.Errorf(codes.InvalidArgument, "own_position and enemy_position must be given together")
		}
		return game.AttackFromPositions(side, *req.OwnPosition, *req.EnemyPosition)
	}

	if req.AttackerColumn == nil {
		return nil, status.Errorf(codes.InvalidArgument, "attacker_column is required")
	}
	attack := game.Attack{Attacker: game.Position{Side: side, Column: *req.AttackerColumn}}
	switch {
	case req.TargetHero && req.TargetColumn != nil:
		return nil, status.Errorf(codes.InvalidArgument, "target_column and target_hero are mutually exclusive")
	case req.TargetHero:
		attack.Target = game.HeroTarget(side.Opponent())
	case req.TargetColumn != nil:
		attack.Target = game.UnitTarget(side.Opponent(), *req.TargetColumn)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "target_column or target_hero is required")
	}
	return attack, nil
}

func (s *duelServer) Concede(ctx context.Context, req *ConcedeRequest) (*GameResponse, error) {
	return s.submit(ctx, req.GameID, func(*game.GameRecord, string) (game.Action, error) {
		return game.Concede{}, nil
	})
}

func (s *duelServer) ForceConcede(ctx context.Context, req *ForceConcedeRequest) (*GameResponse, error) {
	gameID, err := requireGameID(req.GameID)
	if err != nil {
		return nil, err
	}
	playerID := strings.TrimSpace(req.PlayerID)
	if playerID == "" {
		return nil, status.Errorf(codes.InvalidArgument, "player_id is required")
	}

	rec, err := s.games.Concede(ctx, gameID, playerID)
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info("game force-conceded by admin",
		zap.String("game_id", gameID),
		zap.String("player_id", playerID),
		zap.String("host", extractHostFromContext(ctx)),
	)
	return s.response(rec), nil
}

// submit resolves the acting player, builds the action against the current
// record and hands it to the manager.
func (s *duelServer) submit(ctx context.Context, rawGameID string, build func(*game.GameRecord, string) (game.Action, error)) (*GameResponse, error) {
	gameID, err := requireGameID(rawGameID)
	if err != nil {
		return nil, err
	}
	actor := PlayerIDFromContext(ctx)
	if actor == "" {
		return nil, status.Errorf(codes.Unauthenticated, "%s metadata is required", PlayerIDHeader)
	}

	current, err := s.games.Get(ctx, gameID)
	if err != nil {
		return nil, toStatus(err)
	}
	// A finished game refuses everything, however malformed the request.
	if current.IsOver() {
		return nil, toStatus(&game.RejectionError{
			Code:    game.CodeGameAlreadyOver,
			Message: fmt.Sprintf("game %s has ended", gameID),
		})
	}
	action, err := build(current, actor)
	if err != nil {
		return nil, toStatus(err)
	}

	rec, err := s.games.Submit(ctx, gameID, actor, action)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.response(rec), nil
}

func (s *duelServer) RegisterPlayer(ctx context.Context, req *RegisterPlayerRequest) (*RegisterPlayerResponse, error) {
	if s.ledger == nil {
		return nil, status.Errorf(codes.Unimplemented, "leaderboard is not enabled")
	}
	playerID := strings.TrimSpace(req.PlayerID)
	if playerID == "" {
		return nil, status.Errorf(codes.InvalidArgument, "player_id is required")
	}
	if err := s.ledger.Register(ctx, playerID, req.Name); err != nil {
		return nil, toStatus(err)
	}
	return &RegisterPlayerResponse{PlayerID: playerID, Name: req.Name}, nil
}

func (s *duelServer) Standings(ctx context.Context, req *StandingsRequest) (*StandingsResponse, error) {
	if s.ledger == nil {
		return nil, status.Errorf(codes.Unimplemented, "leaderboard is not enabled")
	}
	stats, err := s.ledger.Standings(ctx, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &StandingsResponse{Players: make([]StandingView, 0, len(stats))}
	for i, st := range stats {
		resp.Players = append(resp.Players, StandingView{
			Rank:       i + 1,
			PlayerID:   st.PlayerID,
			Name:       st.Name,
			Score:      st.Score,
			Wins:       st.Wins,
			Losses:     st.Losses,
			Draws:      st.Draws,
			ActiveGame: st.ActiveGame,
		})
	}
	return resp, nil
}

func (s *duelServer) GetReplay(ctx context.Context, req *GetReplayRequest) (*ReplayResponse, error) {
	gameID, err := requireGameID(req.GameID)
	if err != nil {
		return nil, err
	}
	if req.From < 0 {
		return nil, status.Errorf(codes.InvalidArgument, "from must not be negative")
	}
	limit := req.Limit
	switch {
	case limit <= 0:
		limit = defaultReplayPage
	case limit > maxReplayPage:
		limit = maxReplayPage
	}

	replay, err := s.games.Replay(ctx, gameID)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &ReplayResponse{GameID: gameID, Total: replay.Size(), From: req.From, States: []GameView{}}
	if req.From >= resp.Total {
		return resp, nil
	}
	replay.Start()
	replay.Skip(req.From)
	for len(resp.States) < limit {
		state := replay.Next()
		if state == nil {
			break
		}
		resp.States = append(resp.States, gameView(state))
	}
	return resp, nil
}

func requireGameID(raw string) (string, error) {
	gameID := strings.TrimSpace(raw)
	if gameID == "" {
		return "", status.Errorf(codes.InvalidArgument, "game_id is required")
	}
	return gameID, nil
}

func (s *duelServer) response(rec *game.GameRecord) *GameResponse {
	view := gameView(rec)
	if s.stats != nil {
		if stats, ok := s.stats.Stats(rec.ID); ok {
			view.Stats = statsView(stats)
		}
	}
	return &GameResponse{Game: view}
}

func statsView(stats watchers.GameStats) *StatsView {
	view := &StatsView{}
	for i, side := range stats.Sides {
		view.Sides[i] = SideStatsView{
			CardsPlayed:     side.CardsPlayed,
			ManaSpent:       side.ManaSpent,
			Attacks:         side.Attacks,
			HeroDamageDealt: side.HeroDamageDealt,
			UnitDamageDealt: side.UnitDamageDealt,
			UnitsLost:       side.UnitsLost,
		}
	}
	return view
}

func unitView(u game.Unit) UnitView {
	return UnitView{
		Name:      u.Name,
		Health:    u.Health,
		Attack:    u.Attack,
		ManaCost:  u.ManaCost,
		Readiness: u.Readiness.String(),
	}
}

func gameView(rec *game.GameRecord) GameView {
	view := GameView{
		ID:           rec.ID,
		Players:      rec.Players,
		Turn:         rec.Turn,
		ActivePlayer: rec.ActivePlayer(),
		Phase:        rec.Phase.String(),
		Health:       rec.Health,
	}
	if rec.IsOver() {
		view.EndReason = rec.EndReason.String()
		if result, ok := game.Outcome(rec); ok {
			view.Winner = result.WinnerID()
		}
	}

	for _, side := range rules.Sides {
		view.Mana[side] = ManaView{Cap: rec.Mana[side].Cap, Available: rec.Mana[side].Available}

		row := make([]*UnitView, game.BoardColumns)
		for col, slot := range rec.Board[side] {
			if slot.Occupied {
				u := unitView(slot.Unit)
				row[col] = &u
			}
		}
		view.Board[side] = row

		hand := make([]UnitView, len(rec.Hands[side]))
		for i, u := range rec.Hands[side] {
			hand[i] = unitView(u)
		}
		view.Hands[side] = hand
	}
	return view
}
