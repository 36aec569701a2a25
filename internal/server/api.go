package server

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "duel.v1.DuelService"

// ==================== Messages ====================

type CreateGameRequest struct {
	PlayerA string `json:"player_a"`
	PlayerB string `json:"player_b"`
	// Deck names from the catalog; used when the matching hand is empty.
	DeckA string `json:"deck_a,omitempty"`
	DeckB string `json:"deck_b,omitempty"`
	// Explicit starting hands as card names.
	HandA []string `json:"hand_a,omitempty"`
	HandB []string `json:"hand_b,omitempty"`
}

type GetGameRequest struct {
	GameID string `json:"game_id"`
}

type PlayCardRequest struct {
	GameID    string `json:"game_id"`
	HandIndex int    `json:"hand_index"`
	Column    int    `json:"column"`
}

type EndTurnRequest struct {
	GameID string `json:"game_id"`
}

// AttackRequest names the attacker and target either explicitly
// (attacker_column plus target_column or target_hero) or positionally
// (own_position and enemy_position, where 7 addresses the enemy hero).
type AttackRequest struct {
	GameID         string `json:"game_id"`
	AttackerColumn *int   `json:"attacker_column,omitempty"`
	TargetColumn   *int   `json:"target_column,omitempty"`
	TargetHero     bool   `json:"target_hero,omitempty"`
	OwnPosition    *int   `json:"own_position,omitempty"`
	EnemyPosition  *int   `json:"enemy_position,omitempty"`
}

type ConcedeRequest struct {
	GameID string `json:"game_id"`
}

type ForceConcedeRequest struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
}

// GetReplayRequest pages through the recorded states of a game, starting at
// index From. Limit defaults to 50 and is capped at 200.
type GetReplayRequest struct {
	GameID string `json:"game_id"`
	From   int    `json:"from"`
	Limit  int    `json:"limit"`
}

type ReplayResponse struct {
	GameID string     `json:"game_id"`
	Total  int        `json:"total"`
	From   int        `json:"from"`
	States []GameView `json:"states"`
}

type GameResponse struct {
	Game GameView `json:"game"`
}

type UnitView struct {
	Name      string `json:"name"`
	Health    int    `json:"health"`
	Attack    int    `json:"attack"`
	ManaCost  int    `json:"mana_cost"`
	Readiness string `json:"readiness"`
}

type ManaView struct {
	Cap       int `json:"cap"`
	Available int `json:"available"`
}

type GameView struct {
	ID           string         `json:"id"`
	Players      [2]string      `json:"players"`
	Turn         int            `json:"turn"`
	ActivePlayer string         `json:"active_player"`
	Phase        string         `json:"phase"`
	EndReason    string         `json:"end_reason,omitempty"`
	Winner       string         `json:"winner,omitempty"`
	Health       [2]int         `json:"health"`
	Mana         [2]ManaView    `json:"mana"`
	Board        [2][]*UnitView `json:"board"`
	Hands        [2][]UnitView  `json:"hands"`
	// Stats is present while the game is live and statistics are enabled.
	Stats *StatsView `json:"stats,omitempty"`
}

type SideStatsView struct {
	CardsPlayed     int `json:"cards_played"`
	ManaSpent       int `json:"mana_spent"`
	Attacks         int `json:"attacks"`
	HeroDamageDealt int `json:"hero_damage_dealt"`
	UnitDamageDealt int `json:"unit_damage_dealt"`
	UnitsLost       int `json:"units_lost"`
}

type StatsView struct {
	Sides [2]SideStatsView `json:"sides"`
}

type RegisterPlayerRequest struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type RegisterPlayerResponse struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type StandingsRequest struct {
	Limit int `json:"limit"`
}

type StandingView struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"player_id"`
	Name       string `json:"name"`
	Score      int    `json:"score"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	Draws      int    `json:"draws"`
	ActiveGame string `json:"active_game,omitempty"`
}

type StandingsResponse struct {
	Players []StandingView `json:"players"`
}

// ==================== Service definition ====================

// DuelServiceServer is implemented by the game server.
type DuelServiceServer interface {
	CreateGame(context.Context, *CreateGameRequest) (*GameResponse, error)
	GetGame(context.Context, *GetGameRequest) (*GameResponse, error)
	PlayCard(context.Context, *PlayCardRequest) (*GameResponse, error)
	EndTurn(context.Context, *EndTurnRequest) (*GameResponse, error)
	Attack(context.Context, *AttackRequest) (*GameResponse, error)
	Concede(context.Context, *ConcedeRequest) (*GameResponse, error)
	ForceConcede(context.Context, *ForceConcedeRequest) (*GameResponse, error)
	RegisterPlayer(context.Context, *RegisterPlayerRequest) (*RegisterPlayerResponse, error)
	Standings(context.Context, *StandingsRequest) (*StandingsResponse, error)
	GetReplay(context.Context, *GetReplayRequest) (*ReplayResponse, error)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryMethod[Req, Resp any](method string, call func(DuelServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DuelServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(method),
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(DuelServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// DuelServiceDesc describes the duel service for grpc.Server.RegisterService.
var DuelServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DuelServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateGame", DuelServiceServer.CreateGame),
		unaryMethod("GetGame", DuelServiceServer.GetGame),
		unaryMethod("PlayCard", DuelServiceServer.PlayCard),
		unaryMethod("EndTurn", DuelServiceServer.EndTurn),
		unaryMethod("Attack", DuelServiceServer.Attack),
		unaryMethod("Concede", DuelServiceServer.Concede),
		unaryMethod("ForceConcede", DuelServiceServer.ForceConcede),
		unaryMethod("RegisterPlayer", DuelServiceServer.RegisterPlayer),
		unaryMethod("Standings", DuelServiceServer.Standings),
		unaryMethod("GetReplay", DuelServiceServer.GetReplay),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "duel/v1/duel.json",
}

// RegisterDuelServiceServer registers srv on s.
func RegisterDuelServiceServer(s grpc.ServiceRegistrar, srv DuelServiceServer) {
	s.RegisterService(&DuelServiceDesc, srv)
}

// ==================== Client ====================

// DuelClient calls the duel service with the JSON content-subtype.
type DuelClient struct {
	cc grpc.ClientConnInterface
}

// NewDuelClient wraps a client connection.
func NewDuelClient(cc grpc.ClientConnInterface) *DuelClient {
	return &DuelClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DuelClient) CreateGame(ctx context.Context, in *CreateGameRequest, opts ...grpc.CallOption) (*GameResponse, error) {
	return invoke[GameResponse](ctx, c.cc, "CreateGame", in, opts)
}

func (c *DuelClient) GetGame(ctx context.Context, in *GetGameRequest, opts ...grpc.CallOption) (*GameResponse, error) {
	return invoke[GameResponse](ctx, c.cc, "GetGame", in, opts)
}

func (c *DuelClient) PlayCard(ctx context.Context, in *PlayCardRequest, opts ...grpc.CallOption) (*GameResponse, error) {
	return invoke[GameResponse](ctx, c.cc, "PlayCard", in, opts)
}

func (c *DuelClient) EndTurn(ctx context.Context, in *EndTurnRequest, opts ...grpc.CallOption) (*GameResponse, error) {
	return invoke[GameResponse](ctx, c.cc, "EndTurn", in, opts)
}

func (c *DuelClient) Attack(ctx context.Context, in *AttackRequest, opts ...grpc.CallOption) (*GameResponse, error) {
	return invoke[GameResponse](ctx, c.cc, "Attack", in, opts)
}

func (c *DuelClient) Concede(ctx context.Context, in *ConcedeRequest, opts ...grpc.CallOption) (*GameResponse, error) {
	return invoke[GameResponse](ctx, c.cc, "Concede", in, opts)
}

func (c *DuelClient) ForceConcede(ctx context.Context, in *ForceConcedeRequest, opts ...grpc.CallOption) (*GameResponse, error) {
	return invoke[GameResponse](ctx, c.cc, "ForceConcede", in, opts)
}

func (c *DuelClient) RegisterPlayer(ctx context.Context, in *RegisterPlayerRequest, opts ...grpc.CallOption) (*RegisterPlayerResponse, error) {
	return invoke[RegisterPlayerResponse](ctx, c.cc, "RegisterPlayer", in, opts)
}

func (c *DuelClient) Standings(ctx context.Context, in *StandingsRequest, opts ...grpc.CallOption) (*StandingsResponse, error) {
	return invoke[StandingsResponse](ctx, c.cc, "Standings", in, opts)
}

func (c *DuelClient) GetReplay(ctx context.Context, in *GetReplayRequest, opts ...grpc.CallOption) (*ReplayResponse, error) {
	return invoke[ReplayResponse](ctx, c.cc, "GetReplay", in, opts)
}
