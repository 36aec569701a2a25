package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gridduel/duel-server-go/internal/game/catalog"
	"github.com/gridduel/duel-server-go/internal/game/mana"
	"github.com/gridduel/duel-server-go/internal/game/rules"
)

// BoardColumns is the number of slots in each side's row.
const BoardColumns = 7

// HeroPosition is the wire-level position that addresses a hero instead of a
// board slot. It is decoded into a Target at the boundary and never stored.
const HeroPosition = BoardColumns

// Phase is the lifecycle of a game record. The only transition is Active -> Over.
type Phase int

const (
	PhaseActive Phase = iota
	PhaseOver
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "ACTIVE"
	case PhaseOver:
		return "OVER"
	default:
		return fmt.Sprintf("PHASE_%d", int(p))
	}
}

// EndReason records why a game reached PhaseOver.
type EndReason int

const (
	EndReasonNone EndReason = iota
	EndReasonHeroDefeated
	EndReasonMutualDefeat
	EndReasonStalemate
	EndReasonConceded
)

var endReasonNames = map[EndReason]string{
	EndReasonNone:         "NONE",
	EndReasonHeroDefeated: "HERO_DEFEATED",
	EndReasonMutualDefeat: "MUTUAL_DEFEAT",
	EndReasonStalemate:    "STALEMATE",
	EndReasonConceded:     "CONCEDED",
}

func (r EndReason) String() string {
	if name, ok := endReasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("END_REASON_%d", int(r))
}

// Readiness gates whether a unit may attack. JustPlaced and Acted are both
// exhausted states; they are kept apart so rules can tell a fresh unit from
// one that already attacked.
type Readiness int

const (
	ReadinessJustPlaced Readiness = iota
	ReadinessActed
	ReadinessReady
)

func (r Readiness) String() string {
	switch r {
	case ReadinessJustPlaced:
		return "JUST_PLACED"
	case ReadinessActed:
		return "ACTED"
	case ReadinessReady:
		return "READY"
	default:
		return fmt.Sprintf("READINESS_%d", int(r))
	}
}

// CanAttack reports whether the unit may be chosen as an attacker.
func (r Readiness) CanAttack() bool {
	return r == ReadinessReady
}

// Exhausted reports whether the unit is unable to attack this turn.
func (r Readiness) Exhausted() bool {
	return !r.CanAttack()
}

// Unit is a creature in a hand or on the board. On the board it is identified
// only by its slot.
type Unit struct {
	Name      string
	Health    int
	Attack    int
	ManaCost  int
	Readiness Readiness
}

// UnitFromCard converts a catalog definition into a hand unit.
func UnitFromCard(card catalog.Card) Unit {
	return Unit{
		Name:      card.Name,
		Health:    card.Health,
		Attack:    card.Attack,
		ManaCost:  card.ManaCost,
		Readiness: ReadinessJustPlaced,
	}
}

// UnitsFromCards converts a dealt hand of catalog cards into units.
func UnitsFromCards(cards []catalog.Card) []Unit {
	units := make([]Unit, len(cards))
	for i, card := range cards {
		units[i] = UnitFromCard(card)
	}
	return units
}

// Alive reports whether the unit still has health left.
func (u Unit) Alive() bool {
	return u.Health > 0
}

// Slot is one board position; it is empty unless Occupied is set.
type Slot struct {
	Unit     Unit
	Occupied bool
}

// Row is one side's half of the board.
type Row [BoardColumns]Slot

// Occupied returns the number of filled slots.
func (r Row) Occupied() int {
	n := 0
	for _, slot := range r {
		if slot.Occupied {
			n++
		}
	}
	return n
}

// Rules holds the numeric constants a game is played with.
type Rules struct {
	StartingHealth int
	StartingMana   int
	// ManaCeiling bounds cap growth; zero or less means unbounded.
	ManaCeiling int
	MaxHandSize int
}

// DefaultRules returns the standard rules: 30 health, 1 starting mana,
// mana cap growth stopping at 10, hands of at most 10 cards.
func DefaultRules() Rules {
	return Rules{
		StartingHealth: 30,
		StartingMana:   1,
		ManaCeiling:    10,
		MaxHandSize:    10,
	}
}

// GameRecord is the whole state of one game and the unit of persistence.
type GameRecord struct {
	ID        string
	Players   [2]string
	Turn      int
	Phase     Phase
	EndReason EndReason
	// ConcededBy is meaningful only when EndReason is EndReasonConceded.
	ConcededBy rules.Side
	Board      [2]Row
	Health     [2]int
	Mana       [2]mana.Wallet
	Hands      [2][]Unit
}

// NewGameRecord deals the starting hands and returns a record on turn 1.
func NewGameRecord(id string, players [2]string, hands [2][]Unit, r Rules) (*GameRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: game id is required", ErrInvalidSetup)
	}
	for i, player := range players {
		if strings.TrimSpace(player) == "" {
			return nil, fmt.Errorf("%w: player %d identity is required", ErrInvalidSetup, i)
		}
	}
	if players[0] == players[1] {
		return nil, fmt.Errorf("%w: players must be distinct", ErrInvalidSetup)
	}

	rec := &GameRecord{
		ID:      id,
		Players: players,
		Turn:    rules.FirstTurn,
		Phase:   PhaseActive,
	}

	for _, side := range rules.Sides {
		hand := hands[side]
		if r.MaxHandSize > 0 && len(hand) > r.MaxHandSize {
			return nil, fmt.Errorf("%w: hand for %s has %d cards, limit is %d",
				ErrInvalidSetup, players[side], len(hand), r.MaxHandSize)
		}
		dealt := make([]Unit, len(hand))
		for i, unit := range hand {
			if err := validateUnit(unit); err != nil {
				return nil, fmt.Errorf("%w: hand for %s, card %d: %v", ErrInvalidSetup, players[side], i, err)
			}
			unit.Readiness = ReadinessJustPlaced
			dealt[i] = unit
		}
		rec.Hands[side] = dealt
		rec.Health[side] = r.StartingHealth
		rec.Mana[side] = mana.NewWallet(r.StartingMana)
	}

	return rec, nil
}

func validateUnit(u Unit) error {
	if u.Health <= 0 {
		return fmt.Errorf("health must be positive, got %d", u.Health)
	}
	if u.Attack < 0 {
		return fmt.Errorf("attack must not be negative, got %d", u.Attack)
	}
	if u.ManaCost < 0 {
		return fmt.Errorf("mana cost must not be negative, got %d", u.ManaCost)
	}
	return nil
}

// Clone returns a deep copy of the record.
func (rec *GameRecord) Clone() *GameRecord {
	if rec == nil {
		return nil
	}
	out := *rec
	for _, side := range rules.Sides {
		if rec.Hands[side] != nil {
			out.Hands[side] = append([]Unit(nil), rec.Hands[side]...)
		}
	}
	return &out
}

// ActiveSide returns the side whose turn it is.
func (rec *GameRecord) ActiveSide() rules.Side {
	return rules.ActiveSide(rec.Turn)
}

// ActivePlayer returns the identity of the player whose turn it is.
func (rec *GameRecord) ActivePlayer() string {
	return rec.Players[rec.ActiveSide()]
}

// SideOf returns the seat held by player.
func (rec *GameRecord) SideOf(player string) (rules.Side, bool) {
	for _, side := range rules.Sides {
		if rec.Players[side] == player {
			return side, true
		}
	}
	return rules.SideA, false
}

// IsOver reports whether the game has ended.
func (rec *GameRecord) IsOver() bool {
	return rec.Phase == PhaseOver
}

// UnitAt returns the unit in a board slot, if any.
func (rec *GameRecord) UnitAt(side rules.Side, column int) (Unit, bool) {
	if !side.Valid() || column < 0 || column >= BoardColumns {
		return Unit{}, false
	}
	slot := rec.Board[side][column]
	return slot.Unit, slot.Occupied
}

// Validate checks the record's structural invariants.
func (rec *GameRecord) Validate() error {
	var problems []string
	if rec.Turn < rules.FirstTurn {
		problems = append(problems, fmt.Sprintf("turn %d is below %d", rec.Turn, rules.FirstTurn))
	}
	if rec.Phase != PhaseActive && rec.Phase != PhaseOver {
		problems = append(problems, fmt.Sprintf("unknown phase %d", rec.Phase))
	}
	if rec.Phase == PhaseActive && rec.EndReason != EndReasonNone {
		problems = append(problems, fmt.Sprintf("active game has end reason %s", rec.EndReason))
	}
	if rec.Players[0] == rec.Players[1] {
		problems = append(problems, "players are not distinct")
	}
	for _, side := range rules.Sides {
		if !rec.Mana[side].Valid() {
			problems = append(problems, fmt.Sprintf("side %s mana %s out of range", side, rec.Mana[side]))
		}
		for column, slot := range rec.Board[side] {
			if slot.Occupied && !slot.Unit.Alive() {
				problems = append(problems, fmt.Sprintf("side %s column %d holds a dead unit", side, column))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid game record %s: %s", rec.ID, strings.Join(problems, "; "))
	}
	return nil
}

// ErrInvalidSetup is returned when a game cannot be created from the supplied
// identities and hands.
var ErrInvalidSetup = errors.New("invalid game setup")
