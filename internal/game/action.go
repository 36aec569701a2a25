package game

import (
	"fmt"

	"github.com/gridduel/duel-server-go/internal/game/rules"
)

// ActionType names an action a player can submit.
type ActionType string

const (
	ActionPlayCard ActionType = "PLAY_CARD"
	ActionEndTurn  ActionType = "END_TURN"
	ActionAttack   ActionType = "ATTACK"
	ActionConcede  ActionType = "CONCEDE"
)

// Action is one submission from a player.
type Action interface {
	Type() ActionType
}

// PlayCard places the hand card at HandIndex into Column of the actor's row.
type PlayCard struct {
	HandIndex int
	Column    int
}

func (PlayCard) Type() ActionType { return ActionPlayCard }

// EndTurn passes the turn to the opponent.
type EndTurn struct{}

func (EndTurn) Type() ActionType { return ActionEndTurn }

// Attack directs the unit at Attacker against Target.
type Attack struct {
	Attacker Position
	Target   Target
}

func (Attack) Type() ActionType { return ActionAttack }

// Concede ends the game in the opponent's favour.
type Concede struct{}

func (Concede) Type() ActionType { return ActionConcede }

// normalize resolves pointer actions to their values. Nil and typed-nil
// actions come back as nil.
func normalize(action Action) Action {
	switch a := action.(type) {
	case *PlayCard:
		if a == nil {
			return nil
		}
		return *a
	case *EndTurn:
		if a == nil {
			return nil
		}
		return *a
	case *Attack:
		if a == nil {
			return nil
		}
		return *a
	case *Concede:
		if a == nil {
			return nil
		}
		return *a
	}
	return action
}

// actionName is safe to call on any submission, including nil.
func actionName(action Action) string {
	switch a := normalize(action).(type) {
	case nil:
		return "NONE"
	case PlayCard, EndTurn, Attack, Concede:
		return string(a.Type())
	default:
		return fmt.Sprintf("%T", action)
	}
}

// Position addresses one board slot.
type Position struct {
	Side   rules.Side
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%s%d", p.Side, p.Column)
}

func (p Position) valid() bool {
	return p.Side.Valid() && p.Column >= 0 && p.Column < BoardColumns
}

// Target is what an attack is aimed at: either the unit in a slot or a hero.
type Target struct {
	Side   rules.Side
	Column int
	Hero   bool
}

// UnitTarget aims at the unit in column of side's row.
func UnitTarget(side rules.Side, column int) Target {
	return Target{Side: side, Column: column}
}

// HeroTarget aims at side's hero.
func HeroTarget(side rules.Side) Target {
	return Target{Side: side, Column: rules.NoColumn, Hero: true}
}

// IsHero reports whether the target is a hero rather than a slot.
func (t Target) IsHero() bool {
	return t.Hero
}

// Position returns the slot addressed by a unit target.
func (t Target) Position() Position {
	return Position{Side: t.Side, Column: t.Column}
}

func (t Target) String() string {
	if t.Hero {
		return fmt.Sprintf("hero %s", t.Side)
	}
	return t.Position().String()
}

func (t Target) valid() bool {
	if !t.Side.Valid() {
		return false
	}
	if t.Hero {
		return true
	}
	return t.Column >= 0 && t.Column < BoardColumns
}

// AttackFromPositions decodes the positional wire form of an attack: ownPos is
// a column on the actor's row and enemyPos is a column on the opponent's row,
// or HeroPosition for the opponent's hero.
func AttackFromPositions(actor rules.Side, ownPos, enemyPos int) (Attack, error) {
	if !actor.Valid() {
		return Attack{}, reject(CodeInvalidPosition, "unknown side %d", int(actor))
	}
	if ownPos < 0 || ownPos >= BoardColumns {
		return Attack{}, reject(CodeInvalidPosition, "attacker position %d is not a board column", ownPos)
	}

	attack := Attack{Attacker: Position{Side: actor, Column: ownPos}}
	switch {
	case enemyPos == HeroPosition:
		attack.Target = HeroTarget(actor.Opponent())
	case enemyPos >= 0 && enemyPos < BoardColumns:
		attack.Target = UnitTarget(actor.Opponent(), enemyPos)
	default:
		return Attack{}, reject(CodeInvalidPosition, "defender position %d is out of range", enemyPos)
	}
	return attack, nil
}
