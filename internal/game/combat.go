package game

import (
	"github.com/gridduel/duel-server-go/internal/game/rules"
)

// Attack resolves one attack by the actor's unit at attacker against target.
//
// A hero target loses health equal to the attacker's attack and deals nothing
// back. A unit target and the attacker damage each other simultaneously, both
// amounts taken from the pre-attack snapshot. Units left at zero health or
// below are removed, the attacker is marked as having acted, and the win
// conditions are evaluated before returning.
func (e *Engine) Attack(rec *GameRecord, actor string, attacker Position, target Target) (*GameRecord, []rules.Event, error) {
	side, err := authorize(rec, actor)
	if err != nil {
		return nil, nil, err
	}

	if !attacker.valid() {
		return nil, nil, reject(CodeInvalidPosition, "attacker position %s is not on the board", attacker)
	}
	if !target.valid() {
		return nil, nil, reject(CodeInvalidPosition, "target %s is not addressable", target)
	}
	if attacker.Side != side {
		return nil, nil, reject(CodeNotOwned, "unit at %s belongs to %s", attacker, rec.Players[attacker.Side])
	}
	if target.Side == side {
		return nil, nil, reject(CodeFriendlyTarget, "cannot attack own %s", target)
	}

	striker, ok := rec.UnitAt(attacker.Side, attacker.Column)
	if !ok {
		return nil, nil, reject(CodeSlotEmpty, "no unit at %s", attacker)
	}
	if !striker.Readiness.CanAttack() {
		return nil, nil, reject(CodeUnitNotReady, "%s at %s is %s", striker.Name, attacker, striker.Readiness)
	}

	var defender Unit
	if !target.IsHero() {
		defender, ok = rec.UnitAt(target.Side, target.Column)
		if !ok {
			return nil, nil, reject(CodeSlotEmpty, "no unit at %s", target)
		}
	}

	next := rec.Clone()
	declared := rules.NewSlotEvent(rules.EventAttackDeclared, side, attacker.Column, next.Turn)
	declared.Amount = striker.Attack
	declared.Description = striker.Name
	declared.Metadata = map[string]string{"target": target.String()}
	events := []rules.Event{declared}

	if target.IsHero() {
		next.Health[target.Side] -= striker.Attack
		events = append(events, rules.NewEventWithAmount(rules.EventHeroDamaged, target.Side, rules.NoColumn, next.Turn, striker.Attack))
	} else {
		striker.Health -= defender.Attack
		defender.Health -= striker.Attack
		events = append(events,
			rules.NewEventWithAmount(rules.EventUnitDamaged, target.Side, target.Column, next.Turn, striker.Attack),
			rules.NewEventWithAmount(rules.EventUnitDamaged, attacker.Side, attacker.Column, next.Turn, defender.Attack),
		)
		events = append(events, settle(next, target.Position(), defender)...)
	}

	striker.Readiness = ReadinessActed
	events = append(events, settle(next, attacker, striker)...)

	events = append(events, checkWin(next)...)
	return next, stamp(next, "", events), nil
}

// settle writes a unit back into its slot, or clears the slot if the unit died.
func settle(rec *GameRecord, pos Position, unit Unit) []rules.Event {
	if unit.Alive() {
		rec.Board[pos.Side][pos.Column] = Slot{Unit: unit, Occupied: true}
		return nil
	}
	rec.Board[pos.Side][pos.Column] = Slot{}
	evt := rules.NewSlotEvent(rules.EventUnitDestroyed, pos.Side, pos.Column, rec.Turn)
	evt.Description = unit.Name
	return []rules.Event{evt}
}
