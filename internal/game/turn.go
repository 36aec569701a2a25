package game

import (
	"github.com/gridduel/duel-server-go/internal/game/rules"
)

// EndTurn readies the actor's units, grows and refills the actor's mana for
// their next turn, and hands the turn to the opponent. The opponent's wallet
// is left as it was.
func (e *Engine) EndTurn(rec *GameRecord, actor string) (*GameRecord, []rules.Event, error) {
	side, err := authorize(rec, actor)
	if err != nil {
		return nil, nil, err
	}

	next := rec.Clone()
	events := make([]rules.Event, 0, 2)

	readied := 0
	row := &next.Board[side]
	for column := range row {
		if row[column].Occupied && row[column].Unit.Readiness != ReadinessReady {
			row[column].Unit.Readiness = ReadinessReady
			readied++
		}
	}
	if readied > 0 {
		events = append(events, rules.NewEventWithAmount(rules.EventUnitsReadied, side, rules.NoColumn, next.Turn, readied))
	}

	next.Mana[side] = next.Mana[side].Grow(e.rules.ManaCeiling).Refill()

	ended := rules.NewEventWithAmount(rules.EventTurnEnded, side, rules.NoColumn, next.Turn, next.Mana[side].Cap)
	next.Turn = rules.NextTurn(next.Turn)
	ended.Metadata = map[string]string{"next_player": next.ActivePlayer()}
	events = append(events, ended)

	return next, stamp(next, actor, events), nil
}
