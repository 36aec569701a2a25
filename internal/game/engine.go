package game

import (
	"fmt"

	"github.com/gridduel/duel-server-go/internal/game/rules"
)

// Engine applies actions to game records. It holds only the rules constants;
// every call takes the record it works on and returns a new one, leaving the
// input untouched. An Engine is safe for concurrent use.
type Engine struct {
	rules Rules
}

// NewEngine creates an engine for the given rules.
func NewEngine(r Rules) *Engine {
	return &Engine{rules: r}
}

// Rules returns the constants the engine plays with.
func (e *Engine) Rules() Rules {
	return e.rules
}

// NewGame creates the initial record for two players and their starting hands.
func (e *Engine) NewGame(id string, players [2]string, hands [2][]Unit) (*GameRecord, []rules.Event, error) {
	rec, err := NewGameRecord(id, players, hands, e.rules)
	if err != nil {
		return nil, nil, err
	}
	evt := rules.NewEvent(rules.EventGameCreated, rules.SideA, rec.Turn)
	evt.Metadata = map[string]string{
		"player_a": players[0],
		"player_b": players[1],
	}
	return rec, stamp(rec, "", []rules.Event{evt}), nil
}

// Apply dispatches action to its resolver. On success it returns the new
// record and the events describing the transition; on rejection it returns
// the error and no record.
func (e *Engine) Apply(rec *GameRecord, actor string, action Action) (*GameRecord, []rules.Event, error) {
	if rec == nil {
		return nil, nil, fmt.Errorf("apply %v: nil game record", action)
	}

	switch a := normalize(action).(type) {
	case PlayCard:
		return e.PlayCard(rec, actor, a.HandIndex, a.Column)
	case EndTurn:
		return e.EndTurn(rec, actor)
	case Attack:
		return e.Attack(rec, actor, a.Attacker, a.Target)
	case Concede:
		return e.Concede(rec, actor)
	default:
		if rec.IsOver() {
			return nil, nil, reject(CodeGameAlreadyOver, "game %s has ended", rec.ID)
		}
		return nil, nil, reject(CodeUnknownAction, "unsupported action %T", action)
	}
}

// authorize checks the preconditions shared by every turn action: the game is
// still running and actor holds the current turn.
func authorize(rec *GameRecord, actor string) (rules.Side, error) {
	if rec.IsOver() {
		return rules.SideA, reject(CodeGameAlreadyOver, "game %s has ended", rec.ID)
	}
	side, seated := rec.SideOf(actor)
	if !seated {
		return rules.SideA, reject(CodeNotYourTurn, "%q is not seated in game %s", actor, rec.ID)
	}
	if side != rec.ActiveSide() {
		return rules.SideA, reject(CodeNotYourTurn, "turn %d belongs to %s", rec.Turn, rec.ActivePlayer())
	}
	return side, nil
}

// stamp fills in the game and player identities on resolver events.
func stamp(rec *GameRecord, actor string, events []rules.Event) []rules.Event {
	for i := range events {
		events[i].GameID = rec.ID
		if events[i].PlayerID == "" {
			if actor != "" {
				events[i].PlayerID = actor
			} else if events[i].Side.Valid() {
				events[i].PlayerID = rec.Players[events[i].Side]
			}
		}
	}
	return events
}
