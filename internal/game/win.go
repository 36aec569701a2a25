package game

import (
	"github.com/gridduel/duel-server-go/internal/game/rules"
)

// CheckWin evaluates the terminal conditions on a copy of rec and returns it.
// A record that is already over is returned unchanged.
func CheckWin(rec *GameRecord) *GameRecord {
	if rec == nil {
		return nil
	}
	next := rec.Clone()
	checkWin(next)
	return next
}

// checkWin ends the game in place when a hero has fallen or when neither side
// can deal damage any more. Both heroes falling together is a draw.
func checkWin(rec *GameRecord) []rules.Event {
	if rec.IsOver() {
		return nil
	}

	fallenA := rec.Health[rules.SideA] <= 0
	fallenB := rec.Health[rules.SideB] <= 0

	switch {
	case fallenA && fallenB:
		rec.Phase = PhaseOver
		rec.EndReason = EndReasonMutualDefeat
	case fallenA || fallenB:
		rec.Phase = PhaseOver
		rec.EndReason = EndReasonHeroDefeated
	case stalemated(rec):
		rec.Phase = PhaseOver
		rec.EndReason = EndReasonStalemate
	default:
		return nil
	}

	return []rules.Event{gameOverEvent(rec)}
}

// stalemated reports whether both hands and the whole board are empty.
func stalemated(rec *GameRecord) bool {
	for _, side := range rules.Sides {
		if len(rec.Hands[side]) > 0 || rec.Board[side].Occupied() > 0 {
			return false
		}
	}
	return true
}

func gameOverEvent(rec *GameRecord) rules.Event {
	evt := rules.NewEvent(rules.EventGameOver, rec.ActiveSide(), rec.Turn)
	evt.Description = rec.EndReason.String()
	result, _ := Outcome(rec)
	evt.Metadata = map[string]string{"reason": rec.EndReason.String()}
	if result.Winner != nil {
		evt.Metadata["winner"] = rec.Players[*result.Winner]
	}
	return evt
}

// Concede ends the game immediately in the opponent's favour. Either seated
// player may concede at any point while the game is active.
func (e *Engine) Concede(rec *GameRecord, actor string) (*GameRecord, []rules.Event, error) {
	if rec.IsOver() {
		return nil, nil, reject(CodeGameAlreadyOver, "game %s has ended", rec.ID)
	}
	side, seated := rec.SideOf(actor)
	if !seated {
		return nil, nil, reject(CodeNotOwned, "%q is not seated in game %s", actor, rec.ID)
	}

	next := rec.Clone()
	next.Phase = PhaseOver
	next.EndReason = EndReasonConceded
	next.ConcededBy = side

	conceded := rules.NewEvent(rules.EventPlayerConceded, side, next.Turn)
	over := gameOverEvent(next)
	over.PlayerID = actor
	return next, stamp(next, "", []rules.Event{conceded, over}), nil
}

// Result is what the scoring collaborator needs from a finished game.
type Result struct {
	GameID  string
	Players [2]string
	Health  [2]int
	Turn    int
	Reason  EndReason
	// Winner is nil for draws.
	Winner *rules.Side
}

// Draw reports whether the game ended without a winner.
func (r Result) Draw() bool {
	return r.Winner == nil
}

// WinnerID returns the winning player's identity, or "" for a draw.
func (r Result) WinnerID() string {
	if r.Winner == nil {
		return ""
	}
	return r.Players[*r.Winner]
}

// LoserID returns the losing player's identity, or "" for a draw.
func (r Result) LoserID() string {
	if r.Winner == nil {
		return ""
	}
	return r.Players[r.Winner.Opponent()]
}

// Outcome reports the result of a finished game. The second return value is
// false while the game is still active.
func Outcome(rec *GameRecord) (Result, bool) {
	if rec == nil || !rec.IsOver() {
		return Result{}, false
	}
	result := Result{
		GameID:  rec.ID,
		Players: rec.Players,
		Health:  rec.Health,
		Turn:    rec.Turn,
		Reason:  rec.EndReason,
	}

	var winner rules.Side
	switch rec.EndReason {
	case EndReasonConceded:
		winner = rec.ConcededBy.Opponent()
	case EndReasonHeroDefeated:
		if rec.Health[rules.SideA] <= 0 {
			winner = rules.SideB
		} else {
			winner = rules.SideA
		}
	default:
		return result, true
	}
	result.Winner = &winner
	return result, true
}
