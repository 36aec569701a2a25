package game

import (
	"strconv"

	"github.com/gridduel/duel-server-go/internal/game/rules"
)

// PlayCard moves the card at handIndex of the actor's hand into column of the
// actor's row, paying its mana cost. The placed unit cannot attack until the
// actor ends a turn. Placing a card never ends the game.
func (e *Engine) PlayCard(rec *GameRecord, actor string, handIndex, column int) (*GameRecord, []rules.Event, error) {
	side, err := authorize(rec, actor)
	if err != nil {
		return nil, nil, err
	}

	hand := rec.Hands[side]
	if handIndex < 0 || handIndex >= len(hand) {
		return nil, nil, reject(CodeInvalidPosition, "hand index %d out of range [0,%d)", handIndex, len(hand))
	}
	if column < 0 || column >= BoardColumns {
		return nil, nil, reject(CodeInvalidPosition, "column %d out of range [0,%d)", column, BoardColumns)
	}
	if rec.Board[side][column].Occupied {
		return nil, nil, reject(CodeSlotOccupied, "column %d of row %s is occupied", column, side)
	}
	card := hand[handIndex]
	wallet, ok := rec.Mana[side].Spend(card.ManaCost)
	if !ok {
		return nil, nil, reject(CodeInsufficientMana, "%s costs %d, %d available", card.Name, card.ManaCost, rec.Mana[side].Available)
	}

	next := rec.Clone()
	next.Hands[side] = append(next.Hands[side][:handIndex:handIndex], next.Hands[side][handIndex+1:]...)
	card.Readiness = ReadinessJustPlaced
	next.Board[side][column] = Slot{Unit: card, Occupied: true}
	next.Mana[side] = wallet

	events := []rules.Event{
		rules.NewEventWithAmount(rules.EventManaSpent, side, column, next.Turn, card.ManaCost),
		rules.NewSlotEvent(rules.EventCardPlayed, side, column, next.Turn),
	}
	events[1].Description = card.Name
	events[1].Metadata = map[string]string{
		"health":     strconv.Itoa(card.Health),
		"attack":     strconv.Itoa(card.Attack),
		"hand_index": strconv.Itoa(handIndex),
	}

	return next, stamp(next, actor, events), nil
}
