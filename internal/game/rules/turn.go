package rules

import "fmt"

// Side identifies one of the two seats at the table. Side A owns board row A
// and acts on odd turns; side B owns row B and acts on even turns.
type Side int

const (
	SideA Side = iota
	SideB
)

// Sides lists both seats in seating order.
var Sides = [2]Side{SideA, SideB}

var sideNames = map[Side]string{
	SideA: "A",
	SideB: "B",
}

func (s Side) String() string {
	if name, ok := sideNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SIDE_%d", int(s))
}

// Valid reports whether s is one of the two seats.
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// Opponent returns the other seat.
func (s Side) Opponent() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// FirstTurn is the turn number every game starts on.
const FirstTurn = 1

// ActiveSide returns the side whose turn it is. Odd turns belong to side A,
// even turns to side B. Turn numbers below FirstTurn are treated as FirstTurn.
func ActiveSide(turn int) Side {
	if turn < FirstTurn {
		turn = FirstTurn
	}
	if turn%2 == 1 {
		return SideA
	}
	return SideB
}

// NextTurn returns the turn number that follows turn.
func NextTurn(turn int) int {
	if turn < FirstTurn {
		return FirstTurn
	}
	return turn + 1
}

// TurnsTaken returns how many turns side has completed once the game has
// reached turn.
func TurnsTaken(turn int, side Side) int {
	completed := turn - FirstTurn
	if completed <= 0 {
		return 0
	}
	if side == SideA {
		return (completed + 1) / 2
	}
	return completed / 2
}
