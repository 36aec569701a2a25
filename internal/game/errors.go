package game

import (
	"errors"
	"fmt"
)

// RejectionCode classifies why an action was refused. A rejected action never
// changes the record.
type RejectionCode string

const (
	CodeNotYourTurn      RejectionCode = "NOT_YOUR_TURN"
	CodeGameAlreadyOver  RejectionCode = "GAME_ALREADY_OVER"
	CodeInvalidPosition  RejectionCode = "INVALID_POSITION"
	CodeSlotOccupied     RejectionCode = "SLOT_OCCUPIED"
	CodeSlotEmpty        RejectionCode = "SLOT_EMPTY"
	CodeInsufficientMana RejectionCode = "INSUFFICIENT_MANA"
	CodeUnitNotReady     RejectionCode = "UNIT_NOT_READY"
	CodeNotOwned         RejectionCode = "NOT_OWNED"
	CodeFriendlyTarget   RejectionCode = "FRIENDLY_TARGET"
	CodeUnknownAction    RejectionCode = "UNKNOWN_ACTION"
)

// RejectionError is returned by every resolver when an action's
// preconditions do not hold.
type RejectionError struct {
	Code    RejectionCode
	Message string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any rejection with the same code, so errors.Is(err, ErrSlotEmpty)
// holds regardless of the message.
func (e *RejectionError) Is(target error) bool {
	t, ok := target.(*RejectionError)
	return ok && t.Code == e.Code
}

var (
	ErrNotYourTurn      = &RejectionError{Code: CodeNotYourTurn}
	ErrGameAlreadyOver  = &RejectionError{Code: CodeGameAlreadyOver}
	ErrInvalidPosition  = &RejectionError{Code: CodeInvalidPosition}
	ErrSlotOccupied     = &RejectionError{Code: CodeSlotOccupied}
	ErrSlotEmpty        = &RejectionError{Code: CodeSlotEmpty}
	ErrInsufficientMana = &RejectionError{Code: CodeInsufficientMana}
	ErrUnitNotReady     = &RejectionError{Code: CodeUnitNotReady}
	ErrNotOwned         = &RejectionError{Code: CodeNotOwned}
	ErrFriendlyTarget   = &RejectionError{Code: CodeFriendlyTarget}
	ErrUnknownAction    = &RejectionError{Code: CodeUnknownAction}
)

// Storage errors returned by Store implementations.
var (
	ErrGameNotFound    = errors.New("game not found")
	ErrGameExists      = errors.New("game already exists")
	ErrVersionConflict = errors.New("game record version conflict")
)

var (
	ErrReplayNotFound  = errors.New("replay not found")
	ErrReplaysDisabled = errors.New("replay recording is disabled")
)

func reject(code RejectionCode, format string, args ...interface{}) error {
	return &RejectionError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// RejectionCodeOf extracts the rejection code from err.
func RejectionCodeOf(err error) (RejectionCode, bool) {
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return rejection.Code, true
	}
	return "", false
}

// IsRejection reports whether err is a rule rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	_, ok := RejectionCodeOf(err)
	return ok
}
