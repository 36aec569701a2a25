package server

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gridduel/duel-server-go/internal/game"
	"github.com/gridduel/duel-server-go/internal/leaderboard"
	"github.com/gridduel/duel-server-go/internal/repository"
)

// rejectionCodes maps rule rejections to gRPC codes. Malformed positions are
// the caller's fault; everything else depends on the current game state.
var rejectionCodes = map[game.RejectionCode]codes.Code{
	game.CodeNotYourTurn:      codes.FailedPrecondition,
	game.CodeGameAlreadyOver:  codes.FailedPrecondition,
	game.CodeInvalidPosition:  codes.InvalidArgument,
	game.CodeSlotOccupied:     codes.FailedPrecondition,
	game.CodeSlotEmpty:        codes.FailedPrecondition,
	game.CodeInsufficientMana: codes.FailedPrecondition,
	game.CodeUnitNotReady:     codes.FailedPrecondition,
	game.CodeNotOwned:         codes.PermissionDenied,
	game.CodeFriendlyTarget:   codes.InvalidArgument,
	game.CodeUnknownAction:    codes.InvalidArgument,
}

// toStatus converts a domain error into a gRPC status error. Rejection
// messages keep their code prefix so clients can branch on it.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if code, ok := game.RejectionCodeOf(err); ok {
		grpcCode, known := rejectionCodes[code]
		if !known {
			grpcCode = codes.FailedPrecondition
		}
		return status.Error(grpcCode, err.Error())
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, game.ErrGameNotFound),
		errors.Is(err, game.ErrReplayNotFound),
		errors.Is(err, repository.ErrPlayerNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, game.ErrGameExists),
		errors.Is(err, repository.ErrPlayerExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, game.ErrVersionConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, game.ErrReplaysDisabled):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, repository.ErrPlayerBusy):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, game.ErrInvalidSetup),
		errors.Is(err, leaderboard.ErrNameRequired),
		errors.Is(err, leaderboard.ErrNameTooLong):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
