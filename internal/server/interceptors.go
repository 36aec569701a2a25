package server

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// adminMethods lists the methods that require the operator password.
var adminMethods = map[string]bool{
	fullMethod("ForceConcede"): true,
}

// RecoveryInterceptor turns handler panics into Internal errors.
func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in grpc handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				resp = nil
				err = status.Errorf(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs every call with its outcome and duration.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
		}
		if player := PlayerIDFromContext(ctx); player != "" {
			fields = append(fields, zap.String("player_id", player))
		}

		switch code {
		case codes.OK:
			logger.Debug("grpc call", fields...)
		case codes.Internal, codes.Unknown:
			logger.Error("grpc call failed", append(fields, zap.Error(err))...)
		default:
			logger.Info("grpc call rejected", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}

// AdminInterceptor guards admin methods with a bcrypt password hash. With an
// empty hash every admin call is refused.
func AdminInterceptor(passwordHash string, logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !adminMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		if passwordHash == "" {
			return nil, status.Errorf(codes.PermissionDenied, "admin access is not configured")
		}

		password := metadataValue(ctx, AdminPasswordHeader)
		if password == "" {
			return nil, status.Errorf(codes.PermissionDenied, "%s metadata is required", AdminPasswordHeader)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
			logger.Warn("admin authentication failed",
				zap.String("method", info.FullMethod),
				zap.String("host", extractHostFromContext(ctx)),
			)
			return nil, status.Errorf(codes.PermissionDenied, "invalid admin password")
		}
		return handler(ctx, req)
	}
}
