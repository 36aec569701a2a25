package server

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

const (
	// PlayerIDHeader names the acting player on every game action.
	PlayerIDHeader = "x-player-id"
	// AdminPasswordHeader carries the operator password for admin methods.
	AdminPasswordHeader = "x-admin-password"
)

func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// PlayerIDFromContext returns the acting player, or "" when the caller did
// not identify itself.
func PlayerIDFromContext(ctx context.Context) string {
	return metadataValue(ctx, PlayerIDHeader)
}

// WithPlayerID attaches the acting player to an outgoing call.
func WithPlayerID(ctx context.Context, playerID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, PlayerIDHeader, playerID)
}

// WithAdminPassword attaches the operator password to an outgoing call.
func WithAdminPassword(ctx context.Context, password string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, AdminPasswordHeader, password)
}

func extractHostFromContext(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	return p.Addr.String()
}
