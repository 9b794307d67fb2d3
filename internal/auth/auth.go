// Package auth declares the authorization surface consumed from the
// excluded auth service. The pipeline only ever calls these interfaces;
// concrete clients are injected at startup.
package auth

import "context"

// Authorizer answers membership questions before publish and join.
type Authorizer interface {
	IsMember(ctx context.Context, userID int64, roomKey string) (bool, error)
	HasAccess(ctx context.Context, userID int64, channelID string) (bool, error)
}

// TokenValidator verifies a bearer token and returns the user id.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (int64, error)
}
