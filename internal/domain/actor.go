package domain

import (
	"context"
	"errors"
)

// Actor is the authenticated caller, resolved at the transport boundary.
type Actor struct {
	UserID string
	ClubID string
	Role   Role
}

// IsAdmin reports whether the actor may run administrative operations.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// Role represents a user's access level
type Role string

const (
	// RoleAdmin can adjust wallets, toggle the market and manage rules
	RoleAdmin Role = "admin"

	// RoleManager negotiates on behalf of the club in the token
	RoleManager Role = "manager"

	// RoleViewer can only read
	RoleViewer Role = "viewer"
)

var validRoles = map[Role]bool{
	RoleAdmin:   true,
	RoleManager: true,
	RoleViewer:  true,
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanNegotiate checks if the role may create and answer offers
func (r Role) CanNegotiate() bool {
	return r == RoleAdmin || r == RoleManager
}

// Party is the side an actor plays in a particular offer.
type Party string

const (
	PartySeller Party = "seller"
	PartyBuyer  Party = "buyer"
	PartyNone   Party = "none"
)

type actorContextKey struct{}

// WithActor returns a context carrying actor.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(*Actor)
	return actor, ok && actor != nil
}

// ActorIDFromContext returns the acting user id, or "system" when none is present.
func ActorIDFromContext(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.UserID != "" {
		return actor.UserID
	}
	return "system"
}

// Authentication errors
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)
