// Package auth identifies the actor behind a request and carries it in the
// context. Operations that change jobs require an actor with the admin role
// and fail closed when none is present.
package auth

import (
	"context"

	"github.com/teranos/newsdesk/errors"
)

// Actor is a verified caller identity
type Actor struct {
	ID    string `json:"id"`
	Admin bool   `json:"admin"`
}

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const actorContextKey contextKey = "auth_actor"

// WithActor returns a copy of ctx carrying actor
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext returns the actor carried by ctx, or nil
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey).(*Actor)
	return actor
}

// IsAuthenticated checks if ctx carries a verified actor
func IsAuthenticated(ctx context.Context) bool {
	return ActorFromContext(ctx) != nil
}

// RequireAdmin returns the actor in ctx if it has the admin role.
// No actor yields ErrUnauthorized; a non-admin actor yields ErrForbidden.
func RequireAdmin(ctx context.Context) (*Actor, error) {
	actor := ActorFromContext(ctx)
	if actor == nil || actor.ID == "" {
		return nil, errors.Wrap(errors.ErrUnauthorized, "no verified actor")
	}
	if !actor.Admin {
		return nil, errors.Wrapf(errors.ErrForbidden, "actor %s lacks the admin role", actor.ID)
	}
	return actor, nil
}
