package service

import (
	"context"
	"fmt"

	"github.com/Dan9191/bank-portal/internal/models"
)

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID int64
	Role   models.Role
}

// IsAdmin reports whether the actor has administrative capability
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// SystemActor is used by background jobs
var SystemActor = Actor{Role: models.RoleAdmin}

type actorKey struct{}

// WithActor stores the caller in the context
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the caller stored by WithActor
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

func requireActor(ctx context.Context) (Actor, error) {
	a, ok := ActorFrom(ctx)
	if !ok || (a.UserID == 0 && !a.IsAdmin()) {
		return Actor{}, fmt.Errorf("%w: no authenticated caller", ErrForbidden)
	}
	return a, nil
}

func requireAdmin(ctx context.Context) (Actor, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return a, err
	}
	if !a.IsAdmin() {
		return a, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return a, nil
}

// requireOwnerOrAdmin passes admins and the owner of the resource
func requireOwnerOrAdmin(ctx context.Context, ownerID int64) (Actor, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return a, err
	}
	if !a.IsAdmin() && a.UserID != ownerID {
		return a, fmt.Errorf("%w: resource belongs to another user", ErrForbidden)
	}
	return a, nil
}

// requireOwner passes only the owner; admins get no exception
func requireOwner(ctx context.Context, ownerID int64) (Actor, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return a, err
	}
	if a.UserID != ownerID {
		return a, fmt.Errorf("%w: resource belongs to another user", ErrForbidden)
	}
	return a, nil
}
