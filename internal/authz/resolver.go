// Package authz resolves the effective authorization state for the
// active session.
package authz

import (
	"context"
	"sync"

	"galleria/api/internal/rbac"
	"galleria/api/internal/session"
	"galleria/api/internal/store"
)

type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateNonAdmin        State = "authenticated"
	StateAdmin           State = "admin"
)

// RoleStore looks up the persisted role for a user.
type RoleStore interface {
	GetRole(ctx context.Context, userID string) (string, error)
}

// SessionSource delivers session change notifications.
type SessionSource interface {
	Subscribe(fn func(session.Event)) func()
}

// Resolver derives an authorization state from the most recent session
// event and the role store. Admin is proven by a role lookup, never
// assumed from the session alone.
type Resolver struct {
	roles RoleStore

	mu          sync.Mutex
	state       State
	current     *store.User
	unsubscribe func()
	closed      bool
}

func NewResolver(roles RoleStore, sessions SessionSource) *Resolver {
	r := &Resolver{
		roles: roles,
		state: StateUnauthenticated,
	}
	r.unsubscribe = sessions.Subscribe(r.onEvent)
	return r
}

func (r *Resolver) onEvent(event session.Event) {
	switch event.Type {
	case session.EventLogout:
		r.replace(nil)
	case session.EventLogin, session.EventRefresh:
		user := event.User
		r.replace(&user)
	}
}

func (r *Resolver) replace(user *store.User) {
	state := r.resolve(context.Background(), user)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.current = user
	r.state = state
}

func (r *Resolver) resolve(ctx context.Context, user *store.User) State {
	if user == nil || user.ID == "" {
		return StateUnauthenticated
	}
	role, err := r.roles.GetRole(ctx, user.ID)
	if err != nil {
		return StateNonAdmin
	}
	if rbac.Role(role) == rbac.RoleAdmin {
		return StateAdmin
	}
	return StateNonAdmin
}

// Resolve recomputes the state for the active session and caches it.
func (r *Resolver) Resolve(ctx context.Context) State {
	r.mu.Lock()
	user := r.current
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return StateUnauthenticated
	}

	state := r.resolve(ctx, user)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return state
	}
	r.state = state
	return state
}

// State returns the cached state without a role lookup.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Close releases the session subscription. Later events are discarded.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unsubscribe := r.unsubscribe
	r.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}
