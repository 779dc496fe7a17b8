package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"galleria/api/internal/auth"
	"galleria/api/internal/store"
	"galleria/api/internal/util"
)

type EventType string

const (
	EventLogin   EventType = "login"
	EventRefresh EventType = "refresh"
	EventLogout  EventType = "logout"
)

// Event describes a session change delivered to subscribers.
type Event struct {
	Type EventType
	User store.User
}

// Storage is the refresh token backend the provider drives.
type Storage interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// Provider issues, rotates and revokes refresh sessions and broadcasts
// every change to its subscribers.
type Provider struct {
	storage    Storage
	refreshTTL time.Duration

	mu          sync.Mutex
	nextID      int
	subscribers map[int]func(Event)
}

func NewProvider(storage Storage, refreshTTL time.Duration) *Provider {
	return &Provider{
		storage:     storage,
		refreshTTL:  refreshTTL,
		subscribers: make(map[int]func(Event)),
	}
}

// Subscribe registers fn for session change events and returns an
// unsubscribe func. Callbacks run synchronously on the goroutine that
// performed the session operation.
func (p *Provider) Subscribe(fn func(Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.subscribers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subscribers, id)
	}
}

func (p *Provider) notify(event Event) {
	p.mu.Lock()
	fns := make([]func(Event), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(event)
	}
}

// Issue creates a fresh refresh token for user and announces the login.
func (p *Provider) Issue(ctx context.Context, user store.User) (string, error) {
	token := util.RandomHex(32)
	expiresAt := time.Now().Add(p.refreshTTL)
	if err := p.storage.SaveRefreshSession(ctx, auth.HashToken(token), user, expiresAt); err != nil {
		return "", fmt.Errorf("issue session: %w", err)
	}
	p.notify(Event{Type: EventLogin, User: user})
	return token, nil
}

// Refresh rotates a refresh token, returning the stored identity and the
// replacement token.
func (p *Provider) Refresh(ctx context.Context, token string) (store.User, string, error) {
	oldHash := auth.HashToken(token)
	user, err := p.storage.LookupRefreshSession(ctx, oldHash)
	if err != nil {
		return store.User{}, "", err
	}

	next := util.RandomHex(32)
	expiresAt := time.Now().Add(p.refreshTTL)
	if err := p.storage.SaveRefreshSession(ctx, auth.HashToken(next), user, expiresAt); err != nil {
		return store.User{}, "", fmt.Errorf("rotate session: %w", err)
	}
	if err := p.storage.RevokeRefreshSession(ctx, oldHash); err != nil {
		return store.User{}, "", fmt.Errorf("retire session: %w", err)
	}
	p.notify(Event{Type: EventRefresh, User: user})
	return user, next, nil
}

// Lookup resolves a refresh token without rotating it.
func (p *Provider) Lookup(ctx context.Context, token string) (store.User, error) {
	return p.storage.LookupRefreshSession(ctx, auth.HashToken(token))
}

// Revoke ends a session and announces the logout.
func (p *Provider) Revoke(ctx context.Context, token string) error {
	hash := auth.HashToken(token)
	user, err := p.storage.LookupRefreshSession(ctx, hash)
	if err != nil {
		user = store.User{}
	}
	if err := p.storage.RevokeRefreshSession(ctx, hash); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	p.notify(Event{Type: EventLogout, User: user})
	return nil
}
