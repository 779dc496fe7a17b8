package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"galleria/api/internal/session"
	"galleria/api/internal/store"
)

type fakeRoles struct {
	getRoleFn func(ctx context.Context, userID string) (string, error)
}

func (f *fakeRoles) GetRole(ctx context.Context, userID string) (string, error) {
	return f.getRoleFn(ctx, userID)
}

func adminRoles(adminID string) *fakeRoles {
	return &fakeRoles{getRoleFn: func(_ context.Context, userID string) (string, error) {
		if userID == adminID {
			return "admin", nil
		}
		return "user", nil
	}}
}

func newTestProvider() *session.Provider {
	sessions := map[string]store.User{}
	return session.NewProvider(&mapStorage{sessions: sessions}, time.Hour)
}

type mapStorage struct {
	sessions map[string]store.User
}

func (m *mapStorage) SaveRefreshSession(_ context.Context, hash string, user store.User, _ time.Time) error {
	m.sessions[hash] = user
	return nil
}

func (m *mapStorage) LookupRefreshSession(_ context.Context, hash string) (store.User, error) {
	user, ok := m.sessions[hash]
	if !ok {
		return store.User{}, session.ErrSessionNotFound
	}
	return user, nil
}

func (m *mapStorage) RevokeRefreshSession(_ context.Context, hash string) error {
	delete(m.sessions, hash)
	return nil
}

func TestInitialStateIsUnauthenticated(t *testing.T) {
	resolver := NewResolver(adminRoles("usr_admin"), newTestProvider())
	defer resolver.Close()

	if got := resolver.State(); got != StateUnauthenticated {
		t.Fatalf("expected unauthenticated before any session, got %s", got)
	}
}

func TestLoginEventResolvesAdmin(t *testing.T) {
	provider := newTestProvider()
	resolver := NewResolver(adminRoles("usr_admin"), provider)
	defer resolver.Close()

	if _, err := provider.Issue(context.Background(), store.User{ID: "usr_admin"}); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if got := resolver.State(); got != StateAdmin {
		t.Fatalf("expected admin after admin login, got %s", got)
	}
}

func TestLoginEventResolvesNonAdmin(t *testing.T) {
	provider := newTestProvider()
	resolver := NewResolver(adminRoles("usr_admin"), provider)
	defer resolver.Close()

	if _, err := provider.Issue(context.Background(), store.User{ID: "usr_shopper"}); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if got := resolver.State(); got != StateNonAdmin {
		t.Fatalf("expected authenticated non-admin, got %s", got)
	}
}

func TestRoleLookupErrorNeverYieldsAdmin(t *testing.T) {
	provider := newTestProvider()
	failing := &fakeRoles{getRoleFn: func(context.Context, string) (string, error) {
		return "", errors.New("db down")
	}}
	resolver := NewResolver(failing, provider)
	defer resolver.Close()

	if _, err := provider.Issue(context.Background(), store.User{ID: "usr_admin"}); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if got := resolver.State(); got != StateNonAdmin {
		t.Fatalf("role error must degrade to non-admin, got %s", got)
	}
}

func TestLogoutEventClearsState(t *testing.T) {
	provider := newTestProvider()
	resolver := NewResolver(adminRoles("usr_admin"), provider)
	defer resolver.Close()

	ctx := context.Background()
	token, err := provider.Issue(ctx, store.User{ID: "usr_admin"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := provider.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if got := resolver.State(); got != StateUnauthenticated {
		t.Fatalf("expected unauthenticated after logout, got %s", got)
	}
}

func TestRefreshEventReResolves(t *testing.T) {
	provider := newTestProvider()
	promoted := false
	roles := &fakeRoles{getRoleFn: func(context.Context, string) (string, error) {
		if promoted {
			return "admin", nil
		}
		return "user", nil
	}}
	resolver := NewResolver(roles, provider)
	defer resolver.Close()

	ctx := context.Background()
	token, err := provider.Issue(ctx, store.User{ID: "usr_1"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if got := resolver.State(); got != StateNonAdmin {
		t.Fatalf("expected non-admin before promotion, got %s", got)
	}

	promoted = true
	if _, _, err := provider.Refresh(ctx, token); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := resolver.State(); got != StateAdmin {
		t.Fatalf("expected admin after refresh re-resolution, got %s", got)
	}
}

func TestResolveRecomputesOnDemand(t *testing.T) {
	provider := newTestProvider()
	role := "user"
	roles := &fakeRoles{getRoleFn: func(context.Context, string) (string, error) {
		return role, nil
	}}
	resolver := NewResolver(roles, provider)
	defer resolver.Close()

	ctx := context.Background()
	if _, err := provider.Issue(ctx, store.User{ID: "usr_1"}); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	role = "admin"
	if got := resolver.Resolve(ctx); got != StateAdmin {
		t.Fatalf("expected admin from fresh resolution, got %s", got)
	}
	if got := resolver.State(); got != StateAdmin {
		t.Fatalf("expected cached state updated, got %s", got)
	}
}

func TestEventsAfterCloseAreDiscarded(t *testing.T) {
	provider := newTestProvider()
	resolver := NewResolver(adminRoles("usr_admin"), provider)

	resolver.Close()
	if _, err := provider.Issue(context.Background(), store.User{ID: "usr_admin"}); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if got := resolver.State(); got != StateUnauthenticated {
		t.Fatalf("closed resolver must not change state, got %s", got)
	}
}
