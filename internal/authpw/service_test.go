package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"galleria/api/internal/store"
)

type mockUserStore struct {
	users         map[string]store.User
	emailIndex    map[string]string
	verifications map[string]store.User
	resets        map[string]struct {
		userID    string
		expiresAt time.Time
		used      bool
	}
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:         make(map[string]store.User),
		emailIndex:    make(map[string]string),
		verifications: make(map[string]store.User),
		resets: make(map[string]struct {
			userID    string
			expiresAt time.Time
			used      bool
		}),
	}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) error {
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	return nil
}

func (m *mockUserStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if user, ok := m.users[userID]; ok {
		user.VerificationToken = token
		user.VerificationExpiresAt = &expiresAt
		m.users[userID] = user
		m.verifications[token] = user
	}
	return nil
}

func (m *mockUserStore) VerifyUserEmail(ctx context.Context, token string) error {
	if user, ok := m.verifications[token]; ok {
		user.IsEmailVerified = true
		m.users[user.ID] = user
		m.emailIndex[user.Email] = user.ID
		return nil
	}
	return errors.New("invalid token")
}

func (m *mockUserStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	if user, ok := m.users[userID]; ok {
		user.PasswordHash = passwordHash
		m.users[userID] = user
		return nil
	}
	return errors.New("user not found")
}

func (m *mockUserStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	m.resets[token] = struct {
		userID    string
		expiresAt time.Time
		used      bool
	}{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *mockUserStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	if reset, ok := m.resets[token]; ok && !reset.used && time.Now().Before(reset.expiresAt) {
		return reset.userID, nil
	}
	return "", errors.New("invalid or expired token")
}

func (m *mockUserStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	if reset, ok := m.resets[token]; ok {
		reset.used = true
		m.resets[token] = reset
	}
	return nil
}

func signUp(t *testing.T, svc *Service, mock *mockUserStore, email string) *SignUpResponse {
	t.Helper()
	resp, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       email,
		Password:    "password123",
		DisplayName: "Test Shopper",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	return resp
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	t.Run("successful sign up", func(t *testing.T) {
		resp := signUp(t, svc, mockStore, "shopper@example.com")
		if !resp.RequiresEmailVerify {
			t.Error("expected email verification to be required")
		}
		if resp.VerificationToken == "" {
			t.Error("expected a verification token")
		}
		user := mockStore.users[resp.UserID]
		if user.Role != "user" {
			t.Errorf("expected default role user, got %q", user.Role)
		}
		if user.PasswordHash == "password123" {
			t.Error("password must be hashed")
		}
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "shopper@example.com",
			Password:    "password123",
			DisplayName: "Other",
		})
		if err == nil {
			t.Fatal("expected duplicate email error")
		}
	})

	t.Run("short password rejected", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "new@example.com",
			Password:    "short",
			DisplayName: "New",
		})
		if err == nil {
			t.Fatal("expected password length error")
		}
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{Email: "x@example.com"})
		if err == nil {
			t.Fatal("expected missing fields error")
		}
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	resp := signUp(t, svc, mockStore, "shopper@example.com")

	t.Run("unverified account flagged", func(t *testing.T) {
		signin, err := svc.SignIn(ctx, SignInRequest{Email: "shopper@example.com", Password: "password123"})
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if !signin.RequiresVerify {
			t.Error("expected RequiresVerify before email verification")
		}
	})

	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	t.Run("successful sign in", func(t *testing.T) {
		signin, err := svc.SignIn(ctx, SignInRequest{Email: "shopper@example.com", Password: "password123"})
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if signin.RequiresVerify {
			t.Error("verified account should not require verification")
		}
		if signin.User.Email != "shopper@example.com" {
			t.Errorf("unexpected user %+v", signin.User)
		}
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "shopper@example.com", Password: "wrong-pass"}); err == nil {
			t.Fatal("expected invalid credentials error")
		}
	})

	t.Run("unknown email rejected", func(t *testing.T) {
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "ghost@example.com", Password: "password123"}); err == nil {
			t.Fatal("expected invalid credentials error")
		}
	})
}

func TestVerifyEmail(t *testing.T) {
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	if err := svc.VerifyEmail(context.Background(), "bogus"); err == nil {
		t.Fatal("expected error for unknown token")
	}
	if err := svc.VerifyEmail(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	resp := signUp(t, svc, mockStore, "shopper@example.com")
	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	t.Run("unknown email reveals nothing", func(t *testing.T) {
		token, err := svc.RequestPasswordReset(ctx, "ghost@example.com")
		if err != nil {
			t.Fatalf("RequestPasswordReset failed: %v", err)
		}
		if token != "" {
			t.Error("unknown email must not produce a token")
		}
	})

	token, err := svc.RequestPasswordReset(ctx, "shopper@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a reset token")
	}

	t.Run("reset changes password", func(t *testing.T) {
		err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "newpassword456"})
		if err != nil {
			t.Fatalf("ResetPassword failed: %v", err)
		}
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "shopper@example.com", Password: "newpassword456"}); err != nil {
			t.Fatalf("sign in with new password failed: %v", err)
		}
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "shopper@example.com", Password: "password123"}); err == nil {
			t.Fatal("old password must stop working")
		}
	})

	t.Run("token is single use", func(t *testing.T) {
		if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "anotherpass789"}); err == nil {
			t.Fatal("expected error for reused token")
		}
	})
}
