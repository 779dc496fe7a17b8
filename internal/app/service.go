package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"galleria/api/internal/auth"
	"galleria/api/internal/authpw"
	"galleria/api/internal/authz"
	"galleria/api/internal/catalog"
	"galleria/api/internal/config"
	"galleria/api/internal/directory"
	"galleria/api/internal/rbac"
	"galleria/api/internal/search"
	"galleria/api/internal/session"
	"galleria/api/internal/store"
	"galleria/api/internal/upload"
	"galleria/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	ListStores(ctx context.Context) ([]store.StoreEntry, error)
	GetStore(ctx context.Context, storeID string) (store.StoreEntry, error)
	GetBanner(ctx context.Context) (store.BannerConfig, error)
	UpsertBanner(ctx context.Context, banner store.BannerConfig) error
	GetRole(ctx context.Context, userID string) (string, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	VisitorCount(ctx context.Context) (int64, error)
	IncrementVisitors(ctx context.Context) (int64, error)
}

// Service orchestrates the directory, sessions and uploads behind the
// HTTP surface.
type Service struct {
	cfg      config.Config
	store    dataStore
	db       *sql.DB
	sessions *session.Provider
	resolver *authz.Resolver
	model    *directory.ReadModel
	pipeline *directory.Pipeline
	uploads  *upload.Orchestrator
	search   *search.Service
	authpw   *authpw.Service
}

func NewService(
	cfg config.Config,
	dataStore dataStore,
	db *sql.DB,
	sessions *session.Provider,
	model *directory.ReadModel,
	pipeline *directory.Pipeline,
	uploads *upload.Orchestrator,
	searchSvc *search.Service,
	authSvc *authpw.Service,
) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		db:       db,
		sessions: sessions,
		resolver: authz.NewResolver(dataStore, sessions),
		model:    model,
		pipeline: pipeline,
		uploads:  uploads,
		search:   searchSvc,
		authpw:   authSvc,
	}
}

// Bootstrap loads the read model and backfills the search index.
func (s *Service) Bootstrap(ctx context.Context) error {
	if err := s.model.RefreshEntries(ctx); err != nil {
		return err
	}
	if err := s.model.RefreshBanner(ctx); err != nil {
		return err
	}
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

// Close releases the resolver's session subscription.
func (s *Service) Close() {
	s.resolver.Close()
}

func (s *Service) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

// Login authenticates by email and password and issues a session.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	signin, err := s.authpw.SignIn(ctx, authpw.SignInRequest{Email: email, Password: password})
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil)
	}
	if signin.RequiresVerify {
		return Session{}, domainError(http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Email address not verified", nil)
	}
	return s.issueSession(ctx, signin.User)
}

// Refresh rotates the refresh token and mints a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	user, next, err := s.sessions.Refresh(ctx, refreshToken)
	if err != nil {
		return Session{}, err
	}
	sess, err := s.accessSession(user)
	if err != nil {
		return Session{}, err
	}
	sess.RefreshToken = next
	return sess, nil
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	sess, err := s.accessSession(user)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.sessions.Issue(ctx, user)
	if err != nil {
		return Session{}, err
	}
	sess.RefreshToken = refresh
	return sess, nil
}

func (s *Service) accessSession(user store.User) (Session, error) {
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Email: user.Email,
		Name:  user.DisplayName,
		Role:  user.Role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       jti,
		ExpiresAt: expiresAt,
	}, nil
}

// SessionFromToken validates an access token and rehydrates the session
// with the user's current role.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, refreshToken)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// AuthzState recomputes the resolver state for the active session.
func (s *Service) AuthzState(ctx context.Context) authz.State {
	return s.resolver.Resolve(ctx)
}

// Stores filters the read-model snapshot by the given criteria.
func (s *Service) Stores(criteria catalog.Criteria) []store.StoreEntry {
	return s.model.Filter(criteria)
}

// StoreCounts tallies the full snapshot per category.
func (s *Service) StoreCounts() catalog.Counts {
	return s.model.Counts()
}

func (s *Service) GetStore(ctx context.Context, storeID string) (store.StoreEntry, error) {
	return s.store.GetStore(ctx, storeID)
}

func (s *Service) CreateStore(ctx context.Context, sess Session, input directory.StoreInput) (store.StoreEntry, error) {
	if !s.Can(sess.Role, rbac.ActionManageStores) {
		return store.StoreEntry{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return s.pipeline.Create(ctx, input)
}

func (s *Service) UpdateStore(ctx context.Context, sess Session, storeID string, patch directory.StorePatch) (store.StoreEntry, error) {
	if !s.Can(sess.Role, rbac.ActionManageStores) {
		return store.StoreEntry{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return s.pipeline.Update(ctx, storeID, patch)
}

func (s *Service) DeleteStore(ctx context.Context, sess Session, storeID string, confirmed bool) error {
	if !s.Can(sess.Role, rbac.ActionManageStores) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return s.pipeline.Delete(ctx, storeID, func() bool { return confirmed })
}

func (s *Service) Banner() store.BannerConfig {
	return s.model.Banner()
}

func (s *Service) UpdateBanner(ctx context.Context, sess Session, banner store.BannerConfig) (store.BannerConfig, error) {
	if !s.Can(sess.Role, rbac.ActionManageBanner) {
		return store.BannerConfig{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if banner.ImageURL == "" {
		return store.BannerConfig{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "imageUrl is required", nil)
	}
	if err := s.store.UpsertBanner(ctx, banner); err != nil {
		return store.BannerConfig{}, err
	}
	if err := s.model.RefreshBanner(ctx); err != nil {
		return store.BannerConfig{}, err
	}
	return s.model.Banner(), nil
}

func (s *Service) UploadStoreImage(ctx context.Context, sess Session, file upload.File) (string, error) {
	if !s.Can(sess.Role, rbac.ActionManageStores) {
		return "", domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return s.uploads.Upload(ctx, file)
}

// Search answers the typeahead endpoint. Directory filtering stays on the
// in-memory predicate engine.
func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func (s *Service) Visitors(ctx context.Context) (int64, error) {
	return s.store.VisitorCount(ctx)
}

func (s *Service) RecordVisit(ctx context.Context) (int64, error) {
	return s.store.IncrementVisitors(ctx)
}
