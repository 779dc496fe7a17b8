package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const storeColumns = `id, name, description, category, location, floor, block, image_url, instagram, created_at, updated_at`

func scanStore(row interface{ Scan(...any) error }, item *StoreEntry) error {
	return row.Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.Category,
		&item.Location,
		&item.Floor,
		&item.Block,
		&item.ImageURL,
		&item.Instagram,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
}

func (s *PostgresStore) ListStores(ctx context.Context) ([]StoreEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+storeColumns+`
		FROM stores
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	items := make([]StoreEntry, 0)
	for rows.Next() {
		var item StoreEntry
		if err := scanStore(rows, &item); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stores: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetStore(ctx context.Context, storeID string) (StoreEntry, error) {
	var item StoreEntry
	row := s.db.QueryRowContext(ctx, `
		SELECT `+storeColumns+`
		FROM stores
		WHERE id=$1
	`, storeID)
	if err := scanStore(row, &item); err != nil {
		return StoreEntry{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertStore(ctx context.Context, item StoreEntry) (StoreEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO stores (id, name, description, category, location, floor, block, image_url, instagram)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+storeColumns+`
	`, item.ID, item.Name, item.Description, item.Category, item.Location, item.Floor, item.Block, item.ImageURL, item.Instagram)
	var created StoreEntry
	if err := scanStore(row, &created); err != nil {
		return StoreEntry{}, fmt.Errorf("insert store: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) UpdateStore(ctx context.Context, storeID string, update StoreUpdate) (StoreEntry, error) {
	set := []string{}
	args := []any{storeID}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.Category != nil {
		add("category", *update.Category)
	}
	if update.Location != nil {
		add("location", *update.Location)
	}
	if update.Floor != nil {
		add("floor", *update.Floor)
	}
	if update.Block != nil {
		add("block", *update.Block)
	}
	if update.ImageURL != nil {
		add("image_url", *update.ImageURL)
	}
	if update.Instagram != nil {
		add("instagram", *update.Instagram)
	}
	if len(set) == 0 {
		return s.GetStore(ctx, storeID)
	}
	set = append(set, "updated_at=NOW()")

	query := `UPDATE stores SET ` + strings.Join(set, ", ") + ` WHERE id=$1 RETURNING ` + storeColumns
	var item StoreEntry
	if err := scanStore(s.db.QueryRowContext(ctx, query, args...), &item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StoreEntry{}, err
		}
		return StoreEntry{}, fmt.Errorf("update store: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) DeleteStore(ctx context.Context, storeID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM stores WHERE id=$1`, storeID)
	if err != nil {
		return fmt.Errorf("delete store: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete store affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) GetBanner(ctx context.Context) (BannerConfig, error) {
	var banner BannerConfig
	err := s.db.QueryRowContext(ctx, `
		SELECT image_url, title, subtitle, updated_at
		FROM banner_config
		WHERE id=1
	`).Scan(&banner.ImageURL, &banner.Title, &banner.Subtitle, &banner.UpdatedAt)
	if err != nil {
		return BannerConfig{}, err
	}
	return banner, nil
}

func (s *PostgresStore) UpsertBanner(ctx context.Context, banner BannerConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO banner_config (id, image_url, title, subtitle)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET image_url=EXCLUDED.image_url, title=EXCLUDED.title, subtitle=EXCLUDED.subtitle, updated_at=NOW()
	`, banner.ImageURL, banner.Title, banner.Subtitle)
	if err != nil {
		return fmt.Errorf("upsert banner: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM user_roles WHERE user_id=$1`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "user", nil
	}
	if err != nil {
		return "", fmt.Errorf("read role: %w", err)
	}
	return role, nil
}

func (s *PostgresStore) SetRole(ctx context.Context, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET role=EXCLUDED.role
	`, userID, role)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

func (s *PostgresStore) VisitorCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT count FROM visitor_counter WHERE id=1`).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read visitor count: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) IncrementVisitors(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO visitor_counter (id, count)
		VALUES (1, 1)
		ON CONFLICT (id) DO UPDATE SET count=visitor_counter.count+1
		RETURNING count
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment visitors: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, is_email_verified, created_at, updated_at
		FROM users
		WHERE LOWER(email)=LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.IsEmailVerified, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	role, err := s.GetRole(ctx, user.ID)
	if err != nil {
		return User{}, err
	}
	user.Role = role
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, is_email_verified, created_at, updated_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.IsEmailVerified, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	role, err := s.GetRole(ctx, user.ID)
	if err != nil {
		return User{}, err
	}
	user.Role = role
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, is_email_verified, verification_token)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.IsEmailVerified, user.VerificationToken)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if user.Role != "" {
		if err := s.SetRole(ctx, user.ID, user.Role); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW() WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token='', verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	return nil
}
