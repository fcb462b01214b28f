package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/recipetube/backend/internal/domain"
)

// UserRepository stores accounts, their quota state and one-time tokens
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, email_verified, daily_search_count, last_search_date, created_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var (
		u         domain.User
		createdAt int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerified,
		&u.Quota.DailySearchCount, &u.Quota.LastSearchDate, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

// Create inserts a user; a taken email yields ErrAlreadyExists
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.EmailVerified,
		user.Quota.DailySearchCount, user.Quota.LastSearchDate, toMillis(user.CreatedAt))
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByID loads a user
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(r.db.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, err
}

// GetByEmail loads a user by normalized email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(r.db.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, err
}

// UpdateQuota writes next only while the stored quota still equals prev
func (r *UserRepository) UpdateQuota(ctx context.Context, id string, prev, next domain.QuotaState) error {
	res, err := r.db.exec(ctx,
		`UPDATE users SET daily_search_count = ?, last_search_date = ?
		 WHERE id = ? AND daily_search_count = ? AND last_search_date = ?`,
		next.DailySearchCount, next.LastSearchDate, id, prev.DailySearchCount, prev.LastSearchDate)
	if err != nil {
		return fmt.Errorf("update quota: %w", err)
	}
	if affected(res) == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrConflict
}

// MarkVerified flags the user's email as confirmed
func (r *UserRepository) MarkVerified(ctx context.Context, id string) error {
	res, err := r.db.exec(ctx, `UPDATE users SET email_verified = ? WHERE id = ?`, true, id)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if affected(res) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.exec(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if affected(res) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes the user together with its tokens, sessions and saved recipes
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.db.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"user_tokens", "sessions", "saved_recipes"} {
			if _, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM `+table+` WHERE user_id = ?`), id); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		res, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM users WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if affected(res) == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// ResetDailySearchCounts zeroes every non-zero daily search count
func (r *UserRepository) ResetDailySearchCounts(ctx context.Context) (int64, error) {
	res, err := r.db.exec(ctx, `UPDATE users SET daily_search_count = 0 WHERE daily_search_count <> 0`)
	if err != nil {
		return 0, fmt.Errorf("reset daily search counts: %w", err)
	}
	return affected(res), nil
}

// SaveToken stores a one-time token for the user
func (r *UserRepository) SaveToken(ctx context.Context, userID string, purpose domain.TokenPurpose, token string, expiresAt time.Time) error {
	_, err := r.db.exec(ctx,
		`INSERT INTO user_tokens (token, user_id, purpose, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		token, userID, string(purpose), toMillis(expiresAt), toMillis(time.Now()))
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// ConsumeToken deletes a token and returns its user. Unknown, mismatched and
// expired tokens all yield ErrNotFound; an expired token is deleted as well.
func (r *UserRepository) ConsumeToken(ctx context.Context, purpose domain.TokenPurpose, token string, now time.Time) (string, error) {
	var (
		userID    string
		expiresAt int64
	)
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		var storedPurpose string
		err := tx.QueryRowContext(ctx,
			r.db.rebind(`SELECT user_id, purpose, expires_at FROM user_tokens WHERE token = ?`), token).
			Scan(&userID, &storedPurpose, &expiresAt)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load token: %w", err)
		}
		if storedPurpose != string(purpose) {
			return domain.ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM user_tokens WHERE token = ?`), token); err != nil {
			return fmt.Errorf("delete token: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if now.After(fromMillis(expiresAt)) {
		return "", domain.ErrNotFound
	}
	return userID, nil
}

// CleanupExpiredTokens deletes tokens past their expiry
func (r *UserRepository) CleanupExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.exec(ctx, `DELETE FROM user_tokens WHERE expires_at < ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("cleanup tokens: %w", err)
	}
	return affected(res), nil
}
