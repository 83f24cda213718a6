package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"archive/pkg/database"
	"archive/pkg/models"
)

// User is the stored account record, including the password hash.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public strips the password hash.
func (u *User) Public() *models.User {
	return &models.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

var errUserGone = errors.New("user not found")

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const userColumns = `id, username, email, password_hash, is_admin, created_at, updated_at`

func scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repo) CreateUser(ctx context.Context, u User) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.IsAdmin, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = ?
	`, email))
	if err != nil {
		return nil, fmt.Errorf("get by email: %w", err)
	}
	return u, nil
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = ?
	`, strings.TrimSpace(username)))
	if err != nil {
		return nil, fmt.Errorf("get by username: %w", err)
	}
	return u, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = ?
	`, id))
	if err != nil {
		return nil, fmt.Errorf("get by id: %w", err)
	}
	return u, nil
}

// UpdateProfile writes username, email, password hash and updated_at. It
// reports false when no such user exists.
func (r *Repo) UpdateProfile(ctx context.Context, u User) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE users
		SET username = ?, email = ?, password_hash = ?, updated_at = ?
		WHERE id = ?
	`, u.Username, u.Email, u.PasswordHash, u.UpdatedAt, u.ID)
	if err != nil {
		return false, fmt.Errorf("update profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update profile rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteAccount removes the user inside one transaction, running purge first
// to clear content the user authored. Nothing is deleted if purge fails. It
// reports false when no such user exists.
func (r *Repo) DeleteAccount(ctx context.Context, id string, purge func(ctx context.Context, tx *sql.Tx, userID string) error) (bool, error) {
	found := false
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if purge != nil {
			if err := purge(ctx, tx, id); err != nil {
				return fmt.Errorf("purge authored content: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete user rows: %w", err)
		}
		if affected == 0 {
			// nothing to commit; roll back whatever purge did
			return errUserGone
		}
		found = true
		return nil
	})
	if err == errUserGone {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return found, nil
}
