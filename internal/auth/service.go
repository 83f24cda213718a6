package auth

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"archive/internal/apperr"
	"archive/internal/validation"
	"archive/pkg/database"
	"archive/pkg/models"
)

// ContentPurger removes everything a user authored as part of deleting
// their account. It runs inside the account deletion transaction.
type ContentPurger interface {
	PurgeAuthor(ctx context.Context, tx *sql.Tx, userID string) error
}

// Service is the credential store: registration, password checks, profile
// changes and account deletion.
type Service struct {
	Repo      *Repo
	Hasher    Hasher
	Purger    ContentPurger
	Validator *validation.Validator
	Now       func() time.Time
}

func NewService(repo *Repo, hasher Hasher, purger ContentPurger, v *validation.Validator) *Service {
	return &Service{Repo: repo, Hasher: hasher, Purger: purger, Validator: v, Now: time.Now}
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// ProfileInput holds the fields a caller may change. Nil or blank fields
// keep their stored value.
type ProfileInput struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=30"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=6,max=72"`
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if err := s.Validator.Validate("Please provide a username, email and password.", in); err != nil {
		return nil, err
	}

	existing, err := s.Repo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, apperr.Internal("Failed to register user.", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("User already exists")
	}
	if existing, err = s.Repo.GetByUsername(ctx, in.Username); err != nil {
		return nil, apperr.Internal("Failed to register user.", err)
	} else if existing != nil {
		return nil, apperr.Conflict("Username already taken")
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal("Failed to register user.", err)
	}

	now := s.now()
	u := User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.CreateUser(ctx, u); err != nil {
		// lost a race with a concurrent registration
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict("User already exists")
		}
		return nil, apperr.Internal("Failed to register user.", err)
	}
	return u.Public(), nil
}

// VerifyCredentials returns the user owning email when password matches, and
// nil otherwise.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.Repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, apperr.Internal("Failed to verify credentials.", err)
	}
	if u == nil {
		return nil, nil
	}

	ok, err := s.Hasher.Matches(u.PasswordHash, password)
	if err != nil {
		return nil, apperr.Internal("Failed to verify credentials.", err)
	}
	if !ok {
		return nil, nil
	}
	return u.Public(), nil
}

// FindUser resolves a user id for the authorization gate. A missing user is
// nil, nil.
func (s *Service) FindUser(ctx context.Context, id string) (*models.User, error) {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	return u.Public(), nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	trim := func(p *string, fn func(string) string) *string {
		if p == nil {
			return nil
		}
		v := fn(*p)
		if v == "" {
			return nil
		}
		return &v
	}
	in.Username = trim(in.Username, strings.TrimSpace)
	in.Email = trim(in.Email, normalizeEmail)
	if in.Password != nil && *in.Password == "" {
		in.Password = nil
	}
	if err := s.Validator.Validate("Invalid profile fields.", in); err != nil {
		return nil, err
	}

	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to update profile.", err)
	}
	if u == nil {
		return nil, apperr.NotFound("User not found")
	}

	if in.Username != nil && *in.Username != u.Username {
		other, err := s.Repo.GetByUsername(ctx, *in.Username)
		if err != nil {
			return nil, apperr.Internal("Failed to update profile.", err)
		}
		if other != nil {
			return nil, apperr.Conflict("Username already taken")
		}
		u.Username = *in.Username
	}
	if in.Email != nil && *in.Email != u.Email {
		other, err := s.Repo.GetByEmail(ctx, *in.Email)
		if err != nil {
			return nil, apperr.Internal("Failed to update profile.", err)
		}
		if other != nil {
			return nil, apperr.Conflict("Email already in use")
		}
		u.Email = *in.Email
	}
	if in.Password != nil {
		hash, err := s.Hasher.Hash(*in.Password)
		if err != nil {
			return nil, apperr.Internal("Failed to update profile.", err)
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = s.now()

	found, err := s.Repo.UpdateProfile(ctx, *u)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict("Username or email already in use")
		}
		return nil, apperr.Internal("Failed to update profile.", err)
	}
	if !found {
		return nil, apperr.NotFound("User not found")
	}
	return u.Public(), nil
}

// DeleteAccount removes userID and everything they authored. Only the user
// may delete their own account.
func (s *Service) DeleteAccount(ctx context.Context, userID, requesterID string) error {
	if userID != requesterID {
		return apperr.Forbidden("Not authorized to delete this specific account.")
	}

	var purge func(context.Context, *sql.Tx, string) error
	if s.Purger != nil {
		purge = s.Purger.PurgeAuthor
	}

	found, err := s.Repo.DeleteAccount(ctx, userID, purge)
	if err != nil {
		return apperr.Internal("Failed to delete account.", err)
	}
	if !found {
		return apperr.NotFound("User not found.")
	}
	return nil
}
