package reviews

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"archive/internal/books"
	"archive/pkg/database"
	"archive/pkg/models"
)

var (
	ErrBookNotFound    = errors.New("book not found")
	ErrAlreadyReviewed = errors.New("user already reviewed this book")
)

type Repo struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db, Now: time.Now}
}

// Submit stores rv and refreshes the book's rating aggregate in one
// transaction. It returns ErrBookNotFound or ErrAlreadyReviewed when the
// review cannot be attached, and leaves the book untouched on any error.
func (r *Repo) Submit(ctx context.Context, rv *models.Review) (models.BookSummary, error) {
	var sum models.BookSummary
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM books WHERE id = ?`, rv.BookID).Scan(&one)
		if err == sql.ErrNoRows {
			return ErrBookNotFound
		}
		if err != nil {
			return fmt.Errorf("load book: %w", err)
		}

		err = tx.QueryRowContext(ctx, `
			SELECT 1 FROM reviews
			WHERE user_id = ? AND book_id = ?
		`, rv.UserID, rv.BookID).Scan(&one)
		if err == nil {
			return ErrAlreadyReviewed
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check existing review: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO reviews (id, book_id, user_id, rating, headline, body, likes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rv.ID, rv.BookID, rv.UserID, rv.Rating, rv.Headline, rv.Text, rv.Likes, rv.CreatedAt, rv.UpdatedAt)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return ErrAlreadyReviewed
			}
			return fmt.Errorf("insert review: %w", err)
		}

		sum, err = books.RecomputeRating(ctx, tx, rv.BookID, rv.CreatedAt)
		return err
	})
	return sum, err
}

// PurgeAuthor deletes every review written by userID and refreshes the
// aggregates of the books they were attached to. It runs inside the caller's
// transaction.
func (r *Repo) PurgeAuthor(ctx context.Context, tx *sql.Tx, userID string) error {
	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT book_id FROM reviews WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("find reviewed books: %w", err)
	}
	var bookIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan reviewed book: %w", err)
		}
		bookIDs = append(bookIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("reviewed books: %w", err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete reviews: %w", err)
	}

	now := r.now()
	for _, id := range bookIDs {
		if _, err := books.RecomputeRating(ctx, tx, id, now); err != nil {
			return err
		}
	}
	return nil
}

// ListAll returns every review with its author and book, newest first.
func (r *Repo) ListAll(ctx context.Context) ([]models.ReviewFeedItem, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT r.id, r.rating, r.headline, r.body, r.likes, r.created_at,
			u.id, u.username, b.id, b.title, b.cover_image
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		JOIN books b ON b.id = r.book_id
		ORDER BY r.created_at DESC, r.rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	out := []models.ReviewFeedItem{}
	for rows.Next() {
		var it models.ReviewFeedItem
		if err := rows.Scan(&it.ID, &it.Rating, &it.Headline, &it.Text, &it.Likes, &it.CreatedAt,
			&it.User.ID, &it.User.Username, &it.Book.ID, &it.Book.Title, &it.Book.CoverImage); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}
