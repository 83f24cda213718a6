package books

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"archive/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const bookColumns = `id, title, author, description, genre, publication_year, cover_image,
	submitted_by, average_rating, review_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(s rowScanner) (models.Book, error) {
	var (
		b           models.Book
		genre       string
		submittedBy sql.NullString
	)
	err := s.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &genre, &b.PublicationYear, &b.CoverImage,
		&submittedBy, &b.AverageRating, &b.ReviewCount, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal([]byte(genre), &b.Genre); err != nil {
		return b, fmt.Errorf("decode genre: %w", err)
	}
	b.SubmittedBy = submittedBy.String
	b.Reviews = []string{}
	return b, nil
}

func (r *Repo) Create(ctx context.Context, b *models.Book) error {
	genre, err := json.Marshal(b.Genre)
	if err != nil {
		return fmt.Errorf("encode genre: %w", err)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO books (id, title, author, description, genre, publication_year, cover_image,
			submitted_by, average_rating, review_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
	`, b.ID, b.Title, b.Author, b.Description, string(genre), b.PublicationYear, b.CoverImage,
		sql.NullString{String: b.SubmittedBy, Valid: b.SubmittedBy != ""}, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// List returns every book, newest first, each with its review ids.
func (r *Repo) List(ctx context.Context) ([]models.Book, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+bookColumns+`
		FROM books
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	out := []models.Book{}
	index := map[string]int{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		index[b.ID] = len(out)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	refs, err := r.DB.QueryContext(ctx, `
		SELECT book_id, id
		FROM reviews
		ORDER BY created_at, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("list review refs: %w", err)
	}
	defer refs.Close()

	for refs.Next() {
		var bookID, reviewID string
		if err := refs.Scan(&bookID, &reviewID); err != nil {
			return nil, fmt.Errorf("scan review ref: %w", err)
		}
		if i, ok := index[bookID]; ok {
			out[i].Reviews = append(out[i].Reviews, reviewID)
		}
	}
	if err := refs.Err(); err != nil {
		return nil, fmt.Errorf("review refs err: %w", err)
	}
	return out, nil
}

// GetByID returns the book without its reviews, or nil if it does not exist.
func (r *Repo) GetByID(ctx context.Context, id string) (*models.Book, error) {
	b, err := scanBook(r.DB.QueryRowContext(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE id = ?
	`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

// GetDetail returns the book with its reviews and their authors resolved, or
// nil if the book does not exist. Reviews are oldest first.
func (r *Repo) GetDetail(ctx context.Context, id string) (*models.BookDetail, error) {
	b, err := r.GetByID(ctx, id)
	if err != nil || b == nil {
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT r.id, r.rating, r.headline, r.body, r.likes, r.created_at, u.id, u.username
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.book_id = ?
		ORDER BY r.created_at, r.rowid
	`, id)
	if err != nil {
		return nil, fmt.Errorf("resolve reviews: %w", err)
	}
	defer rows.Close()

	detail := &models.BookDetail{Book: *b, Reviews: []models.BookReview{}}
	for rows.Next() {
		var rv models.BookReview
		if err := rows.Scan(&rv.ID, &rv.Rating, &rv.Headline, &rv.Text, &rv.Likes, &rv.CreatedAt, &rv.User.ID, &rv.User.Username); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		detail.Reviews = append(detail.Reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolve reviews: %w", err)
	}
	return detail, nil
}
