package testutil

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

// CreateUser inserts a user with a placeholder password hash and returns its
// id.
func CreateUser(t testing.TB, db *sql.DB, username string) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, 'x', ?, ?)
	`, id, username, username+"@example.com", now, now)
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return id
}

// CreateBook inserts a book submitted by userID and returns its id.
func CreateBook(t testing.TB, db *sql.DB, title, userID string) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	genre, _ := json.Marshal([]string{"Fiction"})
	_, err := db.Exec(`
		INSERT INTO books (id, title, author, description, genre, publication_year, submitted_by, created_at, updated_at)
		VALUES (?, ?, 'Author', 'Description', ?, 2000, ?, ?, ?)
	`, id, title, string(genre), userID, now, now)
	if err != nil {
		t.Fatalf("create book %s: %v", title, err)
	}
	return id
}

// CreateReview inserts a review row directly, bypassing aggregate updates.
func CreateReview(t testing.TB, db *sql.DB, bookID, userID string, rating int) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT INTO reviews (id, book_id, user_id, rating, headline, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'Headline', 'Body', ?, ?)
	`, id, bookID, userID, rating, now, now)
	if err != nil {
		t.Fatalf("create review: %v", err)
	}
	return id
}
