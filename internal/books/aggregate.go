package books

import (
	"context"
	"fmt"
	"time"

	"archive/pkg/database"
	"archive/pkg/models"
)

// RecomputeRating rebuilds the stored average rating and review count of a
// book from its persisted reviews. Call it inside the transaction that
// changed the review set so both move together.
func RecomputeRating(ctx context.Context, q database.Querier, bookID string, now time.Time) (models.BookSummary, error) {
	var sum models.BookSummary
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(rating), 0), COUNT(*)
		FROM reviews
		WHERE book_id = ?
	`, bookID).Scan(&sum.AverageRating, &sum.ReviewCount)
	if err != nil {
		return sum, fmt.Errorf("aggregate ratings: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		UPDATE books
		SET average_rating = ?, review_count = ?, updated_at = ?
		WHERE id = ?
	`, sum.AverageRating, sum.ReviewCount, now.UTC(), bookID)
	if err != nil {
		return sum, fmt.Errorf("update book rating: %w", err)
	}
	return sum, nil
}
