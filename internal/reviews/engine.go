package reviews

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"archive/internal/apperr"
	"archive/internal/live"
	"archive/pkg/models"
)

type Store interface {
	Submit(ctx context.Context, rv *models.Review) (models.BookSummary, error)
}

type Broadcaster interface {
	BroadcastJSON(v any)
}

type Recorder interface {
	RecordReviewSubmitted()
	RecordReviewRejected(code string)
}

// Engine validates review submissions and hands them to the store, which
// attaches the review and refreshes the book aggregate atomically.
type Engine struct {
	Store   Store
	Feed    Broadcaster
	Metrics Recorder
	Logger  *slog.Logger
	Now     func() time.Time
}

func NewEngine(store Store, feed Broadcaster, metrics Recorder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Store: store, Feed: feed, Metrics: metrics, Logger: logger, Now: time.Now}
}

type SubmitInput struct {
	BookID   string
	UserID   string
	Rating   *int
	Headline string
	Text     string
}

type SubmitResult struct {
	Review *models.Review     `json:"review"`
	Book   models.BookSummary `json:"book"`
}

func (e *Engine) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	res, err := e.submit(ctx, in)
	if err != nil {
		if e.Metrics != nil {
			e.Metrics.RecordReviewRejected(string(apperr.CodeOf(err)))
		}
		return nil, err
	}

	if e.Metrics != nil {
		e.Metrics.RecordReviewSubmitted()
	}
	if e.Feed != nil {
		e.Feed.BroadcastJSON(live.ReviewEvent{
			Type:          live.TypeReviewCreated,
			ReviewID:      res.Review.ID,
			BookID:        res.Review.BookID,
			UserID:        res.Review.UserID,
			Rating:        res.Review.Rating,
			Headline:      res.Review.Headline,
			AverageRating: res.Book.AverageRating,
			ReviewCount:   res.Book.ReviewCount,
			At:            res.Review.CreatedAt,
		})
	}
	return res, nil
}

func (e *Engine) submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	in.BookID = strings.TrimSpace(in.BookID)
	in.Headline = strings.TrimSpace(in.Headline)
	in.Text = strings.TrimSpace(in.Text)

	if in.Rating == nil || in.Headline == "" || in.Text == "" || in.BookID == "" {
		return nil, apperr.InvalidInput("Rating, headline, and text are required for the review.")
	}
	if *in.Rating < 1 || *in.Rating > 5 {
		return nil, apperr.InvalidInput("Rating must be between 1 and 5.")
	}
	if _, err := uuid.Parse(in.BookID); err != nil {
		return nil, apperr.InvalidInput("Invalid Book ID format.")
	}

	now := e.now()
	rv := &models.Review{
		ID:        uuid.NewString(),
		BookID:    in.BookID,
		UserID:    in.UserID,
		Rating:    *in.Rating,
		Headline:  in.Headline,
		Text:      in.Text,
		CreatedAt: now,
		UpdatedAt: now,
	}

	sum, err := e.Store.Submit(ctx, rv)
	switch {
	case err == nil:
		return &SubmitResult{Review: rv, Book: sum}, nil
	case errors.Is(err, ErrBookNotFound):
		return nil, apperr.NotFound("Book not found.")
	case errors.Is(err, ErrAlreadyReviewed):
		return nil, apperr.Conflict("You have already reviewed this book.")
	default:
		e.Logger.ErrorContext(ctx, "review submission failed", "book_id", in.BookID, "user_id", in.UserID, "error", err)
		return nil, apperr.Internal("Database error during review submission.", err)
	}
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}
