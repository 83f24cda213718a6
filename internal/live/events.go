package live

import "time"

const TypeReviewCreated = "review.created"

type ReviewEvent struct {
	Type          string    `json:"type"`
	ReviewID      string    `json:"reviewId"`
	BookID        string    `json:"bookId"`
	UserID        string    `json:"userId"`
	Rating        int       `json:"rating"`
	Headline      string    `json:"headline"`
	AverageRating float64   `json:"averageRating"`
	ReviewCount   int       `json:"reviewCount"`
	At            time.Time `json:"at"`
}
