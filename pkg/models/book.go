package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Description     string    `json:"description"`
	Genre           Genres    `json:"genre"`
	PublicationYear int       `json:"publicationYear"`
	CoverImage      string    `json:"coverImage,omitempty"`
	SubmittedBy     string    `json:"submittedBy,omitempty"`
	AverageRating   float64   `json:"averageRating"`
	ReviewCount     int       `json:"reviewCount"`
	Reviews         []string  `json:"reviews"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// BookDetail is a book with its reviews resolved.
type BookDetail struct {
	Book
	Reviews []BookReview `json:"reviews"`
}

type BookReview struct {
	ID        string    `json:"id"`
	Rating    int       `json:"rating"`
	Headline  string    `json:"headline"`
	Text      string    `json:"text"`
	Likes     int       `json:"likes"`
	User      UserRef   `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// BookSummary is the derived rating aggregate of a book.
type BookSummary struct {
	AverageRating float64 `json:"averageRating"`
	ReviewCount   int     `json:"reviewCount"`
}

// Genres accepts either a single string or a list of strings.
type Genres []string

func (g *Genres) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*g = splitGenres([]string{one})
		return nil
	}

	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("genre must be a string or a list of strings")
	}
	*g = splitGenres(many)
	return nil
}

func splitGenres(in []string) Genres {
	out := make(Genres, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
