package models

import "time"

type Review struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book"`
	UserID    string    `json:"user"`
	Rating    int       `json:"rating"`
	Headline  string    `json:"headline"`
	Text      string    `json:"text"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReviewFeedItem is a review enriched with its author and book for the
// public review listing.
type ReviewFeedItem struct {
	ID        string    `json:"id"`
	Rating    int       `json:"rating"`
	Headline  string    `json:"headline"`
	Text      string    `json:"text"`
	Likes     int       `json:"likes"`
	User      UserRef   `json:"user"`
	Book      BookRef   `json:"book"`
	CreatedAt time.Time `json:"createdAt"`
}

type BookRef struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	CoverImage string `json:"coverImage,omitempty"`
}
