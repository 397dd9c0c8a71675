// Package presenter turns reviews into what a viewer sees on a review card.
package presenter

import (
	"time"

	"riffrate/internal/identity"
	"riffrate/internal/models"
	"riffrate/internal/reviews"
)

const (
	dateLayout = "1/2/2006"
	timeLayout = "3:04:05 PM"
)

// Card is the rendered view of a single review.
type Card struct {
	ID          string            `json:"id"`
	Kind        models.EntityKind `json:"kind"`
	Heading     string            `json:"heading"`
	Title       string            `json:"title"`
	Poster      string            `json:"poster"`
	Content     string            `json:"content"`
	Rating      int               `json:"rating"`
	Stars       string            `json:"stars,omitempty"`
	PostedLabel string            `json:"postedLabel"`
	Created     time.Time         `json:"created"`
	Updated     *time.Time        `json:"updated,omitempty"`
	CanEdit     bool              `json:"canEdit"`
	CanDelete   bool              `json:"canDelete"`
}

// CanModify reports whether viewer gets the edit and delete actions on r.
func CanModify(r models.Review, viewer *identity.Identity) bool {
	return reviews.IsOwner(r, viewer)
}

// NewCard builds the card for r as seen by viewer, rendering times in loc
// (UTC when nil).
func NewCard(r models.Review, viewer *identity.Identity, loc *time.Location) Card {
	if loc == nil {
		loc = time.UTC
	}

	owner := CanModify(r, viewer)
	c := Card{
		ID:          r.ID,
		Kind:        r.Kind(),
		Heading:     r.Name(),
		Title:       r.Title,
		Poster:      r.Poster,
		Content:     r.Content,
		Rating:      r.Rating,
		PostedLabel: PostedLabel(r.Created, loc),
		Created:     r.Created,
		Updated:     r.Updated,
		CanEdit:     owner,
		CanDelete:   owner,
	}
	if r.Rating > 0 {
		c.Stars = models.Stars(r.Rating)
	}
	return c
}

// NewCards maps NewCard over list.
func NewCards(list []models.Review, viewer *identity.Identity, loc *time.Location) []Card {
	out := make([]Card, 0, len(list))
	for _, r := range list {
		out = append(out, NewCard(r, viewer, loc))
	}
	return out
}

// PostedLabel formats the "Posted on ... at ..." line.
func PostedLabel(t time.Time, loc *time.Location) string {
	t = t.In(loc)
	return "Posted on " + t.Format(dateLayout) + " at " + t.Format(timeLayout)
}
