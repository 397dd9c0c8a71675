package models

import (
	"strings"
	"time"
)

// EntityKind distinguishes the two review subjects.
type EntityKind string

const (
	KindBand  EntityKind = "band"
	KindVenue EntityKind = "venue"
)

// Valid reports whether k is a known entity kind.
func (k EntityKind) Valid() bool {
	return k == KindBand || k == KindVenue
}

// Label returns the capitalised kind used in review titles.
func (k EntityKind) Label() string {
	switch k {
	case KindBand:
		return "Band"
	case KindVenue:
		return "Venue"
	default:
		return ""
	}
}

// Review is a rating/review of a single band or venue.
type Review struct {
	ID             string     `json:"id"`
	BandName       *string    `json:"bandName,omitempty"`
	VenueName      *string    `json:"venueName,omitempty"`
	BandNameLower  *string    `json:"bandNameLower,omitempty"`
	VenueNameLower *string    `json:"venueNameLower,omitempty"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Rating         int        `json:"rating"`
	Poster         string     `json:"poster"`
	UserUID        *string    `json:"userUid,omitempty"`
	Created        time.Time  `json:"created"`
	Updated        *time.Time `json:"updated,omitempty"`
}

// Kind infers the entity kind from whichever name field is present.
func (r Review) Kind() EntityKind {
	if r.BandName != nil {
		return KindBand
	}
	if r.VenueName != nil {
		return KindVenue
	}
	return ""
}

// Name returns the band or venue name, or "" when neither is set.
func (r Review) Name() string {
	switch {
	case r.BandName != nil:
		return *r.BandName
	case r.VenueName != nil:
		return *r.VenueName
	default:
		return ""
	}
}

// OwnerUID returns the owning uid or "" for anonymous and legacy posts.
func (r Review) OwnerUID() string {
	if r.UserUID == nil {
		return ""
	}
	return *r.UserUID
}

// ReviewUpdate carries the only fields that may change after creation.
type ReviewUpdate struct {
	Content string `json:"content"`
	Rating  int    `json:"rating"`
}

// NameKey is the canonical lower-cased key used for exact-match lookups.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Stars renders filled of five stars as ★ and the remainder as ☆.
func Stars(filled int) string {
	if filled < 0 {
		filled = 0
	}
	if filled > 5 {
		filled = 5
	}
	return strings.Repeat("★", filled) + strings.Repeat("☆", 5-filled)
}

// NameOf returns the name r holds for kind and whether r is of that kind.
func (r Review) NameOf(kind EntityKind) (string, bool) {
	var name *string
	switch kind {
	case KindBand:
		name = r.BandName
	case KindVenue:
		name = r.VenueName
	}
	if name == nil {
		return "", false
	}
	return *name, true
}
