package reviews

import (
	"encoding/json"
	"math"
	"time"

	"riffrate/internal/models"
	"riffrate/internal/store"
	"riffrate/internal/timeutil"
)

// decode maps a stored document onto a Review, normalizing timestamps.
func (r *Repository) decode(doc store.Document) models.Review {
	f := doc.Fields
	rev := models.Review{
		ID:             doc.ID,
		BandName:       optionalString(f[fieldBandName]),
		VenueName:      optionalString(f[fieldVenueName]),
		BandNameLower:  optionalString(f[fieldBandNameLower]),
		VenueNameLower: optionalString(f[fieldVenueNameLower]),
		Title:          stringValue(f[fieldTitle]),
		Content:        stringValue(f[fieldContent]),
		Rating:         intValue(f[fieldRating]),
		Poster:         stringValue(f[fieldPoster]),
		UserUID:        optionalString(f[fieldUserUID]),
	}

	created, err := timeutil.Normalize(f[fieldCreated], r.now)
	if err != nil {
		r.logger.Warn().Err(err).Str("review_id", doc.ID).Msg("unreadable created timestamp")
		created = time.Time{}
	}
	rev.Created = created

	if v, ok := f[fieldUpdated]; ok && v != nil {
		updated, err := timeutil.Normalize(v, r.now)
		if err != nil {
			r.logger.Warn().Err(err).Str("review_id", doc.ID).Msg("unreadable updated timestamp")
		} else {
			rev.Updated = &updated
		}
	}
	return rev
}

func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return int(math.Round(n))
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return int(i)
	default:
		return 0
	}
}
