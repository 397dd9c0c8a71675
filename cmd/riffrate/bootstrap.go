package main

import (
	"context"
	"fmt"

	"riffrate/internal/logging"
	"riffrate/internal/models"
	"riffrate/internal/reviews"
)

type demoReview struct {
	kind    models.EntityKind
	name    string
	content string
	rating  int
}

var demoReviews = []demoReview{
	{kind: models.KindBand, name: "The Cure", content: "Three hours and not one wasted minute.", rating: 5},
	{kind: models.KindBand, name: "Idles", content: "Loud, joyful, sweaty. Bring earplugs.", rating: 4},
	{kind: models.KindVenue, name: "The Roxy", content: "Great sound, sticky floors, long bar queue.", rating: 3},
	{kind: models.KindVenue, name: "Brixton Academy", content: "Sloped floor means you can see from anywhere.", rating: 5},
}

// seedDemoReviews posts a few anonymous reviews when the store holds none.
func seedDemoReviews(ctx context.Context, repo *reviews.Repository, logger *logging.Logger) error {
	existing, err := repo.FetchRecent(ctx, 1)
	if err != nil {
		return fmt.Errorf("check existing reviews: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	for _, d := range demoReviews {
		if _, err := repo.Create(ctx, d.kind, d.name, d.content, d.rating, ""); err != nil {
			return fmt.Errorf("seed %s review %q: %w", d.kind, d.name, err)
		}
	}

	logger.Info(fmt.Sprintf("seeded %d demo reviews", len(demoReviews)))
	return nil
}
