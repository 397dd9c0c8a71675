package reviews

import (
	"slices"
	"strings"

	"riffrate/internal/identity"
	"riffrate/internal/models"
)

// IsOwner reports whether viewer may edit or delete r. Reviews carrying a
// userUid belong to that uid alone. Older reviews without one are matched on
// the poster string against the viewer's email or display name, the same
// fallback FetchForUser uses. Anonymous reviews belong to nobody.
func IsOwner(r models.Review, viewer *identity.Identity) bool {
	if viewer == nil || viewer.UID == "" {
		return false
	}
	if uid := r.OwnerUID(); uid != "" {
		return uid == viewer.UID
	}

	return r.Poster != "" && slices.Contains(legacyPosters(viewer), r.Poster)
}

// legacyPosters lists the poster strings that identify viewer on reviews
// without a userUid, in lookup order.
func legacyPosters(viewer *identity.Identity) []string {
	var posters []string
	add := func(p string) {
		if p == "" || p == AnonymousPoster || slices.Contains(posters, p) {
			return
		}
		posters = append(posters, p)
	}
	add(strings.ToLower(viewer.Email))
	add(viewer.Email)
	add(viewer.DisplayName)
	return posters
}
