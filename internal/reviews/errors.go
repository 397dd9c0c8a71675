package reviews

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthorization is returned when a mutation is attempted without a signed-in identity.
	ErrAuthorization = errors.New("must be logged in to modify reviews")
	// ErrOwnership is returned when the signed-in identity does not own the review.
	ErrOwnership = errors.New("review belongs to another user")
	// ErrReviewNotFound indicates the review id does not exist.
	ErrReviewNotFound = errors.New("review not found")
	// ErrInvalidKind rejects entity kinds other than band and venue.
	ErrInvalidKind = errors.New("invalid entity kind")
	// ErrInvalidRating rejects ratings outside 0..5.
	ErrInvalidRating = errors.New("rating must be between 0 and 5")
)

// TransportError wraps a failure talking to the document store.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("reviews: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
