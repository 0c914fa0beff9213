package protocols

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownVenue   = errors.New("venue not registered")
	ErrNilVenue       = errors.New("venue cannot be nil")
	ErrDuplicateVenue = errors.New("venue already registered")
)

// Registry resolves venue identities to their implementations. It is built
// once at wiring time and read-only afterwards; the copy in the constructor
// keeps later mutation of the input map from leaking in.
type Registry struct {
	venues map[VenueID]Venue
}

// NewRegistry constructs a registry from the supplied venue set.
func NewRegistry(venues ...Venue) (*Registry, error) {
	byID := make(map[VenueID]Venue, len(venues))
	for _, v := range venues {
		if v == nil {
			return nil, ErrNilVenue
		}
		if _, exists := byID[v.ID()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateVenue, v.ID())
		}
		byID[v.ID()] = v
	}
	return &Registry{venues: byID}, nil
}

// Resolve returns the venue registered under id.
func (r *Registry) Resolve(id VenueID) (Venue, error) {
	venue, ok := r.venues[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVenue, id)
	}
	return venue, nil
}

// IDs lists the registered venue identities.
func (r *Registry) IDs() []VenueID {
	ids := make([]VenueID, 0, len(r.venues))
	for id := range r.venues {
		ids = append(ids, id)
	}
	return ids
}
