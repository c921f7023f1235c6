package types

import (
	"github.com/google/uuid"
)

// LocationID represents a location identifier in the site hierarchy
type LocationID string

// String returns the string representation
func (id LocationID) String() string {
	return string(id)
}

// IncidentID represents an incident identifier
type IncidentID string

// String returns the string representation
func (id IncidentID) String() string {
	return string(id)
}

// NewIncidentID creates a new IncidentID
func NewIncidentID() IncidentID {
	return IncidentID(uuid.New().String())
}

// PassID identifies a single rollup computation pass
type PassID string

// String returns the string representation
func (id PassID) String() string {
	return string(id)
}

// NewPassID creates a new PassID using UUID v7
func NewPassID() PassID {
	id, err := uuid.NewV7()
	if err != nil {
		return PassID(uuid.New().String())
	}
	return PassID(id.String())
}
