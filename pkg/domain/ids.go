package domain

import (
	"github.com/google/uuid"

	dErrors "dealdesk/pkg/domain-errors"
)

// Typed entity IDs. Distinct types keep a PropertyID from being passed
// where a ListingID is expected; the compiler enforces it.
//
// Invariant: IDs must be valid, non-nil UUIDs. Construct via Parse* at
// trust boundaries; direct casting bypasses validation.
type (
	PropertyID   uuid.UUID
	ListingID    uuid.UUID
	InspectionID uuid.UUID
)

func NewPropertyID() PropertyID     { return PropertyID(uuid.New()) }
func NewListingID() ListingID       { return ListingID(uuid.New()) }
func NewInspectionID() InspectionID { return InspectionID(uuid.New()) }

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s: must be a UUID", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", kind)
	}
	return u, nil
}

// ParsePropertyID validates and returns a PropertyID.
func ParsePropertyID(s string) (PropertyID, error) {
	u, err := parseUUID(s, "property_id")
	return PropertyID(u), err
}

// ParseListingID validates and returns a ListingID.
func ParseListingID(s string) (ListingID, error) {
	u, err := parseUUID(s, "listing_id")
	return ListingID(u), err
}

// ParseInspectionID validates and returns an InspectionID.
func ParseInspectionID(s string) (InspectionID, error) {
	u, err := parseUUID(s, "inspection_id")
	return InspectionID(u), err
}

func (id PropertyID) String() string { return uuid.UUID(id).String() }
func (id PropertyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id ListingID) String() string { return uuid.UUID(id).String() }
func (id ListingID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id InspectionID) String() string { return uuid.UUID(id).String() }
func (id InspectionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
