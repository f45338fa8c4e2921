package protocol

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Product categories accepted by the store. The wire key for the category
// is "type", kept from the original document schema.
const (
	CategoryPhone     = "phone"
	CategoryTablet    = "tablet"
	CategoryLaptop    = "laptop"
	CategoryAccessory = "accessory"
)

// Product is the domain record. The canonical copy lives in the store;
// clients hold reconciled view copies.
type Product struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"type"`
	Price         float64   `json:"price"`
	Rating        float64   `json:"rating"`
	WarrantyYears int       `json:"warranty_years"`
	Available     bool      `json:"available"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ValidCategory reports whether c is one of the accepted categories.
func ValidCategory(c string) bool {
	switch c {
	case CategoryPhone, CategoryTablet, CategoryLaptop, CategoryAccessory:
		return true
	}
	return false
}

// Before defines the collection order: newest first, identifier as the
// deterministic tie-break.
func (p *Product) Before(other *Product) bool {
	if !p.CreatedAt.Equal(other.CreatedAt) {
		return p.CreatedAt.After(other.CreatedAt)
	}
	return strings.Compare(p.ID.String(), other.ID.String()) < 0
}
