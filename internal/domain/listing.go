// Package domain defines the core entities of the arbitrage evaluator and the
// store interfaces they are persisted through. Concrete storage, transport,
// and marketplace integrations live in their own packages and depend on this
// one, never the other way around.
package domain

import (
	"strings"
	"time"
)

// Identity names a collectible item independent of any particular listing.
// Two listings for the same card in the same set share an Identity.
type Identity struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Key returns a stable lowercase key suitable for cache and store lookups.
func (id Identity) Key() string {
	return strings.ToLower(strings.TrimSpace(id.Name)) + "|" + strings.ToLower(strings.TrimSpace(id.Category))
}

// Valid reports whether the identity carries the fields required to price it.
func (id Identity) Valid() bool {
	return strings.TrimSpace(id.Name) != "" && strings.TrimSpace(id.Category) != ""
}

// Listing is an immutable snapshot of a marketplace listing at observation
// time. Listings arrive from an untrusted source; entries that fail Valid are
// discarded by the scanner without surfacing an error.
type Listing struct {
	Identity     Identity  `json:"identity"`
	Condition    string    `json:"condition"` // free-text condition description
	Price        float64   `json:"price"`     // asking price, USD
	ShippingCost float64   `json:"shipping_cost"`
	SellerRating float64   `json:"seller_rating"` // feedback percentage, 0-100
	URL          string    `json:"url"`
	ImageURL     string    `json:"image_url,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
}

// TotalCost is the full acquisition price of the listing before processing
// fees: asking price plus shipping.
func (l Listing) TotalCost() float64 {
	return l.Price + l.ShippingCost
}

// Valid reports whether the listing has a priceable identity and a positive
// asking price.
func (l Listing) Valid() bool {
	return l.Identity.Valid() && l.Price > 0
}

// PriceRange bounds a marketplace search. A zero Max means unbounded.
type PriceRange struct {
	Min float64
	Max float64
}
