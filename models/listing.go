package models

import (
	"time"

	"github.com/google/uuid"
)

// ListingSummary is one item from a listing-index page. Summaries are
// transient: the crawler only harvests codes from them.
type ListingSummary struct {
	Code        *int64
	Title       *string
	Description *string
	Headline    *string

	AreaTotal  *float64
	AreaLiving *float64

	Rooms   *int
	Storey  *int
	Storeys *int

	Address       *string
	ContactName   *string
	ContactEmail  *string
	ContactPhones []string

	Images   []string
	ImageURL *string

	PriceUSD *float64
	PriceBYN *float64

	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// ListingDetail is the persisted record for one property. ID is generated
// locally and never derived from Code; Code is the upstream identifier and
// the reconciliation key.
type ListingDetail struct {
	ID   uuid.UUID `db:"id"`
	Code *int64    `db:"code"`

	Title       *string `db:"title"`
	Description *string `db:"description"`
	Headline    *string `db:"headline"`

	AreaTotal   *float64 `db:"area_total"`
	AreaLiving  *float64 `db:"area_living"`
	AreaKitchen *float64 `db:"area_kitchen"`

	Rooms        *int `db:"rooms"`
	Storey       *int `db:"storey"`
	Storeys      *int `db:"storeys"`
	BuildingYear *int `db:"building_year"`
	OverhaulYear *int `db:"overhaul_year"`

	Layout      *string `db:"layout"`
	BalconyType *string `db:"balcony_type"`
	RepairState *string `db:"repair_state"`
	Furniture   *bool   `db:"furniture"`
	Toilet      *string `db:"toilet"`

	Prepayment  *string `db:"prepayment"`
	HousingRent *string `db:"housing_rent"`
	LeasePeriod *string `db:"lease_period"`

	ContactName   *string  `db:"contact_name"`
	ContactEmail  *string  `db:"contact_email"`
	ContactPhones []string `db:"contact_phones"`

	Address             *string `db:"address"`
	TownName            *string `db:"town_name"`
	TownDistrictName    *string `db:"town_district_name"`
	TownSubDistrictName *string `db:"town_sub_district_name"`
	StreetName          *string `db:"street_name"`
	HouseNumber         *int    `db:"house_number"`
	BuildingNumber      *string `db:"building_number"`

	Longitude *float64 `db:"longitude"`
	Latitude  *float64 `db:"latitude"`

	PriceUSD *float64 `db:"price_usd"`
	PriceBYN *float64 `db:"price_byn"`
	PriceEUR *float64 `db:"price_eur"`
	PriceRUB *float64 `db:"price_rub"`

	Images     []string `db:"images"`
	ImageURL   *string  `db:"image_url"`
	Appliances []string `db:"appliances"`

	Seller     *string `db:"seller"`
	Paid       *bool   `db:"paid"`
	ViewsCount *int    `db:"views_count"`

	CreatedAt    *time.Time `db:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at"`
	RaiseDate    *time.Time `db:"raise_date"`
	NewAgainDate *time.Time `db:"new_again_date"`
}

// PaginationInfo describes one listing-index response. Drives page-count
// derivation only; never persisted.
type PaginationInfo struct {
	Page       int
	PageSize   int
	TotalCount int
}
