package parse

import (
	"encoding/json"
	"fmt"

	"flatsync/models"
)

// ParseObjectPage decodes the state JSON of a detail page into a full
// listing record. The detail shape hangs off a different navigation path
// than the index shape: a single "object" node instead of an array.
func ParseObjectPage(stateJSON string) (*models.ListingDetail, error) {
	var root map[string]any
	if err := json.Unmarshal([]byte(stateJSON), &root); err != nil {
		return nil, fmt.Errorf("decode state json: %w", err)
	}

	view, ok := navigate(root, "props", "pageProps", "initialState", "objectView")
	if !ok {
		return nil, fmt.Errorf("object view node not found")
	}
	obj, ok := view["object"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("object node not found")
	}

	d := &models.ListingDetail{
		Code: getInt64(obj, "code"),

		Title:       getString(obj, "title"),
		Headline:    getString(obj, "headline"),
		Description: getString(obj, "description"),

		AreaTotal:   getFloat(obj, "areaTotal"),
		AreaLiving:  getFloat(obj, "areaLiving"),
		AreaKitchen: getFloat(obj, "areaKitchen"),

		Rooms:        getInt(obj, "rooms"),
		Storey:       getInt(obj, "storey"),
		Storeys:      getInt(obj, "storeys"),
		BuildingYear: getInt(obj, "buildingYear"),
		OverhaulYear: getInt(obj, "overhaulYear"),

		Layout:      getString(obj, "layout"),
		BalconyType: getString(obj, "balconyType"),
		RepairState: getString(obj, "repairState"),
		Furniture:   getBool(obj, "furniture"),
		Toilet:      getString(obj, "toilet"),

		Prepayment:  getString(obj, "prepayment"),
		HousingRent: getString(obj, "housingRent"),
		LeasePeriod: getString(obj, "leasePeriod"),

		ContactName:   getString(obj, "contactName"),
		ContactEmail:  getString(obj, "contactEmail"),
		ContactPhones: getStringSlice(obj, "contactPhones"),

		Address:             getString(obj, "address"),
		TownName:            getString(obj, "townName"),
		TownDistrictName:    getString(obj, "townDistrictName"),
		TownSubDistrictName: getString(obj, "townSubDistrictName"),
		StreetName:          getString(obj, "streetName"),
		HouseNumber:         getInt(obj, "houseNumber"),
		BuildingNumber:      getString(obj, "buildingNumber"),

		Seller:     getString(obj, "seller"),
		Paid:       getBool(obj, "paid"),
		ViewsCount: getInt(obj, "viewsCount"),

		CreatedAt:    getTime(obj, "createdAt"),
		UpdatedAt:    getTime(obj, "updatedAt"),
		RaiseDate:    getTime(obj, "raiseDate"),
		NewAgainDate: getTime(obj, "newAgainDate"),

		Images:     collectImages(obj),
		Appliances: getStringSlice(obj, "appliances"),
	}

	if len(d.Images) > 0 {
		d.ImageURL = &d.Images[0]
	}

	// Geo coordinates arrive as [longitude, latitude].
	if loc, ok := obj["location"].([]any); ok && len(loc) >= 2 {
		if lng := coerceNumeric(loc[0]); lng != nil {
			if lat := coerceNumeric(loc[1]); lat != nil {
				d.Longitude = lng
				d.Latitude = lat
			}
		}
	}

	if rates, ok := obj["priceRates"].(map[string]any); ok {
		d.PriceUSD = getRate(rates, "840")
		d.PriceBYN = getRate(rates, "933")
		d.PriceEUR = getRate(rates, "978")
		d.PriceRUB = getRate(rates, "643")
	} else if price, currency := getFloat(obj, "price"), getInt(obj, "priceCurrency"); price != nil && currency != nil {
		switch *currency {
		case 840:
			d.PriceUSD = price
		case 933:
			d.PriceBYN = price
		case 978:
			d.PriceEUR = price
		case 643:
			d.PriceRUB = price
		}
	}

	return d, nil
}

// collectImages prefers the "slides" array and falls back to "images" only
// when slides yields nothing.
func collectImages(obj map[string]any) []string {
	if slides := getStringSlice(obj, "slides"); len(slides) > 0 {
		return slides
	}
	return getStringSlice(obj, "images")
}

// coerceNumeric accepts native numbers only; geo arrays never carry strings.
func coerceNumeric(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}
