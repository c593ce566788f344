package parse

import (
	"encoding/json"
	"fmt"

	"flatsync/models"
)

// ParseListingPage decodes the state JSON of a listing-index page into the
// page's listing summaries and its pagination metadata. When the payload
// carries no pagination object the page is assumed to be self-contained:
// {page 1, pageSize = item count, total = item count}.
func ParseListingPage(stateJSON string) ([]models.ListingSummary, models.PaginationInfo, error) {
	var root map[string]any
	if err := json.Unmarshal([]byte(stateJSON), &root); err != nil {
		return nil, models.PaginationInfo{}, fmt.Errorf("decode state json: %w", err)
	}

	listing, ok := navigate(root, "props", "pageProps", "initialState", "objectsListing")
	if !ok {
		return nil, models.PaginationInfo{}, fmt.Errorf("objects listing node not found")
	}

	rawObjects, ok := listing["objects"].([]any)
	if !ok {
		return nil, models.PaginationInfo{}, fmt.Errorf("objects array not found")
	}

	var items []models.ListingSummary
	for _, raw := range rawObjects {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if summary, ok := decodeSummary(obj); ok {
			items = append(items, summary)
		}
	}

	pagination := models.PaginationInfo{Page: 1, PageSize: len(items), TotalCount: len(items)}
	if p, ok := listing["pagination"].(map[string]any); ok {
		if v := getInt(p, "page"); v != nil {
			pagination.Page = *v
		}
		if v := getInt(p, "pageSize"); v != nil {
			pagination.PageSize = *v
		}
		if v := getInt(p, "totalCount"); v != nil {
			pagination.TotalCount = *v
		}
	}

	return items, pagination, nil
}

// decodeSummary returns ok=false for records with no usable content; fully
// empty decodes are discarded by the caller.
func decodeSummary(obj map[string]any) (models.ListingSummary, bool) {
	s := models.ListingSummary{
		Code:        getInt64(obj, "code"),
		Title:       getString(obj, "title"),
		Description: getString(obj, "description"),
		Headline:    getString(obj, "headline"),

		AreaTotal:  getFloat(obj, "areaTotal"),
		AreaLiving: getFloat(obj, "areaLiving"),

		Rooms:   getInt(obj, "rooms"),
		Storey:  getInt(obj, "storey"),
		Storeys: getInt(obj, "storeys"),

		Address:       getString(obj, "address"),
		ContactName:   getString(obj, "contactName"),
		ContactEmail:  getString(obj, "contactEmail"),
		ContactPhones: getStringSlice(obj, "contactPhones"),

		Images: getStringSlice(obj, "images"),

		CreatedAt: getTime(obj, "createdAt"),
		UpdatedAt: getTime(obj, "updatedAt"),
	}

	if len(s.Images) > 0 {
		s.ImageURL = &s.Images[0]
	}

	if rates, ok := obj["priceRates"].(map[string]any); ok {
		s.PriceUSD = getRate(rates, "840")
		s.PriceBYN = getRate(rates, "933")
	} else if price, currency := getFloat(obj, "price"), getInt(obj, "priceCurrency"); price != nil && currency != nil {
		switch *currency {
		case 840:
			s.PriceUSD = price
		case 933:
			s.PriceBYN = price
		}
	}

	keep := s.Title != nil || s.Description != nil || s.AreaTotal != nil ||
		s.PriceUSD != nil || s.PriceBYN != nil || len(s.Images) > 0
	return s, keep
}

func navigate(root map[string]any, path ...string) (map[string]any, bool) {
	cur := root
	for _, key := range path {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}
