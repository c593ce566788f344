package services

import "flatsync/models"

// Merge builds the record to store for an already-known code: identity
// (ID, Code) comes from the existing record, every other field from the
// incoming one. Returns a fresh record so neither input is aliased.
func Merge(existing, incoming *models.ListingDetail) *models.ListingDetail {
	merged := *incoming

	merged.ID = existing.ID
	merged.Code = existing.Code

	merged.Images = cloneStrings(incoming.Images)
	merged.ContactPhones = cloneStrings(incoming.ContactPhones)
	merged.Appliances = cloneStrings(incoming.Appliances)

	return &merged
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
