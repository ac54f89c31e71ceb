package resources

import (
	"github.com/mohammad-safakhou/civicnav/models"
)

const directoryName = "211 Central Illinois"

var directory = map[string][]models.Resource{
	models.CategoryFood: {
		{
			Name:        directoryName,
			Category:    "General Resources",
			Description: "Comprehensive directory of food pantries, SNAP assistance, and meal programs",
			Contact:     "Dial 2-1-1",
			URL:         "tel:211",
			Eligibility: "Available to all residents",
			NextStep:    "Call 211 for current food assistance options",
		},
		{
			Name:        "Peoria Area Food Bank",
			Category:    "Food Security",
			Description: "Food pantry and emergency food assistance",
			Contact:     "(309) 671-3023",
			URL:         "tel:309-671-3023",
			Eligibility: "No income requirements",
			NextStep:    "Call for pantry hours and the nearest distribution site",
		},
	},
	models.CategoryHousing: {
		{
			Name:        directoryName,
			Category:    "General Resources",
			Description: "Housing assistance, rental aid, and emergency shelter information",
			Contact:     "Dial 2-1-1",
			URL:         "tel:211",
			Eligibility: "Available to all residents",
			NextStep:    "Call 211 for housing assistance options",
		},
		{
			Name:        "Heart of Illinois Habitat for Humanity",
			Category:    "Housing",
			Description: "Affordable housing and home repair programs for qualifying families",
			Contact:     "(309) 637-4828",
			URL:         "tel:309-637-4828",
			Eligibility: "Income limits apply",
			NextStep:    "Call to discuss income requirements and the application process",
		},
	},
	models.CategoryTransportation: {
		{
			Name:        "CityLink",
			Category:    "Transportation",
			Description: "Public transit and paratransit services",
			Contact:     "(309) 676-4040",
			URL:         "tel:309-676-4040",
			Eligibility: "General public, discounts for seniors and riders with disabilities",
			NextStep:    "Call for routes, schedules, and paratransit eligibility",
		},
	},
}

// Directory returns the built-in referral entries for category. Unknown
// categories get the general 2-1-1 entry. The result is a fresh slice.
func Directory(category string) []models.Resource {
	entries, ok := directory[category]
	if !ok {
		entries = []models.Resource{{
			Name:        directoryName,
			Category:    "General Resources",
			Description: "Comprehensive information about local health and human services",
			Contact:     "Dial 2-1-1",
			URL:         "tel:211",
			Eligibility: "Available to everyone",
			NextStep:    "Call 211 for assistance with your specific need",
		}}
	}
	out := make([]models.Resource, len(entries))
	for i, r := range entries {
		r.Source = "directory"
		out[i] = r
	}
	return out
}
