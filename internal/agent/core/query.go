package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/civicnav/models"
)

var categoryQueries = map[string]string{
	models.CategoryHousing:         "emergency housing rental assistance",
	models.CategoryFood:            "food pantry SNAP assistance",
	"food_security":                "food pantry SNAP assistance",
	models.CategoryHealthcare:      "community health clinic",
	models.CategoryTransportation:  "public transportation paratransit",
	models.CategoryEmployment:      "job training employment services",
	models.CategoryFinancial:       "financial assistance emergency funds",
	models.CategoryLegal:           "legal aid free legal services",
	models.CategoryFamilyServices:  "family services child care",
	models.CategoryElderlyServices: "senior services elderly assistance",
}

// buildQueries returns the search queries for one turn, most specific first,
// truncated to max.
func buildQueries(category string, urgency models.Urgency, area string, now time.Time, max int) []string {
	category = strings.TrimSpace(category)
	if category == "" {
		category = models.CategoryGeneral
	}
	phrase, ok := categoryQueries[category]
	if !ok {
		phrase = strings.ReplaceAll(category, "_", " ") + " services"
	}
	label := strings.ToLower(strings.ReplaceAll(category, "_", " "))

	primary := fmt.Sprintf("%s %s %d", phrase, area, now.Year())
	if urgency == models.UrgencyHigh {
		primary += " emergency immediate"
	}
	queries := []string{
		primary,
		fmt.Sprintf("%s %s assistance programs", area, label),
		fmt.Sprintf("%s near %s eligibility apply", phrase, area),
	}
	if max < 0 {
		max = 0
	}
	if len(queries) > max {
		queries = queries[:max]
	}
	return queries
}
