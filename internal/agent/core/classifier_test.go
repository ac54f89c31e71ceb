package core

import (
	"testing"

	"github.com/mohammad-safakhou/civicnav/models"
)

func TestClassifyByKeywords(t *testing.T) {
	cases := []struct {
		msg      string
		category string
		urgency  models.Urgency
		search   bool
	}{
		{"hi", models.CategoryGreeting, models.UrgencyLow, false},
		{"  Hello! ", models.CategoryGreeting, models.UrgencyLow, false},
		{"hey there, I need rent help", models.CategoryHousing, models.UrgencyMedium, true},
		{"I'm homeless tonight", models.CategoryHousing, models.UrgencyHigh, true},
		{"Urgent: eviction notice on my apartment", models.CategoryHousing, models.UrgencyHigh, true},
		{"where is the nearest pantry", models.CategoryFood, models.UrgencyMedium, true},
		{"need a doctor for my kid", models.CategoryHealthcare, models.UrgencyMedium, true},
		{"looking for work", models.CategoryEmployment, models.UrgencyMedium, true},
		{"bus schedule", models.CategoryTransportation, models.UrgencyMedium, true},
		{"I need a lawyer", models.CategoryLegal, models.UrgencyMedium, true},
		{"behind on bills", models.CategoryFinancial, models.UrgencyMedium, true},
		{"programs for seniors", models.CategoryElderlyServices, models.UrgencyMedium, true},
		// substrings do not count: "homework" is not "home", "carpet" is not "car"
		{"help with homework and carpet cleaning", models.CategoryGeneral, models.UrgencyMedium, true},
	}
	for _, tc := range cases {
		d := classifyByKeywords(tc.msg)
		if d.NeedCategory != tc.category || d.UrgencyLevel != tc.urgency || d.RequiresSearch() != tc.search {
			t.Fatalf("classifyByKeywords(%q) = %+v, want %s/%s/search=%v", tc.msg, d, tc.category, tc.urgency, tc.search)
		}
	}
}
