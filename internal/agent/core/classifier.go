package core

import (
	"regexp"
	"strings"

	"github.com/mohammad-safakhou/civicnav/models"
	"github.com/mohammad-safakhou/civicnav/provider"
)

type keywordRule struct {
	category string
	words    *regexp.Regexp
}

func wordsRe(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Checked in order; the first match wins.
var keywordRules = []keywordRule{
	{models.CategoryHousing, wordsRe("housing", "house", "rent", "apartment", "home", "shelter", "homeless", "eviction")},
	{models.CategoryFood, wordsRe("food", "hungry", "meal", "meals", "pantry", "snap", "groceries", "eating")},
	{models.CategoryHealthcare, wordsRe("health", "medical", "doctor", "clinic", "mental", "healthcare", "dentist")},
	{models.CategoryFamilyServices, wordsRe("child", "childcare", "safety", "abuse", "neglect", "family", "parenting", "protection")},
	{models.CategoryEmployment, wordsRe("job", "jobs", "work", "employment", "career", "business", "startup", "restaurant", "company")},
	{models.CategoryTransportation, wordsRe("transport", "bus", "ride", "car", "transportation", "travel")},
	{models.CategoryLegal, wordsRe("legal", "lawyer", "court", "law")},
	{models.CategoryFinancial, wordsRe("financial", "money", "bills", "debt", "assistance")},
	{models.CategoryElderlyServices, wordsRe("senior", "seniors", "elderly", "caregiver", "caregiving")},
}

var (
	housingCrisisRe = wordsRe("emergency", "urgent", "immediately", "crisis", "homeless")
	greetingRe      = regexp.MustCompile(`(?i)^\s*(?:hi|hello|hey)\s*[!.]*\s*$`)
)

// classifyByKeywords is used when the reasoning service cannot classify a
// message. Bare greetings never search; anything else searches under the first
// matching category, or general.
func classifyByKeywords(message string) provider.StrategyDecision {
	if greetingRe.MatchString(message) {
		return provider.StrategyDecision{
			ConversationType: provider.ConversationGreeting,
			NeedCategory:     models.CategoryGreeting,
			UrgencyLevel:     models.UrgencyLow,
			SearchDecision:   provider.ConversationOnly,
			Reasoning:        "keyword fallback: greeting",
		}
	}
	d := provider.StrategyDecision{
		ConversationType: provider.ConversationCivicNeed,
		NeedCategory:     models.CategoryGeneral,
		UrgencyLevel:     models.UrgencyMedium,
		SearchDecision:   provider.SearchNeeded,
		Reasoning:        "keyword fallback",
	}
	for _, rule := range keywordRules {
		if rule.words.MatchString(message) {
			d.NeedCategory = rule.category
			break
		}
	}
	if d.NeedCategory == models.CategoryHousing && housingCrisisRe.MatchString(message) {
		d.UrgencyLevel = models.UrgencyHigh
	}
	return d
}
