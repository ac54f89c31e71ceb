package resources

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mohammad-safakhou/civicnav/internal/helpers"
	"github.com/mohammad-safakhou/civicnav/internal/upstream"
	"github.com/mohammad-safakhou/civicnav/models"
	searchmodels "github.com/mohammad-safakhou/civicnav/tools/web_search/models"
)

const (
	// DefaultMaxPerTurn caps the candidates a single turn may contribute.
	DefaultMaxPerTurn = 6

	maxDescriptionRunes = 280
	minNameRunes        = 3
)

var (
	phoneRe = regexp.MustCompile(`(?:\+?1[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)

	// Site names appended to page titles ("Food Pantry - United Way").
	titleSeparators = []string{" | ", " - ", " – ", " — ", " :: "}

	titleCaser = cases.Title(language.English)
)

// CategoryLabel turns a category id such as "food_security" into "Food Security".
func CategoryLabel(category string) string {
	category = strings.TrimSpace(strings.ReplaceAll(category, "_", " "))
	if category == "" {
		return "General Resources"
	}
	return titleCaser.String(category)
}

// FromSearchItem builds a candidate resource from one search result. Results
// without a usable name or link yield a *upstream.ParseError.
func FromSearchItem(item searchmodels.Item, category string) (models.Resource, error) {
	name := resourceName(item.Title)
	if len([]rune(name)) < minNameRunes {
		return models.Resource{}, &upstream.ParseError{What: "resource", Reason: "missing name"}
	}
	link, err := helpers.CanonicalURL(item.URL)
	if err != nil {
		return models.Resource{}, &upstream.ParseError{What: "resource", Reason: "invalid url", Err: err}
	}
	snippet := helpers.PlainText(item.Snippet)
	contact := phoneRe.FindString(snippet)
	r := models.Resource{
		Name:        name,
		Category:    CategoryLabel(category),
		Description: helpers.Truncate(snippet, maxDescriptionRunes),
		Contact:     contact,
		URL:         link,
		Source:      "search",
	}
	if contact != "" {
		r.NextStep = "Call " + contact + " to confirm hours and eligibility"
	} else {
		r.NextStep = "Visit " + helpers.Host(link) + " for hours and eligibility"
	}
	return r, nil
}

// Extract parses items into at most limit deduplicated candidates. Items that
// fail to parse are dropped and counted.
func Extract(items []searchmodels.Item, category string, limit int) (out []models.Resource, dropped int) {
	if limit <= 0 {
		limit = DefaultMaxPerTurn
	}
	for _, it := range items {
		r, err := FromSearchItem(it, category)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, r)
	}
	out = Dedupe(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, dropped
}

func resourceName(title string) string {
	name := helpers.PlainText(title)
	for _, sep := range titleSeparators {
		if head, _, ok := strings.Cut(name, sep); ok && len([]rune(strings.TrimSpace(head))) >= minNameRunes {
			name = head
		}
	}
	return strings.TrimSpace(name)
}
