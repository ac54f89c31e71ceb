package resources

import (
	"strings"

	"github.com/mohammad-safakhou/civicnav/internal/helpers"
	"github.com/mohammad-safakhou/civicnav/models"
)

// Domains the reasoning service has been seen to invent for local agencies.
var placeholderDomains = []string{
	"211centralillinois.org",
	"peoriarescuemission.org",
	"salvationarmyheartland.org",
	"hoihabitat.org",
	"peoria.score.org",
	"greaterpeoriaedc.org",
	"illinoissbdc.org",
	"example.com",
	"example.org",
}

// IsPlaceholderURL reports whether raw points at a known invented domain.
func IsPlaceholderURL(raw string) bool {
	host := helpers.Host(raw)
	if host == "" {
		return false
	}
	for _, d := range placeholderDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// CleanURLs returns a copy of rs where placeholder links are replaced by a
// tel: link derived from the contact, falling back to tel:211. Resources with
// no link but a dialable contact get a tel: link.
func CleanURLs(rs []models.Resource) []models.Resource {
	out := make([]models.Resource, len(rs))
	for i, r := range rs {
		switch {
		case r.URL != "" && IsPlaceholderURL(r.URL):
			r.URL = helpers.TelURL(r.Contact)
			if r.URL == "" {
				r.URL = "tel:211"
			}
		case r.URL == "":
			r.URL = helpers.TelURL(r.Contact)
		}
		out[i] = r
	}
	return out
}
