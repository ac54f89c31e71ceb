// Package resources merges, extracts and ranks the civic resources attached to a session.
package resources

import (
	"strings"

	"github.com/mohammad-safakhou/civicnav/models"
)

// NormalizeName is the identity key of a resource: trimmed, case-folded and
// with internal whitespace runs collapsed to a single space.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Merge appends the incoming resources whose normalized name is not yet
// present. The first occurrence of a key wins, so existing entries are never
// replaced and later duplicates inside incoming are discarded. Incoming
// resources with an empty name are dropped. Neither argument is modified.
func Merge(existing, incoming []models.Resource) []models.Resource {
	out := make([]models.Resource, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, r := range existing {
		key := NormalizeName(r.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	for _, r := range incoming {
		key := NormalizeName(r.Name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Dedupe removes repeated names from rs, keeping the first of each.
func Dedupe(rs []models.Resource) []models.Resource {
	return Merge(nil, rs)
}

// Contains reports whether rs holds a resource whose normalized name equals name's.
func Contains(rs []models.Resource, name string) bool {
	key := NormalizeName(name)
	for _, r := range rs {
		if NormalizeName(r.Name) == key {
			return true
		}
	}
	return false
}
