package resources

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/mohammad-safakhou/civicnav/models"
)

func res(name string) models.Resource {
	return models.Resource{Name: name, Category: "Food Security", Description: name + " description"}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"  Peoria Food Bank ":   "peoria food bank",
		"PEORIA\tFood\n\nBank":  "peoria food bank",
		"":                      "",
		"   ":                   "",
		"211 Central  Illinois": "211 central illinois",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMergeFirstSeenWins(t *testing.T) {
	existing := []models.Resource{res("Peoria Food Bank")}
	richer := models.Resource{Name: "peoria  FOOD bank", Description: "richer", Contact: "(309) 671-3023"}
	got := Merge(existing, []models.Resource{richer, res("CityLink"), res(" citylink ")})
	if len(got) != 2 {
		t.Fatalf("expected 2 resources, got %d: %+v", len(got), got)
	}
	if got[0].Description != "Peoria Food Bank description" {
		t.Fatalf("existing entry was replaced: %+v", got[0])
	}
	if got[1].Name != "CityLink" {
		t.Fatalf("expected first CityLink occurrence, got %q", got[1].Name)
	}
}

func TestMergeDropsEmptyNames(t *testing.T) {
	got := Merge(nil, []models.Resource{res(""), res("   "), res("Salvation Army")})
	if len(got) != 1 || got[0].Name != "Salvation Army" {
		t.Fatalf("unexpected merge result %+v", got)
	}
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	existing := make([]models.Resource, 1, 8)
	existing[0] = res("A resource")
	_ = Merge(existing, []models.Resource{res("B resource")})
	if got := existing[:2][1].Name; got != "" {
		t.Fatalf("merge wrote into caller's backing array: %q", got)
	}
}

func randomResources(r *rand.Rand, n int) []models.Resource {
	names := []string{"Peoria Food Bank", "peoria food bank", "CityLink", "City Link", "  citylink", "211 Central Illinois", "Salvation Army", "", "Habitat"}
	out := make([]models.Resource, n)
	for i := range out {
		out[i] = res(names[r.Intn(len(names))])
	}
	return out
}

func uniqueKeys(rs []models.Resource) map[string]struct{} {
	keys := map[string]struct{}{}
	for _, r := range rs {
		if k := NormalizeName(r.Name); k != "" {
			keys[k] = struct{}{}
		}
	}
	return keys
}

func TestMergeProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		existing := Dedupe(randomResources(r, r.Intn(6)))
		incoming := randomResources(r, r.Intn(10))
		got := Merge(existing, incoming)

		lower := len(existing)
		if n := len(uniqueKeys(incoming)); n > lower {
			lower = n
		}
		if len(got) < lower || len(got) > len(existing)+len(incoming) {
			t.Fatalf("size %d outside [%d, %d]", len(got), lower, len(existing)+len(incoming))
		}
		seen := map[string]struct{}{}
		for _, res := range got {
			k := NormalizeName(res.Name)
			if _, dup := seen[k]; dup {
				t.Fatalf("duplicate key %q in %+v", k, got)
			}
			seen[k] = struct{}{}
		}
		if !reflect.DeepEqual(got[:len(existing)], existing) {
			t.Fatalf("existing prefix not preserved")
		}
		if again := Merge(got, incoming); !reflect.DeepEqual(again, got) {
			t.Fatalf("merge is not idempotent:\n%+v\n%+v", got, again)
		}
	}
}

func TestContains(t *testing.T) {
	rs := []models.Resource{res("Peoria Food Bank")}
	if !Contains(rs, "peoria   food bank") {
		t.Fatalf("expected normalized match")
	}
	if Contains(rs, "Peoria Food") {
		t.Fatalf("unexpected prefix match")
	}
}
