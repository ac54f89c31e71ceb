package resources

import (
	"strconv"
	"strings"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/civicnav/models"
)

// Hit is a resource ranked against a free-text query.
type Hit struct {
	Resource models.Resource `json:"resource"`
	Score    float64         `json:"score"`
	Rank     int             `json:"rank"`
}

type indexedResource struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Eligibility string `json:"eligibility"`
	NextStep    string `json:"next_step"`
}

// Rank scores rs against q with a throwaway in-memory BM25 index and returns
// at most k hits, best first. An empty query returns rs in its stored order.
func Rank(rs []models.Resource, q string, k int) ([]Hit, error) {
	if k <= 0 || k > len(rs) {
		k = len(rs)
	}
	q = strings.TrimSpace(q)
	if q == "" || len(rs) == 0 {
		out := make([]Hit, 0, k)
		for i := 0; i < k; i++ {
			out = append(out, Hit{Resource: rs[i], Rank: i + 1})
		}
		return out, nil
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	defer index.Close()

	batch := index.NewBatch()
	for i, r := range rs {
		doc := indexedResource{
			Name:        r.Name,
			Category:    r.Category,
			Description: r.Description,
			Eligibility: r.Eligibility,
			NextStep:    r.NextStep,
		}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			return nil, err
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), k, 0, false)
	res, err := index.Search(req)
	if err != nil {
		return nil, err
	}
	out := make([]Hit, 0, len(res.Hits))
	for i, h := range res.Hits {
		pos, err := strconv.Atoi(h.ID)
		if err != nil || pos < 0 || pos >= len(rs) {
			continue
		}
		out = append(out, Hit{Resource: rs[pos], Score: h.Score, Rank: i + 1})
	}
	return out, nil
}
