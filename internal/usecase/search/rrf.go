package search

import (
	"sort"

	"github.com/kailas-cloud/toolsync/internal/domain"
)

// rrfK dampens the rank contribution so deep-ranked hits still count.
const rrfK = 60

// fuseRRF merges ranked lists from several collections with reciprocal
// rank fusion. A tool appearing in more than one list accumulates the
// reciprocal rank from each; its payload and provenance come from the
// best-ranked occurrence.
func fuseRRF(lists map[string][]domain.SearchHit, limit int) []Hit {
	type fused struct {
		hit      Hit
		score    float64
		bestRank int
	}

	byID := make(map[string]*fused)
	for name, hits := range lists {
		for rank, h := range hits {
			contribution := 1.0 / float64(rrfK+rank+1)
			f, ok := byID[h.ID]
			if !ok {
				byID[h.ID] = &fused{
					hit:      Hit{ID: h.ID, Collection: name, Similarity: h.Score, Payload: h.Payload},
					score:    contribution,
					bestRank: rank,
				}
				continue
			}
			f.score += contribution
			if rank < f.bestRank {
				f.bestRank = rank
				f.hit.Collection = name
				f.hit.Similarity = h.Score
				f.hit.Payload = h.Payload
			}
		}
	}

	out := make([]Hit, 0, len(byID))
	for _, f := range byID {
		f.hit.Score = f.score
		out = append(out, f.hit)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
