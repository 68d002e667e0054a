// Package rank merges ranked lists with Reciprocal Rank Fusion.
package rank

import (
	"sort"
	"strings"

	"github.com/cloo-solutions/bomsearch/internal/domain"
)

// DefaultK is the RRF smoothing constant.
const DefaultK = 50

// Fused is one item of a fused list. RankA and RankB are the item's 1-indexed
// positions in the input lists, 0 when absent.
type Fused[T any] struct {
	Item  T
	Score float64
	RankA int
	RankB int
}

type fusionCandidate[T any] struct {
	item  T
	rankA int
	rankB int
	order int
}

// Fuse combines two ranked lists. Each item scores wA/(k+rankA) + wB/(k+rankB)
// where a missing rank contributes nothing. Ties keep first-appearance order:
// list a, then items only present in b. maxResults <= 0 keeps everything.
func Fuse[T any](a, b []T, key func(T) string, wA, wB float64, k, maxResults int) []Fused[T] {
	if k <= 0 {
		k = DefaultK
	}

	candidates := make(map[string]*fusionCandidate[T], len(a)+len(b))
	ordered := make([]*fusionCandidate[T], 0, len(a)+len(b))
	addList := func(list []T, first bool) {
		for i, item := range list {
			id := key(item)
			cand, ok := candidates[id]
			if !ok {
				cand = &fusionCandidate[T]{item: item, order: len(ordered)}
				candidates[id] = cand
				ordered = append(ordered, cand)
			}
			if first && cand.rankA == 0 {
				cand.rankA = i + 1
			}
			if !first && cand.rankB == 0 {
				cand.rankB = i + 1
			}
		}
	}
	addList(a, true)
	addList(b, false)

	out := make([]Fused[T], 0, len(ordered))
	for _, cand := range ordered {
		out = append(out, Fused[T]{
			Item:  cand.item,
			Score: contribution(wA, k, cand.rankA) + contribution(wB, k, cand.rankB),
			RankA: cand.rankA,
			RankB: cand.rankB,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

func contribution(weight float64, k, rank int) float64 {
	if rank == 0 {
		return 0
	}
	return weight / float64(k+rank)
}

// FuseFamilies fuses full-text and vector family rankings. The returned
// families carry their fused position as Rank and the RRF score as Score.
func FuseFamilies(fullText, vector []domain.RankedMaterialFamily, wFullText, wVector float64, k, maxResults int) []domain.RankedMaterialFamily {
	fused := Fuse(fullText, vector, familyKey, wFullText, wVector, k, maxResults)
	out := make([]domain.RankedMaterialFamily, 0, len(fused))
	for i, f := range fused {
		fam := f.Item
		fam.Rank = i + 1
		fam.Score = f.Score
		out = append(out, fam)
	}
	return out
}

func familyKey(f domain.RankedMaterialFamily) string {
	return strings.ToLower(strings.TrimSpace(f.Label))
}
