package sm2

import (
	"sort"
	"time"
)

// MasteredLevel is the lowest mastery level counted as mastered.
const MasteredLevel = 8

type masteryTier struct {
	minRepetitions int
	minInterval    float64
	minEasiness    float64
	level          int
}

// masteryTiers is checked top to bottom; the first match wins.
var masteryTiers = []masteryTier{
	{12, 60, 2.4, 10},
	{12, 60, 0, 9},
	{10, 45, 0, 9},
	{8, 30, 0, 8},
	{6, 14, 0, 7},
	{5, 7, 0, 6},
	{4, 4, 0, 5},
	{3, 0, 0, 4},
	{2, 0, 0, 3},
	{1, 0, 2.0, 2},
	{1, 0, 0, 1},
}

// MasteryLevel returns a 0-10 presentation level for the card.
func MasteryLevel(c Card) int {
	for _, t := range masteryTiers {
		if c.Repetitions >= t.minRepetitions && c.Interval >= t.minInterval && c.Easiness >= t.minEasiness {
			return t.level
		}
	}
	return 0
}

// IsMastered reports whether the card has reached MasteredLevel.
func IsMastered(c Card) bool {
	return MasteryLevel(c) >= MasteredLevel
}

// SortDue returns up to limit cards due at now, ordered: never-recalled
// cards first, then the lowest easiness, then the most overdue. A limit
// <= 0 returns all due cards. keys travel with cards so callers can map
// results back to rows.
func SortDue[K any](keys []K, cards []Card, now time.Time, limit int) ([]K, []Card) {
	idx := make([]int, 0, len(cards))
	for i, c := range cards {
		if c.IsDue(now) {
			idx = append(idx, i)
		}
	}

	sort.SliceStable(idx, func(a, b int) bool {
		ci, cj := cards[idx[a]], cards[idx[b]]
		if (ci.Repetitions == 0) != (cj.Repetitions == 0) {
			return ci.Repetitions == 0
		}
		if ci.Easiness != cj.Easiness {
			return ci.Easiness < cj.Easiness
		}
		return ci.NextReview.Before(cj.NextReview)
	})

	if limit > 0 && len(idx) > limit {
		idx = idx[:limit]
	}

	outKeys := make([]K, len(idx))
	outCards := make([]Card, len(idx))
	for i, j := range idx {
		outKeys[i] = keys[j]
		outCards[i] = cards[j]
	}
	return outKeys, outCards
}
