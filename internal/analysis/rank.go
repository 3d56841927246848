package analysis

import (
	"sort"

	"roomies/backend/internal/models"
)

// Ranked is a candidate profile with its compatibility against a subject.
type Ranked struct {
	Profile   *models.Profile    `json:"profile"`
	Score     int                `json:"score"`
	Breakdown map[string]float64 `json:"breakdown"`
}

// Rank scores every candidate against subject and returns them best first.
func Rank(subject *models.Profile, candidates []*models.Profile) []Ranked {
	out := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		r := Score(subject, c)
		out = append(out, Ranked{Profile: c, Score: r.Score, Breakdown: r.Breakdown})
	}
	SortRanked(out)
	return out
}

// SortRanked orders by score descending. Equal scores fall back to the older
// profile first, then to the profile ID, so the order is fully deterministic.
func SortRanked(ranked []Ranked) {
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Profile.CreatedAt.Equal(b.Profile.CreatedAt) {
			return a.Profile.CreatedAt.Before(b.Profile.CreatedAt)
		}
		return a.Profile.ID < b.Profile.ID
	})
}
