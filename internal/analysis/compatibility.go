package analysis

import (
	"math"
	"strings"

	"roomies/backend/internal/config"
	"roomies/backend/internal/models"
)

// Result is a compatibility score with its per-factor breakdown. Breakdown
// values are raw factor points (0..GetWeight(factor)); Score is the total
// scaled onto 0..100.
type Result struct {
	Score     int                `json:"score"`
	Breakdown map[string]float64 `json:"breakdown"`
}

// Score computes the compatibility of a and b. Self-pairs and profiles missing
// required attributes score 0 with an empty breakdown. The result is the same
// for Score(a, b) and Score(b, a).
func Score(a, b *models.Profile) Result {
	if a == nil || b == nil || a.IdentityID == b.IdentityID {
		return Result{Breakdown: map[string]float64{}}
	}
	if a.Validate() != nil || b.Validate() != nil {
		return Result{Breakdown: map[string]float64{}}
	}

	breakdown := map[string]float64{
		FactorUniversity:  exactFold(a.University, b.University, config.WeightUniversity),
		FactorLocation:    exactFold(a.Location, b.Location, config.WeightLocation),
		FactorCleanliness: float64(cleanlinessPoints(a.Cleanliness, b.Cleanliness)),
		FactorSleep:       float64(sleepPoints(a.SleepSchedule, b.SleepSchedule)),
		FactorPersonality: float64(personalityPoints(a.Personality, b.Personality)),
		FactorSocial:      float64(socialPoints(a.SocialLevel, b.SocialLevel)),
		FactorSmoking:     float64(smokingPoints(a.SmokingPreference, b.SmokingPreference)),
		FactorPets:        float64(petPoints(a.PetTolerance, b.PetTolerance)),
		FactorBudget:      budgetPoints(a.BudgetMin, a.BudgetMax, b.BudgetMin, b.BudgetMax),
		FactorInterests:   interestPoints(a.Interests, b.Interests),
	}

	raw := 0.0
	for _, f := range Factors {
		raw += breakdown[f]
	}
	score := int(math.Round(raw * config.MaxCompatibilityScore / float64(maxRaw)))
	if score > config.MaxCompatibilityScore {
		score = config.MaxCompatibilityScore
	}
	if score < 0 {
		score = 0
	}
	return Result{Score: score, Breakdown: breakdown}
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func exactFold(a, b string, weight int) float64 {
	if a != "" && norm(a) == norm(b) {
		return float64(weight)
	}
	return 0
}

func cleanlinessPoints(a, b int) int {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if pts, ok := config.CleanlinessTiers[diff]; ok {
		return pts
	}
	return config.CleanlinessFallback
}

func sleepCategory(s string) string {
	if c, ok := config.SleepCategories[s]; ok {
		return c
	}
	return s
}

func sleepPoints(a, b string) int {
	a, b = norm(a), norm(b)
	if a == b {
		return config.WeightSleep
	}
	ca, cb := sleepCategory(a), sleepCategory(b)
	if ca == cb || ca == "flexible" || cb == "flexible" {
		return config.SleepPartial
	}
	return config.SleepMinimal
}

func personalityPoints(a, b string) int {
	a, b = norm(a), norm(b)
	if a == b {
		return config.WeightPersonality
	}
	if a == "ambivert" || b == "ambivert" {
		return config.PersonalityPartial
	}
	return config.PersonalityMinimal
}

func socialPoints(a, b string) int {
	a, b = norm(a), norm(b)
	if a == b {
		return config.WeightSocial
	}
	if a == "moderate" || b == "moderate" {
		return config.SocialPartial
	}
	oa, okA := config.SocialLevelOrder[a]
	ob, okB := config.SocialLevelOrder[b]
	if okA && okB && (oa-ob == 1 || ob-oa == 1) {
		return config.SocialPartial
	}
	return config.SocialMinimal
}

func canonicalSmoking(s string) string {
	for _, v := range []string{config.SmokingNever, config.SmokingSometimes, config.SmokingRegularly, config.SmokingOutside} {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return v
		}
	}
	return strings.TrimSpace(s)
}

// smokingPoints gives no credit for incompatible combinations such as
// "No smoking" with "Regularly".
func smokingPoints(a, b string) int {
	a, b = canonicalSmoking(a), canonicalSmoking(b)
	if a == b {
		return config.WeightSmoking
	}
	if config.SmokingAdjacent[[2]string{a, b}] || config.SmokingAdjacent[[2]string{b, a}] {
		return config.SmokingPartial
	}
	return 0
}

func petPoints(a, b string) int {
	a, b = norm(a), norm(b)
	if a == b {
		return config.WeightPets
	}
	allergic := norm(config.PetsAllergic)
	if a == allergic || b == allergic {
		return 0
	}
	tolerant := func(s string) bool {
		return s == norm(config.PetsComfortable) || s == norm(config.PetsHave)
	}
	if tolerant(a) || tolerant(b) {
		return config.PetsPartial
	}
	return 0
}

// budgetPoints is proportional to the overlap of the two ranges over their
// average length. Disjoint ranges score 0.
func budgetPoints(minA, maxA, minB, maxB int) float64 {
	lo := max(minA, minB)
	hi := min(maxA, maxB)
	if hi < lo {
		return 0
	}
	avg := float64((maxA-minA)+(maxB-minB)) / 2
	if avg == 0 {
		// Both ranges are single points and they coincide.
		return config.WeightBudget
	}
	overlap := float64(hi - lo)
	if overlap == 0 {
		return 0
	}
	ratio := math.Min(1, overlap/avg)
	return round1(ratio * config.WeightBudget)
}

// interestPoints is proportional to the shared interests over the larger set.
func interestPoints(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, in := range a {
		set[norm(in)] = struct{}{}
	}
	shared := 0
	seen := make(map[string]struct{}, len(b))
	for _, in := range b {
		k := norm(in)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := set[k]; ok {
			shared++
		}
	}
	larger := max(len(set), len(seen))
	return round1(float64(shared) / float64(larger) * config.WeightInterests)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
