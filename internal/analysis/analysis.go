// Package analysis computes roommate compatibility between profiles and scans
// message content for safety signals. Everything here is pure and safe to call
// from many goroutines at once.
package analysis

import "roomies/backend/internal/config"

// Factor names used as breakdown keys.
const (
	FactorUniversity  = "university"
	FactorLocation    = "location"
	FactorCleanliness = "cleanliness"
	FactorSleep       = "sleep_schedule"
	FactorPersonality = "personality"
	FactorSocial      = "social_level"
	FactorSmoking     = "smoking"
	FactorPets        = "pets"
	FactorBudget      = "budget"
	FactorInterests   = "interests"
)

var factorWeights = map[string]int{
	FactorUniversity:  config.WeightUniversity,
	FactorLocation:    config.WeightLocation,
	FactorCleanliness: config.WeightCleanliness,
	FactorSleep:       config.WeightSleep,
	FactorPersonality: config.WeightPersonality,
	FactorSocial:      config.WeightSocial,
	FactorSmoking:     config.WeightSmoking,
	FactorPets:        config.WeightPets,
	FactorBudget:      config.WeightBudget,
	FactorInterests:   config.WeightInterests,
}

// Factors lists every factor in a fixed order.
var Factors = []string{
	FactorUniversity,
	FactorLocation,
	FactorCleanliness,
	FactorSleep,
	FactorPersonality,
	FactorSocial,
	FactorSmoking,
	FactorPets,
	FactorBudget,
	FactorInterests,
}

// GetWeight returns the maximum points of a factor.
// It returns 0 if the factor is not recognized.
func GetWeight(factor string) int {
	return factorWeights[factor]
}

// maxRaw is the sum of all factor weights.
var maxRaw = func() int {
	total := 0
	for _, w := range factorWeights {
		total += w
	}
	return total
}()
