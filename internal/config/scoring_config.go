package config

const (
	// Factor weights. The raw total is scaled onto 0..MaxCompatibilityScore.
	WeightUniversity  = 15
	WeightLocation    = 15
	WeightCleanliness = 15
	WeightSleep       = 12
	WeightPersonality = 10
	WeightSocial      = 10
	WeightSmoking     = 10
	WeightPets        = 8
	WeightBudget      = 10
	WeightInterests   = 5

	MaxCompatibilityScore = 100

	// Partial credit
	SleepPartial       = 8
	SleepMinimal       = 3
	PersonalityPartial = 7
	PersonalityMinimal = 3
	SocialPartial      = 6
	SocialMinimal      = 2
	SmokingPartial     = 5
	PetsPartial        = 4

	// Cleanliness
	CleanlinessMin = 1
	CleanlinessMax = 5
)

// CleanlinessTiers maps the absolute difference of cleanliness levels to points.
// Any difference not listed scores CleanlinessFallback.
var CleanlinessTiers = map[int]int{
	0: 15,
	1: 12,
	2: 8,
}

const CleanlinessFallback = 3

// SleepCategories groups sleep schedules into broad categories.
var SleepCategories = map[string]string{
	"early_bird":    "early",
	"early_riser":   "early",
	"morning":       "early",
	"night_owl":     "late",
	"late_sleeper":  "late",
	"night":         "late",
	"regular":       "regular",
	"standard":      "regular",
	"flexible":      "flexible",
	"irregular":     "flexible",
	"shift_worker":  "flexible",
	"varies":        "flexible",
	"no_preference": "flexible",
}

// SocialLevelOrder places social levels on an ordinal scale; adjacent levels
// earn partial credit.
var SocialLevelOrder = map[string]int{
	"very_private": 0,
	"private":      1,
	"moderate":     2,
	"social":       3,
	"very_social":  4,
}

const (
	SmokingNever     = "No smoking"
	SmokingSometimes = "Occasionally"
	SmokingRegularly = "Regularly"
	SmokingOutside   = "Outside only"
)

// SmokingAdjacent lists the asymmetric combinations worth partial credit.
// Pairs not listed here and not equal score zero.
var SmokingAdjacent = map[[2]string]bool{
	{SmokingNever, SmokingOutside}:       true,
	{SmokingNever, SmokingSometimes}:     true,
	{SmokingSometimes, SmokingRegularly}: true,
	{SmokingSometimes, SmokingOutside}:   true,
	{SmokingOutside, SmokingRegularly}:   true,
}

const (
	PetsNone        = "No pets"
	PetsComfortable = "Comfortable with pets"
	PetsHave        = "Have pets"
	PetsAllergic    = "Allergic"
)
