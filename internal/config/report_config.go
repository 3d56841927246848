package config

import "time"

// Report handling. A reported identity is suspended (its profile
// deactivated) when, within ReportWindow, the reports against it reach
// SuspendWeight from at least SuspendMinReporters distinct reporters, or come
// from more than SuspendReporters distinct reporters. Only the heaviest report
// of each reporter counts towards the weight, so no single reporter can reach
// a suspension alone.
const (
	ReportWindow        = 7 * 24 * time.Hour
	SuspendWeight       = 500
	SuspendMinReporters = 2
	SuspendReporters    = 5
	MaxReportReason     = 2000
)

var ReportWeights = map[string]int{
	"spam":         5,
	"harassment":   50,
	"fake_profile": 50,
	"scam":         250,
}
