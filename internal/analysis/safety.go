package analysis

import (
	"sort"
	"strings"

	"roomies/backend/internal/config"
)

// ScanContent returns the safety flags raised by body, sorted by name. An empty
// result means nothing was detected. Flags never block delivery.
func ScanContent(body string) []string {
	lower := strings.ToLower(body)
	var flags []string
	for flag, keywords := range config.SafetyKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				flags = append(flags, flag)
				break
			}
		}
	}
	sort.Strings(flags)
	return flags
}
