package analysis_test

import (
	"testing"

	"roomies/backend/internal/analysis"

	"github.com/stretchr/testify/assert"
)

func TestScanContent(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"clean", "Hi! Would love to see the flat on Saturday.", nil},
		{"western union", "Please send the money via Western Union", []string{"off_platform_payment"}},
		{"payment and urgency", "URGENT: pay the deposit by gift card", []string{"off_platform_payment", "urgency"}},
		{"german", "Bitte per Überweisung zahlen", []string{"off_platform_payment"}},
		{"russian", "Нужно СРОЧНО решить", []string{"urgency"}},
		{"contact", "whatsapp me at +32 470", []string{"contact_off_platform"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, analysis.ScanContent(tt.body))
		})
	}
}
