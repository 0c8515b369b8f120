package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"adstudio-server/internal/models"
)

func TestExtensionSegments(t *testing.T) {
	testCases := []struct {
		duration int
		segments int
	}{
		{4, 0},
		{8, 0},
		{9, 1},
		{15, 1},
		{16, 2},
		{22, 2},
		{29, 3},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.segments, ExtensionSegments(tc.duration),
			"duration %ds", tc.duration)
	}
}

func TestCreditCost(t *testing.T) {
	// 8s base clips cost the base price only.
	assert.Equal(t, 20, CreditCost(models.QualityStandard, 8))
	assert.Equal(t, 50, CreditCost(models.QualityPremium, 8))
	assert.Equal(t, 50, CreditCost(models.QualityUGC, 8))

	// 15s standard: base 20 + 1 segment * 10.
	assert.Equal(t, 30, CreditCost(models.QualityStandard, 15))

	// 22s premium: base 50 + 2 segments * 25.
	assert.Equal(t, 100, CreditCost(models.QualityPremium, 22))

	// Partial segments are paid in full.
	assert.Equal(t, 30, CreditCost(models.QualityStandard, 9))

	// Unknown tier falls back to standard pricing.
	assert.Equal(t, 20, CreditCost(models.QualityTier("draft"), 8))
}

func TestProviderFor(t *testing.T) {
	assert.Equal(t, models.ProviderVeo, ProviderFor(8))
	assert.Equal(t, models.ProviderVeo, ProviderFor(5))
	assert.Equal(t, models.ProviderVeoExtended, ProviderFor(9))
	assert.Equal(t, models.ProviderVeoExtended, ProviderFor(22))
}
