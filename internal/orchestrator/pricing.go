package orchestrator

import "adstudio-server/internal/models"

// Duration and pricing constants. The base clip is 8 seconds; anything
// longer is produced by the extended provider variant in 7-second segments.
const (
	BaseDurationSeconds  = 8
	ExtensionStepSeconds = 7
)

// tierPricing holds credit costs per quality tier.
type tierPricing struct {
	Base      int
	Extension int
}

var pricingByTier = map[models.QualityTier]tierPricing{
	models.QualityStandard: {Base: 20, Extension: 10},
	models.QualityPremium:  {Base: 50, Extension: 25},
	models.QualityUGC:      {Base: 50, Extension: 25},
}

// ExtensionSegments returns the number of 7s extension segments needed to
// reach the requested duration beyond the 8s base. The single rounding rule
// for the whole codebase: ceiling, so a partial segment is paid in full.
func ExtensionSegments(durationSeconds int) int {
	extra := durationSeconds - BaseDurationSeconds
	if extra <= 0 {
		return 0
	}
	return (extra + ExtensionStepSeconds - 1) / ExtensionStepSeconds
}

// CreditCost computes the cost of a generation at the given tier and
// duration: base + segments * extension.
func CreditCost(tier models.QualityTier, durationSeconds int) int {
	p, ok := pricingByTier[tier]
	if !ok {
		p = pricingByTier[models.QualityStandard]
	}
	return p.Base + ExtensionSegments(durationSeconds)*p.Extension
}

// ProviderFor selects the generation backend from the requested duration.
func ProviderFor(durationSeconds int) models.Provider {
	if durationSeconds > BaseDurationSeconds {
		return models.ProviderVeoExtended
	}
	return models.ProviderVeo
}
