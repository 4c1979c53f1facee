package client

import (
	"context"
	"slices"
)

// Feature names understood by CanUseFeature.
const (
	FeatureMultipleTimers        = "multipleTimers"
	FeatureCustomBackgrounds     = "customBackgrounds"
	FeatureAdvancedCustomization = "advancedCustomization"
	FeatureNoAds                 = "noAds"
	FeaturePremiumBackgrounds    = "premiumBackgrounds"
)

var premiumFeatures = []string{
	FeatureMultipleTimers,
	FeatureCustomBackgrounds,
	FeatureAdvancedCustomization,
	FeatureNoAds,
	FeaturePremiumBackgrounds,
}

var (
	freeBackgrounds = []string{
		"wedding", "beach", "mountains", "city",
		"sunset", "flowers", "space", "forest",
	}
	premiumBackgrounds = []string{
		"gradient1", "gradient2", "gradient3",
		"texture1", "texture2", "nature1",
		"nature2", "abstract1", "abstract2",
	}
)

const (
	freeTimerLimit    = 1
	premiumTimerLimit = 10
)

// CanUseFeature reports whether feature is available. Unknown features are free.
func (c *Client) CanUseFeature(ctx context.Context, feature string) bool {
	if !slices.Contains(premiumFeatures, feature) {
		return true
	}
	return c.IsPremium(ctx)
}

func (c *Client) TimerLimit(ctx context.Context) int {
	return TimerLimitFor(c.IsPremium(ctx))
}

// TimerLimitFor is TimerLimit for a premium flag already in hand.
func TimerLimitFor(premium bool) int {
	if premium {
		return premiumTimerLimit
	}
	return freeTimerLimit
}

func (c *Client) AvailableBackgrounds(ctx context.Context) []string {
	out := slices.Clone(freeBackgrounds)
	if c.IsPremium(ctx) {
		out = append(out, premiumBackgrounds...)
	}
	return out
}
