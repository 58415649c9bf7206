// services/tier_policy.go
package services

import (
	"fmt"
	"os"
	"strconv"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

// TierSplits holds the commission split percentage per tier, applied to the
// referrer's share for reporting. The per-lead fee itself is a flat amount
// and is never scaled by the split.
type TierSplits struct {
	Starter    int
	Pro        int
	Elite      int
	Ambassador int
}

// TierPolicy maps a referrer's lifetime confirmed-referral count to a tier.
// Thresholds and splits are injected at construction so tests can run against
// different tables; nothing is read from globals.
type TierPolicy struct {
	thresholds models.TierThresholds
	splits     TierSplits
}

// NewTierPolicy validates that the bands are stepped and non-overlapping.
func NewTierPolicy(thresholds models.TierThresholds, splits TierSplits) (*TierPolicy, error) {
	if thresholds.ProMin <= 0 ||
		thresholds.EliteMin <= thresholds.ProMin ||
		thresholds.AmbassadorMin <= thresholds.EliteMin {
		return nil, fmt.Errorf("tier thresholds must be strictly increasing: %+v", thresholds)
	}
	return &TierPolicy{thresholds: thresholds, splits: splits}, nil
}

// TierPolicyFromEnv builds the policy from TIER_* environment variables,
// falling back to the platform defaults.
func TierPolicyFromEnv() (*TierPolicy, error) {
	return NewTierPolicy(models.TierThresholds{
		ProMin:        envInt64("TIER_PRO_MIN", 6),
		EliteMin:      envInt64("TIER_ELITE_MIN", 21),
		AmbassadorMin: envInt64("TIER_AMBASSADOR_MIN", 51),
	}, TierSplits{
		Starter:    envInt("TIER_SPLIT_STARTER", 50),
		Pro:        envInt("TIER_SPLIT_PRO", 60),
		Elite:      envInt("TIER_SPLIT_ELITE", 70),
		Ambassador: envInt("TIER_SPLIT_AMBASSADOR", 80),
	})
}

// TierFor returns the band containing count.
func (p *TierPolicy) TierFor(count int64) models.Tier {
	switch {
	case count >= p.thresholds.AmbassadorMin:
		return models.TierAmbassador
	case count >= p.thresholds.EliteMin:
		return models.TierElite
	case count >= p.thresholds.ProMin:
		return models.TierPro
	default:
		return models.TierStarter
	}
}

// SplitPercent returns the reporting split for a tier.
func (p *TierPolicy) SplitPercent(tier models.Tier) int {
	switch tier {
	case models.TierPro:
		return p.splits.Pro
	case models.TierElite:
		return p.splits.Elite
	case models.TierAmbassador:
		return p.splits.Ambassador
	case models.TierStarter:
		return p.splits.Starter
	default:
		// Unknown cached value; treat as the base band.
		return p.splits.Starter
	}
}

// Thresholds returns the band minimums.
func (p *TierPolicy) Thresholds() models.TierThresholds {
	return p.thresholds
}

// Next returns the tier above the given one and the count needed to reach
// it. ok is false at the top band.
func (p *TierPolicy) Next(tier models.Tier) (next models.Tier, minCount int64, ok bool) {
	switch tier {
	case models.TierStarter:
		return models.TierPro, p.thresholds.ProMin, true
	case models.TierPro:
		return models.TierElite, p.thresholds.EliteMin, true
	case models.TierElite:
		return models.TierAmbassador, p.thresholds.AmbassadorMin, true
	default:
		return "", 0, false
	}
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
