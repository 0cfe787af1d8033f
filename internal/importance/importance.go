// Package importance tracks a decaying importance score per memory entry and
// recommends moves between the hot, warm and cold tiers.
package importance

import (
	"math"

	"github.com/rcliao/cogmem/internal/model"
)

// Config holds the scoring and lifecycle parameters. Fields are used as
// given, so an explicit zero weight or threshold disables that term; only
// the zero Config as a whole stands for DefaultConfig.
type Config struct {
	RecencyDecayCycles  int     `toml:"recency_decay_cycles" yaml:"recency_decay_cycles"`
	AccessFactorCap     int     `toml:"access_factor_cap" yaml:"access_factor_cap"`
	BaseWeight          float64 `toml:"base_weight" yaml:"base_weight"`
	RecencyWeight       float64 `toml:"recency_weight" yaml:"recency_weight"`
	AccessWeight        float64 `toml:"access_weight" yaml:"access_weight"`
	ForgetThreshold     float64 `toml:"forget_threshold" yaml:"forget_threshold"`
	HotDemotionCycles   int     `toml:"hot_demotion_cycles" yaml:"hot_demotion_cycles"`
	WarmDemotionCycles  int     `toml:"warm_demotion_cycles" yaml:"warm_demotion_cycles"`
	ColdForgetCycles    int     `toml:"cold_forget_cycles" yaml:"cold_forget_cycles"`
	PromoteMinAccesses  int     `toml:"promote_min_accesses" yaml:"promote_min_accesses"`
	PromoteWindowCycles int     `toml:"promote_window_cycles" yaml:"promote_window_cycles"`
}

// DefaultConfig returns the standard tracker configuration.
func DefaultConfig() Config {
	return Config{
		RecencyDecayCycles:  100,
		AccessFactorCap:     10,
		BaseWeight:          0.4,
		RecencyWeight:       0.3,
		AccessWeight:        0.3,
		ForgetThreshold:     0.3,
		HotDemotionCycles:   10,
		WarmDemotionCycles:  50,
		ColdForgetCycles:    200,
		PromoteMinAccesses:  3,
		PromoteWindowCycles: 5,
	}
}

// DefaultKindWeight applies to kinds outside the known set.
const DefaultKindWeight = 0.5

var kindWeights = map[model.Kind]float64{
	model.KindDecision:  1.0,
	model.KindBlocker:   0.9,
	model.KindLesson:    0.8,
	model.KindThread:    0.7,
	model.KindQuestion:  0.6,
	model.KindMetric:    0.5,
	model.KindStatus:    0.5,
	model.KindRoleState: 0.4,
}

// KindWeight returns the base multiplier for kind.
func KindWeight(kind model.Kind) float64 {
	if w, ok := kindWeights[kind]; ok {
		return w
	}
	return DefaultKindWeight
}

// RecencyFactor decays linearly from 1 at the reference cycle to 0 once
// RecencyDecayCycles have passed. A negative gap counts as zero.
func RecencyFactor(cfg Config, currentCycle, referenceCycle int) float64 {
	gap := currentCycle - referenceCycle
	if gap < 0 {
		gap = 0
	}
	if cfg.RecencyDecayCycles <= 0 {
		return 0
	}
	return math.Max(0, 1-float64(gap)/float64(cfg.RecencyDecayCycles))
}

// AccessFactor saturates at 1 after AccessFactorCap accesses.
func AccessFactor(cfg Config, accessCount int) float64 {
	if cfg.AccessFactorCap <= 0 {
		return 1
	}
	return math.Min(1, float64(accessCount)/float64(cfg.AccessFactorCap))
}

// Score combines the factors and clamps the result to [0,1].
func Score(cfg Config, kindWeight, recency, access float64) float64 {
	s := kindWeight * (cfg.BaseWeight + cfg.RecencyWeight*recency + cfg.AccessWeight*access)
	return math.Max(0, math.Min(1, s))
}

func score(cfg Config, m *model.MemoryImportance, currentCycle, referenceCycle int) float64 {
	return Score(cfg, m.KindWeight,
		RecencyFactor(cfg, currentCycle, referenceCycle),
		AccessFactor(cfg, m.AccessCount))
}
