// Package config loads process configuration from the environment
// (spec.md section 6: "Process configuration (weights, thresholds,
// timeouts) is supplied externally via environment"), with defaults
// matching every tunable named in spec.md sections 4.B-4.D and 5.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rustyguts/strangerchat/internal/matching"
	"github.com/rustyguts/strangerchat/internal/scoring"
)

// EnvPrefix is prepended to every environment variable this package
// binds, e.g. STRANGER_LISTEN_ADDR.
const EnvPrefix = "STRANGER"

// Config is the full set of externally tunable process settings.
type Config struct {
	ListenAddr string
	OriginAllowlist []string

	Scoring            scoring.Config
	VideoMatchMinScore float64
	TextMatchMinScore  float64

	MaxWaitSeconds        int
	InactivityThreshold   time.Duration
	RematchInterval       time.Duration
	InactivitySweepPeriod time.Duration
	StatsBroadcastPeriod  time.Duration
}

// Default returns the baseline configuration before any environment
// overrides are applied.
func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		OriginAllowlist: nil,

		Scoring:            scoring.DefaultConfig,
		VideoMatchMinScore: matching.VideoMinScore,
		TextMatchMinScore:  matching.TextMinScore,

		MaxWaitSeconds:        45,
		InactivityThreshold:   5 * time.Minute,
		RematchInterval:       5 * time.Second,
		InactivitySweepPeriod: 60 * time.Second,
		StatsBroadcastPeriod:  5 * time.Second,
	}
}

// Load builds a Config from environment variables prefixed with
// EnvPrefix, falling back to Default's values for anything unset. It
// mirrors the teacher's flag-driven main.go, but sourced from the
// environment per spec.md section 6 rather than CLI flags (flags remain
// available as overrides in cmd/server).
func Load() Config {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bind := func(key string, def interface{}) {
		v.SetDefault(key, def)
	}
	bind("listen_addr", cfg.ListenAddr)
	bind("origin_allowlist", "")
	bind("scoring.base_score", cfg.Scoring.BaseScore)
	bind("scoring.weight_interest", cfg.Scoring.Weights.Interest)
	bind("scoring.weight_demographic", cfg.Scoring.Weights.Demographic)
	bind("scoring.weight_chat_mode", cfg.Scoring.Weights.ChatMode)
	bind("scoring.weight_behavior", cfg.Scoring.Weights.Behavior)
	bind("scoring.optimal_age_diff", cfg.Scoring.OptimalAgeDiff)
	bind("scoring.max_age_diff", cfg.Scoring.MaxAgeDiff)
	bind("scoring.same_gender_bonus", cfg.Scoring.SameGenderBonus)
	bind("scoring.gender_preference_bonus", cfg.Scoring.GenderPreferenceBonus)
	bind("scoring.premium_bonus", cfg.Scoring.PremiumBonus)
	bind("scoring.video_mode_bonus", cfg.Scoring.VideoModeBonus)
	bind("scoring.video_text_penalty", cfg.Scoring.VideoTextPenalty)
	bind("scoring.age_range_bonus", cfg.Scoring.AgeRangeBonus)
	bind("scoring.priority_wait_seconds", cfg.Scoring.PriorityWaitSeconds)
	bind("scoring.max_history_penalty", cfg.Scoring.MaxHistoryPenalty)
	bind("scoring.history_penalty_per_match", cfg.Scoring.HistoryPenaltyPerMatch)
	bind("scoring.max_attempts_boost", cfg.Scoring.MaxAttemptsBoost)
	bind("scoring.attempts_boost_per_try", cfg.Scoring.AttemptsBoostPerTry)
	bind("video_match_min_score", cfg.VideoMatchMinScore)
	bind("text_match_min_score", cfg.TextMatchMinScore)
	bind("max_wait_seconds", cfg.MaxWaitSeconds)
	bind("inactivity_threshold_seconds", int(cfg.InactivityThreshold.Seconds()))
	bind("rematch_interval_seconds", int(cfg.RematchInterval.Seconds()))
	bind("inactivity_sweep_period_seconds", int(cfg.InactivitySweepPeriod.Seconds()))
	bind("stats_broadcast_period_seconds", int(cfg.StatsBroadcastPeriod.Seconds()))

	cfg.ListenAddr = v.GetString("listen_addr")
	if allow := v.GetString("origin_allowlist"); allow != "" {
		cfg.OriginAllowlist = strings.Split(allow, ",")
	}

	cfg.Scoring.BaseScore = v.GetFloat64("scoring.base_score")
	cfg.Scoring.Weights.Interest = v.GetFloat64("scoring.weight_interest")
	cfg.Scoring.Weights.Demographic = v.GetFloat64("scoring.weight_demographic")
	cfg.Scoring.Weights.ChatMode = v.GetFloat64("scoring.weight_chat_mode")
	cfg.Scoring.Weights.Behavior = v.GetFloat64("scoring.weight_behavior")
	cfg.Scoring.OptimalAgeDiff = v.GetInt("scoring.optimal_age_diff")
	cfg.Scoring.MaxAgeDiff = v.GetInt("scoring.max_age_diff")
	cfg.Scoring.SameGenderBonus = v.GetFloat64("scoring.same_gender_bonus")
	cfg.Scoring.GenderPreferenceBonus = v.GetFloat64("scoring.gender_preference_bonus")
	cfg.Scoring.PremiumBonus = v.GetFloat64("scoring.premium_bonus")
	cfg.Scoring.VideoModeBonus = v.GetFloat64("scoring.video_mode_bonus")
	cfg.Scoring.VideoTextPenalty = v.GetFloat64("scoring.video_text_penalty")
	cfg.Scoring.AgeRangeBonus = v.GetFloat64("scoring.age_range_bonus")
	cfg.Scoring.PriorityWaitSeconds = v.GetFloat64("scoring.priority_wait_seconds")
	cfg.Scoring.MaxHistoryPenalty = v.GetFloat64("scoring.max_history_penalty")
	cfg.Scoring.HistoryPenaltyPerMatch = v.GetFloat64("scoring.history_penalty_per_match")
	cfg.Scoring.MaxAttemptsBoost = v.GetFloat64("scoring.max_attempts_boost")
	cfg.Scoring.AttemptsBoostPerTry = v.GetFloat64("scoring.attempts_boost_per_try")

	cfg.VideoMatchMinScore = v.GetFloat64("video_match_min_score")
	cfg.TextMatchMinScore = v.GetFloat64("text_match_min_score")
	cfg.MaxWaitSeconds = v.GetInt("max_wait_seconds")
	cfg.InactivityThreshold = time.Duration(v.GetInt("inactivity_threshold_seconds")) * time.Second
	cfg.RematchInterval = time.Duration(v.GetInt("rematch_interval_seconds")) * time.Second
	cfg.InactivitySweepPeriod = time.Duration(v.GetInt("inactivity_sweep_period_seconds")) * time.Second
	cfg.StatsBroadcastPeriod = time.Duration(v.GetInt("stats_broadcast_period_seconds")) * time.Second

	return cfg
}
