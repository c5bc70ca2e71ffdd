// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package project

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// SettingsFileName is the JSON configuration file read at each cascade level.
const SettingsFileName = "settings.json"

// Configuration keys.
const (
	keyEnabled             = "plugins.router.enabled"
	keyForceMode           = "force_mode"
	keyConfidenceThreshold = "confidence_threshold"
	keyCacheTTLDays        = "cache_ttl_days"
	keyWIPLimit            = "wip_limit"
	keyRetentionDays       = "retention_days"
	keyContextWindow       = "context_window_tokens"
	keyContextWarnFraction = "context_warn_fraction"
)

// Default configuration values.
const (
	DefaultKeywordThreshold  = 0.8
	DefaultSemanticThreshold = 0.7
	DefaultCacheTTLDays      = 30
	DefaultWIPLimit          = 3
	DefaultRetentionDays     = 90
	DefaultContextWindow     = 200_000
	DefaultWarnFraction      = 0.70
)

// ForceMode values for the router.
const (
	ForceModeSingleStage = "single_stage"
	ForceModeMultiStage  = "multi_stage"
)

// Settings is the resolved configuration for one project. Resolution cascade,
// first match wins: project `.claude/settings.json`, then user
// `~/.claude/settings.json`, then built-in defaults.
type Settings struct {
	Enabled           bool
	ForceMode         string // single_stage | multi_stage | ""
	KeywordThreshold  float64
	SemanticThreshold float64
	CacheTTLDays      int
	WIPLimit          int
	RetentionDays     int

	// Context threshold monitor tuning.
	ContextWindowTokens int
	ContextWarnFraction float64
}

// LoadSettings resolves the configuration cascade for a project root.
// Unparseable files log a warning and fall through to the next level;
// configuration loading never fails.
func LoadSettings(root string, logger *zap.Logger) *Settings {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetDefault(keyEnabled, true)
	v.SetDefault(keyForceMode, "")
	v.SetDefault(keyCacheTTLDays, DefaultCacheTTLDays)
	v.SetDefault(keyWIPLimit, DefaultWIPLimit)
	v.SetDefault(keyRetentionDays, DefaultRetentionDays)
	v.SetDefault(keyContextWindow, DefaultContextWindow)
	v.SetDefault(keyContextWarnFraction, DefaultWarnFraction)

	// Merge user level first, project level last, so the project wins.
	levels := []string{filepath.Join(UserClaudeDir(), SettingsFileName)}
	if root != "" {
		levels = append(levels, filepath.Join(root, MarkerDir, SettingsFileName))
	}
	for _, path := range levels {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			logger.Warn("unparseable settings file, falling through",
				zap.String("path", path),
				zap.Error(err))
		}
	}

	s := &Settings{
		Enabled:             enabledFrom(v),
		ForceMode:           normalizeForceMode(v.GetString(keyForceMode)),
		KeywordThreshold:    DefaultKeywordThreshold,
		SemanticThreshold:   DefaultSemanticThreshold,
		CacheTTLDays:        v.GetInt(keyCacheTTLDays),
		RetentionDays:       v.GetInt(keyRetentionDays),
		WIPLimit:            v.GetInt(keyWIPLimit),
		ContextWindowTokens: v.GetInt(keyContextWindow),
		ContextWarnFraction: v.GetFloat64(keyContextWarnFraction),
	}

	// A single confidence_threshold key overrides both matcher thresholds.
	if v.IsSet(keyConfidenceThreshold) {
		if t := v.GetFloat64(keyConfidenceThreshold); t > 0 && t <= 1 {
			s.KeywordThreshold = t
			s.SemanticThreshold = t
		}
	}
	return s
}

// IsRouterEnabled reports whether routing is enabled for a project root.
// A missing file or key counts as enabled; only an explicit boolean false
// disables the router. Idempotent and side-effect free.
func IsRouterEnabled(root string, logger *zap.Logger) bool {
	return LoadSettings(root, logger).Enabled
}

// enabledFrom applies the enable-check rules: explicit false disables,
// everything else (including junk values) enables.
func enabledFrom(v *viper.Viper) bool {
	val := v.Get(keyEnabled)
	if b, ok := val.(bool); ok {
		return b
	}
	return true
}

func normalizeForceMode(mode string) string {
	switch mode {
	case ForceModeSingleStage, ForceModeMultiStage:
		return mode
	default:
		return ""
	}
}
