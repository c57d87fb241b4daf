package services

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/utils"
)

// SafetyConfig is the indicator table the guard compiles at startup. Keys
// are flag names surfaced in assessments; values are case-insensitive
// regular expressions. Deployments can override the whole table from a
// YAML file; the defaults ship in the binary.
type SafetyConfig struct {
	CrisisIndicators         map[string]string `yaml:"crisis_indicators"`
	ElevatedIndicators       map[string]string `yaml:"elevated_indicators"`
	UnsafeResponseIndicators map[string]string `yaml:"unsafe_response_indicators"`
}

func DefaultSafetyConfig() *SafetyConfig {
	return &SafetyConfig{
		CrisisIndicators: map[string]string{
			"suicidal_ideation": `\b(suicide|suicidal|kill myself|end my life|end it all|want to die|better off dead)\b`,
			"self_harm":         `\b(self.?harm|hurt myself|cut myself|harming myself)\b`,
			"giving_up":         `\b(give up on life|no reason to live|can't do this anymore)\b`,
		},
		ElevatedIndicators: map[string]string{
			"acute_distress": `\b(panic|panicking|terrified|devastated|falling apart|breaking down)\b`,
			"hopelessness":   `\b(hopeless|worthless|no way out|can't go on)\b`,
		},
		UnsafeResponseIndicators: map[string]string{
			"harmful_encouragement": `\b(you should (just )?(end it|give up)|not worth living|no point in going on)\b`,
			"means_information":     `\b(how to (hurt|harm|kill))\b`,
			"dismissive":            `\b(just get over it|stop being dramatic|it's all in your head)\b`,
		},
	}
}

// LoadSafetyConfig returns the defaults, or the table from
// SAFETY_CONFIG_PATH when that file exists and parses.
func LoadSafetyConfig(log *logger.Logger) (*SafetyConfig, error) {
	path := utils.GetEnv("SAFETY_CONFIG_PATH", "", log)
	if path == "" {
		return DefaultSafetyConfig(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read safety config %s: %w", path, err)
	}
	cfg := &SafetyConfig{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse safety config %s: %w", path, err)
	}

	defaults := DefaultSafetyConfig()
	if len(cfg.CrisisIndicators) == 0 {
		cfg.CrisisIndicators = defaults.CrisisIndicators
	}
	if len(cfg.ElevatedIndicators) == 0 {
		cfg.ElevatedIndicators = defaults.ElevatedIndicators
	}
	if len(cfg.UnsafeResponseIndicators) == 0 {
		cfg.UnsafeResponseIndicators = defaults.UnsafeResponseIndicators
	}
	return cfg, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
