package services

import (
	"regexp"

	"github.com/matchahq/matcha-backend/internal/types"
)

// TierSelection is the input to the pure tier decision.
type TierSelection struct {
	MessageCount               int
	IsSessionEnd               bool
	RequiresDeepAnalysis       bool
	HasComplexEmotionalContent bool
}

// selectModelTier picks which model strength serves a turn. Precedence,
// highest first: explicit deep-analysis request, session end, complex
// emotional content; everything else runs on the standard tier.
func selectModelTier(sel TierSelection) types.ModelTier {
	switch {
	case sel.RequiresDeepAnalysis:
		return types.TierDeep
	case sel.IsSessionEnd:
		return types.TierDeep
	case sel.HasComplexEmotionalContent:
		return types.TierDeep
	default:
		return types.TierStandard
	}
}

// complexContentIndicators is a configuration table, not logic: lexical
// families whose presence means the message deserves the deep tier.
var complexContentIndicators = []*regexp.Regexp{
	// Crisis/safety indicators
	regexp.MustCompile(`(?i)\b(suicide|suicidal|kill myself|end my life|self.?harm|hurt myself|give up on life)\b`),
	// High distress indicators
	regexp.MustCompile(`(?i)\b(panic|panicking|terrified|devastated|hopeless|worthless|can't go on)\b`),
	// Trauma-related content
	regexp.MustCompile(`(?i)\b(trauma|traumatic|abuse|abused|assault|attacked|ptsd)\b`),
	// Mental health treatment mentions
	regexp.MustCompile(`(?i)\b(diagnosed|medication|psychiatrist|hospitalized|crisis)\b`),
	// Intense emotional distress
	regexp.MustCompile(`(?i)\b(can't stop crying|breaking down|falling apart|losing my mind)\b`),
	// Relationship crises
	regexp.MustCompile(`(?i)\b(divorce|cheated on|betrayed|abandoned)\b`),
	// Loss and grief
	regexp.MustCompile(`(?i)\b(died|death|passed away|lost my|funeral)\b`),
}

func detectComplexEmotionalContent(message string) bool {
	for _, re := range complexContentIndicators {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}
