package types

// RiskLevel is ordered: None < Elevated < Crisis.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskElevated
	RiskCrisis
)

func (r RiskLevel) String() string {
	switch r {
	case RiskCrisis:
		return "crisis"
	case RiskElevated:
		return "elevated"
	default:
		return "none"
	}
}

// SafetyAssessment is the transient result of a safety classification pass.
// IsSafe is only meaningful for the post-generation check.
type SafetyAssessment struct {
	RiskLevel            RiskLevel
	Flags                []string
	RequiresIntervention bool
	IsSafe               bool
}

// ModelTier selects which model strength serves a turn.
type ModelTier string

const (
	TierStandard ModelTier = "standard"
	TierDeep     ModelTier = "deep"

	// TierSafetyOverride is never sent to the provider; it marks the
	// crisis short-circuit path in responses.
	TierSafetyOverride ModelTier = "safety-override"
)
