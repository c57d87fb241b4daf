package services

import (
	"regexp"
	"strings"

	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/types"
)

// ContextMessage is the slice of recent transcript the safety guard sees
// for situational awareness.
type ContextMessage struct {
	Role    string
	Content string
}

// SafetyGuard wraps the generation call at two points: classify the user's
// input before generation, and the model's reply before it reaches the
// user. The crisis message is fixed text, never model output.
type SafetyGuard interface {
	CheckUserInput(text string, previousMessages []ContextMessage) types.SafetyAssessment
	CheckAIResponse(generatedText, originalUserText string) types.SafetyAssessment
	CrisisInterventionMessage(flags []string) string
}

type indicator struct {
	name string
	re   *regexp.Regexp
}

type safetyGuard struct {
	log      *logger.Logger
	crisis   []indicator
	elevated []indicator
	unsafe   []indicator
}

func NewSafetyGuard(log *logger.Logger, cfg *SafetyConfig) SafetyGuard {
	if cfg == nil {
		cfg = DefaultSafetyConfig()
	}
	return &safetyGuard{
		log:      log.With("service", "SafetyGuard"),
		crisis:   compileIndicators(cfg.CrisisIndicators),
		elevated: compileIndicators(cfg.ElevatedIndicators),
		unsafe:   compileIndicators(cfg.UnsafeResponseIndicators),
	}
}

func compileIndicators(patterns map[string]string) []indicator {
	out := make([]indicator, 0, len(patterns))
	for _, name := range sortedKeys(patterns) {
		out = append(out, indicator{
			name: name,
			re:   regexp.MustCompile(`(?i)` + patterns[name]),
		})
	}
	return out
}

func matchIndicators(text string, indicators []indicator) []string {
	var flags []string
	for _, ind := range indicators {
		if ind.re.MatchString(text) {
			flags = append(flags, ind.name)
		}
	}
	return flags
}

func (sg *safetyGuard) CheckUserInput(text string, previousMessages []ContextMessage) types.SafetyAssessment {
	if crisisFlags := matchIndicators(text, sg.crisis); len(crisisFlags) > 0 {
		return types.SafetyAssessment{
			RiskLevel:            types.RiskCrisis,
			Flags:                crisisFlags,
			RequiresIntervention: true,
		}
	}

	elevatedFlags := matchIndicators(text, sg.elevated)
	if len(elevatedFlags) == 0 {
		return types.SafetyAssessment{RiskLevel: types.RiskNone}
	}

	// A recent crisis indicator in the transcript escalates an otherwise
	// elevated message: the user may be circling back to the same place.
	requiresIntervention := false
	for _, m := range previousMessages {
		if !strings.EqualFold(m.Role, "user") {
			continue
		}
		if len(matchIndicators(m.Content, sg.crisis)) > 0 {
			requiresIntervention = true
			break
		}
	}

	return types.SafetyAssessment{
		RiskLevel:            types.RiskElevated,
		Flags:                elevatedFlags,
		RequiresIntervention: requiresIntervention,
	}
}

func (sg *safetyGuard) CheckAIResponse(generatedText, originalUserText string) types.SafetyAssessment {
	flags := matchIndicators(generatedText, sg.unsafe)
	return types.SafetyAssessment{
		RiskLevel: types.RiskNone,
		Flags:     flags,
		IsSafe:    len(flags) == 0,
	}
}

const crisisInterventionText = `I'm really concerned about what you're sharing right now, and I want you to know that you don't have to face this alone.

Please reach out to people who are trained to help with exactly this:

- 988 Suicide & Crisis Lifeline (US): call or text 988, available 24/7
- Crisis Text Line: text HOME to 741741
- International Association for Suicide Prevention: https://www.iasp.info/resources/Crisis_Centres/

If you are in immediate danger, please call your local emergency number right now.

I'm here to listen, but a crisis counselor can support you in ways I can't. Would you consider reaching out to one of these resources?`

// CrisisInterventionMessage is deterministic for a given flag set: the same
// fixed, resource-pointing text every call.
func (sg *safetyGuard) CrisisInterventionMessage(flags []string) string {
	return crisisInterventionText
}
