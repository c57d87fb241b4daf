package openrouter

import (
	"encoding/json"
	"strings"

	"github.com/matchahq/matcha-backend/internal/types"
)

const (
	analysisOpenTag  = "<analysis>"
	analysisCloseTag = "</analysis>"
)

const analyzeSystemPrompt = `You are a psychological analysis engine. Given a block of text written by a user, identify cognitive biases, thinking patterns, key insights, and the writer's emotional state.

Respond with a single JSON object and nothing else, in this exact shape:
{"emotionalState":{"primary":"...","secondary":"...","intensity":"low|moderate|high"},"biases":[{"name":"...","confidence":0-100,"description":"..."}],"patterns":[{"name":"...","percentage":0-100}],"insights":["..."]}`

// splitAnalysisTrailer strips the <analysis>{json}</analysis> trailer the
// system prompt asks the model to append. A missing or malformed trailer is
// not an error; the turn simply carries no structured analysis.
func splitAnalysisTrailer(content string) (string, *types.AnalysisData) {
	start := strings.LastIndex(content, analysisOpenTag)
	if start < 0 {
		return strings.TrimSpace(content), nil
	}
	end := strings.Index(content[start:], analysisCloseTag)
	if end < 0 {
		return strings.TrimSpace(content), nil
	}
	end += start

	payload := content[start+len(analysisOpenTag) : end]
	text := strings.TrimSpace(content[:start] + content[end+len(analysisCloseTag):])

	var data types.AnalysisData
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &data); err != nil {
		return text, nil
	}
	if data.EmotionalState == nil && len(data.Biases) == 0 && len(data.Patterns) == 0 && len(data.Insights) == 0 {
		return text, nil
	}
	return text, &data
}

// parseAnalysisJSON parses a whole-response JSON analysis, tolerating
// markdown code fences around the object.
func parseAnalysisJSON(content string) (*types.AnalysisData, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	var data types.AnalysisData
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil, err
	}
	return &data, nil
}
