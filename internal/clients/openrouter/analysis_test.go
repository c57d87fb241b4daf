package openrouter

import (
	"testing"
)

func TestSplitAnalysisTrailer(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantText     string
		wantAnalysis bool
	}{
		{
			name:         "no trailer",
			content:      "That sounds really difficult. What helped before?",
			wantText:     "That sounds really difficult. What helped before?",
			wantAnalysis: false,
		},
		{
			name: "well formed trailer",
			content: `Thanks for sharing that with me.

<analysis>{"emotionalState":{"primary":"anxious","intensity":"moderate"},"biases":[{"name":"catastrophizing","confidence":80}],"insights":["deadline pressure is the recurring trigger"]}</analysis>`,
			wantText:     "Thanks for sharing that with me.",
			wantAnalysis: true,
		},
		{
			name:         "malformed json drops trailer silently",
			content:      `Here for you. <analysis>{not json at all</analysis>`,
			wantText:     "Here for you.",
			wantAnalysis: false,
		},
		{
			name:         "unclosed tag leaves content intact",
			content:      `Take a breath. <analysis>{"biases":[]}`,
			wantText:     `Take a breath. <analysis>{"biases":[]}`,
			wantAnalysis: false,
		},
		{
			name:         "empty analysis object treated as absent",
			content:      `All good. <analysis>{}</analysis>`,
			wantText:     "All good.",
			wantAnalysis: false,
		},
		{
			name: "last trailer wins when model echoes the tag",
			content: `The <analysis> tag is how I structure notes. <analysis>{"insights":["you externalize pressure as deadlines"]}</analysis>`,
			wantText: "The <analysis> tag is how I structure notes.",
			wantAnalysis: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, analysis := splitAnalysisTrailer(tt.content)
			if text != tt.wantText {
				t.Fatalf("text = %q, want %q", text, tt.wantText)
			}
			if (analysis != nil) != tt.wantAnalysis {
				t.Fatalf("analysis = %+v, wantAnalysis=%v", analysis, tt.wantAnalysis)
			}
		})
	}
}

func TestSplitAnalysisTrailerFields(t *testing.T) {
	content := `Noted.

<analysis>{"emotionalState":{"primary":"sad","secondary":"relieved","intensity":"low"},"biases":[{"name":"mind-reading","confidence":55,"description":"assuming judgement"}],"patterns":[{"name":"avoidance","percentage":40}],"insights":["naming the feeling reduced its intensity"]}</analysis>`

	_, analysis := splitAnalysisTrailer(content)
	if analysis == nil {
		t.Fatal("expected analysis")
	}
	if analysis.EmotionalState == nil || analysis.EmotionalState.Primary != "sad" {
		t.Fatalf("emotional state = %+v", analysis.EmotionalState)
	}
	if len(analysis.Biases) != 1 || analysis.Biases[0].Name != "mind-reading" {
		t.Fatalf("biases = %+v", analysis.Biases)
	}
	if len(analysis.Patterns) != 1 || analysis.Patterns[0].Percentage != 40 {
		t.Fatalf("patterns = %+v", analysis.Patterns)
	}
	if len(analysis.Insights) != 1 {
		t.Fatalf("insights = %+v", analysis.Insights)
	}
}

func TestParseAnalysisJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name:    "bare object",
			content: `{"insights":["short entries cluster on low-energy days"]}`,
		},
		{
			name: "fenced json block",
			content: "```json\n{\"insights\":[\"short entries cluster on low-energy days\"]}\n```",
		},
		{
			name: "plain fence",
			content: "```\n{\"insights\":[\"x\"]}\n```",
		},
		{
			name:    "not json",
			content: "I could not produce an analysis.",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnalysisJSON(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("want error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAnalysisJSON: %v", err)
			}
			if got == nil || len(got.Insights) == 0 {
				t.Fatalf("parsed = %+v", got)
			}
		})
	}
}
