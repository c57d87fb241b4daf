package services

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/matchahq/matcha-backend/internal/types"
)

func bias(name string, confidence float64) types.CognitiveBias {
	return types.CognitiveBias{Name: name, Confidence: confidence}
}

func TestMergeBiases(t *testing.T) {
	tests := []struct {
		name     string
		existing []types.CognitiveBias
		incoming []types.CognitiveBias
		want     []types.CognitiveBias
	}{
		{
			name:     "empty existing takes incoming sorted",
			existing: nil,
			incoming: []types.CognitiveBias{bias("catastrophizing", 60), bias("all-or-nothing", 90)},
			want:     []types.CognitiveBias{bias("all-or-nothing", 90), bias("catastrophizing", 60)},
		},
		{
			name:     "higher confidence replaces",
			existing: []types.CognitiveBias{bias("catastrophizing", 50)},
			incoming: []types.CognitiveBias{bias("catastrophizing", 80)},
			want:     []types.CognitiveBias{bias("catastrophizing", 80)},
		},
		{
			name:     "lower confidence keeps existing",
			existing: []types.CognitiveBias{bias("catastrophizing", 80)},
			incoming: []types.CognitiveBias{bias("catastrophizing", 50)},
			want:     []types.CognitiveBias{bias("catastrophizing", 80)},
		},
		{
			name: "new names append and rank by confidence",
			existing: []types.CognitiveBias{
				bias("catastrophizing", 70),
			},
			incoming: []types.CognitiveBias{
				bias("mind-reading", 90),
				bias("personalization", 30),
			},
			want: []types.CognitiveBias{
				bias("mind-reading", 90),
				bias("catastrophizing", 70),
				bias("personalization", 30),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeBiases(tt.existing, tt.incoming)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("mergeBiases() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMergeBiasesBound(t *testing.T) {
	var existing []types.CognitiveBias
	for i := 0; i < 12; i++ {
		existing = append(existing, bias(fmt.Sprintf("bias-%d", i), float64(i)))
	}
	got := mergeBiases(existing, []types.CognitiveBias{bias("newcomer", 99)})
	if len(got) != maxBiases {
		t.Fatalf("len = %d, want %d", len(got), maxBiases)
	}
	if got[0].Name != "newcomer" {
		t.Fatalf("highest confidence should rank first, got %q", got[0].Name)
	}
	for _, b := range got {
		if b.Name == "bias-0" || b.Name == "bias-1" || b.Name == "bias-2" {
			t.Fatalf("lowest-confidence entry %q survived truncation", b.Name)
		}
	}
}

func TestMergeBiasesIdempotent(t *testing.T) {
	batch := []types.CognitiveBias{bias("catastrophizing", 70), bias("mind-reading", 40)}
	once := mergeBiases(nil, batch)
	twice := mergeBiases(once, batch)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("re-merging the same batch changed the result: %+v vs %+v", once, twice)
	}
}

func TestMergeBiasesDoesNotMutateInput(t *testing.T) {
	existing := []types.CognitiveBias{bias("catastrophizing", 50)}
	mergeBiases(existing, []types.CognitiveBias{bias("catastrophizing", 90)})
	if existing[0].Confidence != 50 {
		t.Fatalf("existing slice mutated: %+v", existing)
	}
}

func TestMergeInsights(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		incoming []string
		want     []string
	}{
		{
			name:     "appends new insight",
			existing: []string{"You tend to assume the worst outcome"},
			incoming: []string{"Naming emotions helps you regain control"},
			want: []string{
				"You tend to assume the worst outcome",
				"Naming emotions helps you regain control",
			},
		},
		{
			name:     "drops prefix duplicate case-insensitively",
			existing: []string{"You tend to assume the worst outcome in new situations"},
			incoming: []string{"you tend to assume the WORST outcome lately"},
			want:     []string{"You tend to assume the worst outcome in new situations"},
		},
		{
			name:     "drops when existing contains incoming prefix",
			existing: []string{"Overall: naming emotions helps you regain control quickly"},
			incoming: []string{"naming emotions helps you regain control"},
			want:     []string{"Overall: naming emotions helps you regain control quickly"},
		},
		{
			name:     "short insights compare whole string",
			existing: []string{"Breathe first"},
			incoming: []string{"Breathe first"},
			want:     []string{"Breathe first"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeInsights(tt.existing, tt.incoming)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("mergeInsights() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeInsightsWindow(t *testing.T) {
	var existing []string
	for i := 0; i < maxInsights; i++ {
		existing = append(existing, fmt.Sprintf("distinct observation number %02d about your patterns", i))
	}
	got := mergeInsights(existing, []string{"a brand new observation about resilience today"})
	if len(got) != maxInsights {
		t.Fatalf("len = %d, want %d", len(got), maxInsights)
	}
	if got[0] != existing[1] {
		t.Fatalf("oldest insight should be evicted, window starts with %q", got[0])
	}
	if got[maxInsights-1] != "a brand new observation about resilience today" {
		t.Fatalf("newest insight should be last, got %q", got[maxInsights-1])
	}
}
