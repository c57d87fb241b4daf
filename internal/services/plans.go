package services

import "github.com/matchahq/matcha-backend/internal/types"

// Plan describes a subscription tier as presented to clients. The table
// is static; billing itself is handled outside this service.
type Plan struct {
	Tier              types.Tier `json:"tier"`
	Name              string     `json:"name"`
	PriceMonthlyCents int        `json:"priceMonthlyCents"`
	MessagesPerMonth  *int       `json:"messagesPerMonth"` // nil means unlimited
	AnalysesPerMonth  *int       `json:"analysesPerMonth"`
	Features          []string   `json:"features"`
}

func Plans() []Plan {
	freeMessages := FreeTierMonthlyMessages
	freeAnalyses := FreeTierMonthlyAnalyses
	return []Plan{
		{
			Tier:              types.TierFree,
			Name:              "Free",
			PriceMonthlyCents: 0,
			MessagesPerMonth:  &freeMessages,
			AnalysesPerMonth:  &freeAnalyses,
			Features: []string{
				"Matcha chat companion",
				"Incremental conversation insights",
				"Core cognitive bias detection",
			},
		},
		{
			Tier:              types.TierPro,
			Name:              "Pro",
			PriceMonthlyCents: 1200,
			MessagesPerMonth:  nil,
			AnalysesPerMonth:  nil,
			Features: []string{
				"Unlimited chat messages",
				"Unlimited deep analyses",
				"Priority deep-analysis model",
				"Full dashboard history",
			},
		},
	}
}
