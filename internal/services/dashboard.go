package services

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/repos"
	"github.com/matchahq/matcha-backend/internal/types"
)

// BiasStats aggregates one bias across a user's completed analyses.
type BiasStats struct {
	Name          string  `json:"name"`
	AvgConfidence float64 `json:"avgConfidence"`
	Count         int     `json:"count"`
}

type PatternStats struct {
	Name          string  `json:"name"`
	AvgPercentage float64 `json:"avgPercentage"`
}

type Dashboard struct {
	TotalAnalyses     int            `json:"totalAnalyses"`
	AnalysesThisMonth int            `json:"analysesThisMonth"`
	TopBiases         []BiasStats    `json:"topBiases"`
	Patterns          []PatternStats `json:"patterns"`
	Tier              types.Tier     `json:"tier"`
}

type DashboardService interface {
	GetDashboard(ctx context.Context, userID string) (*Dashboard, error)
}

type dashboardService struct {
	log      *logger.Logger
	users    repos.UserRepo
	analyses repos.AnalysisRepo
}

func NewDashboardService(baseLog *logger.Logger, userRepo repos.UserRepo, analysisRepo repos.AnalysisRepo) DashboardService {
	return &dashboardService{
		log:      baseLog.With("service", "DashboardService"),
		users:    userRepo,
		analyses: analysisRepo,
	}
}

func (s *dashboardService) GetDashboard(ctx context.Context, userID string) (*Dashboard, error) {
	var (
		user      *types.User
		completed []*types.Analysis
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.users.GetByIDWithUsage(gctx, nil, userID)
		return err
	})
	g.Go(func() error {
		var err error
		completed, err = s.analyses.ListCompletedByUser(gctx, nil, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, types.ErrNotFound("User")
	}

	analysesThisMonth := 0
	if user.UsageLimit != nil && time.Now().Before(user.UsageLimit.MonthResetAt) {
		analysesThisMonth = user.UsageLimit.AnalysesThisMonth
	}

	return &Dashboard{
		TotalAnalyses:     len(completed),
		AnalysesThisMonth: analysesThisMonth,
		TopBiases:         aggregateBiases(completed),
		Patterns:          aggregatePatterns(completed),
		Tier:              user.Tier,
	}, nil
}

func aggregateBiases(analyses []*types.Analysis) []BiasStats {
	type acc struct {
		total float64
		count int
	}
	byName := map[string]*acc{}
	var order []string

	for _, a := range analyses {
		if len(a.Biases) == 0 {
			continue
		}
		var biases []types.CognitiveBias
		if err := json.Unmarshal(a.Biases, &biases); err != nil {
			continue
		}
		for _, b := range biases {
			if byName[b.Name] == nil {
				byName[b.Name] = &acc{}
				order = append(order, b.Name)
			}
			byName[b.Name].total += b.Confidence
			byName[b.Name].count++
		}
	}

	stats := make([]BiasStats, 0, len(order))
	for _, name := range order {
		a := byName[name]
		stats = append(stats, BiasStats{
			Name:          name,
			AvgConfidence: a.total / float64(a.count),
			Count:         a.count,
		})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].AvgConfidence > stats[j].AvgConfidence
	})
	if len(stats) > 5 {
		stats = stats[:5]
	}
	return stats
}

func aggregatePatterns(analyses []*types.Analysis) []PatternStats {
	type acc struct {
		total float64
		count int
	}
	byName := map[string]*acc{}
	var order []string

	for _, a := range analyses {
		if len(a.Patterns) == 0 {
			continue
		}
		var patterns []types.ThinkingPattern
		if err := json.Unmarshal(a.Patterns, &patterns); err != nil {
			continue
		}
		for _, p := range patterns {
			if byName[p.Name] == nil {
				byName[p.Name] = &acc{}
				order = append(order, p.Name)
			}
			byName[p.Name].total += p.Percentage
			byName[p.Name].count++
		}
	}

	stats := make([]PatternStats, 0, len(order))
	for _, name := range order {
		a := byName[name]
		stats = append(stats, PatternStats{
			Name:          name,
			AvgPercentage: a.total / float64(a.count),
		})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].AvgPercentage > stats[j].AvgPercentage
	})
	return stats
}
