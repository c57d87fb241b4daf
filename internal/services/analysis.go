package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	redisclient "github.com/matchahq/matcha-backend/internal/clients/redis"
	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/repos"
	"github.com/matchahq/matcha-backend/internal/types"
)

// AnalysisJob is the queue payload consumed by the worker.
type AnalysisJob struct {
	AnalysisID uuid.UUID `json:"analysis_id"`
	InputText  string    `json:"input_text"`
}

type AnalysisPage struct {
	Data       []*types.Analysis `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

type AnalysisService interface {
	// Create admits the request against the monthly analysis quota,
	// persists a PENDING record, and enqueues it for the worker.
	Create(ctx context.Context, userID string, tier types.Tier, inputText string) (*types.Analysis, error)
	List(ctx context.Context, userID string, page, limit int) (*AnalysisPage, error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*types.Analysis, error)
}

type analysisService struct {
	log      *logger.Logger
	analyses repos.AnalysisRepo
	usage    UsageService
	queue    redisclient.Queue
}

func NewAnalysisService(baseLog *logger.Logger, analysisRepo repos.AnalysisRepo, usage UsageService, queue redisclient.Queue) AnalysisService {
	return &analysisService{
		log:      baseLog.With("service", "AnalysisService"),
		analyses: analysisRepo,
		usage:    usage,
		queue:    queue,
	}
}

func (s *analysisService) Create(ctx context.Context, userID string, tier types.Tier, inputText string) (*types.Analysis, error) {
	if tier != types.TierPro {
		allowed, err := s.usage.CheckAndConsumeAnalysis(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, types.ErrAnalysisQuotaExceeded(FreeTierMonthlyAnalyses)
		}
	}

	analysis, err := s.analyses.Create(ctx, nil, &types.Analysis{
		UserID:    userID,
		InputText: inputText,
		Status:    types.AnalysisPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}

	if err := s.queue.Enqueue(ctx, AnalysisJob{AnalysisID: analysis.ID, InputText: inputText}); err != nil {
		failMsg := "failed to queue analysis"
		if markErr := s.analyses.MarkFailed(ctx, nil, analysis.ID, failMsg); markErr != nil {
			s.log.Error("Failed to mark analysis failed after enqueue error", "analysis_id", analysis.ID, "error", markErr)
		}
		return nil, fmt.Errorf("enqueue analysis: %w", err)
	}

	s.log.Info("Analysis queued", "analysis_id", analysis.ID)
	return analysis, nil
}

func (s *analysisService) List(ctx context.Context, userID string, page, limit int) (*AnalysisPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}
	offset := (page - 1) * limit

	rows, err := s.analyses.ListByUser(ctx, nil, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.analyses.CountByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	totalPages := total / int64(limit)
	if total%int64(limit) != 0 {
		totalPages++
	}
	return &AnalysisPage{
		Data: rows,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

func (s *analysisService) Get(ctx context.Context, userID string, id uuid.UUID) (*types.Analysis, error) {
	analysis, err := s.analyses.GetByIDForUser(ctx, nil, id, userID)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, types.ErrNotFound("Analysis")
	}
	return analysis, nil
}
