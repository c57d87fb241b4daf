package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/matchahq/matcha-backend/internal/clients/openrouter"
	"github.com/matchahq/matcha-backend/internal/clients/redis"
	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/repos"
	"github.com/matchahq/matcha-backend/internal/services"
	"github.com/matchahq/matcha-backend/internal/types"
)

const (
	dequeueTimeout = 5 * time.Second
	failureBackoff = 2 * time.Second
)

// AnalysisWorker drains the analysis queue and runs each job through the
// model client. Jobs are marked PROCESSING before the model call so a
// stuck run is visible; a crash between dequeue and completion loses the
// job rather than duplicating it.
type AnalysisWorker struct {
	log      *logger.Logger
	queue    redis.Queue
	analyses repos.AnalysisRepo
	ai       openrouter.Client
}

func NewAnalysisWorker(baseLog *logger.Logger, queue redis.Queue, analysisRepo repos.AnalysisRepo, ai openrouter.Client) *AnalysisWorker {
	return &AnalysisWorker{
		log:      baseLog.With("worker", "AnalysisWorker"),
		queue:    queue,
		analyses: analysisRepo,
		ai:       ai,
	}
}

// Start runs the consume loop until ctx is cancelled.
func (w *AnalysisWorker) Start(ctx context.Context) {
	go func() {
		w.log.Info("analysis worker started")
		for {
			select {
			case <-ctx.Done():
				w.log.Info("analysis worker stopped")
				return
			default:
			}
			var job services.AnalysisJob
			ok, err := w.queue.Dequeue(ctx, dequeueTimeout, &job)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				w.log.Warn("dequeue failed", "error", err)
				time.Sleep(failureBackoff)
				continue
			}
			if !ok {
				continue
			}
			if err := w.process(ctx, job); err != nil {
				w.log.Error("analysis job failed", "analysis_id", job.AnalysisID, "error", err)
			}
		}
	}()
}

func (w *AnalysisWorker) process(ctx context.Context, job services.AnalysisJob) error {
	started := time.Now()
	if err := w.analyses.MarkProcessing(ctx, nil, job.AnalysisID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	data, err := w.ai.Analyze(ctx, job.InputText)
	if err != nil {
		if markErr := w.analyses.MarkFailed(ctx, nil, job.AnalysisID, err.Error()); markErr != nil {
			w.log.Error("Failed to mark analysis failed", "analysis_id", job.AnalysisID, "error", markErr)
		}
		return fmt.Errorf("analyze: %w", err)
	}

	result, err := buildResult(data)
	if err != nil {
		if markErr := w.analyses.MarkFailed(ctx, nil, job.AnalysisID, err.Error()); markErr != nil {
			w.log.Error("Failed to mark analysis failed", "analysis_id", job.AnalysisID, "error", markErr)
		}
		return fmt.Errorf("encode result: %w", err)
	}

	if err := w.analyses.MarkCompleted(ctx, nil, job.AnalysisID, result, time.Since(started)); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	w.log.Info("Analysis completed", "analysis_id", job.AnalysisID, "duration_ms", time.Since(started).Milliseconds())
	return nil
}

func buildResult(data *types.AnalysisData) (repos.AnalysisResult, error) {
	var result repos.AnalysisResult
	if data == nil {
		return result, fmt.Errorf("model returned no analysis")
	}
	var err error
	if result.Biases, err = marshalJSON(data.Biases); err != nil {
		return result, err
	}
	if result.Patterns, err = marshalJSON(data.Patterns); err != nil {
		return result, err
	}
	if result.Insights, err = marshalJSON(data.Insights); err != nil {
		return result, err
	}
	if data.EmotionalState != nil {
		if result.EmotionalState, err = marshalJSON(data.EmotionalState); err != nil {
			return result, err
		}
	}
	return result, nil
}

func marshalJSON(v any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
