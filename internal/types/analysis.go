package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AnalysisStatus tracks the one-shot analysis job lifecycle.
type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "PENDING"
	AnalysisProcessing AnalysisStatus = "PROCESSING"
	AnalysisCompleted  AnalysisStatus = "COMPLETED"
	AnalysisFailed     AnalysisStatus = "FAILED"
)

// Analysis is a one-shot psychological analysis of a block of text,
// processed asynchronously by the worker.
type Analysis struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           string         `gorm:"index;not null;column:user_id" json:"user_id"`
	InputText        string         `gorm:"not null;column:input_text" json:"input_text"`
	Status           AnalysisStatus `gorm:"not null;default:'PENDING';column:status" json:"status"`
	Biases           datatypes.JSON `gorm:"column:biases" json:"biases"`
	Patterns         datatypes.JSON `gorm:"column:patterns" json:"patterns"`
	Insights         datatypes.JSON `gorm:"column:insights" json:"insights"`
	EmotionalState   datatypes.JSON `gorm:"column:emotional_state" json:"emotional_state"`
	ProcessingTimeMs *int64         `gorm:"column:processing_time_ms" json:"processing_time_ms"`
	ErrorMessage     *string        `gorm:"column:error_message" json:"error_message"`
	CompletedAt      *time.Time     `gorm:"column:completed_at" json:"completed_at"`
	CreatedAt        time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Analysis) TableName() string {
	return "analysis"
}
