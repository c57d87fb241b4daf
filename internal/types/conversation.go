package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MessageRole is who authored a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "USER"
	RoleAssistant MessageRole = "ASSISTANT"
)

// Conversation is the persistent chat aggregate. The four JSON columns are
// the accumulated analysis snapshot; biases and insights are merged turn
// over turn, patterns and emotional state are replaced wholesale.
type Conversation struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            string         `gorm:"index;not null;column:user_id" json:"user_id"`
	Title             string         `gorm:"not null;column:title" json:"title"`
	EmotionalState    datatypes.JSON `gorm:"column:emotional_state" json:"emotional_state"`
	Biases            datatypes.JSON `gorm:"column:biases" json:"biases"`
	Patterns          datatypes.JSON `gorm:"column:patterns" json:"patterns"`
	Insights          datatypes.JSON `gorm:"column:insights" json:"insights"`
	Messages          []Message      `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
	AnalysisUpdatedAt *time.Time     `gorm:"column:analysis_updated_at" json:"analysis_updated_at"`
	CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversation"
}

// Message is append-only; rows are never updated after creation.
type Message struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID   `gorm:"type:uuid;index;not null;column:conversation_id" json:"conversation_id"`
	Role           MessageRole `gorm:"not null;column:role" json:"role"`
	Content        string      `gorm:"not null;column:content" json:"content"`
	CreatedAt      time.Time   `gorm:"not null;default:now();index" json:"created_at"`
}

func (Message) TableName() string {
	return "message"
}
