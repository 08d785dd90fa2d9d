package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Entry is one append-only execution log record.
type Entry struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Title     string            `gorm:"type:text;not null;index" json:"title"`
	Message   string            `gorm:"type:text" json:"message"`
	Level     Level             `gorm:"type:text;not null" json:"level"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb" json:"payload,omitempty"`
	CreatedAt time.Time         `gorm:"not null;index" json:"createdAt"`
}

func (Entry) TableName() string { return "execution_logs" }

type ListFilter struct {
	Title   string
	Level   Level
	StartAt *time.Time
	EndAt   *time.Time
	Limit   int
}

type Repository interface {
	Insert(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
}

type Service interface {
	Log(ctx context.Context, level Level, title, message string, payload map[string]any) error
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
}

var (
	ErrInvalidTitle     = errors.New("invalid_title")
	ErrInvalidLevel     = errors.New("invalid_level")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)
