package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escolar/internal/clock"
	"github.com/smallbiznis/escolar/internal/executionlog/domain"
	"github.com/smallbiznis/escolar/internal/executionlog/masking"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const maxListLimit = 500

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("executionlog.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Log appends one entry. Sensitive payload values are masked before writing.
func (s *Service) Log(ctx context.Context, level domain.Level, title, message string, payload map[string]any) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.ErrInvalidTitle
	}
	switch level {
	case domain.LevelInfo, domain.LevelWarning, domain.LevelError:
	case "":
		level = domain.LevelInfo
	default:
		return domain.ErrInvalidLevel
	}

	entry := domain.Entry{
		ID:        s.genID.Generate(),
		Title:     title,
		Message:   strings.TrimSpace(message),
		Level:     level,
		Payload:   datatypes.JSONMap(masking.MaskPayload(payload)),
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, &entry); err != nil {
		s.log.Warn("failed to write execution log", zap.String("title", title), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Entry, error) {
	if filter.StartAt != nil && filter.EndAt != nil && filter.StartAt.After(*filter.EndAt) {
		return nil, domain.ErrInvalidTimeRange
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return s.repo.List(ctx, filter)
}
