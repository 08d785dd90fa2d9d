package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/escolar/internal/executionlog/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, entry *domain.Entry) error {
	if entry == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, filter domain.ListFilter) ([]domain.Entry, error) {
	var entries []domain.Entry
	stmt := r.db.WithContext(ctx).Model(&domain.Entry{})

	if title := strings.TrimSpace(filter.Title); title != "" {
		stmt = stmt.Where("title = ?", title)
	}
	if filter.Level != "" {
		stmt = stmt.Where("level = ?", filter.Level)
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
