package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kay/internal/notification/domain"
	"github.com/smallbiznis/kay/pkg/db/option"
	"github.com/smallbiznis/kay/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.Notification) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Notification, error) {
	var items []*domain.Notification
	stmt := db.WithContext(ctx).Model(&domain.Notification{})

	if typ := strings.TrimSpace(filter.Type); typ != "" {
		stmt = stmt.Where("type = ?", typ)
	}
	if filter.UnreadOnly {
		stmt = stmt.Where("read_at IS NULL")
	}
	stmt = option.ApplyPagination(page).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkRead(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Model(&domain.Notification{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", time.Now().UTC())
	return result.RowsAffected, result.Error
}

func (r *repo) MarkAllRead(ctx context.Context, db *gorm.DB) (int64, error) {
	result := db.WithContext(ctx).Model(&domain.Notification{}).
		Where("read_at IS NULL").
		Update("read_at", time.Now().UTC())
	return result.RowsAffected, result.Error
}

func (r *repo) CountUnread(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Notification{}).
		Where("read_at IS NULL").
		Count(&count).Error
	return count, err
}

func (r *repo) Exists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Notification{}).
		Where("id = ?", id).
		Count(&count).Error
	return count > 0, err
}
