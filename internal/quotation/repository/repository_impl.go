package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kay/internal/quotation/domain"
	"github.com/smallbiznis/kay/pkg/db"
	"github.com/smallbiznis/kay/pkg/db/option"
	"github.com/smallbiznis/kay/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, q *domain.Quotation) error {
	if q == nil {
		return gorm.ErrInvalidData
	}
	if err := conn.WithContext(ctx).Omit(clause.Associations).Create(q).Error; err != nil {
		return err
	}
	if len(q.Items) == 0 {
		return nil
	}
	for i := range q.Items {
		q.Items[i].QuotationID = q.ID
	}
	return conn.WithContext(ctx).Create(&q.Items).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Quotation, error) {
	return r.first(conn.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Quotation, error) {
	return r.first(db.ForUpdate(conn.WithContext(ctx)).Where("id = ?", id))
}

func (r *repo) FindByReference(ctx context.Context, conn *gorm.DB, reference string) (*domain.Quotation, error) {
	return r.first(conn.WithContext(ctx).Where("quotation_id = ?", reference))
}

func (r *repo) first(stmt *gorm.DB) (*domain.Quotation, error) {
	var q domain.Quotation
	err := stmt.Preload("Items", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position asc")
	}).First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Quotation, error) {
	var items []*domain.Quotation
	stmt := conn.WithContext(ctx).Model(&domain.Quotation{})

	if status := strings.TrimSpace(filter.Status); status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	if email := strings.ToLower(strings.TrimSpace(filter.Email)); email != "" {
		stmt = stmt.Where("LOWER(customer_email) = ?", email)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("created_at <= ?", filter.CreatedTo.UTC())
	}
	stmt = option.Search(filter.Search, "customer_name", "company_name", "quotation_id").Apply(stmt)
	stmt = option.ApplyPagination(page).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateFields(ctx context.Context, conn *gorm.DB, id snowflake.ID, fields map[string]any) (int64, error) {
	result := conn.WithContext(ctx).Model(&domain.Quotation{}).Where("id = ?", id).Updates(fields)
	return result.RowsAffected, result.Error
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id snowflake.ID) (int64, error) {
	if err := conn.WithContext(ctx).Where("quotation_id = ?", id).Delete(&domain.Item{}).Error; err != nil {
		return 0, err
	}
	result := conn.WithContext(ctx).Where("id = ?", id).Delete(&domain.Quotation{})
	return result.RowsAffected, result.Error
}

func (r *repo) ListOpenExpired(ctx context.Context, conn *gorm.DB, now time.Time) ([]*domain.Quotation, error) {
	var items []*domain.Quotation
	err := conn.WithContext(ctx).
		Model(&domain.Quotation{}).
		Where("status IN ?", []domain.Status{domain.StatusPending, domain.StatusViewed, domain.StatusProcessing}).
		Where("valid_until < ?", now.UTC()).
		Order("valid_until asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) StatusTotals(ctx context.Context, conn *gorm.DB) ([]domain.StatusTotal, error) {
	var rows []domain.StatusTotal
	err := conn.WithContext(ctx).
		Model(&domain.Quotation{}).
		Select("status, total").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
