package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kay/internal/invoice/domain"
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

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, inv *domain.Invoice) error {
	if inv == nil {
		return gorm.ErrInvalidData
	}
	if err := conn.WithContext(ctx).Omit(clause.Associations).Create(inv).Error; err != nil {
		return err
	}
	return r.insertItems(ctx, conn, inv.ID, inv.Items)
}

func (r *repo) insertItems(ctx context.Context, conn *gorm.DB, invoiceID snowflake.ID, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].InvoiceID = invoiceID
	}
	return conn.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.first(conn.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.first(db.ForUpdate(conn.WithContext(ctx)).Where("id = ?", id))
}

func (r *repo) FindByNumber(ctx context.Context, conn *gorm.DB, number string) (*domain.Invoice, error) {
	return r.first(conn.WithContext(ctx).Where("invoice_number = ?", number))
}

func (r *repo) first(stmt *gorm.DB) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := stmt.
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Preload("Payments", func(tx *gorm.DB) *gorm.DB { return tx.Order("payment_date asc, id asc") }).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Invoice, error) {
	var items []*domain.Invoice
	stmt := conn.WithContext(ctx).Model(&domain.Invoice{})

	if status := strings.TrimSpace(filter.Status); status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	if status := strings.TrimSpace(filter.PaymentStatus); status != "" {
		stmt = stmt.Where("payment_status = ?", status)
	}
	if filter.OverdueAsOf != nil {
		stmt = stmt.
			Where("due_date < ?", filter.OverdueAsOf.UTC()).
			Where("balance_due > 0").
			Where("status NOT IN ?", []domain.Status{domain.StatusPaid, domain.StatusCancelled})
	}
	if email := strings.ToLower(strings.TrimSpace(filter.Email)); email != "" {
		stmt = stmt.Where("LOWER(customer_email) = ?", email)
	}
	if filter.IssueFrom != nil {
		stmt = stmt.Where("issue_date >= ?", filter.IssueFrom.UTC())
	}
	if filter.IssueTo != nil {
		stmt = stmt.Where("issue_date <= ?", filter.IssueTo.UTC())
	}
	stmt = option.Search(filter.Search, "customer_name", "company_name", "invoice_number").Apply(stmt)
	stmt = option.ApplyPagination(page).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateFields(ctx context.Context, conn *gorm.DB, id snowflake.ID, fields map[string]any) error {
	return conn.WithContext(ctx).Model(&domain.Invoice{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repo) ReplaceItems(ctx context.Context, conn *gorm.DB, id snowflake.ID, items []domain.Item) error {
	if err := conn.WithContext(ctx).Where("invoice_id = ?", id).Delete(&domain.Item{}).Error; err != nil {
		return err
	}
	return r.insertItems(ctx, conn, id, items)
}

func (r *repo) InsertPayment(ctx context.Context, conn *gorm.DB, payment *domain.Payment) error {
	return conn.WithContext(ctx).Create(payment).Error
}

func (r *repo) ListPayments(ctx context.Context, conn *gorm.DB, id snowflake.ID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := conn.WithContext(ctx).
		Where("invoice_id = ?", id).
		Order("payment_date asc, id asc").
		Find(&payments).Error
	return payments, err
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id snowflake.ID) (int64, error) {
	if err := conn.WithContext(ctx).Where("invoice_id = ?", id).Delete(&domain.Payment{}).Error; err != nil {
		return 0, err
	}
	if err := conn.WithContext(ctx).Where("invoice_id = ?", id).Delete(&domain.Item{}).Error; err != nil {
		return 0, err
	}
	result := conn.WithContext(ctx).Where("id = ?", id).Delete(&domain.Invoice{})
	return result.RowsAffected, result.Error
}

func (r *repo) ListForStats(ctx context.Context, conn *gorm.DB) ([]*domain.Invoice, error) {
	var items []*domain.Invoice
	err := conn.WithContext(ctx).
		Model(&domain.Invoice{}).
		Select("id, status, payment_status, due_date, total, amount_paid, balance_due").
		Find(&items).Error
	return items, err
}
