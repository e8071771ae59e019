package option

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/kay/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

type Operator string

const (
	EQ   Operator = "="
	NEQ  Operator = "<>"
	GT   Operator = ">"
	GTE  Operator = ">="
	LT   Operator = "<"
	LTE  Operator = "<="
	IN   Operator = "IN"
	LIKE Operator = "LIKE"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

func ApplyOperator(cond Condition) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(cond.Field)
		if field == "" {
			return db
		}
		switch cond.Operator {
		case IN:
			return db.Where(fmt.Sprintf("%s IN ?", field), cond.Value)
		case LIKE:
			return db.Where(fmt.Sprintf("LOWER(%s) LIKE ?", field), cond.Value)
		case "":
			return db.Where(fmt.Sprintf("%s = ?", field), cond.Value)
		default:
			return db.Where(fmt.Sprintf("%s %s ?", field, cond.Operator), cond.Value)
		}
	})
}

// Search matches the term as a case-insensitive substring of any field.
func Search(term string, fields ...string) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || len(fields) == 0 {
			return db
		}
		clauses := make([]string, 0, len(fields))
		args := make([]any, 0, len(fields))
		for _, field := range fields {
			clauses = append(clauses, fmt.Sprintf("LOWER(%s) LIKE ?", field))
			args = append(args, "%"+term+"%")
		}
		return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
	})
}

type QuerySortBy struct {
	SortBy string
	Desc   bool
	Allow  map[string]bool
}

// WithSortBy orders by an allow-listed column, falling back to newest first.
func WithSortBy(sort QuerySortBy) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		column := strings.TrimSpace(sort.SortBy)
		if column == "" || !sort.Allow[column] {
			return db.Order("created_at desc, id desc")
		}
		dir := "asc"
		if sort.Desc {
			dir = "desc"
		}
		return db.Order(fmt.Sprintf("%s %s, id %s", column, dir, dir))
	})
}

func WithPreload(associations ...string) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		for _, assoc := range associations {
			db = db.Preload(assoc)
		}
		return db
	})
}

// ApplyPagination applies keyset pagination over (created_at, id) and
// fetches one extra row so callers can tell whether more pages exist.
// Invalid tokens are reported through gorm's error chain.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if token := strings.TrimSpace(page.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err != nil {
				_ = db.AddError(ErrInvalidPageToken)
				return db
			}
			createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
			if err != nil {
				_ = db.AddError(ErrInvalidPageToken)
				return db
			}
			id, err := strconv.ParseInt(strings.TrimSpace(cursor.ID), 10, 64)
			if err != nil {
				_ = db.AddError(ErrInvalidPageToken)
				return db
			}
			db = db.Where("((created_at < ?) OR (created_at = ? AND id < ?))", createdAt, createdAt, id)
		}
		return db.Order("created_at desc, id desc").Limit(page.Size() + 1)
	})
}
