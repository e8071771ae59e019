package repository

import (
	"github.com/smallbiznis/kay/internal/product/domain"
	"github.com/smallbiznis/kay/pkg/repository"
	"gorm.io/gorm"
)

func Provide(db *gorm.DB) repository.Repository[domain.Product] {
	return repository.ProvideStore[domain.Product](db)
}
