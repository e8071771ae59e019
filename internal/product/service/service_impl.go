package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/kay/internal/clock"
	"github.com/smallbiznis/kay/internal/money"
	"github.com/smallbiznis/kay/internal/product/domain"
	"github.com/smallbiznis/kay/pkg/db"
	"github.com/smallbiznis/kay/pkg/db/option"
	"github.com/smallbiznis/kay/pkg/db/pagination"
	"github.com/smallbiznis/kay/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  repository.Repository[domain.Product]
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  repository.Repository[domain.Product]
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.UnitPrice.IsNegative() {
		return nil, domain.ErrInvalidUnitPrice
	}

	now := s.clock.Now()
	p := &domain.Product{
		ID:          s.genID.Generate(),
		Name:        name,
		Slug:        slug.Make(name),
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Unit:        strings.TrimSpace(req.Unit),
		UnitPrice:   money.Round(req.UnitPrice),
		IsService:   req.IsService,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.Slug == "" {
		p.Slug = p.ID.String()
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}

	s.log.Info("product created", zap.String("product_id", p.ID.String()), zap.String("slug", p.Slug))
	return p, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateRequest) (*domain.Product, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		fields["name"] = name
		fields["slug"] = slug.Make(name)
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		fields["category"] = strings.TrimSpace(*req.Category)
	}
	if req.Unit != nil {
		fields["unit"] = strings.TrimSpace(*req.Unit)
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.IsNegative() {
			return nil, domain.ErrInvalidUnitPrice
		}
		fields["unit_price"] = money.Round(*req.UnitPrice)
	}
	if req.IsService != nil {
		fields["is_service"] = *req.IsService
	}
	if req.Active != nil {
		fields["active"] = *req.Active
	}

	if len(fields) == 0 {
		return s.Get(ctx, id)
	}
	fields["updated_at"] = s.clock.Now()

	affected, err := s.repo.Update(ctx, productID, fields)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrNotFound
	}
	return s.Get(ctx, id)
}

// Archive deactivates the product. Line items keep their reference.
func (s *Service) Archive(ctx context.Context, id string) (*domain.Product, error) {
	active := false
	return s.Update(ctx, id, domain.UpdateRequest{Active: &active})
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindOne(ctx, &domain.Product{ID: productID})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	opts := []option.QueryOption{}
	if !req.IncludeInactive {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "active", Operator: option.EQ, Value: true}))
	}
	if category := strings.TrimSpace(req.Category); category != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "category", Operator: option.EQ, Value: category}))
	}
	opts = append(opts,
		option.Search(req.Search, "name", "description"),
		option.ApplyPagination(req.Pagination),
	)

	items, err := s.repo.Find(ctx, nil, opts...)
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, req.Size(), func(p *domain.Product) string {
		return pagination.CursorFor(p.ID.String(), p.CreatedAt)
	})

	out := make([]domain.Product, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return domain.ListResponse{PageInfo: pageInfo, Products: out}, nil
}

func parseID(id string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return 0, domain.ErrInvalidID
	}
	return parsed, nil
}
