package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kay/internal/clock"
	"github.com/smallbiznis/kay/internal/product/domain"
	"github.com/smallbiznis/kay/internal/product/repository"
	"github.com/smallbiznis/kay/pkg/db"
	"github.com/smallbiznis/kay/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Product{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC))

	return New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(conn),
	}).(*Service), clk
}

func TestCreateProductBuildsSlug(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := svc.Create(context.Background(), domain.CreateRequest{
		Name:      "Steel Door Frame",
		Unit:      "pcs",
		UnitPrice: decimal.RequireFromString("1250.505"),
	})
	require.NoError(t, err)
	assert.Equal(t, "steel-door-frame", p.Slug)
	assert.True(t, p.UnitPrice.Equal(decimal.RequireFromString("1250.51")))
	assert.True(t, p.Active)

	_, err = svc.Create(context.Background(), domain.CreateRequest{Name: "steel door frame"})
	assert.ErrorIs(t, err, domain.ErrSlugTaken)
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(context.Background(), domain.CreateRequest{Name: "Gate", UnitPrice: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidUnitPrice)
}

func TestUpdateAndArchive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, domain.CreateRequest{Name: "Welding", IsService: true})
	require.NoError(t, err)

	price := decimal.NewFromInt(800)
	updated, err := svc.Update(ctx, p.ID.String(), domain.UpdateRequest{UnitPrice: &price})
	require.NoError(t, err)
	assert.True(t, updated.UnitPrice.Equal(price))
	assert.Equal(t, "Welding", updated.Name)

	archived, err := svc.Archive(ctx, p.ID.String())
	require.NoError(t, err)
	assert.False(t, archived.Active)

	list, err := svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Products)

	all, err := svc.List(ctx, domain.ListRequest{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, all.Products, 1)

	_, err = svc.Update(ctx, "999", domain.UpdateRequest{UnitPrice: &price})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListFiltersAndPaginates(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"Gate Hinge", "Gate Lock", "Window Grill"} {
		clk.Advance(time.Second)
		_, err := svc.Create(ctx, domain.CreateRequest{Name: name, Category: "hardware"})
		require.NoError(t, err)
	}

	found, err := svc.List(ctx, domain.ListRequest{Search: "gate"})
	require.NoError(t, err)
	assert.Len(t, found.Products, 2)

	page, err := svc.List(ctx, domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2}, Category: "hardware"})
	require.NoError(t, err)
	require.Len(t, page.Products, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "Window Grill", page.Products[0].Name)

	rest, err := svc.List(ctx, domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: page.NextPageToken}, Category: "hardware"})
	require.NoError(t, err)
	require.Len(t, rest.Products, 1)
	assert.Equal(t, "Gate Hinge", rest.Products[0].Name)
}

func TestGetRejectsBadID(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
