package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kay/internal/clock"
	notificationdomain "github.com/smallbiznis/kay/internal/notification/domain"
	"github.com/smallbiznis/kay/internal/notification/repository"
	"github.com/smallbiznis/kay/pkg/db"
	"github.com/smallbiznis/kay/pkg/db/pagination"
	"github.com/smallbiznis/kay/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&notificationdomain.Notification{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	}).(*Service)
	return svc, conn, clk
}

func TestRecordStampsCorrelation(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := correlation.ContextWithCorrelationID(context.Background(), "corr-1")

	err := svc.Record(ctx, nil, notificationdomain.Event{
		Type:       notificationdomain.TypeNewQuotation,
		Title:      "New quotation",
		TargetType: notificationdomain.TargetQuotation,
		TargetID:   snowflake.ID(10),
		Reference:  "KAY-123456789",
		Metadata:   map[string]any{"customer": "Jane"},
	})
	require.NoError(t, err)

	var stored notificationdomain.Notification
	require.NoError(t, conn.First(&stored).Error)
	assert.Equal(t, "corr-1", stored.Metadata["correlation_id"])
	assert.Equal(t, "Jane", stored.Metadata["customer"])
	assert.False(t, stored.IsRead())
}

func TestRecordRollsBackWithTransaction(t *testing.T) {
	svc, conn, _ := newTestService(t)

	_ = conn.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.Record(context.Background(), tx, notificationdomain.Event{
			Type:       notificationdomain.TypePayment,
			Title:      "Payment",
			TargetType: notificationdomain.TargetInvoice,
			TargetID:   snowflake.ID(5),
		}))
		return assert.AnError
	})

	count, err := svc.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRecordValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Record(ctx, nil, notificationdomain.Event{Title: "x", TargetType: "invoice", TargetID: 1})
	assert.ErrorIs(t, err, notificationdomain.ErrInvalidType)

	err = svc.Record(ctx, nil, notificationdomain.Event{Type: notificationdomain.TypePaid, TargetType: "invoice", TargetID: 1})
	assert.ErrorIs(t, err, notificationdomain.ErrInvalidTitle)

	err = svc.Record(ctx, nil, notificationdomain.Event{Type: notificationdomain.TypePaid, Title: "Paid"})
	assert.ErrorIs(t, err, notificationdomain.ErrInvalidTarget)
}

func TestListPaginatesAndMarksRead(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		clk.Advance(time.Minute)
		require.NoError(t, svc.Record(ctx, nil, notificationdomain.Event{
			Type:       notificationdomain.TypeStatusChange,
			Title:      "Status changed",
			TargetType: notificationdomain.TargetQuotation,
			TargetID:   snowflake.ID(100 + i),
		}))
	}

	first, err := svc.List(ctx, notificationdomain.ListRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.Notifications, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, int64(3), first.UnreadCount)
	assert.Equal(t, snowflake.ID(102), first.Notifications[0].TargetID)

	second, err := svc.List(ctx, notificationdomain.ListRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.Notifications, 1)
	assert.False(t, second.HasMore)

	require.NoError(t, svc.MarkRead(ctx, first.Notifications[0].ID.String()))
	require.NoError(t, svc.MarkRead(ctx, first.Notifications[0].ID.String()))

	unread, err := svc.List(ctx, notificationdomain.ListRequest{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread.Notifications, 2)

	marked, err := svc.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)
}

func TestMarkReadUnknown(t *testing.T) {
	svc, _, _ := newTestService(t)

	assert.ErrorIs(t, svc.MarkRead(context.Background(), "nope"), notificationdomain.ErrInvalidID)
	assert.ErrorIs(t, svc.MarkRead(context.Background(), "12345"), notificationdomain.ErrNotFound)
}
