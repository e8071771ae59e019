package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kay/internal/clock"
	notificationdomain "github.com/smallbiznis/kay/internal/notification/domain"
	"github.com/smallbiznis/kay/pkg/db/pagination"
	"github.com/smallbiznis/kay/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  notificationdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  notificationdomain.Repository
}

func NewService(p Params) notificationdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("notification.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, event notificationdomain.Event) error {
	if strings.TrimSpace(string(event.Type)) == "" {
		return notificationdomain.ErrInvalidType
	}
	title := strings.TrimSpace(event.Title)
	if title == "" {
		return notificationdomain.ErrInvalidTitle
	}
	targetType := strings.TrimSpace(event.TargetType)
	if targetType == "" || event.TargetID == 0 {
		return notificationdomain.ErrInvalidTarget
	}
	if tx == nil {
		tx = s.db
	}

	payload := map[string]any{}
	for key, value := range event.Metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	payload = correlation.StampMetadata(ctx, payload)

	entry := notificationdomain.Notification{
		ID:         s.genID.Generate(),
		Type:       event.Type,
		Title:      title,
		Message:    strings.TrimSpace(event.Message),
		TargetType: targetType,
		TargetID:   event.TargetID,
		Reference:  strings.TrimSpace(event.Reference),
		Metadata:   datatypes.JSONMap(payload),
		CreatedAt:  s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, tx, &entry); err != nil {
		s.log.Warn("failed to write notification",
			zap.String("type", string(event.Type)),
			zap.String("target_type", targetType),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req notificationdomain.ListRequest) (notificationdomain.ListResponse, error) {
	items, err := s.repo.List(ctx, s.db, notificationdomain.ListFilter{
		Type:       req.Type,
		UnreadOnly: req.UnreadOnly,
	}, req.Pagination)
	if err != nil {
		return notificationdomain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, req.Size(), func(item *notificationdomain.Notification) string {
		return pagination.CursorFor(item.ID.String(), item.CreatedAt)
	})

	unread, err := s.repo.CountUnread(ctx, s.db)
	if err != nil {
		return notificationdomain.ListResponse{}, err
	}

	out := make([]notificationdomain.Notification, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}

	return notificationdomain.ListResponse{
		PageInfo:      pageInfo,
		Notifications: out,
		UnreadCount:   unread,
	}, nil
}

// MarkRead is idempotent: marking an already read entry succeeds.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return notificationdomain.ErrInvalidID
	}

	affected, err := s.repo.MarkRead(ctx, s.db, parsed)
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	exists, err := s.repo.Exists(ctx, s.db, parsed)
	if err != nil {
		return err
	}
	if !exists {
		return notificationdomain.ErrNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	return s.repo.MarkAllRead(ctx, s.db)
}

func (s *Service) UnreadCount(ctx context.Context) (int64, error) {
	return s.repo.CountUnread(ctx, s.db)
}
