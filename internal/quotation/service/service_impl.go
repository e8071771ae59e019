package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kay/internal/clock"
	"github.com/smallbiznis/kay/internal/config"
	invoicedomain "github.com/smallbiznis/kay/internal/invoice/domain"
	"github.com/smallbiznis/kay/internal/money"
	notificationdomain "github.com/smallbiznis/kay/internal/notification/domain"
	"github.com/smallbiznis/kay/internal/numbering"
	"github.com/smallbiznis/kay/internal/observability/metrics"
	"github.com/smallbiznis/kay/internal/providers/email"
	"github.com/smallbiznis/kay/internal/providers/pdf"
	quotationdomain "github.com/smallbiznis/kay/internal/quotation/domain"
	"github.com/smallbiznis/kay/pkg/db/option"
	"github.com/smallbiznis/kay/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const emailTimeout = 10 * time.Second

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Cfg           config.Config
	Business      *config.BusinessConfigHolder
	Numbering     numbering.Generator
	Repo          quotationdomain.Repository
	Notifications notificationdomain.Service
	Invoices      invoicedomain.Service
	Email         email.Provider
	PDF           pdf.Provider
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	notifyAddress string
	business      *config.BusinessConfigHolder
	numbering     numbering.Generator
	repo          quotationdomain.Repository
	notifications notificationdomain.Service
	invoices      invoicedomain.Service
	email         email.Provider
	pdf           pdf.Provider
	metrics       *metrics.Metrics
}

func New(p Params) quotationdomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("quotation.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		notifyAddress: strings.TrimSpace(p.Cfg.Email.NotifyAddress),
		business:      p.Business,
		numbering:     p.Numbering,
		repo:          p.Repo,
		notifications: p.Notifications,
		invoices:      p.Invoices,
		email:         p.Email,
		pdf:           p.PDF,
		metrics:       p.Metrics,
	}
}

func (s *Service) Submit(ctx context.Context, req quotationdomain.SubmitRequest) (*quotationdomain.SubmitResult, error) {
	built, err := s.buildQuotation(req)
	if err != nil {
		return nil, err
	}
	q, itemSum := built.quotation, built.itemSum

	metadata := map[string]any{
		"customer_email": q.CustomerEmail,
		"total":          q.Total.StringFixed(money.Scale),
		"items":          len(q.Items),
	}
	if !money.WithinTolerance(itemSum, q.Subtotal) {
		s.log.Warn("quotation item totals do not reconcile with subtotal",
			zap.String("item_sum", itemSum.StringFixed(money.Scale)),
			zap.String("subtotal", q.Subtotal.StringFixed(money.Scale)),
		)
		metadata["item_sum_mismatch"] = true
		metadata["item_sum"] = itemSum.StringFixed(money.Scale)
	}
	if len(built.overrides) > 0 {
		s.log.Warn("quotation item totals differ from unit price times quantity",
			zap.Int("items", len(built.overrides)),
		)
		metadata["item_total_override"] = true
		metadata["item_overrides"] = built.overrides
	}

	err = numbering.WithRetry(ctx, numbering.DefaultMaxAttempts, func(attempt int) error {
		if attempt > 0 {
			s.metrics.RecordNumberingRetry(ctx, "quotation")
			s.log.Info("quotation reference collision, retrying", zap.Int("attempt", attempt))
		}
		q.Reference = s.numbering.QuotationID(q.CreatedAt)

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.repo.Insert(ctx, tx, q); err != nil {
				return err
			}
			return s.notifications.Record(ctx, tx, notificationdomain.Event{
				Type:       notificationdomain.TypeNewQuotation,
				Title:      "New quotation request",
				Message:    fmt.Sprintf("%s requested quotation %s", q.CustomerName, q.Reference),
				TargetType: notificationdomain.TargetQuotation,
				TargetID:   q.ID,
				Reference:  q.Reference,
				Metadata:   metadata,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordQuotationSubmitted(ctx)
	s.log.Info("quotation submitted",
		zap.String("quotation_id", q.Reference),
		zap.String("id", q.ID.String()),
	)
	s.sendNewQuotationEmail(ctx, q)

	return &quotationdomain.SubmitResult{
		ID:         q.ID,
		Reference:  q.Reference,
		ValidUntil: q.ValidUntil,
	}, nil
}

// builtQuotation is a validated submission. overrides lists the items whose
// client total differs from unit_price*quantity.
type builtQuotation struct {
	quotation *quotationdomain.Quotation
	itemSum   decimal.Decimal
	overrides []map[string]any
}

func (s *Service) buildQuotation(req quotationdomain.SubmitRequest) (builtQuotation, error) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return builtQuotation{}, quotationdomain.ErrInvalidCustomerName
	}
	emailAddr := strings.ToLower(strings.TrimSpace(req.CustomerEmail))
	if !strings.Contains(emailAddr, "@") {
		return builtQuotation{}, quotationdomain.ErrInvalidCustomerEmail
	}
	if len(req.Items) == 0 {
		return builtQuotation{}, quotationdomain.ErrInvalidItems
	}
	if req.Subtotal.IsNegative() || req.VATAmount.IsNegative() || req.Total.IsNegative() {
		return builtQuotation{}, quotationdomain.ErrInvalidAmount
	}

	subtotal := money.Round(req.Subtotal)
	vat := money.Round(req.VATAmount)
	total := money.Round(req.Total)
	if !money.WithinTolerance(subtotal.Add(vat), total) {
		return builtQuotation{}, quotationdomain.ErrTotalMismatch
	}

	now := s.clock.Now()
	validity := s.business.Get().QuotationValidityDays
	q := &quotationdomain.Quotation{
		ID:              s.genID.Generate(),
		Status:          quotationdomain.StatusPending,
		CustomerName:    name,
		CustomerEmail:   emailAddr,
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		CompanyName:     strings.TrimSpace(req.CompanyName),
		ProjectName:     strings.TrimSpace(req.ProjectName),
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		CustomerNotes:   strings.TrimSpace(req.CustomerNotes),
		Subtotal:        subtotal,
		VATAmount:       vat,
		Total:           total,
		ValidUntil:      now.AddDate(0, 0, validity),
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           make([]quotationdomain.Item, 0, len(req.Items)),
	}

	built := builtQuotation{quotation: q, itemSum: decimal.Zero}
	for i, in := range req.Items {
		item, computed, err := s.buildItem(i, in)
		if err != nil {
			return builtQuotation{}, err
		}
		if !money.WithinTolerance(item.Total, computed) {
			built.overrides = append(built.overrides, map[string]any{
				"position": i,
				"name":     item.Name,
				"computed": computed.StringFixed(money.Scale),
				"supplied": item.Total.StringFixed(money.Scale),
			})
		}
		built.itemSum = built.itemSum.Add(item.Total)
		q.Items = append(q.Items, item)
	}
	return built, nil
}

func (s *Service) buildItem(position int, in quotationdomain.SubmitItem) (quotationdomain.Item, decimal.Decimal, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return quotationdomain.Item{}, decimal.Zero, quotationdomain.ErrInvalidItemName
	}
	if !in.Quantity.IsPositive() {
		return quotationdomain.Item{}, decimal.Zero, quotationdomain.ErrInvalidQuantity
	}
	if in.UnitPrice.IsNegative() {
		return quotationdomain.Item{}, decimal.Zero, quotationdomain.ErrInvalidUnitPrice
	}
	if in.Total.IsNegative() {
		return quotationdomain.Item{}, decimal.Zero, quotationdomain.ErrInvalidAmount
	}

	line, err := money.ComputeLineTotal(in.UnitPrice, in.Quantity, decimal.Zero)
	if err != nil {
		return quotationdomain.Item{}, decimal.Zero, err
	}
	// A non-zero client total is kept as a manual price; Submit flags it.
	total := line.Subtotal
	if !in.Total.IsZero() {
		total = money.Round(in.Total)
	}

	return quotationdomain.Item{
		ID:          s.genID.Generate(),
		Position:    position,
		ProductID:   in.ProductID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Quantity:    in.Quantity,
		Unit:        strings.TrimSpace(in.Unit),
		UnitPrice:   money.Round(in.UnitPrice),
		Total:       total,
		IsService:   in.IsService,
		Category:    strings.TrimSpace(in.Category),
	}, line.Subtotal, nil
}

func (s *Service) sendNewQuotationEmail(ctx context.Context, q *quotationdomain.Quotation) {
	if s.email == nil || s.notifyAddress == "" {
		return
	}

	currency := s.business.Get().Currency
	items := make([]map[string]any, 0, len(q.Items))
	for _, item := range q.Items {
		items = append(items, map[string]any{
			"name":     item.Name,
			"quantity": money.FormatQuantity(item.Quantity),
			"total":    money.Format(currency, item.Total),
		})
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emailTimeout)
	defer cancel()

	err := s.email.SendTemplate(ctx, []string{s.notifyAddress}, "new_quotation", map[string]any{
		"reference":      q.Reference,
		"customer_name":  q.CustomerName,
		"customer_email": q.CustomerEmail,
		"customer_phone": q.CustomerPhone,
		"company_name":   q.CompanyName,
		"project_name":   q.ProjectName,
		"items":          items,
		"subtotal":       money.Format(currency, q.Subtotal),
		"vat":            money.Format(currency, q.VATAmount),
		"total":          money.Format(currency, q.Total),
		"valid_until":    q.ValidUntil.Format("2006-01-02"),
	})
	if err != nil {
		s.log.Warn("failed to send new quotation email",
			zap.String("quotation_id", q.Reference),
			zap.Error(err),
		)
	}
}

func (s *Service) Track(ctx context.Context, reference string) (*quotationdomain.TrackResult, error) {
	reference = strings.ToUpper(strings.TrimSpace(reference))
	if !strings.HasPrefix(reference, numbering.QuotationPrefix) {
		return nil, quotationdomain.ErrInvalidReference
	}

	q, err := s.repo.FindByReference(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, quotationdomain.ErrNotFound
	}

	return &quotationdomain.TrackResult{
		Reference:    q.Reference,
		Status:       q.EffectiveStatus(s.clock.Now()),
		CustomerName: q.CustomerName,
		ProjectName:  q.ProjectName,
		Total:        q.Total,
		ValidUntil:   q.ValidUntil,
		CreatedAt:    q.CreatedAt,
		Items:        q.Items,
	}, nil
}

func (s *Service) List(ctx context.Context, req quotationdomain.ListRequest) (quotationdomain.ListResponse, error) {
	if req.Status != "" {
		if _, err := quotationdomain.ParseStatus(req.Status); err != nil {
			return quotationdomain.ListResponse{}, err
		}
	}
	if req.CreatedFrom != nil && req.CreatedTo != nil && req.CreatedFrom.After(*req.CreatedTo) {
		return quotationdomain.ListResponse{}, quotationdomain.ErrInvalidTimeRange
	}

	items, err := s.repo.List(ctx, s.db, quotationdomain.ListFilter{
		Status:      req.Status,
		Email:       req.Email,
		Search:      req.Search,
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
	}, req.Pagination)
	if err != nil {
		if errors.Is(err, option.ErrInvalidPageToken) {
			return quotationdomain.ListResponse{}, quotationdomain.ErrInvalidPageToken
		}
		return quotationdomain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, req.Size(), func(q *quotationdomain.Quotation) string {
		return pagination.CursorFor(q.ID.String(), q.CreatedAt)
	})

	now := s.clock.Now()
	out := make([]quotationdomain.Quotation, 0, len(items))
	for _, item := range items {
		item.Status = item.EffectiveStatus(now)
		out = append(out, *item)
	}
	return quotationdomain.ListResponse{PageInfo: pageInfo, Quotations: out}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*quotationdomain.Quotation, error) {
	quotationID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, s.db, quotationID)
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*quotationdomain.Quotation, error) {
	q, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, quotationdomain.ErrNotFound
	}
	return q, nil
}

func (s *Service) Open(ctx context.Context, id string) (*quotationdomain.Quotation, error) {
	quotationID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var opened *quotationdomain.Quotation
	transitioned := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := s.repo.FindByIDForUpdate(ctx, tx, quotationID)
		if err != nil {
			return err
		}
		if q == nil {
			return quotationdomain.ErrNotFound
		}
		opened = q

		now := s.clock.Now()
		if q.Status != quotationdomain.StatusPending || q.EffectiveStatus(now) != quotationdomain.StatusPending {
			return nil
		}

		if _, err := s.repo.UpdateFields(ctx, tx, q.ID, map[string]any{
			"status":     quotationdomain.StatusViewed,
			"viewed_at":  now,
			"updated_at": now,
		}); err != nil {
			return err
		}
		q.Status = quotationdomain.StatusViewed
		q.ViewedAt = &now
		q.UpdatedAt = now
		transitioned = true

		return s.recordStatusChange(ctx, tx, q, quotationdomain.StatusPending, quotationdomain.StatusViewed)
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		s.metrics.RecordTransition(ctx, "quotation", string(quotationdomain.StatusPending), string(quotationdomain.StatusViewed))
	}
	return opened, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, req quotationdomain.UpdateStatusRequest) (*quotationdomain.Quotation, error) {
	quotationID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	target, err := quotationdomain.ParseStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		return nil, err
	}
	if target == quotationdomain.StatusConverted {
		return nil, fmt.Errorf("%w: converted is set by ConvertToInvoice", quotationdomain.ErrInvalidState)
	}

	var (
		updated *quotationdomain.Quotation
		from    quotationdomain.Status
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := s.repo.FindByIDForUpdate(ctx, tx, quotationID)
		if err != nil {
			return err
		}
		if q == nil {
			return quotationdomain.ErrNotFound
		}

		now := s.clock.Now()
		from = q.EffectiveStatus(now)
		if from.Terminal() {
			return quotationdomain.ErrInvalidState
		}
		updated = q
		if from == target {
			return nil
		}
		if !from.CanTransitionTo(target) {
			return quotationdomain.ErrInvalidState
		}

		fields := map[string]any{
			"status":     target,
			"updated_at": now,
		}
		if target == quotationdomain.StatusViewed && q.ViewedAt == nil {
			fields["viewed_at"] = now
			q.ViewedAt = &now
		}
		if _, err := s.repo.UpdateFields(ctx, tx, q.ID, fields); err != nil {
			return err
		}
		q.Status = target
		q.UpdatedAt = now

		return s.recordStatusChange(ctx, tx, q, from, target)
	})
	if err != nil {
		return nil, err
	}

	if from != target {
		s.metrics.RecordTransition(ctx, "quotation", string(from), string(target))
	}
	return updated, nil
}

func (s *Service) recordStatusChange(ctx context.Context, tx *gorm.DB, q *quotationdomain.Quotation, from, to quotationdomain.Status) error {
	return s.notifications.Record(ctx, tx, notificationdomain.Event{
		Type:       notificationdomain.TypeStatusChange,
		Title:      "Quotation status changed",
		Message:    fmt.Sprintf("Quotation %s moved from %s to %s", q.Reference, from, to),
		TargetType: notificationdomain.TargetQuotation,
		TargetID:   q.ID,
		Reference:  q.Reference,
		Metadata:   map[string]any{"from": string(from), "to": string(to)},
	})
}

func (s *Service) UpdateNotes(ctx context.Context, id string, req quotationdomain.UpdateNotesRequest) (*quotationdomain.Quotation, error) {
	quotationID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	affected, err := s.repo.UpdateFields(ctx, s.db, quotationID, map[string]any{
		"admin_notes": strings.TrimSpace(req.AdminNotes),
		"updated_at":  s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, quotationdomain.ErrNotFound
	}
	return s.load(ctx, s.db, quotationID)
}

func (s *Service) ConvertToInvoice(ctx context.Context, id string, req quotationdomain.ConvertRequest) (*invoicedomain.Invoice, error) {
	quotationID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	inv, err := s.invoices.Create(ctx, invoicedomain.CreateRequest{
		QuotationID:  &quotationID,
		IssueDate:    req.IssueDate,
		PaymentTerms: req.PaymentTerms,
		DueDate:      req.DueDate,
		Notes:        req.Notes,
		Terms:        req.Terms,
		SendNow:      req.SendNow,
	})
	switch {
	case errors.Is(err, invoicedomain.ErrQuotationNotFound):
		return nil, quotationdomain.ErrNotFound
	case errors.Is(err, invoicedomain.ErrInvalidState):
		return nil, quotationdomain.ErrInvalidState
	case err != nil:
		return nil, err
	}
	return inv, nil
}

// ExpireStale persists the expired state for every open quotation past its
// validity date.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	var expired int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		items, err := s.repo.ListOpenExpired(ctx, tx, now)
		if err != nil {
			return err
		}
		for _, q := range items {
			affected, err := s.repo.UpdateFields(ctx, tx, q.ID, map[string]any{
				"status":     quotationdomain.StatusExpired,
				"updated_at": now,
			})
			if err != nil {
				return err
			}
			if affected == 0 {
				continue
			}
			expired++
			if err := s.recordStatusChange(ctx, tx, q, q.Status, quotationdomain.StatusExpired); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if expired > 0 {
		s.log.Info("expired stale quotations", zap.Int64("count", expired))
	}
	return expired, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	quotationID, err := parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, err := s.repo.Delete(ctx, tx, quotationID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return quotationdomain.ErrNotFound
		}
		return nil
	})
}

func (s *Service) Stats(ctx context.Context) (quotationdomain.Stats, error) {
	rows, err := s.repo.StatusTotals(ctx, s.db)
	if err != nil {
		return quotationdomain.Stats{}, err
	}

	stats := quotationdomain.Stats{
		ByStatus:     map[quotationdomain.Status]int64{},
		OpenValue:    decimal.Zero,
		ConvertedPct: decimal.Zero,
	}
	for _, row := range rows {
		stats.Total++
		stats.ByStatus[row.Status]++
		if !row.Status.Terminal() {
			stats.OpenValue = stats.OpenValue.Add(row.Total)
		}
	}
	if stats.Total > 0 {
		converted := decimal.NewFromInt(stats.ByStatus[quotationdomain.StatusConverted])
		stats.ConvertedPct = money.Round(converted.Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(stats.Total)))
	}
	return stats, nil
}

func parseID(id string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return 0, quotationdomain.ErrInvalidID
	}
	return parsed, nil
}
