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
	obscontext "github.com/smallbiznis/kay/internal/observability/context"
	"github.com/smallbiznis/kay/internal/observability/metrics"
	"github.com/smallbiznis/kay/internal/providers/pdf"
	quotationdomain "github.com/smallbiznis/kay/internal/quotation/domain"
	"github.com/smallbiznis/kay/pkg/db/option"
	"github.com/smallbiznis/kay/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sourceManual     = "manual"
	sourceConversion = "conversion"
	sourceDuplicate  = "duplicate"

	adjustmentMethod = "adjustment"
)

type ServiceParam struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Business      *config.BusinessConfigHolder
	Numbering     numbering.Generator
	Repo          invoicedomain.Repository
	Quotations    quotationdomain.Repository
	Notifications notificationdomain.Service
	PDF           pdf.Provider
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID         *snowflake.Node
	clock         clock.Clock
	business      *config.BusinessConfigHolder
	numbering     numbering.Generator
	repo          invoicedomain.Repository
	quotations    quotationdomain.Repository
	notifications notificationdomain.Service
	pdf           pdf.Provider
	metrics       *metrics.Metrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("invoice.service"),

		genID:         p.GenID,
		clock:         p.Clock,
		business:      p.Business,
		numbering:     p.Numbering,
		repo:          p.Repo,
		quotations:    p.Quotations,
		notifications: p.Notifications,
		pdf:           p.PDF,
		metrics:       p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateRequest) (*invoicedomain.Invoice, error) {
	source := sourceManual
	if req.QuotationID != nil {
		source = sourceConversion
	}

	var created *invoicedomain.Invoice
	err := numbering.WithRetry(ctx, numbering.DefaultMaxAttempts, func(attempt int) error {
		if attempt > 0 {
			s.metrics.RecordNumberingRetry(ctx, "invoice")
			s.log.Info("invoice number collision, retrying", zap.Int("attempt", attempt))
		}

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := s.clock.Now()

			var q *quotationdomain.Quotation
			if req.QuotationID != nil {
				var err error
				q, err = s.quotations.FindByIDForUpdate(ctx, tx, *req.QuotationID)
				if err != nil {
					return err
				}
				if q == nil {
					return invoicedomain.ErrQuotationNotFound
				}
				if !q.Convertible(now) {
					return invoicedomain.ErrInvalidState
				}
			}

			inv, totals, err := s.buildInvoice(req, q, now)
			if err != nil {
				return err
			}
			inv.InvoiceNumber = s.numbering.InvoiceNumber(now)

			if err := s.repo.Insert(ctx, tx, inv); err != nil {
				return err
			}
			if err := s.notifications.Record(ctx, tx, notificationdomain.Event{
				Type:       notificationdomain.TypeInvoiceCreated,
				Title:      "Invoice created",
				Message:    fmt.Sprintf("Invoice %s issued to %s", inv.InvoiceNumber, inv.CustomerName),
				TargetType: notificationdomain.TargetInvoice,
				TargetID:   inv.ID,
				Reference:  inv.InvoiceNumber,
				Metadata: map[string]any{
					"source": source,
					"total":  inv.Total.StringFixed(money.Scale),
				},
			}); err != nil {
				return err
			}
			if totals.Overridden {
				if err := s.recordOverride(ctx, tx, inv, totals); err != nil {
					return err
				}
			}
			if q != nil {
				if err := s.markQuotationConverted(ctx, tx, q, inv, now); err != nil {
					return err
				}
			}

			created = inv
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceCreated(ctx, source)
	if source == sourceConversion {
		s.metrics.RecordTransition(ctx, "quotation", "open", string(quotationdomain.StatusConverted))
	}
	s.log.Info("invoice created",
		zap.String("invoice_number", created.InvoiceNumber),
		zap.String("id", created.ID.String()),
		zap.String("source", source),
	)
	created.IsOverdue = created.Overdue(s.clock.Now())
	return created, nil
}

func (s *Service) markQuotationConverted(ctx context.Context, tx *gorm.DB, q *quotationdomain.Quotation, inv *invoicedomain.Invoice, now time.Time) error {
	if _, err := s.quotations.UpdateFields(ctx, tx, q.ID, map[string]any{
		"status":               quotationdomain.StatusConverted,
		"converted_invoice_id": inv.ID,
		"converted_at":         now,
		"updated_at":           now,
	}); err != nil {
		return err
	}
	return s.notifications.Record(ctx, tx, notificationdomain.Event{
		Type:       notificationdomain.TypeConverted,
		Title:      "Quotation converted",
		Message:    fmt.Sprintf("Quotation %s converted to invoice %s", q.Reference, inv.InvoiceNumber),
		TargetType: notificationdomain.TargetQuotation,
		TargetID:   q.ID,
		Reference:  q.Reference,
		Metadata: map[string]any{
			"invoice_id":     inv.ID.String(),
			"invoice_number": inv.InvoiceNumber,
			"from":           string(q.Status),
		},
	})
}

func (s *Service) recordOverride(ctx context.Context, tx *gorm.DB, inv *invoicedomain.Invoice, totals money.DocumentTotals) error {
	return s.notifications.Record(ctx, tx, notificationdomain.Event{
		Type:       notificationdomain.TypeOverride,
		Title:      "Invoice totals overridden",
		Message:    fmt.Sprintf("Invoice %s uses manually supplied totals", inv.InvoiceNumber),
		TargetType: notificationdomain.TargetInvoice,
		TargetID:   inv.ID,
		Reference:  inv.InvoiceNumber,
		Metadata: map[string]any{
			"computed_tax":   totals.ComputedTax.StringFixed(money.Scale),
			"computed_total": totals.ComputedTotal.StringFixed(money.Scale),
			"supplied_tax":   totals.Tax.StringFixed(money.Scale),
			"supplied_total": totals.Total.StringFixed(money.Scale),
		},
	})
}

func (s *Service) buildInvoice(req invoicedomain.CreateRequest, q *quotationdomain.Quotation, now time.Time) (*invoicedomain.Invoice, money.DocumentTotals, error) {
	biz := s.business.Get()

	if q != nil {
		req = mergeQuotation(req, q)
	}

	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return nil, money.DocumentTotals{}, invoicedomain.ErrInvalidCustomerName
	}
	emailAddr := strings.ToLower(strings.TrimSpace(req.CustomerEmail))
	if !strings.Contains(emailAddr, "@") {
		return nil, money.DocumentTotals{}, invoicedomain.ErrInvalidCustomerEmail
	}

	taxRate := biz.TaxRate()
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}
	if taxRate.IsNegative() {
		return nil, money.DocumentTotals{}, money.ErrInvalidTaxRate
	}

	var items []invoicedomain.Item
	if q != nil && len(req.Items) == 0 {
		items = s.itemsFromQuotation(q, taxRate)
	} else {
		var err error
		items, err = s.buildItems(req.Items, taxRate)
		if err != nil {
			return nil, money.DocumentTotals{}, err
		}
	}

	discountType, err := money.ParseDiscountType(req.DiscountType)
	if err != nil {
		return nil, money.DocumentTotals{}, err
	}

	subtotal := sumItems(items)
	if req.Subtotal != nil {
		subtotal = *req.Subtotal
	}
	totals, err := money.ComputeDocumentTotals(money.DocumentInput{
		Subtotal:      subtotal,
		DiscountType:  discountType,
		DiscountValue: req.DiscountValue,
		Shipping:      req.ShippingAmount,
		TaxRate:       taxRate,
		TaxOverride:   req.TaxAmount,
		TotalOverride: req.Total,
	})
	if err != nil {
		return nil, money.DocumentTotals{}, err
	}

	issueDate, terms, dueDate, err := resolveDates(req.IssueDate, req.PaymentTerms, req.DueDate, clock.StartOfDay(now), biz.PaymentTermsDays)
	if err != nil {
		return nil, money.DocumentTotals{}, err
	}

	status := invoicedomain.StatusDraft
	var sentAt *time.Time
	if req.SendNow {
		status = invoicedomain.StatusPending
		sentAt = &now
	}

	termsText := strings.TrimSpace(req.Terms)
	if termsText == "" {
		termsText = strings.TrimSpace(biz.InvoiceTerms)
	}

	inv := &invoicedomain.Invoice{
		ID:               s.genID.Generate(),
		Status:           status,
		PaymentStatus:    invoicedomain.PaymentUnpaid,
		CustomerName:     name,
		CustomerEmail:    emailAddr,
		CustomerPhone:    strings.TrimSpace(req.CustomerPhone),
		CustomerAddress:  strings.TrimSpace(req.CustomerAddress),
		CompanyName:      strings.TrimSpace(req.CompanyName),
		ProjectName:      strings.TrimSpace(req.ProjectName),
		DeliveryAddress:  strings.TrimSpace(req.DeliveryAddress),
		IssueDate:        issueDate,
		DueDate:          dueDate,
		PaymentTerms:     terms,
		Subtotal:         totals.Subtotal,
		TaxRate:          taxRate,
		TaxAmount:        totals.Tax,
		DiscountType:     discountType,
		DiscountValue:    money.Round(req.DiscountValue),
		DiscountAmount:   totals.Discount,
		ShippingAmount:   totals.Shipping,
		Total:            totals.Total,
		AmountPaid:       decimal.Zero,
		BalanceDue:       totals.Total,
		TotalsOverridden: totals.Overridden,
		QuotationID:      req.QuotationID,
		Notes:            strings.TrimSpace(req.Notes),
		Terms:            termsText,
		SentAt:           sentAt,
		CreatedAt:        now,
		UpdatedAt:        now,
		Items:            items,
	}
	return inv, totals, nil
}

// mergeQuotation fills every customer and amount field the request left
// empty from the quotation being converted.
func mergeQuotation(req invoicedomain.CreateRequest, q *quotationdomain.Quotation) invoicedomain.CreateRequest {
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
	}
	fill(&req.CustomerName, q.CustomerName)
	fill(&req.CustomerEmail, q.CustomerEmail)
	fill(&req.CustomerPhone, q.CustomerPhone)
	fill(&req.CompanyName, q.CompanyName)
	fill(&req.ProjectName, q.ProjectName)
	fill(&req.DeliveryAddress, q.DeliveryAddress)
	fill(&req.CustomerAddress, q.DeliveryAddress)

	if len(req.Items) == 0 {
		if req.Subtotal == nil {
			subtotal := q.Subtotal
			req.Subtotal = &subtotal
		}
		if req.TaxAmount == nil {
			vat := q.VATAmount
			req.TaxAmount = &vat
		}
		if req.Total == nil {
			total := q.Total
			req.Total = &total
		}
	}
	return req
}

func (s *Service) itemsFromQuotation(q *quotationdomain.Quotation, taxRate decimal.Decimal) []invoicedomain.Item {
	items := make([]invoicedomain.Item, 0, len(q.Items))
	for i, src := range q.Items {
		items = append(items, invoicedomain.Item{
			ID:          s.genID.Generate(),
			Position:    i,
			ProductID:   src.ProductID,
			Name:        src.Name,
			Description: src.Description,
			Quantity:    src.Quantity,
			Unit:        src.Unit,
			UnitPrice:   src.UnitPrice,
			Discount:    decimal.Zero,
			TaxRate:     taxRate,
			TaxAmount:   money.Round(src.Total.Mul(taxRate).Div(decimal.NewFromInt(100))),
			Total:       src.Total,
			IsService:   src.IsService,
			Category:    src.Category,
		})
	}
	return items
}

func (s *Service) buildItems(inputs []invoicedomain.ItemInput, docRate decimal.Decimal) ([]invoicedomain.Item, error) {
	if len(inputs) == 0 {
		return nil, invoicedomain.ErrInvalidItems
	}

	items := make([]invoicedomain.Item, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, invoicedomain.ErrInvalidItemName
		}
		rate := docRate
		if in.TaxRate != nil {
			rate = *in.TaxRate
		}
		line, err := money.ComputeDiscountedLineTotal(in.UnitPrice, in.Quantity, in.Discount, rate)
		if err != nil {
			return nil, err
		}
		items = append(items, invoicedomain.Item{
			ID:          s.genID.Generate(),
			Position:    i,
			ProductID:   in.ProductID,
			Name:        name,
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			Unit:        strings.TrimSpace(in.Unit),
			UnitPrice:   money.Round(in.UnitPrice),
			Discount:    money.Round(in.Discount),
			TaxRate:     rate,
			TaxAmount:   line.TaxAmount,
			Total:       line.Subtotal,
			IsService:   in.IsService,
			Category:    strings.TrimSpace(in.Category),
		})
	}
	return items, nil
}

func sumItems(items []invoicedomain.Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Total)
	}
	return total
}

// resolveDates applies the defaults issue=today, terms=configured and
// due=issue+terms. An explicit due date wins over terms.
func resolveDates(issue *time.Time, terms *int, due *time.Time, today time.Time, defaultTerms int) (time.Time, int, time.Time, error) {
	issueDate := today
	if issue != nil {
		issueDate = clock.StartOfDay(*issue)
	}
	paymentTerms := defaultTerms
	if terms != nil {
		paymentTerms = *terms
	}
	if paymentTerms < 0 {
		return time.Time{}, 0, time.Time{}, invoicedomain.ErrInvalidPaymentTerms
	}
	dueDate := issueDate.AddDate(0, 0, paymentTerms)
	if due != nil {
		dueDate = clock.StartOfDay(*due)
	}
	if dueDate.Before(issueDate) {
		return time.Time{}, 0, time.Time{}, invoicedomain.ErrInvalidDueDate
	}
	return issueDate, paymentTerms, dueDate, nil
}

func (s *Service) Update(ctx context.Context, id string, req invoicedomain.UpdateRequest) (*invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var (
		updated     *invoicedomain.Invoice
		transitions [][2]invoicedomain.Status
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.repo.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return invoicedomain.ErrNotFound
		}
		if !inv.Editable() {
			return invoicedomain.ErrInvalidState
		}

		now := s.clock.Now()
		fields := map[string]any{}

		if err := applyCustomerUpdates(fields, req); err != nil {
			return err
		}

		status := inv.Status
		if req.Status != nil {
			next, err := invoicedomain.ParseStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
			if err != nil {
				return err
			}
			if next == invoicedomain.StatusPaid {
				// Settlement goes through RecordPayment or MarkAsPaid.
				return invoicedomain.ErrInvalidStatus
			}
			if next != status {
				if !status.CanTransitionTo(next) {
					return invoicedomain.ErrInvalidState
				}
				transitions = append(transitions, [2]invoicedomain.Status{status, next})
				status = next
				fields["status"] = next
			}
		}

		if req.IssueDate != nil || req.PaymentTerms != nil || req.DueDate != nil {
			issue := inv.IssueDate
			if req.IssueDate != nil {
				issue = *req.IssueDate
			}
			terms := inv.PaymentTerms
			if req.PaymentTerms != nil {
				terms = *req.PaymentTerms
			}
			issueDate, paymentTerms, dueDate, err := resolveDates(&issue, &terms, req.DueDate, issue, terms)
			if err != nil {
				return err
			}
			fields["issue_date"] = issueDate
			fields["payment_terms"] = paymentTerms
			fields["due_date"] = dueDate
		}

		total := inv.Total
		var totals *money.DocumentTotals
		if pricingChanged(req) {
			taxRate := inv.TaxRate
			if req.TaxRate != nil {
				taxRate = *req.TaxRate
			}
			if taxRate.IsNegative() {
				return money.ErrInvalidTaxRate
			}

			subtotal := inv.Subtotal
			if req.Items != nil {
				items, err := s.buildItems(*req.Items, taxRate)
				if err != nil {
					return err
				}
				if err := s.repo.ReplaceItems(ctx, tx, inv.ID, items); err != nil {
					return err
				}
				subtotal = sumItems(items)
			}
			if req.Subtotal != nil {
				subtotal = *req.Subtotal
			}

			discountType := inv.DiscountType
			if req.DiscountType != nil {
				discountType, err = money.ParseDiscountType(*req.DiscountType)
				if err != nil {
					return err
				}
			}
			discountValue := inv.DiscountValue
			if req.DiscountValue != nil {
				discountValue = *req.DiscountValue
			}
			shipping := inv.ShippingAmount
			if req.ShippingAmount != nil {
				shipping = *req.ShippingAmount
			}

			computed, err := money.ComputeDocumentTotals(money.DocumentInput{
				Subtotal:      subtotal,
				DiscountType:  discountType,
				DiscountValue: discountValue,
				Shipping:      shipping,
				TaxRate:       taxRate,
				TaxOverride:   req.TaxAmount,
				TotalOverride: req.Total,
			})
			if err != nil {
				return err
			}
			totals = &computed
			total = computed.Total

			fields["subtotal"] = computed.Subtotal
			fields["tax_rate"] = taxRate
			fields["tax_amount"] = computed.Tax
			fields["discount_type"] = discountType
			fields["discount_value"] = money.Round(discountValue)
			fields["discount_amount"] = computed.Discount
			fields["shipping_amount"] = computed.Shipping
			fields["total"] = computed.Total
			fields["totals_overridden"] = computed.Overridden
		}

		paid := inv.AmountPaid
		if req.AmountPaid != nil {
			next := money.Round(*req.AmountPaid)
			if next.LessThan(paid) {
				return invoicedomain.ErrInvalidAmountPaid
			}
			if delta := next.Sub(paid); delta.IsPositive() {
				if err := s.repo.InsertPayment(ctx, tx, &invoicedomain.Payment{
					ID:          s.genID.Generate(),
					InvoiceID:   inv.ID,
					PaymentDate: now,
					Amount:      delta,
					Method:      adjustmentMethod,
					RecordedBy:  recordedBy(ctx),
					CreatedAt:   now,
				}); err != nil {
					return err
				}
			}
			paid = next
		}
		if paid.GreaterThan(total) {
			return invoicedomain.ErrOverpayment
		}

		balance := money.BalanceDue(total, paid)
		fields["amount_paid"] = paid
		fields["balance_due"] = balance
		fields["payment_status"] = invoicedomain.DerivePaymentStatus(total, paid)

		settled := paid.IsPositive() && balance.IsZero() && status != invoicedomain.StatusCancelled
		if settled {
			transitions = append(transitions, [2]invoicedomain.Status{status, invoicedomain.StatusPaid})
			fields["status"] = invoicedomain.StatusPaid
			fields["paid_date"] = now
		}
		fields["updated_at"] = now

		if err := s.repo.UpdateFields(ctx, tx, inv.ID, fields); err != nil {
			return err
		}

		if totals != nil && totals.Overridden {
			if err := s.recordOverride(ctx, tx, inv, *totals); err != nil {
				return err
			}
		}
		if settled {
			if err := s.recordPaid(ctx, tx, inv, paid); err != nil {
				return err
			}
		}

		updated, err = s.repo.FindByID(ctx, tx, inv.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, t := range transitions {
		s.metrics.RecordTransition(ctx, "invoice", string(t[0]), string(t[1]))
	}
	updated.IsOverdue = updated.Overdue(s.clock.Now())
	return updated, nil
}

func applyCustomerUpdates(fields map[string]any, req invoicedomain.UpdateRequest) error {
	if req.CustomerName != nil {
		name := strings.TrimSpace(*req.CustomerName)
		if name == "" {
			return invoicedomain.ErrInvalidCustomerName
		}
		fields["customer_name"] = name
	}
	if req.CustomerEmail != nil {
		emailAddr := strings.ToLower(strings.TrimSpace(*req.CustomerEmail))
		if !strings.Contains(emailAddr, "@") {
			return invoicedomain.ErrInvalidCustomerEmail
		}
		fields["customer_email"] = emailAddr
	}
	optional := map[string]*string{
		"customer_phone":   req.CustomerPhone,
		"customer_address": req.CustomerAddress,
		"company_name":     req.CompanyName,
		"project_name":     req.ProjectName,
		"delivery_address": req.DeliveryAddress,
		"notes":            req.Notes,
		"terms":            req.Terms,
	}
	for column, value := range optional {
		if value != nil {
			fields[column] = strings.TrimSpace(*value)
		}
	}
	return nil
}

func pricingChanged(req invoicedomain.UpdateRequest) bool {
	return req.Items != nil ||
		req.Subtotal != nil ||
		req.TaxRate != nil ||
		req.TaxAmount != nil ||
		req.DiscountType != nil ||
		req.DiscountValue != nil ||
		req.ShippingAmount != nil ||
		req.Total != nil
}

func (s *Service) RecordPayment(ctx context.Context, id string, req invoicedomain.PaymentRequest) (*invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	amount := money.Round(req.Amount)
	if !amount.IsPositive() {
		return nil, invoicedomain.ErrInvalidPaymentAmount
	}

	var (
		updated *invoicedomain.Invoice
		from    invoicedomain.Status
		settled bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.repo.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return invoicedomain.ErrNotFound
		}
		if inv.Status == invoicedomain.StatusCancelled {
			return invoicedomain.ErrInvalidState
		}
		if amount.GreaterThan(inv.BalanceDue) {
			return invoicedomain.ErrOverpayment
		}

		now := s.clock.Now()
		paymentDate := now
		if req.PaymentDate != nil {
			paymentDate = req.PaymentDate.UTC()
		}
		if err := s.repo.InsertPayment(ctx, tx, &invoicedomain.Payment{
			ID:          s.genID.Generate(),
			InvoiceID:   inv.ID,
			PaymentDate: paymentDate,
			Amount:      amount,
			Method:      strings.TrimSpace(req.Method),
			Reference:   strings.TrimSpace(req.Reference),
			Notes:       strings.TrimSpace(req.Notes),
			RecordedBy:  recordedBy(ctx),
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		paid := inv.AmountPaid.Add(amount)
		balance := money.BalanceDue(inv.Total, paid)
		fields := map[string]any{
			"amount_paid":    paid,
			"balance_due":    balance,
			"payment_status": invoicedomain.DerivePaymentStatus(inv.Total, paid),
			"updated_at":     now,
		}
		from = inv.Status
		settled = balance.IsZero()
		if settled {
			fields["status"] = invoicedomain.StatusPaid
			fields["paid_date"] = paymentDate
		}
		if err := s.repo.UpdateFields(ctx, tx, inv.ID, fields); err != nil {
			return err
		}

		if settled {
			err = s.recordPaid(ctx, tx, inv, paid)
		} else {
			err = s.notifications.Record(ctx, tx, notificationdomain.Event{
				Type:       notificationdomain.TypePayment,
				Title:      "Payment received",
				Message:    fmt.Sprintf("Payment of %s received for invoice %s", amount.StringFixed(money.Scale), inv.InvoiceNumber),
				TargetType: notificationdomain.TargetInvoice,
				TargetID:   inv.ID,
				Reference:  inv.InvoiceNumber,
				Metadata: map[string]any{
					"amount":      amount.StringFixed(money.Scale),
					"balance_due": balance.StringFixed(money.Scale),
					"method":      strings.TrimSpace(req.Method),
				},
			})
		}
		if err != nil {
			return err
		}

		updated, err = s.repo.FindByID(ctx, tx, inv.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPayment(ctx, req.Method)
	if settled && from != invoicedomain.StatusPaid {
		s.metrics.RecordTransition(ctx, "invoice", string(from), string(invoicedomain.StatusPaid))
	}
	updated.IsOverdue = updated.Overdue(s.clock.Now())
	return updated, nil
}

func (s *Service) recordPaid(ctx context.Context, tx *gorm.DB, inv *invoicedomain.Invoice, paid decimal.Decimal) error {
	return s.notifications.Record(ctx, tx, notificationdomain.Event{
		Type:       notificationdomain.TypePaid,
		Title:      "Invoice paid",
		Message:    fmt.Sprintf("Invoice %s is fully paid", inv.InvoiceNumber),
		TargetType: notificationdomain.TargetInvoice,
		TargetID:   inv.ID,
		Reference:  inv.InvoiceNumber,
		Metadata:   map[string]any{"amount_paid": paid.StringFixed(money.Scale)},
	})
}

func (s *Service) MarkAsPaid(ctx context.Context, id string, req invoicedomain.MarkPaidRequest) (*invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var (
		updated *invoicedomain.Invoice
		from    invoicedomain.Status
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.repo.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return invoicedomain.ErrNotFound
		}
		from = inv.Status
		if inv.Status == invoicedomain.StatusPaid {
			updated = inv
			return nil
		}
		if inv.Status == invoicedomain.StatusCancelled {
			return invoicedomain.ErrInvalidState
		}

		now := s.clock.Now()
		paymentDate := now
		if req.PaymentDate != nil {
			paymentDate = req.PaymentDate.UTC()
		}

		balance := inv.BalanceDue
		if balance.IsPositive() {
			if err := s.repo.InsertPayment(ctx, tx, &invoicedomain.Payment{
				ID:          s.genID.Generate(),
				InvoiceID:   inv.ID,
				PaymentDate: paymentDate,
				Amount:      balance,
				Method:      strings.TrimSpace(req.Method),
				Reference:   strings.TrimSpace(req.Reference),
				Notes:       strings.TrimSpace(req.Notes),
				RecordedBy:  recordedBy(ctx),
				CreatedAt:   now,
			}); err != nil {
				return err
			}
		}

		paid := inv.AmountPaid.Add(balance)
		if err := s.repo.UpdateFields(ctx, tx, inv.ID, map[string]any{
			"status":         invoicedomain.StatusPaid,
			"payment_status": invoicedomain.PaymentPaid,
			"amount_paid":    paid,
			"balance_due":    decimal.Zero,
			"paid_date":      paymentDate,
			"updated_at":     now,
		}); err != nil {
			return err
		}
		if err := s.recordPaid(ctx, tx, inv, paid); err != nil {
			return err
		}

		updated, err = s.repo.FindByID(ctx, tx, inv.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if from != invoicedomain.StatusPaid {
		s.metrics.RecordPayment(ctx, req.Method)
		s.metrics.RecordTransition(ctx, "invoice", string(from), string(invoicedomain.StatusPaid))
	}
	updated.IsOverdue = updated.Overdue(s.clock.Now())
	return updated, nil
}

func (s *Service) MarkAsSent(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var (
		updated *invoicedomain.Invoice
		from    invoicedomain.Status
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.repo.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return invoicedomain.ErrNotFound
		}
		if inv.Status != invoicedomain.StatusDraft && inv.Status != invoicedomain.StatusPending {
			return invoicedomain.ErrInvalidState
		}
		from = inv.Status

		now := s.clock.Now()
		if err := s.repo.UpdateFields(ctx, tx, inv.ID, map[string]any{
			"status":     invoicedomain.StatusPending,
			"sent_at":    now,
			"updated_at": now,
		}); err != nil {
			return err
		}
		if from == invoicedomain.StatusDraft {
			if err := s.notifications.Record(ctx, tx, notificationdomain.Event{
				Type:       notificationdomain.TypeStatusChange,
				Title:      "Invoice sent",
				Message:    fmt.Sprintf("Invoice %s marked as sent", inv.InvoiceNumber),
				TargetType: notificationdomain.TargetInvoice,
				TargetID:   inv.ID,
				Reference:  inv.InvoiceNumber,
				Metadata:   map[string]any{"from": string(from), "to": string(invoicedomain.StatusPending)},
			}); err != nil {
				return err
			}
		}

		updated, err = s.repo.FindByID(ctx, tx, inv.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if from == invoicedomain.StatusDraft {
		s.metrics.RecordTransition(ctx, "invoice", string(from), string(invoicedomain.StatusPending))
	}
	updated.IsOverdue = updated.Overdue(s.clock.Now())
	return updated, nil
}

// Duplicate copies an invoice into a new draft with a fresh number. The
// source is left untouched.
func (s *Service) Duplicate(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	source, err := s.load(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}

	var created *invoicedomain.Invoice
	err = numbering.WithRetry(ctx, numbering.DefaultMaxAttempts, func(attempt int) error {
		if attempt > 0 {
			s.metrics.RecordNumberingRetry(ctx, "invoice")
		}
		now := s.clock.Now()
		issueDate := clock.StartOfDay(now)

		copied := *source
		copied.ID = s.genID.Generate()
		copied.InvoiceNumber = s.numbering.InvoiceNumber(now)
		copied.Status = invoicedomain.StatusDraft
		copied.PaymentStatus = invoicedomain.PaymentUnpaid
		copied.AmountPaid = decimal.Zero
		copied.BalanceDue = source.Total
		copied.IssueDate = issueDate
		copied.DueDate = issueDate.AddDate(0, 0, source.PaymentTerms)
		copied.QuotationID = nil
		copied.SentAt = nil
		copied.PaidDate = nil
		copied.CreatedAt = now
		copied.UpdatedAt = now
		copied.Payments = nil
		copied.Items = make([]invoicedomain.Item, 0, len(source.Items))
		for _, item := range source.Items {
			item.ID = s.genID.Generate()
			copied.Items = append(copied.Items, item)
		}

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.repo.Insert(ctx, tx, &copied); err != nil {
				return err
			}
			created = &copied
			return s.notifications.Record(ctx, tx, notificationdomain.Event{
				Type:       notificationdomain.TypeInvoiceCreated,
				Title:      "Invoice duplicated",
				Message:    fmt.Sprintf("Invoice %s duplicated from %s", copied.InvoiceNumber, source.InvoiceNumber),
				TargetType: notificationdomain.TargetInvoice,
				TargetID:   copied.ID,
				Reference:  copied.InvoiceNumber,
				Metadata: map[string]any{
					"source":            sourceDuplicate,
					"source_invoice_id": source.ID.String(),
				},
			})
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceCreated(ctx, sourceDuplicate)
	created.IsOverdue = created.Overdue(s.clock.Now())
	return created, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	invoiceID, err := parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.repo.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return invoicedomain.ErrNotFound
		}
		if inv.Status != invoicedomain.StatusDraft {
			return invoicedomain.ErrInvalidState
		}
		affected, err := s.repo.Delete(ctx, tx, inv.ID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return invoicedomain.ErrNotFound
		}
		return nil
	})
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListRequest) (invoicedomain.ListResponse, error) {
	if req.Status != "" {
		if _, err := invoicedomain.ParseStatus(req.Status); err != nil {
			return invoicedomain.ListResponse{}, err
		}
	}
	if req.PaymentStatus != "" {
		if _, err := invoicedomain.ParsePaymentStatus(req.PaymentStatus); err != nil {
			return invoicedomain.ListResponse{}, err
		}
	}
	if req.IssueFrom != nil && req.IssueTo != nil && req.IssueFrom.After(*req.IssueTo) {
		return invoicedomain.ListResponse{}, invoicedomain.ErrInvalidTimeRange
	}

	now := s.clock.Now()
	filter := invoicedomain.ListFilter{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		Email:         req.Email,
		Search:        req.Search,
		IssueFrom:     req.IssueFrom,
		IssueTo:       req.IssueTo,
	}
	if req.Overdue {
		today := clock.StartOfDay(now)
		filter.OverdueAsOf = &today
	}

	items, err := s.repo.List(ctx, s.db, filter, req.Pagination)
	if err != nil {
		if errors.Is(err, option.ErrInvalidPageToken) {
			return invoicedomain.ListResponse{}, invoicedomain.ErrInvalidPageToken
		}
		return invoicedomain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, req.Size(), func(inv *invoicedomain.Invoice) string {
		return pagination.CursorFor(inv.ID.String(), inv.CreatedAt)
	})

	out := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		item.IsOverdue = item.Overdue(now)
		out = append(out, *item)
	}
	return invoicedomain.ListResponse{PageInfo: pageInfo, Invoices: out}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	inv, err := s.load(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.IsOverdue = inv.Overdue(s.clock.Now())
	return inv, nil
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*invoicedomain.Invoice, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if !strings.HasPrefix(number, numbering.InvoicePrefix) {
		return nil, invoicedomain.ErrInvalidNumber
	}
	inv, err := s.repo.FindByNumber(ctx, s.db, number)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, invoicedomain.ErrNotFound
	}
	inv.IsOverdue = inv.Overdue(s.clock.Now())
	return inv, nil
}

func (s *Service) ListPayments(ctx context.Context, id string) ([]invoicedomain.Payment, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	inv, err := s.load(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	return inv.Payments, nil
}

func (s *Service) Stats(ctx context.Context) (invoicedomain.Stats, error) {
	items, err := s.repo.ListForStats(ctx, s.db)
	if err != nil {
		return invoicedomain.Stats{}, err
	}

	now := s.clock.Now()
	stats := invoicedomain.Stats{
		ByStatus:      map[invoicedomain.Status]int64{},
		TotalInvoiced: decimal.Zero,
		TotalPaid:     decimal.Zero,
		Outstanding:   decimal.Zero,
		OverdueAmount: decimal.Zero,
	}
	for _, inv := range items {
		stats.Total++
		stats.ByStatus[inv.Status]++
		if inv.Status == invoicedomain.StatusCancelled {
			continue
		}
		stats.TotalInvoiced = stats.TotalInvoiced.Add(inv.Total)
		stats.TotalPaid = stats.TotalPaid.Add(inv.AmountPaid)
		if inv.Status != invoicedomain.StatusDraft {
			stats.Outstanding = stats.Outstanding.Add(inv.BalanceDue)
		}
		if inv.Overdue(now) {
			stats.OverdueCount++
			stats.OverdueAmount = stats.OverdueAmount.Add(inv.BalanceDue)
		}
	}
	return stats, nil
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	inv, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return inv, nil
}

func recordedBy(ctx context.Context) string {
	actorType, actorID := obscontext.ActorFromContext(ctx)
	if actorID != "" {
		return actorType + ":" + actorID
	}
	return obscontext.ActorTypeSystem
}

func parseID(id string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return 0, invoicedomain.ErrInvalidID
	}
	return parsed, nil
}
