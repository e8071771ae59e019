package server

import (
	"context"

	authdomain "github.com/smallbiznis/kay/internal/auth/domain"
	invoicedomain "github.com/smallbiznis/kay/internal/invoice/domain"
	notificationdomain "github.com/smallbiznis/kay/internal/notification/domain"
	productdomain "github.com/smallbiznis/kay/internal/product/domain"
	quotationdomain "github.com/smallbiznis/kay/internal/quotation/domain"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

func argAs[T any](args mock.Arguments, i int) T {
	v, _ := args.Get(i).(T)
	return v
}

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) CreateAdmin(ctx context.Context, req authdomain.CreateAdminRequest) (*authdomain.AdminUser, error) {
	args := m.Called(ctx, req)
	return argAs[*authdomain.AdminUser](args, 0), args.Error(1)
}

func (m *mockAuthService) EnsureAdmin(ctx context.Context, req authdomain.CreateAdminRequest) (*authdomain.AdminUser, bool, error) {
	args := m.Called(ctx, req)
	return argAs[*authdomain.AdminUser](args, 0), args.Bool(1), args.Error(2)
}

func (m *mockAuthService) Login(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	args := m.Called(ctx, req)
	return argAs[*authdomain.LoginResult](args, 0), args.Error(1)
}

func (m *mockAuthService) Authenticate(ctx context.Context, rawToken string) (*authdomain.Claims, error) {
	args := m.Called(ctx, rawToken)
	return argAs[*authdomain.Claims](args, 0), args.Error(1)
}

func (m *mockAuthService) Me(ctx context.Context, id string) (*authdomain.AdminUser, error) {
	args := m.Called(ctx, id)
	return argAs[*authdomain.AdminUser](args, 0), args.Error(1)
}

type mockQuotationService struct{ mock.Mock }

func (m *mockQuotationService) Submit(ctx context.Context, req quotationdomain.SubmitRequest) (*quotationdomain.SubmitResult, error) {
	args := m.Called(ctx, req)
	return argAs[*quotationdomain.SubmitResult](args, 0), args.Error(1)
}

func (m *mockQuotationService) Track(ctx context.Context, reference string) (*quotationdomain.TrackResult, error) {
	args := m.Called(ctx, reference)
	return argAs[*quotationdomain.TrackResult](args, 0), args.Error(1)
}

func (m *mockQuotationService) List(ctx context.Context, req quotationdomain.ListRequest) (quotationdomain.ListResponse, error) {
	args := m.Called(ctx, req)
	return argAs[quotationdomain.ListResponse](args, 0), args.Error(1)
}

func (m *mockQuotationService) GetByID(ctx context.Context, id string) (*quotationdomain.Quotation, error) {
	args := m.Called(ctx, id)
	return argAs[*quotationdomain.Quotation](args, 0), args.Error(1)
}

func (m *mockQuotationService) Open(ctx context.Context, id string) (*quotationdomain.Quotation, error) {
	args := m.Called(ctx, id)
	return argAs[*quotationdomain.Quotation](args, 0), args.Error(1)
}

func (m *mockQuotationService) UpdateStatus(ctx context.Context, id string, req quotationdomain.UpdateStatusRequest) (*quotationdomain.Quotation, error) {
	args := m.Called(ctx, id, req)
	return argAs[*quotationdomain.Quotation](args, 0), args.Error(1)
}

func (m *mockQuotationService) UpdateNotes(ctx context.Context, id string, req quotationdomain.UpdateNotesRequest) (*quotationdomain.Quotation, error) {
	args := m.Called(ctx, id, req)
	return argAs[*quotationdomain.Quotation](args, 0), args.Error(1)
}

func (m *mockQuotationService) ConvertToInvoice(ctx context.Context, id string, req quotationdomain.ConvertRequest) (*invoicedomain.Invoice, error) {
	args := m.Called(ctx, id, req)
	return argAs[*invoicedomain.Invoice](args, 0), args.Error(1)
}

func (m *mockQuotationService) ExpireStale(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return argAs[int64](args, 0), args.Error(1)
}

func (m *mockQuotationService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockQuotationService) Stats(ctx context.Context) (quotationdomain.Stats, error) {
	args := m.Called(ctx)
	return argAs[quotationdomain.Stats](args, 0), args.Error(1)
}

func (m *mockQuotationService) RenderPDF(ctx context.Context, id string) ([]byte, string, error) {
	args := m.Called(ctx, id)
	return argAs[[]byte](args, 0), args.String(1), args.Error(2)
}

type mockInvoiceService struct{ mock.Mock }

func (m *mockInvoiceService) Create(ctx context.Context, req invoicedomain.CreateRequest) (*invoicedomain.Invoice, error) {
	args := m.Called(ctx, req)
	return argAs[*invoicedomain.Invoice](args, 0), args.Error(1)
}

func (m *mockInvoiceService) Update(ctx context.Context, id string, req invoicedomain.UpdateRequest) (*invoicedomain.Invoice, error) {
	args := m.Called(ctx, id, req)
	return argAs[*invoicedomain.Invoice](args, 0), args.Error(1)
}

func (m *mockInvoiceService) RecordPayment(ctx context.Context, id string, req invoicedomain.PaymentRequest) (*invoicedomain.Invoice, error) {
	args := m.Called(ctx, id, req)
	return argAs[*invoicedomain.Invoice](args, 0), args.Error(1)
}

func (m *mockInvoiceService) MarkAsPaid(ctx context.Context, id string, req invoicedomain.MarkPaidRequest) (*invoicedomain.Invoice, error) {
	args := m.Called(ctx, id, req)
	return argAs[*invoicedomain.Invoice](args, 0), args.Error(1)
}

func (m *mockInvoiceService) MarkAsSent(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	args := m.Called(ctx, id)
	return argAs[*invoicedomain.Invoice](args, 0), args.Error(1)
}

func (m *mockInvoiceService) Duplicate(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	args := m.Called(ctx, id)
	return argAs[*invoicedomain.Invoice](args, 0), args.Error(1)
}

func (m *mockInvoiceService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockInvoiceService) List(ctx context.Context, req invoicedomain.ListRequest) (invoicedomain.ListResponse, error) {
	args := m.Called(ctx, req)
	return argAs[invoicedomain.ListResponse](args, 0), args.Error(1)
}

func (m *mockInvoiceService) GetByID(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	args := m.Called(ctx, id)
	return argAs[*invoicedomain.Invoice](args, 0), args.Error(1)
}

func (m *mockInvoiceService) GetByNumber(ctx context.Context, number string) (*invoicedomain.Invoice, error) {
	args := m.Called(ctx, number)
	return argAs[*invoicedomain.Invoice](args, 0), args.Error(1)
}

func (m *mockInvoiceService) ListPayments(ctx context.Context, id string) ([]invoicedomain.Payment, error) {
	args := m.Called(ctx, id)
	return argAs[[]invoicedomain.Payment](args, 0), args.Error(1)
}

func (m *mockInvoiceService) Stats(ctx context.Context) (invoicedomain.Stats, error) {
	args := m.Called(ctx)
	return argAs[invoicedomain.Stats](args, 0), args.Error(1)
}

func (m *mockInvoiceService) RenderPDF(ctx context.Context, id string) ([]byte, string, error) {
	args := m.Called(ctx, id)
	return argAs[[]byte](args, 0), args.String(1), args.Error(2)
}

type mockProductService struct{ mock.Mock }

func (m *mockProductService) Create(ctx context.Context, req productdomain.CreateRequest) (*productdomain.Product, error) {
	args := m.Called(ctx, req)
	return argAs[*productdomain.Product](args, 0), args.Error(1)
}

func (m *mockProductService) Update(ctx context.Context, id string, req productdomain.UpdateRequest) (*productdomain.Product, error) {
	args := m.Called(ctx, id, req)
	return argAs[*productdomain.Product](args, 0), args.Error(1)
}

func (m *mockProductService) Archive(ctx context.Context, id string) (*productdomain.Product, error) {
	args := m.Called(ctx, id)
	return argAs[*productdomain.Product](args, 0), args.Error(1)
}

func (m *mockProductService) Get(ctx context.Context, id string) (*productdomain.Product, error) {
	args := m.Called(ctx, id)
	return argAs[*productdomain.Product](args, 0), args.Error(1)
}

func (m *mockProductService) List(ctx context.Context, req productdomain.ListRequest) (productdomain.ListResponse, error) {
	args := m.Called(ctx, req)
	return argAs[productdomain.ListResponse](args, 0), args.Error(1)
}

type mockNotificationService struct{ mock.Mock }

func (m *mockNotificationService) Record(ctx context.Context, tx *gorm.DB, event notificationdomain.Event) error {
	return m.Called(ctx, tx, event).Error(0)
}

func (m *mockNotificationService) List(ctx context.Context, req notificationdomain.ListRequest) (notificationdomain.ListResponse, error) {
	args := m.Called(ctx, req)
	return argAs[notificationdomain.ListResponse](args, 0), args.Error(1)
}

func (m *mockNotificationService) MarkRead(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return argAs[int64](args, 0), args.Error(1)
}

func (m *mockNotificationService) UnreadCount(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return argAs[int64](args, 0), args.Error(1)
}
