package service

import (
	"context"
	"strconv"

	"github.com/smallbiznis/kay/internal/config"
	invoicedomain "github.com/smallbiznis/kay/internal/invoice/domain"
	"github.com/smallbiznis/kay/internal/money"
	"github.com/smallbiznis/kay/internal/providers/pdf"
)

const dateLayout = "02 Jan 2006"

// RenderPDF returns the invoice PDF and a download file name.
func (s *Service) RenderPDF(ctx context.Context, id string) ([]byte, string, error) {
	inv, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}

	out, err := s.pdf.Render(ctx, invoiceDocument(inv, s.business.Get()))
	if err != nil {
		return nil, "", err
	}
	return out, inv.InvoiceNumber + ".pdf", nil
}

func invoiceDocument(inv *invoicedomain.Invoice, biz config.BusinessConfig) pdf.Document {
	currency := biz.Currency

	lines := make([]pdf.Line, 0, len(inv.Items))
	for _, item := range inv.Items {
		lines = append(lines, pdf.Line{
			Description: item.Name,
			Detail:      item.Description,
			Quantity:    money.FormatQuantity(item.Quantity),
			UnitPrice:   money.Format("", item.UnitPrice),
			Amount:      money.Format("", item.Total),
		})
	}

	totals := []pdf.Field{{Label: "Subtotal", Value: money.Format(currency, inv.Subtotal)}}
	if inv.DiscountAmount.IsPositive() {
		totals = append(totals, pdf.Field{Label: "Discount", Value: "-" + money.Format(currency, inv.DiscountAmount)})
	}
	if inv.ShippingAmount.IsPositive() {
		totals = append(totals, pdf.Field{Label: "Shipping", Value: money.Format(currency, inv.ShippingAmount)})
	}
	totals = append(totals,
		pdf.Field{Label: "VAT (" + inv.TaxRate.String() + "%)", Value: money.Format(currency, inv.TaxAmount)},
		pdf.Field{Label: "Total", Value: money.Format(currency, inv.Total)},
	)
	if inv.AmountPaid.IsPositive() {
		totals = append(totals, pdf.Field{Label: "Paid", Value: money.Format(currency, inv.AmountPaid)})
	}
	totals = append(totals, pdf.Field{Label: "Balance due", Value: money.Format(currency, inv.BalanceDue)})

	address := inv.CustomerAddress
	if address == "" {
		address = inv.DeliveryAddress
	}

	status := string(inv.Status)
	if inv.IsOverdue {
		status = "overdue"
	}

	terms := inv.Terms
	if terms == "" {
		terms = biz.InvoiceTerms
	}

	return pdf.Document{
		Title:  "Invoice",
		Number: inv.InvoiceNumber,
		Meta: []pdf.Field{
			{Label: "Invoice", Value: inv.InvoiceNumber},
			{Label: "Issued", Value: inv.IssueDate.Format(dateLayout)},
			{Label: "Due", Value: inv.DueDate.Format(dateLayout)},
			{Label: "Terms", Value: "Net " + strconv.Itoa(inv.PaymentTerms)},
			{Label: "Status", Value: status},
			{Label: "Project", Value: inv.ProjectName},
		},
		Parties: []pdf.Party{
			{
				Heading: "From",
				Name:    biz.Company.Name,
				Lines:   []string{biz.Company.Address, biz.Company.Email, biz.Company.Phone},
			},
			{
				Heading: "Bill to",
				Name:    inv.CustomerName,
				Lines:   []string{inv.CompanyName, inv.CustomerEmail, inv.CustomerPhone, address},
			},
		},
		Summary:    money.Format(currency, inv.BalanceDue) + " due " + inv.DueDate.Format(dateLayout),
		Lines:      lines,
		Totals:     totals,
		Emphasized: "Balance due",
		Notes: []pdf.Field{
			{Label: "Notes", Value: inv.Notes},
			{Label: "Terms", Value: terms},
		},
		Footer:   biz.Company.BankDetails,
		LogoPath: biz.Company.LogoPath,
	}
}
