package service

import (
	"context"

	"github.com/smallbiznis/kay/internal/config"
	"github.com/smallbiznis/kay/internal/money"
	"github.com/smallbiznis/kay/internal/providers/pdf"
	quotationdomain "github.com/smallbiznis/kay/internal/quotation/domain"
)

const dateLayout = "02 Jan 2006"

// RenderPDF returns the quotation PDF and a download file name.
func (s *Service) RenderPDF(ctx context.Context, id string) ([]byte, string, error) {
	q, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}

	out, err := s.pdf.Render(ctx, quotationDocument(q, s.business.Get()))
	if err != nil {
		return nil, "", err
	}
	return out, q.Reference + ".pdf", nil
}

func quotationDocument(q *quotationdomain.Quotation, biz config.BusinessConfig) pdf.Document {
	currency := biz.Currency

	lines := make([]pdf.Line, 0, len(q.Items))
	for _, item := range q.Items {
		lines = append(lines, pdf.Line{
			Description: item.Name,
			Detail:      item.Description,
			Quantity:    money.FormatQuantity(item.Quantity),
			UnitPrice:   money.Format("", item.UnitPrice),
			Amount:      money.Format("", item.Total),
		})
	}

	customer := pdf.Party{
		Heading: "Prepared for",
		Name:    q.CustomerName,
		Lines:   []string{q.CompanyName, q.CustomerEmail, q.CustomerPhone, q.DeliveryAddress},
	}

	return pdf.Document{
		Title:  "Quotation",
		Number: q.Reference,
		Meta: []pdf.Field{
			{Label: "Quotation", Value: q.Reference},
			{Label: "Date", Value: q.CreatedAt.Format(dateLayout)},
			{Label: "Valid until", Value: q.ValidUntil.Format(dateLayout)},
			{Label: "Project", Value: q.ProjectName},
		},
		Parties: []pdf.Party{
			{
				Heading: "From",
				Name:    biz.Company.Name,
				Lines:   []string{biz.Company.Address, biz.Company.Email, biz.Company.Phone},
			},
			customer,
		},
		Summary: money.Format(currency, q.Total) + " quoted",
		Lines:   lines,
		Totals: []pdf.Field{
			{Label: "Subtotal", Value: money.Format(currency, q.Subtotal)},
			{Label: "VAT", Value: money.Format(currency, q.VATAmount)},
			{Label: "Total", Value: money.Format(currency, q.Total)},
		},
		Emphasized: "Total",
		Notes:      []pdf.Field{{Label: "Notes", Value: q.CustomerNotes}},
		LogoPath:   biz.Company.LogoPath,
	}
}
