package pdf

import (
	"context"
	"errors"

	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

var ErrEmptyDocument = errors.New("empty_document")

// Provider turns a prepared Document into PDF bytes.
type Provider interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}

type Field struct {
	Label string
	Value string
}

type Party struct {
	Heading string
	Name    string
	Lines   []string
}

type Line struct {
	Description string
	Detail      string
	Quantity    string
	UnitPrice   string
	Amount      string
}

// Document is a format-agnostic view of an invoice, quotation or receipt.
// All values are preformatted strings.
type Document struct {
	Title   string
	Number  string
	Meta    []Field
	Parties []Party
	Summary string
	Lines   []Line
	Totals  []Field
	// Emphasized is the label of the totals row printed in bold.
	Emphasized string
	Notes      []Field
	Footer     string
	LogoPath   string
}

type NoOpProvider struct{}

func (NoOpProvider) Render(ctx context.Context, doc Document) ([]byte, error) {
	return nil, nil
}
