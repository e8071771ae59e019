package pdf

import (
	"context"
	"os"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type MarotoProvider struct{}

func New() Provider {
	return &MarotoProvider{}
}

func (p *MarotoProvider) Render(ctx context.Context, doc Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Number) == "" {
		return nil, ErrEmptyDocument
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	header := []core.Col{
		text.NewCol(8, doc.Title, props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	}
	if logo := strings.TrimSpace(doc.LogoPath); logo != "" && fileExists(logo) {
		header = append(header, image.NewFromFileCol(4, logo, props.Rect{Percent: 80}))
	} else {
		header = append(header, col.New(4))
	}
	m.AddRow(20, header...)

	meta := col.New(12)
	top := 0.0
	for _, f := range doc.Meta {
		if strings.TrimSpace(f.Value) == "" {
			continue
		}
		meta.Add(text.New(f.Label+": "+f.Value, props.Text{Top: top, Size: 9}))
		top += 4
	}
	m.AddRow(top+4, meta)

	if len(doc.Parties) > 0 {
		size := 12 / len(doc.Parties)
		cols := make([]core.Col, 0, len(doc.Parties))
		height := 10.0
		for _, party := range doc.Parties {
			c := col.New(size).Add(text.New(party.Heading, props.Text{Style: fontstyle.Bold, Size: 9}))
			c.Add(text.New(party.Name, props.Text{Top: 4, Size: 9}))
			offset := 8.0
			for _, l := range party.Lines {
				if strings.TrimSpace(l) == "" {
					continue
				}
				c.Add(text.New(l, props.Text{Top: offset, Size: 9}))
				offset += 4
			}
			if offset+2 > height {
				height = offset + 2
			}
			cols = append(cols, c)
		}
		m.AddRow(height, cols...)
	}

	if doc.Summary != "" {
		m.AddRow(12, text.NewCol(12, doc.Summary, props.Text{Size: 14, Style: fontstyle.Bold, Top: 3}))
	}

	m.AddRow(8,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, item := range doc.Lines {
		desc := col.New(6).Add(text.New(item.Description, props.Text{Size: 9}))
		height := 8.0
		if item.Detail != "" {
			desc.Add(text.New(item.Detail, props.Text{Size: 7, Top: 4}))
			height = 12
		}
		m.AddRow(height,
			desc,
			text.NewCol(2, item.Quantity, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(2, line.NewCol(12))

	for _, total := range doc.Totals {
		style := fontstyle.Normal
		if total.Label == doc.Emphasized {
			style = fontstyle.Bold
		}
		m.AddRow(7,
			col.New(7),
			text.NewCol(3, total.Label, props.Text{Size: 9, Style: style}),
			text.NewCol(2, total.Value, props.Text{Size: 9, Style: style, Align: align.Right}),
		)
	}

	for _, note := range doc.Notes {
		if strings.TrimSpace(note.Value) == "" {
			continue
		}
		m.AddRow(6, text.NewCol(12, note.Label, props.Text{Size: 9, Style: fontstyle.Bold, Top: 2}))
		m.AddRow(12, text.NewCol(12, note.Value, props.Text{Size: 8}))
	}

	if doc.Footer != "" {
		m.AddRow(20, text.NewCol(12, doc.Footer, props.Text{Size: 8, Top: 5}))
	}

	out, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return out.GetBytes(), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
