package render

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/yungbote/hci-study-backend/internal/modules/comic/bundle"
	"github.com/yungbote/hci-study-backend/internal/modules/comic/compile"
)

// PreviewBackend draws the 2x2 layout locally: slot labels, panel actions
// and the assistant orb at its slot. It needs no network access.
type PreviewBackend struct {
	Size     int
	FontSize float64

	once sync.Once
	face font.Face
	err  error
}

func (p *PreviewBackend) Name() string { return "preview" }

func (p *PreviewBackend) fontFace() (font.Face, error) {
	p.once.Do(func() {
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			p.err = fmt.Errorf("parse font: %w", err)
			return
		}
		size := p.FontSize
		if size <= 0 {
			size = 16
		}
		p.face = truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone})
	})
	return p.face, p.err
}

func (p *PreviewBackend) Render(ctx context.Context, job Job) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	face, err := p.fontFace()
	if err != nil {
		return nil, err
	}
	size := p.Size
	if size <= 0 {
		size = 1024
	}
	const gutter = 8.0
	cell := (float64(size) - 3*gutter) / 2

	dc := gg.NewContext(size, size)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetFontFace(face)
	_, lineH := dc.MeasureString("Mg")

	panels := job.Bundle.Activity.Panels()
	for i, slot := range compile.Slots {
		x := gutter + float64(i%2)*(cell+gutter)
		y := gutter + float64(i/2)*(cell+gutter)

		dc.SetColor(color.Black)
		dc.SetLineWidth(2)
		dc.DrawRectangle(x, y, cell, cell)
		dc.Stroke()

		dc.DrawStringAnchored(slot, x+10, y+10+lineH, 0, 0)

		if i >= len(panels) {
			continue
		}
		action := strings.TrimSpace(bundle.Text(panels[i]["action"]))
		if action != "" {
			dc.SetColor(color.RGBA{R: 60, G: 60, B: 60, A: 255})
			dc.DrawStringWrapped(action, x+10, y+20+2*lineH, 0, 0, cell-20, 1.3, gg.AlignLeft)
		}
		drawOrb(dc, x+cell-cell/6, y+cell-cell/6, cell/12)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// drawOrb draws the assistant: a blue disc with two eyes and a smile.
func drawOrb(dc *gg.Context, cx, cy, r float64) {
	dc.SetColor(color.RGBA{R: 70, G: 140, B: 235, A: 255})
	dc.DrawCircle(cx, cy, r)
	dc.Fill()

	dc.SetColor(color.RGBA{R: 20, G: 20, B: 40, A: 255})
	dc.DrawCircle(cx-r/3, cy-r/4, r/8)
	dc.DrawCircle(cx+r/3, cy-r/4, r/8)
	dc.Fill()

	dc.SetLineWidth(r / 10)
	dc.DrawArc(cx, cy, r/2, gg.Radians(20), gg.Radians(160))
	dc.Stroke()
}
