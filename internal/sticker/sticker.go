// Package sticker renders QR code stickers for profiles: the PNG served at
// /qr/{uuid} and printable PDF sheets laid out by the layout package.
package sticker

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strings"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/cryams/cryams/internal/layout"
	"github.com/cryams/cryams/internal/model"
)

// QRSize is the edge length in pixels of generated QR images.
const QRSize = 512

// Renderer produces QR codes and sticker sheets pointing at BaseURL.
type Renderer struct {
	baseURL string
}

// NewRenderer returns a Renderer for public profile URLs under baseURL.
func NewRenderer(baseURL string) *Renderer {
	return &Renderer{baseURL: strings.TrimRight(baseURL, "/")}
}

// ProfileURL is the public message page of a profile.
func (r *Renderer) ProfileURL(uuid string) string {
	return r.baseURL + "/" + uuid
}

// QRCode returns a PNG encoding ProfileURL(uuid).
func (r *Renderer) QRCode(uuid string) ([]byte, error) {
	data, err := qrcode.Encode(r.ProfileURL(uuid), qrcode.Medium, QRSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return data, nil
}

// grayQR encodes content as an 8-bit grayscale PNG, which the PDF layer
// embeds without palette handling.
func grayQR(content string) ([]byte, error) {
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	src := q.Image(QRSize)
	gray := image.NewGray(src.Bounds())
	draw.Draw(gray, gray.Bounds(), src, src.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Sheet is the page geometry of a rendered profile.
type Sheet struct {
	Spec     model.StickerSpec
	Stickers []layout.Rect
	CutMarks []layout.CutMark
}

// Plan computes where the stickers of p go on an A4 page. A 1x1 layout is a
// single centered sticker of physical size with cut marks; larger layouts
// tile the printable area.
func Plan(p model.Profile) (Sheet, error) {
	spec := p.Sticker()
	if spec.IsSingle() {
		pl := layout.Single(layout.A4Width, layout.A4Height, layout.StickerWidthCm, layout.StickerHeightCm)
		return Sheet{
			Spec:     spec,
			Stickers: []layout.Rect{pl.Sticker},
			CutMarks: pl.CutMarks[:],
		}, nil
	}

	cells, err := layout.Grid(layout.A4Width, layout.A4Height, layout.DefaultMargin, spec.Rows, spec.Cols)
	if err != nil {
		return Sheet{}, err
	}
	return Sheet{Spec: spec, Stickers: cells}, nil
}

// Render writes the sticker sheet of p as a one-page PDF to w.
func (r *Renderer) Render(w io.Writer, p model.Profile) error {
	sheet, err := Plan(p)
	if err != nil {
		return err
	}
	qr, err := grayQR(r.ProfileURL(p.UUID))
	if err != nil {
		return err
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetTitle("cryAMS sticker "+p.Name, true)
	pdf.SetCreator("cryAMS", false)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	imgOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imgOpts, bytes.NewReader(qr))

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, rect := range sheet.Stickers {
		r.drawSticker(pdf, tr, rect, p)
	}

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	for _, m := range sheet.CutMarks {
		line(pdf, m.Horizontal)
		line(pdf, m.Vertical)
	}

	if len(sheet.Stickers) > 1 {
		// Dashed guides along the shared cell edges.
		pdf.SetDrawColor(170, 170, 170)
		pdf.SetLineWidth(0.3)
		pdf.SetDashPattern([]float64{3, 3}, 0)
		for _, rect := range sheet.Stickers {
			pdf.Rect(rect.X, rect.Y, rect.W, rect.H, "D")
		}
		pdf.SetDashPattern([]float64{}, 0)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	return pdf.Output(w)
}

func line(pdf *gofpdf.Fpdf, s layout.Segment) {
	pdf.Line(s.X1, s.Y1, s.X2, s.Y2)
}

// drawSticker fills one sticker: a heading, the QR code and the URL, all
// scaled to the rectangle.
func (r *Renderer) drawSticker(pdf *gofpdf.Fpdf, tr func(string) string, rect layout.Rect, p model.Profile) {
	pad := math.Min(rect.W, rect.H) * 0.06
	inner := rect.W - 2*pad
	fontSize := clamp(rect.W/11, 5, 16)
	lineH := fontSize * 1.25

	y := rect.Y + pad

	pdf.SetTextColor(0, 117, 117)
	pdf.SetFont("Helvetica", "", fontSize*0.7)
	pdf.SetXY(rect.X+pad, y)
	pdf.CellFormat(inner, lineH*0.8, tr("Anonyme Nachricht an"), "", 0, "C", false, 0, "")
	y += lineH * 0.8

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", fontSize)
	pdf.SetXY(rect.X+pad, y)
	pdf.CellFormat(inner, lineH, tr(fit(pdf, p.Name, inner)), "", 0, "C", false, 0, "")
	y += lineH + pad*0.5

	footer := lineH * 0.8
	side := math.Min(inner, rect.Bottom()-pad-footer-y)
	if side > 0 {
		pdf.ImageOptions("qr", rect.X+(rect.W-side)/2, y, side, side, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, r.ProfileURL(p.UUID))
		y += side
	}

	pdf.SetTextColor(90, 90, 90)
	pdf.SetFont("Helvetica", "", fontSize*0.5)
	pdf.SetXY(rect.X+pad, y)
	pdf.CellFormat(inner, footer, tr(fit(pdf, r.ProfileURL(p.UUID), inner)), "", 0, "C", false, 0, "")
}

// fit shortens s with an ellipsis until it fits width at the current font.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 1 {
		runes = runes[:len(runes)-1]
		if pdf.GetStringWidth(string(runes)+"...") <= width {
			break
		}
	}
	return string(runes) + "..."
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
