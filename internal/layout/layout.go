// Package layout computes print geometry for sticker sheets. All functions are
// pure: identical inputs produce bit-identical outputs and no state is shared
// between calls, so they are safe for concurrent use.
//
// Coordinates are page units (PDF points) with the origin at the top-left
// corner of the page, matching the PDF drawing layer.
package layout

import (
	"errors"
	"fmt"
)

const (
	// PointsPerCm converts centimetres to page units.
	PointsPerCm = 28.35

	// A4Width and A4Height are the A4 page dimensions in page units.
	A4Width  = 595.28
	A4Height = 841.89

	// DefaultMargin is the page margin used for grid sheets.
	DefaultMargin = 50.0

	// StickerWidthCm and StickerHeightCm are the physical size of a single sticker.
	StickerWidthCm  = 5.0
	StickerHeightCm = 8.0

	// CutMarkOffset is the gap between a sticker edge and the start of its cut marks.
	CutMarkOffset = 6.0
	// CutMarkLength is the length of each cut mark segment.
	CutMarkLength = 12.0
)

// ErrInvalidGrid is returned when a grid cannot be laid out on the page.
var ErrInvalidGrid = errors.New("invalid grid")

// Rect is an axis-aligned rectangle.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns W*H.
func (r Rect) Area() float64 { return r.W * r.H }

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Segment is a straight line from (X1,Y1) to (X2,Y2).
type Segment struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Corner identifies a rectangle corner.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomRight
	BottomLeft
)

// CutMark is the pair of short segments drawn outside one sticker corner:
// Horizontal extends the top or bottom edge, Vertical extends the left or
// right edge.
type CutMark struct {
	Corner     Corner  `json:"corner"`
	Horizontal Segment `json:"horizontal"`
	Vertical   Segment `json:"vertical"`
}

// Placement is a single sticker centered on a page together with its cut marks.
type Placement struct {
	Sticker  Rect       `json:"sticker"`
	CutMarks [4]CutMark `json:"cut_marks"`
}

// Grid divides the printable area of the page, (pageW-2*margin) by
// (pageH-2*margin), into rows*cols equal cells with zero gap. Cells are
// returned row-major: row 0 left to right, then row 1, and so on.
//
// Cell edges are computed from shared boundaries, so neighbouring cells
// touch exactly and the outermost edges coincide with the printable area.
func Grid(pageW, pageH, margin float64, rows, cols int) ([]Rect, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: rows=%d cols=%d", ErrInvalidGrid, rows, cols)
	}
	printW := pageW - 2*margin
	printH := pageH - 2*margin
	if printW <= 0 || printH <= 0 {
		return nil, fmt.Errorf("%w: printable area %.2fx%.2f", ErrInvalidGrid, printW, printH)
	}

	xs := boundaries(margin, printW, cols)
	ys := boundaries(margin, printH, rows)

	cells := make([]Rect, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cells = append(cells, Rect{
				X: xs[c],
				Y: ys[r],
				W: xs[c+1] - xs[c],
				H: ys[r+1] - ys[r],
			})
		}
	}
	return cells, nil
}

// boundaries returns n+1 cut positions splitting [start, start+length] into n
// equal parts. The last position is pinned to start+length.
func boundaries(start, length float64, n int) []float64 {
	b := make([]float64, n+1)
	step := length / float64(n)
	for i := 0; i < n; i++ {
		b[i] = start + float64(i)*step
	}
	b[n] = start + length
	return b
}

// Single centers one sticker of the given physical size (centimetres) on the
// page and computes cut marks just outside its four corners.
func Single(pageW, pageH, widthCm, heightCm float64) Placement {
	w := widthCm * PointsPerCm
	h := heightCm * PointsPerCm
	r := Rect{
		X: (pageW - w) / 2,
		Y: (pageH - h) / 2,
		W: w,
		H: h,
	}
	return Placement{Sticker: r, CutMarks: cutMarks(r)}
}

func cutMarks(r Rect) [4]CutMark {
	const o, l = CutMarkOffset, CutMarkLength
	left, top, right, bottom := r.X, r.Y, r.Right(), r.Bottom()

	return [4]CutMark{
		{
			Corner:     TopLeft,
			Horizontal: Segment{X1: left - o - l, Y1: top, X2: left - o, Y2: top},
			Vertical:   Segment{X1: left, Y1: top - o - l, X2: left, Y2: top - o},
		},
		{
			Corner:     TopRight,
			Horizontal: Segment{X1: right + o, Y1: top, X2: right + o + l, Y2: top},
			Vertical:   Segment{X1: right, Y1: top - o - l, X2: right, Y2: top - o},
		},
		{
			Corner:     BottomRight,
			Horizontal: Segment{X1: right + o, Y1: bottom, X2: right + o + l, Y2: bottom},
			Vertical:   Segment{X1: right, Y1: bottom + o, X2: right, Y2: bottom + o + l},
		},
		{
			Corner:     BottomLeft,
			Horizontal: Segment{X1: left - o - l, Y1: bottom, X2: left - o, Y2: bottom},
			Vertical:   Segment{X1: left, Y1: bottom + o, X2: left, Y2: bottom + o + l},
		},
	}
}
