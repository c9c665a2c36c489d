package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxStickerGrid bounds rows and columns of a sticker sheet.
const MaxStickerGrid = 6

// ErrInvalidSticker is returned for malformed sticker layout labels.
var ErrInvalidSticker = errors.New("invalid sticker layout")

// StickerSpec describes how a profile's stickers are printed: a grid of
// Rows x Cols identical stickers on one page. A 1x1 spec prints a single
// centered sticker with cut marks.
type StickerSpec struct {
	Label string `json:"label"`
	Rows  int    `json:"rows"`
	Cols  int    `json:"cols"`
	Count int    `json:"count"`
}

// StickerPresets are the layouts offered in forms.
var StickerPresets = []string{"1x1", "2x2", "2x3", "3x3", "3x4"}

// ParseStickerSpec parses labels of the form "RxC" (e.g. "3x3").
func ParseStickerSpec(label string) (StickerSpec, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	r, c, ok := strings.Cut(label, "x")
	if !ok {
		return StickerSpec{}, fmt.Errorf("%w: %q", ErrInvalidSticker, label)
	}
	rows, err := strconv.Atoi(r)
	if err != nil {
		return StickerSpec{}, fmt.Errorf("%w: %q", ErrInvalidSticker, label)
	}
	cols, err := strconv.Atoi(c)
	if err != nil {
		return StickerSpec{}, fmt.Errorf("%w: %q", ErrInvalidSticker, label)
	}
	spec := StickerSpec{
		Label: fmt.Sprintf("%dx%d", rows, cols),
		Rows:  rows,
		Cols:  cols,
		Count: rows * cols,
	}
	if err := spec.Validate(); err != nil {
		return StickerSpec{}, err
	}
	return spec, nil
}

// Validate checks bounds and that Count and Label agree with Rows and Cols.
func (s StickerSpec) Validate() error {
	if s.Rows < 1 || s.Rows > MaxStickerGrid || s.Cols < 1 || s.Cols > MaxStickerGrid {
		return fmt.Errorf("%w: %dx%d outside 1..%d", ErrInvalidSticker, s.Rows, s.Cols, MaxStickerGrid)
	}
	if s.Count != s.Rows*s.Cols {
		return fmt.Errorf("%w: count %d != %d*%d", ErrInvalidSticker, s.Count, s.Rows, s.Cols)
	}
	if s.Label != fmt.Sprintf("%dx%d", s.Rows, s.Cols) {
		return fmt.Errorf("%w: label %q does not match %dx%d", ErrInvalidSticker, s.Label, s.Rows, s.Cols)
	}
	return nil
}

// IsSingle reports whether the spec prints one sticker per page.
func (s StickerSpec) IsSingle() bool {
	return s.Rows == 1 && s.Cols == 1
}
