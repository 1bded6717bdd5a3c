package atlas

import (
	"fmt"

	"github.com/matzehuels/maskatlas/pkg/errors"
)

// Default canvas bound for packing. Kept conservative so atlases stay within
// texture limits of the weakest renderer backends.
const (
	defaultCanvasW = 1024
	defaultCanvasH = 1024
)

// Options configure one atlas sheet. The frame shape is given either
// explicitly (FrameWidth x FrameHeight) or as a pixels-per-cell and
// cell-count pair (Pixels, Count, square frames); one of the two is
// required.
type Options struct {
	// FrameWidth and FrameHeight give the per-frame pixel size explicitly.
	FrameWidth  int
	FrameHeight int

	// Pixels and Count describe the shape as pixels-per-cell x cell-count.
	// Used when FrameWidth/FrameHeight are zero; frames are Pixels square
	// and the grid must hold at least Count cells.
	Pixels int
	Count  int

	// ID distinguishes atlases that share identical shape parameters.
	ID int

	// Dir is the atlas directory. Empty means the default atlas directory.
	Dir string

	// ReadOnlyDir marks Dir as a protected resource location. A stale atlas
	// found there cannot be deleted, which makes reuse failure fatal.
	ReadOnlyDir bool

	// Recreate forces a rebuild even when a valid cached atlas exists.
	Recreate bool

	// DataOnly skips all pixel work: the sheet builds and persists metadata
	// before any atlas image exists.
	DataOnly bool

	// ClearKey designates the frame key that hides the target entirely with
	// no mask applied. FullKey designates the key that shows the target
	// unmasked. Zero disables either; designated keys must be non-zero.
	ClearKey int
	FullKey  int

	// CanvasWidth and CanvasHeight bound the packing canvas.
	// Defaults: 1024 x 1024.
	CanvasWidth  int
	CanvasHeight int
}

// frameSize resolves the per-frame dimensions from either option form.
func (o Options) frameSize() (w, h int, err error) {
	switch {
	case o.FrameWidth > 0 || o.FrameHeight > 0:
		w, h = o.FrameWidth, o.FrameHeight
	case o.Pixels > 0:
		w, h = o.Pixels, o.Pixels
	default:
		return 0, 0, errors.New(errors.ErrCodeMissingOption,
			"frame shape required: set FrameWidth/FrameHeight or Pixels")
	}
	if err := errors.ValidateFrameSize(w, h); err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

// canvas resolves the canvas bounds.
func (o Options) canvas() (w, h int) {
	w, h = o.CanvasWidth, o.CanvasHeight
	if w <= 0 {
		w = defaultCanvasW
	}
	if h <= 0 {
		h = defaultCanvasH
	}
	return w, h
}

// Filename derives the deterministic atlas filename from the shape options,
// so a second request with identical parameters resolves to the same file
// without re-specifying it. The name encodes either the explicit per-frame
// size or the pixels-per-cell x cell-count pair, plus the optional id.
func (o Options) Filename() (string, error) {
	var name string
	switch {
	case o.FrameWidth > 0 || o.FrameHeight > 0:
		name = fmt.Sprintf("mask-%dx%d", o.FrameWidth, o.FrameHeight)
	case o.Pixels > 0:
		name = fmt.Sprintf("mask-%dp%dc", o.Pixels, o.Count)
	default:
		return "", errors.New(errors.ErrCodeMissingOption,
			"frame shape required: set FrameWidth/FrameHeight or Pixels")
	}
	if o.ID != 0 {
		name = fmt.Sprintf("%s-%d", name, o.ID)
	}
	name += ".png"
	if err := errors.ValidateAtlasName(name); err != nil {
		return "", err
	}
	return name, nil
}
