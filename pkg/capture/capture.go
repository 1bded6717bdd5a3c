// Package capture obtains pixel content for atlas frame cells.
//
// Rasterization itself belongs to a renderer backend; this package only
// decides how to ask for it. Visible content is captured directly. Hidden
// content whose bounds fit the visible canvas is captured as a group.
// Off-screen content is temporarily relocated on-screen, snapshotted to a
// temp file, and re-instantiated from a single-frame sheet, because direct
// capture of off-screen content is unreliable on some renderer backends.
// Temporaries created on that path are registered with a Trash table and
// released exactly once, when the owning object is torn down.
//
// Everything here is synchronous and single-threaded. The only yield point
// is the caller-supplied continuation on the off-screen path, which models a
// cooperative scheduler interleaving long renderer work, not parallelism.
package capture

import (
	"image"
	"os"

	"github.com/matzehuels/maskatlas/pkg/errors"
	"github.com/matzehuels/maskatlas/pkg/fsutil"
)

// Group is a renderable content group: it has bounds in canvas pixel
// coordinates and can be moved.
type Group interface {
	Bounds() image.Rectangle
	Translate(dx, dy int)
}

// SheetHandle is an opaque renderer handle for a single-frame image sheet.
type SheetHandle any

// DisplayImage is a displayable image instantiated from a sheet.
type DisplayImage interface {
	// Pixels returns the image content for compositing.
	Pixels() image.Image

	// Remove releases the displayable object.
	Remove() error
}

// Renderer is the external renderer/capture service boundary.
type Renderer interface {
	// CaptureBounds rasterizes exactly the given canvas region.
	CaptureBounds(region image.Rectangle) (image.Image, error)

	// CaptureGroup rasterizes one whole group, wherever it sits.
	CaptureGroup(g Group) (image.Image, error)

	// SnapshotToFile renders g into filename inside dir.
	SnapshotToFile(g Group, filename, dir string) error

	// BuildSingleFrameSheet wraps a snapshot file as a one-frame sheet
	// cropped to frame.
	BuildSingleFrameSheet(filename, dir string, frame image.Rectangle) (SheetHandle, error)

	// InstantiateFromSheet creates a displayable image from frame frameIndex
	// of the sheet, parented to parent.
	InstantiateFromSheet(parent Group, h SheetHandle, frameIndex int) (DisplayImage, error)
}

// Content describes one cell's source: the group holding it and whether it
// is guaranteed visible on the canvas.
type Content struct {
	Group   Group
	Visible bool
}

// Strategy selects the capture path for each cell.
type Strategy struct {
	renderer Renderer
	canvas   image.Rectangle
	trash    *Trash
	tempDir  string
}

// NewStrategy creates a capture strategy for a renderer whose visible canvas
// is the given rectangle. Temporary snapshots land in tempDir (the system
// temp directory when empty); their cleanup is tracked in trash.
func NewStrategy(r Renderer, canvas image.Rectangle, trash *Trash, tempDir string) *Strategy {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Strategy{renderer: r, canvas: canvas, trash: trash, tempDir: tempDir}
}

// Capture produces the pixel content for one cell.
//
// owner keys the deferred release of any temporaries created on the
// off-screen path; release happens when owner is torn down via Trash.Release.
// resume, if non-nil, is invoked after the snapshot is taken and the content
// restored, before the sheet is instantiated.
func (s *Strategy) Capture(owner any, c Content, resume func()) (image.Image, error) {
	if c.Group == nil {
		return nil, errors.New(errors.ErrCodeMissingOption, "capture content has no group")
	}

	bounds := c.Group.Bounds()

	if c.Visible {
		img, err := s.renderer.CaptureBounds(bounds)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRenderer, err, "capture bounds %v", bounds)
		}
		return img, nil
	}

	if bounds.In(s.canvas) {
		img, err := s.renderer.CaptureGroup(c.Group)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRenderer, err, "capture group at %v", bounds)
		}
		return img, nil
	}

	return s.captureOffscreen(owner, c.Group, bounds, resume)
}

// captureOffscreen relocates g on-screen, snapshots it, restores it, and
// rebuilds the content as a displayable image backed by the snapshot file.
func (s *Strategy) captureOffscreen(owner any, g Group, bounds image.Rectangle, resume func()) (image.Image, error) {
	// Content wider or taller than the canvas cannot be relocated on-screen
	// at all. This is a fatal precondition violation, not a retryable error.
	if bounds.Dx() > s.canvas.Dx() || bounds.Dy() > s.canvas.Dy() {
		return nil, errors.New(errors.ErrCodeContentTooLarge,
			"content %dx%d exceeds visible canvas %dx%d",
			bounds.Dx(), bounds.Dy(), s.canvas.Dx(), s.canvas.Dy())
	}

	dx := s.canvas.Min.X - bounds.Min.X
	dy := s.canvas.Min.Y - bounds.Min.Y

	g.Translate(dx, dy)
	filename := fsutil.TempName(".png")
	err := s.renderer.SnapshotToFile(g, filename, s.tempDir)
	g.Translate(-dx, -dy)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderer, err, "snapshot to %s", filename)
	}

	if resume != nil {
		resume()
	}

	sheet, err := s.renderer.BuildSingleFrameSheet(filename, s.tempDir, bounds)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderer, err, "build sheet from %s", filename)
	}
	img, err := s.renderer.InstantiateFromSheet(g, sheet, 1)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderer, err, "instantiate from %s", filename)
	}

	snapPath, err := fsutil.ResolvePath(filename, s.tempDir)
	if err != nil {
		snapPath = filename
	}
	s.trash.Register(owner, func() error {
		if err := img.Remove(); err != nil {
			return err
		}
		return fsutil.Remove(snapPath)
	})

	return img.Pixels(), nil
}
