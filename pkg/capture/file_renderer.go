package capture

import (
	"image"
	"image/png"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"github.com/matzehuels/maskatlas/pkg/errors"
	"github.com/matzehuels/maskatlas/pkg/fsutil"
)

// FileGroup is a Group backed by a pre-rendered PNG on disk. Its bounds are
// the image dimensions placed at a canvas position.
type FileGroup struct {
	Path string
	rect image.Rectangle
}

// NewFileGroup opens path just far enough to learn its dimensions and places
// the group with its top-left corner at the given point.
func NewFileGroup(path string, at image.Point) (*FileGroup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open frame image %q", path)
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderer, err, "decode frame image %q", path)
	}
	return &FileGroup{
		Path: path,
		rect: image.Rect(at.X, at.Y, at.X+cfg.Width, at.Y+cfg.Height),
	}, nil
}

// Bounds returns the group's canvas rectangle.
func (g *FileGroup) Bounds() image.Rectangle { return g.rect }

// Translate moves the group by (dx, dy).
func (g *FileGroup) Translate(dx, dy int) {
	g.rect = g.rect.Add(image.Point{X: dx, Y: dy})
}

// FileRenderer is a renderer/capture service over file-backed groups. It has
// no GPU: "rasterizing" a group means decoding its PNG. The CLI and the test
// suite use it; real engine backends implement Renderer themselves.
type FileRenderer struct {
	canvas image.Rectangle
	groups []*FileGroup
}

// NewFileRenderer creates a renderer whose visible canvas is the given
// rectangle.
func NewFileRenderer(canvas image.Rectangle) *FileRenderer {
	return &FileRenderer{canvas: canvas}
}

// Canvas returns the visible canvas rectangle.
func (r *FileRenderer) Canvas() image.Rectangle { return r.canvas }

// Place puts a group on the renderer's scene so bounded captures can see it.
func (r *FileRenderer) Place(g *FileGroup) {
	r.groups = append(r.groups, g)
}

// decodeGroup loads the pixel content behind a group.
func decodeGroup(g Group) (*FileGroup, image.Image, error) {
	fg, ok := g.(*FileGroup)
	if !ok {
		return nil, nil, errors.New(errors.ErrCodeUnsupported, "file renderer cannot rasterize %T", g)
	}
	f, err := os.Open(fg.Path)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %q", fg.Path)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeRenderer, err, "decode %q", fg.Path)
	}
	return fg, img, nil
}

// CaptureBounds rasterizes exactly the given canvas region: every placed
// group intersecting it is composited in placement order. Pixels are
// re-originated so the region's top-left becomes (0, 0).
func (r *FileRenderer) CaptureBounds(region image.Rectangle) (image.Image, error) {
	out := image.NewGray(image.Rect(0, 0, region.Dx(), region.Dy()))
	for _, g := range r.groups {
		if !g.rect.Overlaps(region) {
			continue
		}
		_, img, err := decodeGroup(g)
		if err != nil {
			return nil, err
		}
		dst := g.rect.Sub(region.Min)
		xdraw.Draw(out, dst, img, img.Bounds().Min, xdraw.Over)
	}
	return out, nil
}

// CaptureGroup rasterizes one whole group.
func (r *FileRenderer) CaptureGroup(g Group) (image.Image, error) {
	_, img, err := decodeGroup(g)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// SnapshotToFile renders g into filename inside dir. Like a real screen
// capture, it refuses content that is not fully on the visible canvas.
func (r *FileRenderer) SnapshotToFile(g Group, filename, dir string) error {
	fg, img, err := decodeGroup(g)
	if err != nil {
		return err
	}
	if !fg.Bounds().In(r.canvas) {
		return errors.New(errors.ErrCodeRenderer, "group at %v is off-screen", fg.Bounds())
	}

	if err := fsutil.EnsureDir(dir); err != nil {
		return errors.Wrap(errors.ErrCodeRenderer, err, "create snapshot dir %q", dir)
	}
	out, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return errors.Wrap(errors.ErrCodeRenderer, err, "create snapshot %q", filename)
	}
	defer out.Close()

	// Snapshots are re-originated: pixel (0,0) is the group's top-left.
	snap := image.NewGray(image.Rect(0, 0, fg.rect.Dx(), fg.rect.Dy()))
	xdraw.Draw(snap, snap.Bounds(), img, img.Bounds().Min, xdraw.Src)
	if err := png.Encode(out, snap); err != nil {
		return errors.Wrap(errors.ErrCodeRenderer, err, "encode snapshot %q", filename)
	}
	return nil
}

// fileSheet is the handle returned by BuildSingleFrameSheet.
type fileSheet struct {
	path  string
	frame image.Rectangle
}

// BuildSingleFrameSheet wraps a snapshot file as a one-frame sheet cropped
// to frame.
func (r *FileRenderer) BuildSingleFrameSheet(filename, dir string, frame image.Rectangle) (SheetHandle, error) {
	path := filepath.Join(dir, filename)
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "sheet source %q", path)
	}
	return &fileSheet{path: path, frame: frame}, nil
}

// InstantiateFromSheet creates a displayable image from the sheet's single
// frame. Only frame index 1 exists.
func (r *FileRenderer) InstantiateFromSheet(parent Group, h SheetHandle, frameIndex int) (DisplayImage, error) {
	sheet, ok := h.(*fileSheet)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported, "unknown sheet handle %T", h)
	}
	if frameIndex != 1 {
		return nil, errors.New(errors.ErrCodeUnknownFrame, "single-frame sheet has no frame %d", frameIndex)
	}

	f, err := os.Open(sheet.path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open sheet %q", sheet.path)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderer, err, "decode sheet %q", sheet.path)
	}

	// Crop to the frame's dimensions; the snapshot is already re-originated.
	crop := image.Rect(0, 0, sheet.frame.Dx(), sheet.frame.Dy())
	out := image.NewGray(crop)
	xdraw.Draw(out, crop, img, img.Bounds().Min, xdraw.Src)

	return &fileImage{img: out}, nil
}

// fileImage is the DisplayImage produced by a FileRenderer.
type fileImage struct {
	img     image.Image
	removed bool
}

// Pixels returns the image content.
func (i *fileImage) Pixels() image.Image { return i.img }

// Remove releases the image. Removing twice is an error: release actions are
// meant to run exactly once.
func (i *fileImage) Remove() error {
	if i.removed {
		return errors.New(errors.ErrCodeInternal, "image already removed")
	}
	i.removed = true
	return nil
}

// Ensure FileRenderer implements Renderer.
var _ Renderer = (*FileRenderer)(nil)
