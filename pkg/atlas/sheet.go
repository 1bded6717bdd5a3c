// Package atlas builds and reuses packed mask atlases: single images holding
// many small rectangular mask frames, plus metadata describing where each
// frame sits and how to position it against an arbitrary object.
//
// A Sheet is a small state machine. A fresh sheet starts Building: AddFrame
// places cells on a padded grid and composites captured pixel content into
// the in-progress image, and Commit freezes the sheet, corrects the recorded
// placements into center-relative offsets, and persists image and metadata
// together. When a matching atlas already exists, the sheet starts Loaded
// instead and is read-only from birth. Either way the terminal states only
// serve lookups: Set applies a frame as a stencil mask on a target.
//
// Sheets are single-writer: no two builders may target the same atlas
// filename at once. A Committed or Loaded sheet is immutable and safe for
// concurrent readers.
package atlas

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	xdraw "golang.org/x/image/draw"

	"github.com/matzehuels/maskatlas/pkg/capture"
	"github.com/matzehuels/maskatlas/pkg/errors"
	"github.com/matzehuels/maskatlas/pkg/fsutil"
	"github.com/matzehuels/maskatlas/pkg/store"
)

// state tags the sheet's lifecycle phase. Operations pattern-match on the
// tag; there is exactly one mutable phase.
type state int

const (
	stateBuilding state = iota
	stateCommitted
	stateLoaded
)

// String returns the state name for log and error messages.
func (s state) String() string {
	switch s {
	case stateBuilding:
		return "building"
	case stateCommitted:
		return "committed"
	case stateLoaded:
		return "loaded"
	}
	return "unknown"
}

// Deps are the sheet's external collaborators.
type Deps struct {
	// Store persists and validates atlas metadata. Defaults to an inline
	// store.
	Store store.Store

	// Renderer captures pixel content for frame cells. Required unless the
	// sheet is DataOnly.
	Renderer capture.Renderer

	// Logger receives build progress. Defaults to log.Default().
	Logger *log.Logger
}

// Sheet is the atlas façade: either an incremental builder or a read-only
// view of an already-built atlas, depending on what the constructor found.
type Sheet struct {
	opts   Options
	frameW int
	frameH int
	name   string
	path   string

	st       state
	dataOnly bool

	plan   Plan
	cur    Cursor
	placed int
	reg    *Registry

	img      *image.Gray
	strategy *capture.Strategy
	trash    *capture.Trash

	store store.Store
	log   *log.Logger

	meta   *store.Metadata
	frames map[int]store.Offset
}

// New constructs a sheet for the given options.
//
// If a matching atlas image exists and Recreate is not forced, its metadata
// is read through the store and validated against the requested frame
// dimensions; on success the sheet is Loaded and read-only. A stale atlas
// that fails validation is deleted and rebuilt, unless it lives in a
// read-only resource location, which is fatal.
func New(ctx context.Context, opts Options, deps Deps) (*Sheet, error) {
	frameW, frameH, err := opts.frameSize()
	if err != nil {
		return nil, err
	}
	name, err := opts.Filename()
	if err != nil {
		return nil, err
	}
	path, err := fsutil.ResolvePath(name, opts.Dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve atlas path for %q", name)
	}

	s := &Sheet{
		opts:     opts,
		frameW:   frameW,
		frameH:   frameH,
		name:     name,
		path:     path,
		dataOnly: opts.DataOnly,
		store:    deps.Store,
		log:      deps.Logger,
	}
	if s.store == nil {
		s.store = store.NewInlineStore()
	}
	if s.log == nil {
		s.log = log.Default()
	}

	if fsutil.Exists(name, opts.Dir) && !opts.Recreate {
		meta, ok, err := s.store.Read(ctx, name, frameW, frameH)
		if err != nil {
			return nil, err
		}
		if ok {
			s.load(meta)
			s.log.Debug("reusing cached atlas", "name", name, "frames", len(s.frames))
			return s, nil
		}

		// The image exists but its metadata is stale or missing. The file
		// cannot back this sheet, so it has to go before rebuilding.
		if opts.ReadOnlyDir {
			return nil, errors.New(errors.ErrCodeReadOnlyDir,
				"stale atlas %q found in read-only location %q", name, opts.Dir)
		}
		if err := fsutil.Remove(path); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStore, err, "remove stale atlas %q", name)
		}
		s.log.Debug("removed stale atlas", "name", name)
	}

	return s, s.beginBuild(deps)
}

// load enters the Loaded state from validated metadata.
func (s *Sheet) load(meta *store.Metadata) {
	s.st = stateLoaded
	s.meta = meta
	s.frames = meta.FrameMap()
}

// beginBuild enters the Building state: plan the grid, allocate the
// in-progress image, wire the capture strategy.
func (s *Sheet) beginBuild(deps Deps) error {
	canvasW, canvasH := s.opts.canvas()
	s.plan = PlanGrid(s.frameW, s.frameH, canvasW, canvasH)
	if s.plan.Capacity() == 0 {
		return errors.New(errors.ErrCodeInvalidFrame,
			"padded %dx%d cell does not fit canvas %dx%d", s.plan.PitchW, s.plan.PitchH, canvasW, canvasH)
	}
	if s.opts.Count > s.plan.Capacity() {
		return errors.New(errors.ErrCodeCapacityExceeded,
			"%d cells requested but grid holds %d", s.opts.Count, s.plan.Capacity())
	}

	s.st = stateBuilding
	s.cur = NewCursor()
	s.reg = NewRegistry()
	s.trash = capture.NewTrash()

	if s.dataOnly {
		s.log.Debug("building atlas metadata", "name", s.name, "capacity", s.plan.Capacity())
		return nil
	}

	if deps.Renderer == nil {
		return errors.New(errors.ErrCodeMissingOption, "renderer is required unless DataOnly is set")
	}
	canvas := image.Rect(0, 0, canvasW, canvasH)
	s.strategy = capture.NewStrategy(deps.Renderer, canvas, s.trash, "")

	// The final dimensions are only known at commit, so the in-progress
	// image is allocated at the full-grid extent and cropped later.
	maxW := NextMult4(s.plan.Cols*s.plan.PitchW + cellPad)
	maxH := NextMult4(s.plan.Rows*s.plan.PitchH + cellPad)
	s.img = image.NewGray(image.Rect(0, 0, maxW, maxH))

	s.log.Debug("building atlas", "name", s.name, "capacity", s.plan.Capacity(),
		"pitch", s.plan.PitchW, "cols", s.plan.Cols, "rows", s.plan.Rows)
	return nil
}

// AddFrame records the next frame under key and, unless the sheet is
// DataOnly, captures content and composites it into the in-progress atlas.
// resume, if non-nil, is invoked if the capture takes the off-screen
// snapshot path (see capture.Strategy).
//
// Calling AddFrame on a sheet that was loaded pre-built, or after Commit,
// or beyond the grid capacity, is a precondition violation.
func (s *Sheet) AddFrame(key int, content capture.Content, resume func()) error {
	if s.st != stateBuilding {
		return errors.New(errors.ErrCodeAlreadyCreated,
			"cannot add frame %d: atlas %q already created (%s)", key, s.name, s.st)
	}
	if s.placed >= s.plan.Capacity() {
		return errors.New(errors.ErrCodeCapacityExceeded,
			"grid capacity %d exhausted", s.plan.Capacity())
	}

	x, y, next := s.cur.Place(s.plan)
	if err := s.reg.Record(key, x, y); err != nil {
		return err
	}

	if !s.dataOnly {
		src, err := s.strategy.Capture(s, content, resume)
		if err != nil {
			return err
		}
		s.composite(src, x, y)
	}

	s.cur = next
	s.placed++
	s.log.Debug("placed frame", "key", key, "x", x, "y", y, "cell", s.placed)
	return nil
}

// composite draws captured content into the cell at (x, y), scaling when the
// source does not match the frame size.
func (s *Sheet) composite(src image.Image, x, y int) {
	dst := image.Rect(x, y, x+s.frameW, y+s.frameH)
	sb := src.Bounds()
	if sb.Dx() == s.frameW && sb.Dy() == s.frameH {
		xdraw.Draw(s.img, dst, src, sb.Min, xdraw.Src)
		return
	}
	xdraw.ApproxBiLinear.Scale(s.img, dst, src, sb, xdraw.Src, nil)
}

// Commit finalizes the atlas: dimensions are fixed from the cursor, the
// registry is corrected against them, image and metadata are persisted
// together, and build-time temporaries are released. The sheet then behaves
// like a Loaded one.
func (s *Sheet) Commit(ctx context.Context) error {
	if s.st != stateBuilding {
		return errors.New(errors.ErrCodeAlreadyCreated, "atlas %q already created (%s)", s.name, s.st)
	}
	if s.placed == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "cannot commit an empty atlas")
	}

	xdim, ydim := s.cur.Dims(s.plan)
	if err := s.reg.Correct(xdim, ydim, s.frameW, s.frameH); err != nil {
		return err
	}
	meta, err := s.reg.Metadata()
	if err != nil {
		return err
	}

	if !s.dataOnly {
		if err := s.writeImage(xdim, ydim); err != nil {
			return err
		}
	}
	if err := s.store.Write(ctx, meta, s.name); err != nil {
		return err
	}

	// Snapshot files and instantiated images from the capture fallback are
	// baked into the atlas now; tear them down.
	if err := s.trash.Release(s); err != nil {
		s.log.Warn("releasing build temporaries", "err", err)
	}
	s.img = nil
	s.strategy = nil

	s.st = stateCommitted
	s.meta = meta
	s.frames = meta.FrameMap()
	s.log.Info("committed atlas", "name", s.name, "frames", s.placed, "xdim", xdim, "ydim", ydim)
	return nil
}

// writeImage crops the in-progress image to the final dimensions and writes
// the atlas PNG. The border background stays black: black is masked out, so
// the padding between frames masks by default.
func (s *Sheet) writeImage(xdim, ydim int) error {
	final := image.NewGray(image.Rect(0, 0, xdim, ydim))
	xdraw.Draw(final, final.Bounds(), s.img, image.Point{}, xdraw.Src)

	if err := fsutil.EnsureDir(filepath.Dir(s.path)); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "create atlas dir")
	}
	f, err := os.Create(s.path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "create atlas image %q", s.path)
	}
	defer f.Close()
	if err := png.Encode(f, final); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "encode atlas image %q", s.path)
	}
	return nil
}

// Set applies frame key to target. Valid only once Committed or Loaded.
//
// The designated clear key hides the target entirely with no mask lookup;
// the designated full key shows it with any mask removed. Every other key
// stencils the target with the frame's corrected offset and the sheet's
// scale factors.
func (s *Sheet) Set(target Target, key int) error {
	if s.st == stateBuilding {
		return errors.New(errors.ErrCodeNotCommitted, "atlas %q not committed yet", s.name)
	}

	if s.opts.ClearKey != 0 && key == s.opts.ClearKey {
		target.SetVisible(false)
		return nil
	}
	if s.opts.FullKey != 0 && key == s.opts.FullKey {
		target.SetVisible(true)
		target.ClearMask()
		return nil
	}

	off, ok := s.frames[key]
	if !ok {
		return errors.New(errors.ErrCodeUnknownFrame, "atlas %q has no frame %d", s.name, key)
	}

	xs, ys := s.Scales()
	target.SetVisible(true)
	target.ApplyMask(Mask{
		Atlas:  s.path,
		X:      off.X,
		Y:      off.Y,
		XScale: xs,
		YScale: ys,
	})
	return nil
}

// Scales returns the sheet's scale factors: requested frame dimensions over
// stored atlas dimensions. Zero until Committed or Loaded.
func (s *Sheet) Scales() (xscale, yscale float64) {
	if s.meta == nil || s.meta.XDim == 0 || s.meta.YDim == 0 {
		return 0, 0
	}
	return float64(s.frameW) / float64(s.meta.XDim), float64(s.frameH) / float64(s.meta.YDim)
}

// Name returns the deterministic atlas filename.
func (s *Sheet) Name() string { return s.name }

// Path returns the resolved atlas image path.
func (s *Sheet) Path() string { return s.path }

// Loaded reports whether the sheet reused an existing atlas.
func (s *Sheet) Loaded() bool { return s.st == stateLoaded }

// Committed reports whether the sheet has been frozen (built or loaded).
func (s *Sheet) Committed() bool { return s.st != stateBuilding }

// Capacity returns the grid capacity while Building, or 0 once frozen.
func (s *Sheet) Capacity() int {
	if s.st != stateBuilding {
		return 0
	}
	return s.plan.Capacity()
}

// Placed returns the number of frames added so far.
func (s *Sheet) Placed() int {
	if s.meta != nil {
		return len(s.meta.Frames) / 3
	}
	return s.placed
}

// Metadata returns the committed metadata, or nil while Building.
func (s *Sheet) Metadata() *store.Metadata { return s.meta }

// Frames returns the corrected key → offset mapping, or nil while Building.
func (s *Sheet) Frames() map[int]store.Offset { return s.frames }
