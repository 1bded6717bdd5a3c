package atlas

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/maskatlas/pkg/capture"
	"github.com/matzehuels/maskatlas/pkg/errors"
	"github.com/matzehuels/maskatlas/pkg/store"
)

// fakeTarget records what Set did to it.
type fakeTarget struct {
	visible bool
	mask    *Mask
	cleared bool
}

func (t *fakeTarget) SetVisible(v bool) { t.visible = v }
func (t *fakeTarget) ApplyMask(m Mask)  { t.mask = &m }
func (t *fakeTarget) ClearMask()        { t.mask = nil; t.cleared = true }

// writeFramePNG writes a w x h grayscale frame image filled with value v.
func writeFramePNG(t *testing.T, dir, name string, w, h int, v uint8) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

// buildDeps wires a file renderer and an inline store around a set of
// 64x64 frame sources.
func buildDeps(t *testing.T, frames int) (Deps, []*capture.FileGroup) {
	t.Helper()
	srcDir := t.TempDir()
	renderer := capture.NewFileRenderer(image.Rect(0, 0, 512, 512))

	groups := make([]*capture.FileGroup, frames)
	for i := range groups {
		path := writeFramePNG(t, srcDir, fmt.Sprintf("frame%d.png", i+1), 64, 64, uint8(50+i*50))
		g, err := capture.NewFileGroup(path, image.Pt(0, 0))
		if err != nil {
			t.Fatal(err)
		}
		groups[i] = g
	}
	return Deps{Store: store.NewInlineStore(), Renderer: renderer}, groups
}

func TestSheetBuildCommitSet(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	deps, groups := buildDeps(t, 3)

	opts := Options{
		FrameWidth:  64,
		FrameHeight: 64,
		Dir:         dir,
		CanvasWidth: 512, CanvasHeight: 512,
		ClearKey: 100,
		FullKey:  200,
	}

	sheet, err := New(ctx, opts, deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if sheet.Loaded() || sheet.Committed() {
		t.Fatal("fresh sheet is not in the building state")
	}

	for i, g := range groups {
		if err := sheet.AddFrame(i+1, capture.Content{Group: g}, nil); err != nil {
			t.Fatalf("AddFrame(%d) error: %v", i+1, err)
		}
	}

	// Lookups are invalid before commit.
	if err := sheet.Set(&fakeTarget{}, 1); !errors.Is(err, errors.ErrCodeNotCommitted) {
		t.Errorf("Set before Commit error = %v, want NOT_COMMITTED", err)
	}

	if err := sheet.Commit(ctx); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}

	meta := sheet.Metadata()
	if meta.XDim != 216 || meta.YDim != 76 {
		t.Errorf("dims = %dx%d, want 216x76", meta.XDim, meta.YDim)
	}

	// The atlas image was written alongside the metadata.
	f, err := os.Open(sheet.Path())
	if err != nil {
		t.Fatalf("atlas image missing: %v", err)
	}
	img, err := png.Decode(f)
	f.Close()
	if err != nil {
		t.Fatalf("atlas image corrupt: %v", err)
	}
	if img.Bounds().Dx() != 216 || img.Bounds().Dy() != 76 {
		t.Errorf("image dims = %v, want 216x76", img.Bounds())
	}

	// Mutations are fatal after commit.
	if err := sheet.AddFrame(9, capture.Content{Group: groups[0]}, nil); !errors.Is(err, errors.ErrCodeAlreadyCreated) {
		t.Errorf("AddFrame after Commit error = %v, want ALREADY_CREATED", err)
	}
	if err := sheet.Commit(ctx); !errors.Is(err, errors.ErrCodeAlreadyCreated) {
		t.Errorf("second Commit error = %v, want ALREADY_CREATED", err)
	}

	// Clear key hides with no mask work.
	tgt := &fakeTarget{visible: true}
	if err := sheet.Set(tgt, 100); err != nil {
		t.Fatalf("Set(clear) error: %v", err)
	}
	if tgt.visible || tgt.mask != nil {
		t.Error("clear key did not hide the target")
	}

	// Full key shows unmasked.
	tgt = &fakeTarget{}
	if err := sheet.Set(tgt, 200); err != nil {
		t.Fatalf("Set(full) error: %v", err)
	}
	if !tgt.visible || !tgt.cleared {
		t.Error("full key did not clear the mask")
	}

	// A regular key applies offset and scale.
	tgt = &fakeTarget{}
	if err := sheet.Set(tgt, 2); err != nil {
		t.Fatalf("Set(2) error: %v", err)
	}
	if tgt.mask == nil || !tgt.visible {
		t.Fatal("no mask applied")
	}
	// Frame 2 was placed at raw (73, 3): corr = (76-73, 6-3).
	if tgt.mask.X != 3 || tgt.mask.Y != 3 {
		t.Errorf("mask offset = (%d, %d), want (3, 3)", tgt.mask.X, tgt.mask.Y)
	}
	if math.Abs(tgt.mask.XScale-64.0/216.0) > 1e-9 || math.Abs(tgt.mask.YScale-64.0/76.0) > 1e-9 {
		t.Errorf("mask scale = (%v, %v)", tgt.mask.XScale, tgt.mask.YScale)
	}

	// Unknown keys are a precondition violation.
	if err := sheet.Set(&fakeTarget{}, 42); !errors.Is(err, errors.ErrCodeUnknownFrame) {
		t.Errorf("Set(unknown) error = %v, want UNKNOWN_FRAME", err)
	}
}

func TestSheetReuse(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	deps, groups := buildDeps(t, 1)

	opts := Options{FrameWidth: 64, FrameHeight: 64, Dir: dir, CanvasWidth: 512, CanvasHeight: 512}

	first, err := New(ctx, opts, deps)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.AddFrame(1, capture.Content{Group: groups[0]}, nil); err != nil {
		t.Fatal(err)
	}
	if err := first.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	// Same options, same store: the second sheet loads pre-built.
	second, err := New(ctx, opts, deps)
	if err != nil {
		t.Fatalf("New(reuse) error: %v", err)
	}
	if !second.Loaded() {
		t.Fatal("second sheet did not load the cached atlas")
	}
	if second.Placed() != 1 {
		t.Errorf("Placed() = %d, want 1", second.Placed())
	}

	// A loaded sheet has no further capacity.
	err = second.AddFrame(2, capture.Content{Group: groups[0]}, nil)
	if !errors.Is(err, errors.ErrCodeAlreadyCreated) {
		t.Errorf("AddFrame on loaded sheet error = %v, want ALREADY_CREATED", err)
	}

	// Recreate forces a fresh build despite the cached atlas.
	third, err := New(ctx, Options{FrameWidth: 64, FrameHeight: 64, Dir: dir,
		CanvasWidth: 512, CanvasHeight: 512, Recreate: true}, deps)
	if err != nil {
		t.Fatalf("New(recreate) error: %v", err)
	}
	if third.Loaded() {
		t.Error("recreate still loaded the cached atlas")
	}
}

func TestSheetStaleFileDeleted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	deps, _ := buildDeps(t, 1)

	// An atlas image with no usable metadata behind it is stale.
	writeFramePNG(t, dir, "mask-64x64.png", 8, 8, 0)

	opts := Options{FrameWidth: 64, FrameHeight: 64, Dir: dir, CanvasWidth: 512, CanvasHeight: 512}
	sheet, err := New(ctx, opts, deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if sheet.Loaded() {
		t.Fatal("sheet loaded stale data")
	}
	if _, err := os.Stat(filepath.Join(dir, "mask-64x64.png")); !os.IsNotExist(err) {
		t.Error("stale atlas image was not deleted")
	}
}

func TestSheetStaleFileReadOnlyDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	deps, _ := buildDeps(t, 1)

	writeFramePNG(t, dir, "mask-64x64.png", 8, 8, 0)

	opts := Options{FrameWidth: 64, FrameHeight: 64, Dir: dir,
		CanvasWidth: 512, CanvasHeight: 512, ReadOnlyDir: true}
	_, err := New(ctx, opts, deps)
	if !errors.Is(err, errors.ErrCodeReadOnlyDir) {
		t.Errorf("New() error = %v, want READ_ONLY_DIR", err)
	}
}

func TestSheetCapacityBoundary(t *testing.T) {
	ctx := context.Background()

	// frame 10 -> pitch 16; canvas 32x16 -> floor(35/16)=2 cols, 1 row.
	opts := Options{FrameWidth: 10, FrameHeight: 10, Dir: t.TempDir(),
		CanvasWidth: 32, CanvasHeight: 16, DataOnly: true}
	sheet, err := New(ctx, opts, Deps{Store: store.NewInlineStore()})
	if err != nil {
		t.Fatal(err)
	}
	if sheet.Capacity() != 2 {
		t.Fatalf("Capacity() = %d, want 2", sheet.Capacity())
	}

	// The capacity-th AddFrame succeeds; the one after fails fatally.
	for key := 1; key <= 2; key++ {
		if err := sheet.AddFrame(key, capture.Content{}, nil); err != nil {
			t.Fatalf("AddFrame(%d) error: %v", key, err)
		}
	}
	err = sheet.AddFrame(3, capture.Content{}, nil)
	if !errors.Is(err, errors.ErrCodeCapacityExceeded) {
		t.Errorf("AddFrame beyond capacity error = %v, want CAPACITY_EXCEEDED", err)
	}
}

func TestSheetRowWrap(t *testing.T) {
	ctx := context.Background()

	// 7 columns at 512: the 8th frame must wrap to a second row and the
	// build still succeeds.
	opts := Options{FrameWidth: 64, FrameHeight: 64, Dir: t.TempDir(),
		CanvasWidth: 512, CanvasHeight: 512, DataOnly: true}
	sheet, err := New(ctx, opts, Deps{Store: store.NewInlineStore()})
	if err != nil {
		t.Fatal(err)
	}

	for key := 1; key <= 8; key++ {
		if err := sheet.AddFrame(key, capture.Content{}, nil); err != nil {
			t.Fatalf("AddFrame(%d) error: %v", key, err)
		}
	}
	if err := sheet.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	frames := sheet.Frames()
	// Frames 1 and 8 share a column but sit in different rows: same
	// corrected X, different corrected Y.
	if frames[1].X != frames[8].X {
		t.Errorf("frames 1 and 8 X = %d vs %d, want equal", frames[1].X, frames[8].X)
	}
	if frames[1].Y == frames[8].Y {
		t.Error("frames 1 and 8 share a row after wrapping")
	}
}

func TestSheetDataOnly(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	opts := Options{Pixels: 32, Count: 4, Dir: dir, DataOnly: true}
	sheet, err := New(ctx, opts, Deps{Store: store.NewInlineStore()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	for key := 1; key <= 4; key++ {
		if err := sheet.AddFrame(key, capture.Content{}, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := sheet.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	// Metadata exists; no image was written.
	if sheet.Metadata() == nil {
		t.Fatal("no metadata after data-only commit")
	}
	if _, err := os.Stat(sheet.Path()); !os.IsNotExist(err) {
		t.Error("data-only build wrote an atlas image")
	}
}

func TestSheetCommitEmpty(t *testing.T) {
	ctx := context.Background()
	opts := Options{FrameWidth: 16, FrameHeight: 16, Dir: t.TempDir(), DataOnly: true}
	sheet, err := New(ctx, opts, Deps{Store: store.NewInlineStore()})
	if err != nil {
		t.Fatal(err)
	}
	if err := sheet.Commit(ctx); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Commit(empty) error = %v, want INVALID_INPUT", err)
	}
}

func TestSheetRequiresRenderer(t *testing.T) {
	opts := Options{FrameWidth: 16, FrameHeight: 16, Dir: t.TempDir()}
	_, err := New(context.Background(), opts, Deps{Store: store.NewInlineStore()})
	if !errors.Is(err, errors.ErrCodeMissingOption) {
		t.Errorf("New without renderer error = %v, want MISSING_OPTION", err)
	}
}

func TestSheetCountExceedsCapacity(t *testing.T) {
	opts := Options{Pixels: 64, Count: 1000, Dir: t.TempDir(), DataOnly: true,
		CanvasWidth: 256, CanvasHeight: 256}
	_, err := New(context.Background(), opts, Deps{Store: store.NewInlineStore()})
	if !errors.Is(err, errors.ErrCodeCapacityExceeded) {
		t.Errorf("New() error = %v, want CAPACITY_EXCEEDED", err)
	}
}

func TestOptionsFilename(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"explicit size", Options{FrameWidth: 64, FrameHeight: 32}, "mask-64x32.png"},
		{"explicit with id", Options{FrameWidth: 64, FrameHeight: 64, ID: 3}, "mask-64x64-3.png"},
		{"pixels and count", Options{Pixels: 32, Count: 8}, "mask-32p8c.png"},
		{"pixels with id", Options{Pixels: 32, Count: 8, ID: 1}, "mask-32p8c-1.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.Filename()
			if err != nil {
				t.Fatalf("Filename() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Filename() = %q, want %q", got, tt.want)
			}

			// Identical shape parameters always resolve to the same file.
			again, _ := tt.opts.Filename()
			if again != got {
				t.Error("Filename() not deterministic")
			}
		})
	}
}

func TestOptionsMissingShape(t *testing.T) {
	_, err := New(context.Background(), Options{Dir: t.TempDir()}, Deps{})
	if !errors.Is(err, errors.ErrCodeMissingOption) {
		t.Errorf("New(no shape) error = %v, want MISSING_OPTION", err)
	}
}
