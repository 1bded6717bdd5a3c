package cli

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/maskatlas/pkg/atlas"
	"github.com/matzehuels/maskatlas/pkg/capture"
)

// buildOpts holds the command-line flags for the build command.
type buildOpts struct {
	width    int  // per-frame width in pixels (0 = probe first frame)
	height   int  // per-frame height in pixels (0 = probe first frame)
	pixels   int  // square frame size as pixels-per-cell (alternative shape form)
	id       int  // atlas ID to distinguish same-shaped atlases
	dir      string
	canvasW  int
	canvasH  int
	dataOnly bool // persist metadata without writing the atlas image
	recreate bool // rebuild even when a valid cached atlas exists
	sf       storeFlags
}

// buildCommand creates the build command. It packs a directory of PNG frames
// (keyed 1..n in name order) or a TOML manifest of key/file pairs into one
// atlas sheet, then persists the frame metadata.
func (c *CLI) buildCommand() *cobra.Command {
	opts := buildOpts{canvasW: 1024, canvasH: 1024}

	cmd := &cobra.Command{
		Use:   "build <frames-dir|manifest.toml>",
		Short: "Pack frame images into an atlas sheet",
		Long: `Build packs individual mask frames into a single grid-aligned atlas image
and persists the corrected frame offsets through the configured metadata
store. The frame source is either a directory of PNG files (keyed 1..n in
name order) or a TOML manifest mapping explicit keys to files.

If a matching atlas already exists and its stored metadata validates against
the requested frame shape, the build is skipped and the cached atlas is
reused. Use --recreate to force a rebuild.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withLogger(cmd.Context(), c.Logger)
			return c.runBuild(ctx, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.width, "width", 0, "frame width in pixels (default: probe first frame)")
	cmd.Flags().IntVar(&opts.height, "height", 0, "frame height in pixels (default: probe first frame)")
	cmd.Flags().IntVar(&opts.pixels, "pixels", 0, "square frame size (alternative to --width/--height)")
	cmd.Flags().IntVar(&opts.id, "id", 0, "atlas ID to distinguish same-shaped atlases")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "atlas directory (default: ~/.cache/maskatlas)")
	cmd.Flags().IntVar(&opts.canvasW, "canvas-width", 1024, "packing canvas width")
	cmd.Flags().IntVar(&opts.canvasH, "canvas-height", 1024, "packing canvas height")
	cmd.Flags().BoolVar(&opts.dataOnly, "data-only", false, "persist metadata without writing the atlas image")
	cmd.Flags().BoolVar(&opts.recreate, "recreate", false, "rebuild even when a cached atlas exists")
	opts.sf.register(cmd)

	return cmd
}

// runBuild executes the build: resolve frames, open the store, pack, commit.
func (c *CLI) runBuild(ctx context.Context, src string, o buildOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	cfg, err := loadDefaultConfig()
	if err != nil {
		return err
	}

	man, err := loadFrames(src)
	if err != nil {
		return err
	}
	logger.Debugf("Loaded %d frames from %s", len(man.Frames), src)

	width, height := o.width, o.height
	if width == 0 && height == 0 && o.pixels == 0 {
		width, height, err = probeFrameSize(man.Frames[0].File)
		if err != nil {
			return err
		}
		logger.Debugf("Probed frame size %dx%d from %s", width, height, man.Frames[0].File)
	}

	dir := o.dir
	if dir == "" {
		dir = cfg.Dir
	}

	st, err := c.newStore(ctx, cfg, o.sf, dir)
	if err != nil {
		return err
	}
	defer st.Close()

	renderer := capture.NewFileRenderer(image.Rect(0, 0, o.canvasW, o.canvasH))

	sheet, err := atlas.New(ctx, atlas.Options{
		FrameWidth:   width,
		FrameHeight:  height,
		Pixels:       o.pixels,
		Count:        len(man.Frames),
		ID:           o.id,
		Dir:          dir,
		Recreate:     o.recreate,
		DataOnly:     o.dataOnly,
		ClearKey:     man.ClearKey,
		FullKey:      man.FullKey,
		CanvasWidth:  o.canvasW,
		CanvasHeight: o.canvasH,
	}, atlas.Deps{Store: st, Renderer: renderer, Logger: logger})
	if err != nil {
		return err
	}

	if sheet.Loaded() {
		printInfo("Atlas %s already built", StyleHighlight.Render(sheet.Name()))
		meta := sheet.Metadata()
		printSheetStats(len(sheet.Frames()), meta.XDim, meta.YDim, true)
		printFile(sheet.Path())
		return nil
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Packing %d frames...", len(man.Frames)))
	spinner.Start()

	for _, f := range man.Frames {
		group, err := capture.NewFileGroup(f.File, image.Pt(0, 0))
		if err != nil {
			spinner.StopWithError(fmt.Sprintf("Frame %d: %v", f.Key, err))
			return err
		}
		if err := sheet.AddFrame(f.Key, capture.Content{Group: group}, nil); err != nil {
			spinner.StopWithError(fmt.Sprintf("Frame %d: %v", f.Key, err))
			return err
		}
	}

	if err := sheet.Commit(ctx); err != nil {
		if spinner.Cancelled() {
			spinner.Stop()
			return ctx.Err()
		}
		spinner.StopWithError(fmt.Sprintf("Commit failed: %v", err))
		return err
	}

	spinner.StopWithSuccess(fmt.Sprintf("Built atlas %s", StyleHighlight.Render(sheet.Name())))
	meta := sheet.Metadata()
	printSheetStats(sheet.Placed(), meta.XDim, meta.YDim, false)
	if !o.dataOnly {
		printFile(sheet.Path())
	}
	printNewline()
	printNextStep("Inspect the frame table", fmt.Sprintf("%s inspect %s", appName, sheet.Name()))

	prog.done(fmt.Sprintf("Packed %d frames", sheet.Placed()))
	return nil
}

// probeFrameSize reads the pixel dimensions from a PNG header.
func probeFrameSize(path string) (w, h int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("probe frame size: %w", err)
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("probe frame size %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}
