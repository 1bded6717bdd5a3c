package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// inspectOpts holds the command-line flags for the inspect command.
type inspectOpts struct {
	width  int // validate against this frame width (0 = skip)
	height int // validate against this frame height (0 = skip)
	dir    string
	sf     storeFlags
}

// inspectCommand creates the inspect command. It reads the stored metadata
// for an atlas and prints the corrected frame table.
func (c *CLI) inspectCommand() *cobra.Command {
	opts := inspectOpts{}

	cmd := &cobra.Command{
		Use:   "inspect <atlas-name>",
		Short: "Show the stored frame table for an atlas",
		Long: `Inspect reads persisted atlas metadata from the configured store and
prints the frame keys with their corrected center-relative offsets. Pass
--width and --height to additionally run the reuse validation a build
would perform.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withLogger(cmd.Context(), c.Logger)
			return c.runInspect(ctx, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.width, "width", 0, "validate against this frame width")
	cmd.Flags().IntVar(&opts.height, "height", 0, "validate against this frame height")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "atlas directory (default: ~/.cache/maskatlas)")
	opts.sf.register(cmd)

	return cmd
}

// runInspect reads and prints the metadata stored under name.
func (c *CLI) runInspect(ctx context.Context, name string, o inspectOpts) error {
	cfg, err := loadDefaultConfig()
	if err != nil {
		return err
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

	meta, ok, err := st.Read(ctx, name, o.width, o.height)
	if err != nil {
		return err
	}
	if !ok {
		printWarning("No usable metadata for %s", name)
		if o.width > 0 || o.height > 0 {
			printDetail("Stored metadata exists but fails validation for %dx%d frames, or none is stored", o.width, o.height)
		}
		return nil
	}

	fmt.Println(StyleTitle.Render(name))
	printKeyValue("Dimensions", fmt.Sprintf("%d x %d px", meta.XDim, meta.YDim))
	printKeyValue("Frames", fmt.Sprintf("%d", len(meta.Frames)/3))
	printNewline()

	frames := meta.FrameMap()
	keys := make([]int, 0, len(frames))
	for k := range frames {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	fmt.Println("  " + StyleDim.Render(fmt.Sprintf("%6s %8s %8s", "key", "x", "y")))
	for _, k := range keys {
		off := frames[k]
		fmt.Println("  " + StyleNumber.Render(fmt.Sprintf("%6d", k)) +
			StyleValue.Render(fmt.Sprintf(" %8d %8d", off.X, off.Y)))
	}

	return nil
}
