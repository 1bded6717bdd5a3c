package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/maskatlas/pkg/fsutil"
)

// atlasCommand creates the atlas directory management command.
func (c *CLI) atlasCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "atlas",
		Short: "Manage the atlas directory",
	}

	cmd.AddCommand(c.atlasClearCommand())
	cmd.AddCommand(c.atlasPathCommand())
	cmd.AddCommand(c.atlasListCommand())

	return cmd
}

// atlasClearCommand creates the "atlas clear" subcommand.
func (c *CLI) atlasClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all built atlas images",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := fsutil.DefaultDir()
			if err != nil {
				return fmt.Errorf("get atlas dir: %w", err)
			}

			if _, err := os.Stat(dir); os.IsNotExist(err) {
				printInfo("Atlas directory is empty")
				return nil
			}

			count := 0
			err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return nil // Skip errors, continue walking
				}
				if path == dir || info.IsDir() {
					return nil
				}
				if err := os.Remove(path); err == nil {
					count++
				}
				return nil
			})
			if err != nil {
				return err
			}

			printSuccess("Cleared %d atlas files", count)
			printDetail("Directory: %s", dir)
			return nil
		},
	}
}

// atlasPathCommand creates the "atlas path" subcommand.
func (c *CLI) atlasPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the atlas directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := fsutil.DefaultDir()
			if err != nil {
				return fmt.Errorf("get atlas dir: %w", err)
			}
			fmt.Println(dir)
			return nil
		},
	}
}

// atlasListCommand creates the "atlas list" subcommand.
func (c *CLI) atlasListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built atlas images",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := fsutil.DefaultDir()
			if err != nil {
				return fmt.Errorf("get atlas dir: %w", err)
			}

			entries, err := os.ReadDir(dir)
			if os.IsNotExist(err) {
				printInfo("No atlases built yet")
				return nil
			}
			if err != nil {
				return err
			}

			count := 0
			for _, e := range entries {
				if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
					continue
				}
				info, err := e.Info()
				if err != nil {
					continue
				}
				fmt.Println("  " + StyleValue.Render(e.Name()) + " " +
					StyleDim.Render(fmt.Sprintf("(%d bytes)", info.Size())))
				count++
			}
			if count == 0 {
				printInfo("No atlases built yet")
			}
			return nil
		},
	}
}
