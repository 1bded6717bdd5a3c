// Package cli implements the maskatlas command-line interface.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/maskatlas/pkg/buildinfo"
	"github.com/matzehuels/maskatlas/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "maskatlas"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "maskatlas",
		Short:        "Maskatlas packs mask frames into shared atlas sheets",
		Long:         `Maskatlas builds grid-packed mask atlases from individual frame images, persists their frame metadata through pluggable stores, and serves atlases and metadata over HTTP.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.atlasCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Store Factory
// =============================================================================

// storeFlags holds the persistence flags shared by commands that touch a
// metadata store. Flag values override the config file; empty strings fall
// through to config defaults.
type storeFlags struct {
	method    string
	table     string
	redisAddr string
	mongoURI  string
}

// register wires the shared persistence flags into cmd.
func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.method, "store", "", "metadata store: inline, redis, mongo or image")
	cmd.Flags().StringVar(&f.table, "table", "", "table name for redis/mongo stores")
	cmd.Flags().StringVar(&f.redisAddr, "redis-addr", "", "redis address (host:port)")
	cmd.Flags().StringVar(&f.mongoURI, "mongo-uri", "", "mongodb connection URI")
}

// newStore opens the metadata store selected by flags and config, with the
// atlas directory wired in for the image-embedded backend.
func (c *CLI) newStore(ctx context.Context, cfg Config, f storeFlags, atlasDir string) (store.Store, error) {
	sc := cfg.storeConfig()
	sc.Dir = atlasDir
	if f.method != "" {
		m, err := store.ParseMethod(f.method)
		if err != nil {
			return nil, err
		}
		sc.Method = m
	}
	if f.table != "" {
		sc.Table = f.table
	}
	if f.redisAddr != "" {
		sc.RedisAddr = f.redisAddr
	}
	if f.mongoURI != "" {
		sc.MongoURI = f.mongoURI
	}
	return store.Open(ctx, sc)
}
