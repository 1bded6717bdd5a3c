package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/matzehuels/maskatlas/pkg/fsutil"
	"github.com/matzehuels/maskatlas/pkg/store"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr string
	dir  string
	sf   storeFlags
}

// serveCommand creates the serve command. It exposes built atlases and their
// metadata over HTTP so renderer processes can fetch them.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve atlas images and metadata over HTTP",
		Long: `Serve starts an HTTP server exposing two endpoints:

  GET /atlas/{name}           the atlas PNG image
  GET /atlas/{name}/metadata  the frame table as JSON

Atlas names are the deterministic filenames produced by build, e.g.
mask-64x64.png.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withLogger(cmd.Context(), c.Logger)
			return c.runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8471", "listen address")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "atlas directory (default: ~/.cache/maskatlas)")
	opts.sf.register(cmd)

	return cmd
}

// runServe builds the router and blocks until the context is cancelled.
func (c *CLI) runServe(ctx context.Context, o serveOpts) error {
	logger := loggerFromContext(ctx)

	cfg, err := loadDefaultConfig()
	if err != nil {
		return err
	}

	dir := o.dir
	if dir == "" {
		dir = cfg.Dir
	}
	if dir == "" {
		dir, err = fsutil.DefaultDir()
		if err != nil {
			return fmt.Errorf("get atlas dir: %w", err)
		}
	}

	st, err := c.newStore(ctx, cfg, o.sf, dir)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := &http.Server{
		Addr:              o.addr,
		Handler:           newRouter(st, dir),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving atlases", "addr", o.addr, "dir", dir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newRouter builds the chi router for the atlas endpoints.
func newRouter(st store.Store, dir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/atlas/{name}", serveAtlasImage(dir))
	r.Get("/atlas/{name}/metadata", serveAtlasMetadata(st))

	return r
}

// validAtlasName rejects names that could escape the atlas directory.
func validAtlasName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, "/\\")
}

// serveAtlasImage serves the atlas PNG from the atlas directory.
func serveAtlasImage(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if !validAtlasName(name) {
			http.Error(w, "invalid atlas name", http.StatusBadRequest)
			return
		}
		path, err := fsutil.ResolvePath(name, dir)
		if err != nil {
			http.Error(w, "invalid atlas name", http.StatusBadRequest)
			return
		}
		if _, err := os.Stat(path); err != nil {
			http.Error(w, "atlas not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		http.ServeFile(w, r, path)
	}
}

// serveAtlasMetadata serves the stored frame table as JSON.
func serveAtlasMetadata(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if !validAtlasName(name) {
			http.Error(w, "invalid atlas name", http.StatusBadRequest)
			return
		}
		meta, ok, err := st.Read(r.Context(), name, 0, 0)
		if err != nil {
			http.Error(w, "store read failed", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "no metadata for atlas", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(meta)
	}
}
