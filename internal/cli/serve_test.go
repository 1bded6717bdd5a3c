package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/matzehuels/maskatlas/pkg/store"
)

func newTestRouter(t *testing.T) (http.Handler, string, store.Store) {
	t.Helper()
	dir := t.TempDir()
	st := store.NewInlineStore()
	return newRouter(st, dir), dir, st
}

func TestServeAtlasImage(t *testing.T) {
	router, dir, _ := newTestRouter(t)
	writeTestPNG(t, filepath.Join(dir, "mask-8x8.png"), 8, 8)

	req := httptest.NewRequest(http.MethodGet, "/atlas/mask-8x8.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty response body")
	}
}

func TestServeAtlasImageNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/atlas/mask-8x8.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServeAtlasMetadata(t *testing.T) {
	router, _, st := newTestRouter(t)

	meta := &store.Metadata{
		Frames: []int{1, 73, 3, 2, 3, 3},
		XDim:   216,
		YDim:   76,
	}
	if err := st.Write(context.Background(), meta, "mask-64x64.png"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/atlas/mask-64x64.png/metadata", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var got store.Metadata
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.XDim != 216 || got.YDim != 76 || len(got.Frames) != 6 {
		t.Errorf("metadata = %+v", got)
	}
}

func TestValidAtlasName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"mask-64x64.png", true},
		{"mask-16p9c-2.png", true},
		{"", false},
		{".", false},
		{"..", false},
		{"../escape.png", false},
		{"sub/dir.png", false},
		{`win\dir.png`, false},
	}
	for _, tt := range tests {
		if got := validAtlasName(tt.name); got != tt.want {
			t.Errorf("validAtlasName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestServeAtlasMetadataNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/atlas/unknown.png/metadata", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
