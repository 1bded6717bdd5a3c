package atlas

import (
	"github.com/matzehuels/maskatlas/pkg/errors"
	"github.com/matzehuels/maskatlas/pkg/store"
)

// placement is one recorded (key, x, y) triple.
type placement struct {
	key, x, y int
}

// Registry is the append-only ordered list of frame placements collected
// during a build. Raw top-left grid coordinates are recorded at insertion
// time and rewritten into center-relative offsets by Correct at commit,
// after which the registry is immutable.
type Registry struct {
	entries   []placement
	keys      map[int]bool
	corrected bool
	xdim      int
	ydim      int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{keys: make(map[int]bool)}
}

// Record appends a raw placement triple. Keys must be non-negative and
// unique within one atlas. Recording after Correct is a precondition
// violation.
func (r *Registry) Record(key, x, y int) error {
	if r.corrected {
		return errors.New(errors.ErrCodeRegistryFrozen, "registry is frozen after correction")
	}
	if key < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "frame key must be non-negative, got %d", key)
	}
	if r.keys[key] {
		return errors.New(errors.ErrCodeInvalidInput, "duplicate frame key %d", key)
	}
	r.keys[key] = true
	r.entries = append(r.entries, placement{key: key, x: x, y: y})
	return nil
}

// Len returns the number of recorded placements.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Correct rewrites every recorded placement in place so the offset is
// relative to the frame's geometric center rather than the atlas's top-left:
//
//	corr = floor((atlasDim - frameDim + 1) / 2) - raw
//
// The offsets are only meaningful paired with the atlas dimensions they were
// computed against, so Correct captures them for Metadata. Correcting twice
// is a precondition violation.
func (r *Registry) Correct(xdim, ydim, frameW, frameH int) error {
	if r.corrected {
		return errors.New(errors.ErrCodeRegistryFrozen, "registry already corrected")
	}
	cx := (xdim - frameW + 1) / 2
	cy := (ydim - frameH + 1) / 2
	for i := range r.entries {
		r.entries[i].x = cx - r.entries[i].x
		r.entries[i].y = cy - r.entries[i].y
	}
	r.corrected = true
	r.xdim = xdim
	r.ydim = ydim
	return nil
}

// Metadata flattens the corrected placements together with the atlas
// dimensions they were computed against. Valid only after Correct.
func (r *Registry) Metadata() (*store.Metadata, error) {
	if !r.corrected {
		return nil, errors.New(errors.ErrCodeNotCommitted, "registry not corrected yet")
	}
	frames := make([]int, 0, len(r.entries)*3)
	for _, e := range r.entries {
		frames = append(frames, e.key, e.x, e.y)
	}
	return &store.Metadata{Frames: frames, XDim: r.xdim, YDim: r.ydim}, nil
}
