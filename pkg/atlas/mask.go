package atlas

// Mask positions one atlas frame as a stencil over a target object. The
// offset is center-relative (see Registry.Correct) and the scale factors map
// the mask's native coordinate space onto the target: requested frame
// dimension over stored atlas dimension.
type Mask struct {
	// Atlas is the path of the packed mask image.
	Atlas string

	// X, Y are the corrected center-relative offsets of the frame.
	X, Y int

	// XScale, YScale are frameW/xdim and frameH/ydim.
	XScale float64
	YScale float64
}

// Target is a renderable object masks are applied to. Implementations belong
// to the renderer backend; the sheet only drives them.
type Target interface {
	// SetVisible shows or hides the object.
	SetVisible(visible bool)

	// ApplyMask stencils the object with m.
	ApplyMask(m Mask)

	// ClearMask removes any mask, showing the object unmasked.
	ClearMask()
}
