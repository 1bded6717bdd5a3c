package atlas

// Frame cells reserve a 3-pixel black border on every side of each frame so
// filters never bleed between adjacent cells. The mask image format requires
// final atlas dimensions to be multiples of 4.
const (
	border  = 3
	cellPad = 2 * border
)

// NextMult4 rounds n up to the next multiple of 4.
func NextMult4(n int) int {
	return (n + 3) &^ 3
}

// Plan is the grid layout for one atlas: the padded cell pitch and how many
// whole cells fit across the bounded canvas. Cols or Rows of 0 means the
// padded cell does not fit at all.
type Plan struct {
	FrameW, FrameH int
	PitchW, PitchH int
	Cols, Rows     int
}

// PlanGrid computes the cell pitch and grid capacity for frameW x frameH
// frames packed into a canvas bounded by canvasW x canvasH.
func PlanGrid(frameW, frameH, canvasW, canvasH int) Plan {
	p := Plan{
		FrameW: frameW,
		FrameH: frameH,
		PitchW: frameW + cellPad,
		PitchH: frameH + cellPad,
	}
	p.Cols = (canvasW + border) / p.PitchW
	p.Rows = (canvasH + border) / p.PitchH
	return p
}

// Capacity returns the total number of cells in the grid.
func (p Plan) Capacity() int {
	return p.Cols * p.Rows
}

// Cursor is the running placement state for sequential insertion: row-major,
// left-to-right, top-to-bottom, each cell starting 3px in from the previous
// border. It is an explicit value owned by the build context: Place returns
// the advanced cursor rather than mutating shared state.
type Cursor struct {
	Col, Row int // grid position of the next cell
	X, Y     int // pixel position of the next cell's frame

	// EndX is the pixel width consumed by the widest row used so far,
	// including the trailing border. It makes the final atlas width exactly
	// the widest row actually used, not the nominal full-grid width.
	EndX int
}

// NewCursor returns a cursor at the first cell.
func NewCursor() Cursor {
	return Cursor{X: border, Y: border}
}

// Place returns the frame position for the next cell and the advanced
// cursor. Callers must check capacity before placing.
func (c Cursor) Place(p Plan) (x, y int, next Cursor) {
	x, y = c.X, c.Y

	next = c
	if used := c.X + p.PitchW + border; used > next.EndX {
		next.EndX = used
	}
	next.Col++
	next.X += p.PitchW
	if next.Col == p.Cols {
		next.Col = 0
		next.Row++
		next.X = border
		next.Y = c.Y + p.PitchH
	}
	return x, y, next
}

// Dims computes the final atlas dimensions for everything placed so far,
// rounded up to multiples of 4. An atlas whose frames never filled a row
// uses only its partial-row width.
func (c Cursor) Dims(p Plan) (xdim, ydim int) {
	rows := c.Row
	if c.Col > 0 {
		rows++
	}
	if rows == 0 {
		return 0, 0
	}
	return NextMult4(c.EndX), NextMult4(rows*p.PitchH + cellPad)
}
