package capture

// Trash is a resource-ownership table for deferred cleanup. Each temporary
// asset (snapshot file, instantiated image) is registered against the object
// that visually depends on it; Release runs the registered actions when that
// owner is torn down. Actions run exactly once, however many frames were
// built in between.
//
// Trash is not goroutine-safe; the build path is single-threaded and
// cooperative.
type Trash struct {
	actions map[any][]func() error
}

// NewTrash creates an empty ownership table.
func NewTrash() *Trash {
	return &Trash{actions: make(map[any][]func() error)}
}

// Register queues release to run when owner is torn down.
func (t *Trash) Register(owner any, release func() error) {
	t.actions[owner] = append(t.actions[owner], release)
}

// Pending returns how many release actions are queued for owner.
func (t *Trash) Pending(owner any) int {
	return len(t.actions[owner])
}

// Release runs and discards all actions registered for owner, in
// registration order. The first failing action's error is returned, but all
// actions run regardless. A second Release for the same owner is a no-op.
func (t *Trash) Release(owner any) error {
	actions := t.actions[owner]
	delete(t.actions, owner)

	var first error
	for _, release := range actions {
		if err := release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
