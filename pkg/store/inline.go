package store

import "context"

// InlineStore keeps metadata in memory and hands it straight back to the
// caller. No external storage is touched; useful when the caller manages
// persistence itself, and for tests.
type InlineStore struct {
	entries map[string]*Metadata
}

// NewInlineStore creates an empty inline store.
func NewInlineStore() *InlineStore {
	return &InlineStore{entries: make(map[string]*Metadata)}
}

// Read returns previously written metadata if it passes reuse validation.
func (s *InlineStore) Read(ctx context.Context, name string, frameW, frameH int) (*Metadata, bool, error) {
	meta, ok := s.entries[name]
	if !ok || !meta.Usable(frameW, frameH) {
		return nil, false, nil
	}
	return meta, true, nil
}

// Write stores metadata under name.
func (s *InlineStore) Write(ctx context.Context, meta *Metadata, name string) error {
	s.entries[name] = meta
	return nil
}

// Close does nothing for the inline store.
func (s *InlineStore) Close() error { return nil }

// Ensure InlineStore implements Store.
var _ Store = (*InlineStore)(nil)
