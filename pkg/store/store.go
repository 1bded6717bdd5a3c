// Package store persists mask-atlas metadata through interchangeable
// backends.
//
// Metadata (the corrected frame offsets plus the atlas pixel dimensions) must
// always travel with the atlas image it was computed for. Each backend exposes
// the same two operations: Read validates stored metadata against the
// requested per-frame dimensions before handing it back, and Write persists
// metadata under the atlas name. A failed validation is a cache miss, never an
// error: the caller rebuilds the atlas as if it were never stored.
//
// Backends:
//   - inline: metadata held in memory and handed back to the caller
//   - redis:  serialized metadata in a named hash (keyed-blob store)
//   - mongo:  one document per atlas in a named collection
//   - image:  metadata embedded in the atlas PNG as a tEXt chunk
package store

import (
	"context"
	"encoding/json"

	"github.com/matzehuels/maskatlas/pkg/errors"
)

// DefaultTable is the table (hash/collection) name used by the keyed-blob
// backends when none is configured.
const DefaultTable = "maskatlas"

// Offset is a corrected frame offset, relative to the frame's geometric
// center within the atlas.
type Offset struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Metadata describes one committed atlas: the corrected frame placements
// flattened as (key, x, y) triples, and the atlas pixel dimensions they were
// computed against.
type Metadata struct {
	Frames []int `json:"frames"`
	XDim   int   `json:"xdim"`
	YDim   int   `json:"ydim"`
}

// FrameMap converts the flattened triple list into a key → offset mapping
// for O(1) lookup at apply-time. Ordering is discarded; the registry only
// calls this once, after correction.
func (m *Metadata) FrameMap() map[int]Offset {
	frames := make(map[int]Offset, len(m.Frames)/3)
	for i := 0; i+2 < len(m.Frames); i += 3 {
		frames[m.Frames[i]] = Offset{X: m.Frames[i+1], Y: m.Frames[i+2]}
	}
	return frames
}

// Usable reports whether stored metadata can back a new request for
// frameW x frameH frames. The frame list must be non-empty and well-formed,
// and both stored atlas dimensions must strictly exceed the requested
// per-frame dimensions (room for the cell border). Anything else is stale.
func (m *Metadata) Usable(frameW, frameH int) bool {
	if m == nil || len(m.Frames) == 0 || len(m.Frames)%3 != 0 {
		return false
	}
	return m.XDim > frameW && m.YDim > frameH
}

// Encode serializes metadata through the JSON codec.
func (m *Metadata) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserializes metadata previously produced by Encode.
// A malformed payload returns nil metadata, not an error: stale or corrupted
// stored data is a recoverable cache miss.
func Decode(data []byte) *Metadata {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return &m
}

// Store is the persistence adapter interface shared by all backends.
//
// Read returns (metadata, true, nil) only when metadata stored under name
// exists and passes reuse validation for the requested frame dimensions;
// (nil, false, nil) means no usable cached atlas. Errors are reserved for
// backend transport failures. Read never mutates the store.
//
// Write persists metadata under name, creating the backing table on first
// use where the backend has one.
type Store interface {
	Read(ctx context.Context, name string, frameW, frameH int) (*Metadata, bool, error)
	Write(ctx context.Context, meta *Metadata, name string) error
	Close() error
}

// Method selects a persistence backend.
type Method string

// Supported persistence methods.
const (
	MethodInline Method = "inline"
	MethodRedis  Method = "redis"
	MethodMongo  Method = "mongo"
	MethodImage  Method = "image"
)

// ParseMethod converts a user-supplied method tag into a Method.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodInline, MethodRedis, MethodMongo, MethodImage:
		return Method(s), nil
	}
	return "", errors.New(errors.ErrCodeInvalidMethod, "unknown store method %q (want inline, redis, mongo or image)", s)
}

// Config carries backend selection plus the connection details each backend
// needs. Only the fields for the selected method are consulted.
type Config struct {
	Method Method

	// Table is the hash/collection name for the keyed-blob backends.
	// Defaults to DefaultTable.
	Table string

	// RedisAddr is the address for MethodRedis (host:port).
	RedisAddr string

	// MongoURI and MongoDB configure MethodMongo.
	MongoURI string
	MongoDB  string

	// Dir is the atlas directory for MethodImage.
	Dir string
}

// Open creates the store selected by cfg.Method. Stores opened this way own
// their connection and release it on Close.
func Open(ctx context.Context, cfg Config) (Store, error) {
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if err := errors.ValidateTableName(table); err != nil {
		return nil, err
	}

	switch cfg.Method {
	case MethodInline, "":
		return NewInlineStore(), nil
	case MethodRedis:
		return OpenRedisStore(ctx, cfg.RedisAddr, table)
	case MethodMongo:
		return OpenMongoStore(ctx, cfg.MongoURI, cfg.MongoDB, table)
	case MethodImage:
		return NewImageStore(cfg.Dir), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidMethod, "unknown store method %q", cfg.Method)
}
