package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"os"

	"github.com/matzehuels/maskatlas/pkg/errors"
	"github.com/matzehuels/maskatlas/pkg/fsutil"
)

// MetadataKeyword is the tEXt keyword under which atlas metadata is embedded.
const MetadataKeyword = "maskatlas:meta"

// pngSignature is the fixed 8-byte PNG file header.
var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

// ImageStore embeds metadata inside the atlas image itself, as a PNG tEXt
// chunk spliced directly after IHDR. Metadata and image are physically one
// file, so they can never drift apart.
//
// The stdlib PNG codec does not round-trip ancillary chunks, so the chunk
// stream is handled directly: length, type, payload, CRC-32 over type+payload.
type ImageStore struct {
	dir string
}

// NewImageStore creates an image-embedded store rooted at dir. An empty dir
// uses the default atlas directory.
func NewImageStore(dir string) *ImageStore {
	return &ImageStore{dir: dir}
}

// Read extracts and validates metadata embedded in the atlas PNG named name.
// A missing file, a missing tEXt chunk, malformed payloads and dimension
// mismatches are all cache misses.
func (s *ImageStore) Read(ctx context.Context, name string, frameW, frameH int) (*Metadata, bool, error) {
	path, err := fsutil.ResolvePath(name, s.dir)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeStore, err, "resolve %q", name)
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeStore, err, "read atlas image %q", name)
	}

	text, ok := extractText(raw, MetadataKeyword)
	if !ok {
		return nil, false, nil
	}
	meta := Decode([]byte(text))
	if !meta.Usable(frameW, frameH) {
		return nil, false, nil
	}
	return meta, true, nil
}

// Write embeds meta into the already-written atlas PNG. The image must exist
// first: this backend has nowhere else to put the metadata, and the two are
// only meaningful together.
func (s *ImageStore) Write(ctx context.Context, meta *Metadata, name string) error {
	path, err := fsutil.ResolvePath(name, s.dir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "resolve %q", name)
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return errors.New(errors.ErrCodeFileNotFound, "atlas image %q must be written before embedding metadata", name)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "read atlas image %q", name)
	}

	data, err := meta.Encode()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "encode metadata for %q", name)
	}
	out, err := embedText(raw, MetadataKeyword, string(data))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "write atlas image %q", name)
	}
	return nil
}

// Close does nothing for the image store.
func (s *ImageStore) Close() error { return nil }

// Ensure ImageStore implements Store.
var _ Store = (*ImageStore)(nil)

// chunk is one parsed PNG chunk.
type chunk struct {
	typ  string
	data []byte
}

// parseChunks splits raw into its chunk sequence, verifying the signature and
// each chunk's CRC.
func parseChunks(raw []byte) ([]chunk, error) {
	if !bytes.HasPrefix(raw, pngSignature) {
		return nil, errors.New(errors.ErrCodeStore, "not a PNG file")
	}
	var chunks []chunk
	pos := len(pngSignature)
	for pos+12 <= len(raw) {
		length := int(binary.BigEndian.Uint32(raw[pos:]))
		end := pos + 12 + length
		if end > len(raw) {
			return nil, errors.New(errors.ErrCodeStore, "truncated PNG chunk at offset %d", pos)
		}
		typ := string(raw[pos+4 : pos+8])
		data := raw[pos+8 : pos+8+length]
		want := binary.BigEndian.Uint32(raw[pos+8+length:])
		if crc32.ChecksumIEEE(raw[pos+4:pos+8+length]) != want {
			return nil, errors.New(errors.ErrCodeStore, "bad CRC in %s chunk", typ)
		}
		chunks = append(chunks, chunk{typ: typ, data: data})
		pos = end
		if typ == "IEND" {
			break
		}
	}
	if len(chunks) == 0 || chunks[0].typ != "IHDR" {
		return nil, errors.New(errors.ErrCodeStore, "PNG missing IHDR chunk")
	}
	return chunks, nil
}

// writeChunk appends one chunk in wire format to buf.
func writeChunk(buf *bytes.Buffer, c chunk) {
	var head [8]byte
	binary.BigEndian.PutUint32(head[:4], uint32(len(c.data)))
	copy(head[4:], c.typ)
	buf.Write(head[:])
	buf.Write(c.data)

	crc := crc32.NewIEEE()
	crc.Write([]byte(c.typ))
	crc.Write(c.data)
	var tail [4]byte
	binary.BigEndian.PutUint32(tail[:], crc.Sum32())
	buf.Write(tail[:])
}

// textKeyword returns the keyword of a tEXt chunk payload.
func textKeyword(data []byte) string {
	i := bytes.IndexByte(data, 0)
	if i < 0 {
		return ""
	}
	return string(data[:i])
}

// embedText returns raw with a tEXt chunk (keyword, text) spliced directly
// after IHDR. Any existing tEXt chunk with the same keyword is dropped.
func embedText(raw []byte, keyword, text string) ([]byte, error) {
	chunks, err := parseChunks(raw)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 0, len(keyword)+1+len(text))
	payload = append(payload, keyword...)
	payload = append(payload, 0)
	payload = append(payload, text...)

	var buf bytes.Buffer
	buf.Write(pngSignature)
	writeChunk(&buf, chunks[0]) // IHDR
	writeChunk(&buf, chunk{typ: "tEXt", data: payload})
	for _, c := range chunks[1:] {
		if c.typ == "tEXt" && textKeyword(c.data) == keyword {
			continue
		}
		writeChunk(&buf, c)
	}
	return buf.Bytes(), nil
}

// extractText returns the text of the tEXt chunk with the given keyword.
// Malformed files simply report absence; stale data is a cache miss.
func extractText(raw []byte, keyword string) (string, bool) {
	chunks, err := parseChunks(raw)
	if err != nil {
		return "", false
	}
	for _, c := range chunks {
		if c.typ != "tEXt" {
			continue
		}
		i := bytes.IndexByte(c.data, 0)
		if i < 0 {
			continue
		}
		if string(c.data[:i]) == keyword {
			return string(c.data[i+1:]), true
		}
	}
	return "", false
}
