// Named array collections: an ordered container of (name, array) pairs.
//
// Layout: magic "TRAC", version byte, count uvarint, then per entry a
// length-prefixed name followed by a length-prefixed encoded array blob.
// Names are unique within a collection.

package ndarray

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"slices"
)

var collectionMagic = []byte("TRAC")

const (
	maxCollectionEntries = 1 << 20
	maxEntryNameLen      = 1 << 12
)

// NamedArray is one entry of a collection.
type NamedArray struct {
	Name  string
	Array *Array
}

// EncodeCollection serializes named arrays as a collection container.
//
// Entry order is preserved; duplicate names are rejected.
func EncodeCollection(entries []NamedArray) ([]byte, error) {
	seen := make(map[string]struct{}, len(entries))
	out := append([]byte(nil), collectionMagic...)
	out = append(out, codecVersion)
	out = binary.AppendUvarint(out, uint64(len(entries)))
	for _, e := range entries {
		if _, ok := seen[e.Name]; ok {
			return nil, fmt.Errorf("duplicate array name %q", e.Name)
		}
		seen[e.Name] = struct{}{}
		out = binary.AppendUvarint(out, uint64(len(e.Name)))
		out = append(out, e.Name...)
		blob := Encode(e.Array)
		out = binary.AppendUvarint(out, uint64(len(blob)))
		out = append(out, blob...)
	}
	return out, nil
}

// Collection is a decoded named array collection, opened as a scoped
// resource over its payload handle.
//
// Callers must call Close when done with the arrays; Close releases the
// underlying payload handle and is idempotent.
type Collection struct {
	src    io.Closer // nil after Close
	names  []string
	arrays map[string]*Array
}

// OpenCollection decodes a collection from a payload handle.
//
// The handle is owned by the returned Collection and released by its Close.
// On any decoding error, the handle is closed before returning, so a failed
// open never leaks the payload.
func OpenCollection(src io.ReadCloser) (*Collection, error) {
	c, err := decodeCollection(bufio.NewReader(src))
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	c.src = src
	return c, nil
}

func decodeCollection(r *bufio.Reader) (*Collection, error) {
	header := make([]byte, len(collectionMagic)+1)
	if _, err := io.ReadFull(r, header); err != nil || !bytes.Equal(header[:len(collectionMagic)], collectionMagic) {
		return nil, fmt.Errorf("%w: bad collection magic", ErrBadFormat)
	}
	if header[len(collectionMagic)] != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadFormat, header[len(collectionMagic)])
	}
	count, err := binary.ReadUvarint(r)
	if err != nil || count > maxCollectionEntries {
		return nil, fmt.Errorf("%w: bad entry count", ErrBadFormat)
	}
	c := &Collection{
		names:  make([]string, 0, count),
		arrays: make(map[string]*Array, count),
	}
	for range count {
		nameLen, err := binary.ReadUvarint(r)
		if err != nil || nameLen > maxEntryNameLen {
			return nil, fmt.Errorf("%w: bad name length", ErrBadFormat)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("%w: truncated name", ErrBadFormat)
		}
		blobLen, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("%w: bad blob length", ErrBadFormat)
		}
		blob := make([]byte, blobLen)
		if _, err := io.ReadFull(r, blob); err != nil {
			return nil, fmt.Errorf("%w: truncated array %q", ErrBadFormat, name)
		}
		a, err := Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("array %q: %w", name, err)
		}
		if _, ok := c.arrays[string(name)]; ok {
			return nil, fmt.Errorf("%w: duplicate array name %q", ErrBadFormat, name)
		}
		c.names = append(c.names, string(name))
		c.arrays[string(name)] = a
	}
	return c, nil
}

// Close releases the underlying payload handle. Idempotent.
func (c *Collection) Close() error {
	if c.src == nil {
		return nil
	}
	src := c.src
	c.src = nil
	return src.Close()
}

// Names returns the array names in container order.
func (c *Collection) Names() []string {
	return slices.Clone(c.names)
}

// Get returns the named array.
func (c *Collection) Get(name string) (*Array, bool) {
	a, ok := c.arrays[name]
	return a, ok
}

// Len returns the number of arrays.
func (c *Collection) Len() int {
	return len(c.names)
}
