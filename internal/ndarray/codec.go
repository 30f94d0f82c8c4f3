// Binary serialization of single arrays.
//
// Layout: magic "TRAR", version byte, dtype byte, ndim uvarint, one uvarint
// per dimension, then the raw little-endian element bytes. The trailing byte
// count must equal size*itemsize, so a truncated payload is rejected.

package ndarray

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var arrayMagic = []byte("TRAR")

const codecVersion = 1

// ErrBadFormat is returned when a payload is not a valid encoded array or
// collection.
var ErrBadFormat = errors.New("malformed array payload")

// Encode serializes the array as a self-describing binary blob.
func Encode(a *Array) []byte {
	out := make([]byte, 0, len(arrayMagic)+2+10*(1+len(a.shape))+len(a.data))
	out = append(out, arrayMagic...)
	out = append(out, codecVersion, byte(a.dtype))
	out = binary.AppendUvarint(out, uint64(len(a.shape)))
	for _, dim := range a.shape {
		out = binary.AppendUvarint(out, uint64(dim))
	}
	return append(out, a.data...)
}

// Decode reconstructs an array from an encoded blob.
func Decode(blob []byte) (*Array, error) {
	r := bytes.NewReader(blob)
	header := make([]byte, len(arrayMagic)+2)
	if _, err := io.ReadFull(r, header); err != nil || !bytes.Equal(header[:len(arrayMagic)], arrayMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrBadFormat)
	}
	if header[len(arrayMagic)] != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadFormat, header[len(arrayMagic)])
	}
	dtype := DType(header[len(arrayMagic)+1])
	if !dtype.Valid() {
		return nil, fmt.Errorf("%w: unknown dtype %d", ErrBadFormat, header[len(arrayMagic)+1])
	}
	ndim, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated shape", ErrBadFormat)
	}
	if ndim > 32 {
		return nil, fmt.Errorf("%w: implausible rank %d", ErrBadFormat, ndim)
	}
	shape := make([]int, ndim)
	for i := range shape {
		dim, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated shape", ErrBadFormat)
		}
		shape[i] = int(dim)
	}
	data := blob[len(blob)-r.Len():]
	a, err := New(dtype, shape, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	return a, nil
}
