package ndarray

import (
	"bytes"
	"errors"
	"io"
	"slices"
	"testing"
)

type trackedCloser struct {
	io.Reader
	closed bool
}

func (t *trackedCloser) Close() error {
	t.closed = true
	return nil
}

func mustArray(t *testing.T, shape []int, values []float64) *Array {
	t.Helper()
	a, err := FromFloat64(shape, values)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestCollection(t *testing.T) {
	t.Run("round trip preserves order", func(t *testing.T) {
		entries := []NamedArray{
			{"zeta", mustArray(t, []int{2}, []float64{1, 2})},
			{"alpha", mustArray(t, []int{1}, []float64{3})},
			{"mid", mustArray(t, []int{3}, []float64{4, 5, 6})},
		}
		blob, err := EncodeCollection(entries)
		if err != nil {
			t.Fatal(err)
		}
		col, err := OpenCollection(io.NopCloser(bytes.NewReader(blob)))
		if err != nil {
			t.Fatal(err)
		}
		defer col.Close()
		if col.Len() != 3 {
			t.Errorf("Len() = %d, want 3", col.Len())
		}
		if got := col.Names(); !slices.Equal(got, []string{"zeta", "alpha", "mid"}) {
			t.Errorf("Names() = %v", got)
		}
		a, ok := col.Get("mid")
		if !ok {
			t.Fatal("Get(mid) missing")
		}
		if got := a.Float64s(); !slices.Equal(got, []float64{4, 5, 6}) {
			t.Errorf("mid values = %v", got)
		}
		if _, ok := col.Get("nope"); ok {
			t.Error("Get(nope) found an array")
		}
	})

	t.Run("duplicate names rejected", func(t *testing.T) {
		entries := []NamedArray{
			{"x", mustArray(t, []int{1}, []float64{1})},
			{"x", mustArray(t, []int{1}, []float64{2})},
		}
		if _, err := EncodeCollection(entries); err == nil {
			t.Error("EncodeCollection() accepted duplicate names")
		}
	})

	t.Run("decode error closes the handle", func(t *testing.T) {
		src := &trackedCloser{Reader: bytes.NewReader([]byte("not a collection"))}
		if _, err := OpenCollection(src); !errors.Is(err, ErrBadFormat) {
			t.Errorf("OpenCollection() error = %v, want ErrBadFormat", err)
		}
		if !src.closed {
			t.Error("failed open did not close the handle")
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		blob, err := EncodeCollection(nil)
		if err != nil {
			t.Fatal(err)
		}
		src := &trackedCloser{Reader: bytes.NewReader(blob)}
		col, err := OpenCollection(src)
		if err != nil {
			t.Fatal(err)
		}
		if err := col.Close(); err != nil {
			t.Fatal(err)
		}
		if !src.closed {
			t.Error("Close() did not release the handle")
		}
		if err := col.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	})
}
