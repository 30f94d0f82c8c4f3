// Package object defines the record model and the content store: typed
// records with free-form attributes, tags, and named binary content.
package object

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/maruel/ksid"
	"github.com/tracklab/trove/internal/recdb"
)

// OType is a record kind. The set is closed.
type OType string

const (
	// Observations are raw experiment inputs.
	Observations OType = "observations"
	// Trials are individual training or evaluation runs.
	Trials OType = "trials"
	// Models are trained model artifacts.
	Models OType = "models"
	// Deliveries are packaged model releases.
	Deliveries OType = "deliveries"
)

// OTypes returns all record kinds in a fixed order.
func OTypes() []OType {
	return []OType{Observations, Trials, Models, Deliveries}
}

// ParseOType validates a record kind string.
func ParseOType(s string) (OType, error) {
	switch OType(s) {
	case Observations, Trials, Models, Deliveries:
		return OType(s), nil
	}
	return "", fmt.Errorf("unknown record type %q", s)
}

// ContentType identifies the kind of payload behind a content key.
//
// It is a closed set: handlers dispatch on capability predicates rather than
// comparing strings, so an unsupported view of a payload is rejected in one
// place.
type ContentType uint8

const (
	// TypeOpaque is an uninterpreted binary payload.
	TypeOpaque ContentType = iota + 1
	// TypeJPEG is an already-encoded JPEG image.
	TypeJPEG
	// TypePNG is an already-encoded PNG image.
	TypePNG
	// TypeArray is a single typed numeric array.
	TypeArray
	// TypeArrayCollection is an ordered container of named numeric arrays.
	TypeArrayCollection
)

var contentTypeNames = map[ContentType]string{
	TypeOpaque:          "application/octet-stream",
	TypeJPEG:            "image/jpeg",
	TypePNG:             "image/png",
	TypeArray:           "application/x-array",
	TypeArrayCollection: "application/x-array-collection",
}

// String returns the wire name of the content type.
func (c ContentType) String() string {
	if s, ok := contentTypeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ContentType(%d)", uint8(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c ContentType) MarshalText() ([]byte, error) {
	s, ok := contentTypeNames[c]
	if !ok {
		return nil, fmt.Errorf("unknown content type %d", uint8(c))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ContentType) UnmarshalText(text []byte) error {
	for ct, name := range contentTypeNames {
		if name == string(text) {
			*c = ct
			return nil
		}
	}
	return fmt.Errorf("unknown content type %q", text)
}

// ByteServable reports whether raw bytes of the payload may be served
// directly, including with byte-range requests. True for every member of the
// closed set: payloads are immutable once written.
func (c ContentType) ByteServable() bool {
	_, ok := contentTypeNames[c]
	return ok
}

// ArrayViewable reports whether the payload decodes as a single numeric array.
func (c ContentType) ArrayViewable() bool {
	return c == TypeArray
}

// CollectionViewable reports whether the payload decodes as a named array
// collection.
func (c ContentType) CollectionViewable() bool {
	return c == TypeArrayCollection
}

// ImageViewable reports whether the payload is an encoded image.
func (c ContentType) ImageViewable() bool {
	return c == TypeJPEG || c == TypePNG
}

// ContentRef is a typed reference to a record's named binary content.
type ContentRef struct {
	Type ContentType `json:"content-type"`
	Data recdb.Ref   `json:"data,omitzero"`
}

// Record is a stored entity: attributes, tags, and named binary content.
//
// Content keys are unique within the record; a key that is absent from
// Content has no content. A null ContentRef is never stored.
type Record struct {
	ID         ksid.ID               `json:"id"`
	Attributes map[string]any        `json:"attributes"`
	Tags       []string              `json:"tags"`
	Content    map[string]ContentRef `json:"content"`
	Created    time.Time             `json:"created"`
	Modified   time.Time             `json:"modified"`
	ModifiedBy string                `json:"modified-by,omitempty"`
}

// Clone returns a copy of the record. Attribute values are shared: they are
// treated as immutable once stored.
func (r *Record) Clone() *Record {
	c := *r
	c.Attributes = maps.Clone(r.Attributes)
	c.Tags = slices.Clone(r.Tags)
	c.Content = maps.Clone(r.Content)
	return &c
}

// RowID implements recdb.Row.
func (r *Record) RowID() ksid.ID {
	return r.ID
}

// RowRev implements recdb.Row.
func (r *Record) RowRev() time.Time {
	return r.Modified
}

// HasTag reports whether the record carries the tag.
func (r *Record) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}
