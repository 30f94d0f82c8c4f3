package dto

import "strconv"

// Validatable is implemented by all request types.
type Validatable interface {
	Validate() error
}

// knownOTypes mirrors the closed record type set. An unknown type in the
// path is a 404, matching "no such route" semantics, not a validation error.
var knownOTypes = map[string]struct{}{
	"observations": {},
	"trials":       {},
	"models":       {},
	"deliveries":   {},
}

func validateOType(otype string) error {
	if otype == "" {
		return MissingField("otype")
	}
	if _, ok := knownOTypes[otype]; !ok {
		return NotFound("record type")
	}
	return nil
}

// RecordRequest addresses one record.
type RecordRequest struct {
	OType string `path:"otype"`
	OID   string `path:"oid"`
}

// Validate implements Validatable.
func (r *RecordRequest) Validate() error {
	if err := validateOType(r.OType); err != nil {
		return err
	}
	if r.OID == "" {
		return MissingField("oid")
	}
	return nil
}

// CreateRecordRequest creates a record.
type CreateRecordRequest struct {
	OType      string         `path:"otype"`
	Attributes map[string]any `json:"attributes"`
	Tags       []string       `json:"tags"`
}

// Validate implements Validatable.
func (r *CreateRecordRequest) Validate() error {
	return validateOType(r.OType)
}

// UpdateAttributesRequest merges attributes into a record.
type UpdateAttributesRequest struct {
	OType      string         `path:"otype"`
	OID        string         `path:"oid"`
	Attributes map[string]any `json:"attributes"`
}

// Validate implements Validatable.
func (r *UpdateAttributesRequest) Validate() error {
	if err := (&RecordRequest{OType: r.OType, OID: r.OID}).Validate(); err != nil {
		return err
	}
	if len(r.Attributes) == 0 {
		return MissingField("attributes")
	}
	return nil
}

// UpdateTagsRequest applies tag mutations to a record.
type UpdateTagsRequest struct {
	OType  string   `path:"otype"`
	OID    string   `path:"oid"`
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
	Toggle []string `json:"toggle"`
}

// Validate implements Validatable.
func (r *UpdateTagsRequest) Validate() error {
	return (&RecordRequest{OType: r.OType, OID: r.OID}).Validate()
}

// ContentRequest addresses one content key of a record.
type ContentRequest struct {
	OType string `path:"otype"`
	OID   string `path:"oid"`
	Key   string `path:"key"`
}

// Validate implements Validatable.
func (r *ContentRequest) Validate() error {
	if err := (&RecordRequest{OType: r.OType, OID: r.OID}).Validate(); err != nil {
		return err
	}
	if r.Key == "" {
		return MissingField("key")
	}
	return nil
}

// ArrayImageRequest renders a single array as a color-mapped image.
type ArrayImageRequest struct {
	OType    string `path:"otype"`
	OID      string `path:"oid"`
	Key      string `path:"key"`
	Colormap string `query:"colormap"`
}

// Validate implements Validatable.
func (r *ArrayImageRequest) Validate() error {
	return (&ContentRequest{OType: r.OType, OID: r.OID, Key: r.Key}).Validate()
}

// NamedArrayRequest addresses one named array inside a collection.
type NamedArrayRequest struct {
	OType string `path:"otype"`
	OID   string `path:"oid"`
	Key   string `path:"key"`
	Name  string `path:"name"`
}

// Validate implements Validatable.
func (r *NamedArrayRequest) Validate() error {
	if err := (&ContentRequest{OType: r.OType, OID: r.OID, Key: r.Key}).Validate(); err != nil {
		return err
	}
	if r.Name == "" {
		return MissingField("name")
	}
	return nil
}

// ViewParams are the shared query parameters of the index endpoints.
type ViewParams struct {
	Session   string `query:"session"`
	Search    string `query:"search"`
	Sort      string `query:"sort"`
	Direction string `query:"direction"`
}

func (p *ViewParams) validate() error {
	if p.Session == "" {
		return MissingField("session")
	}
	return nil
}

// IndexRequest resolves a position in a sorted view to a record ID.
//
// Position stays a string here so that a non-integer value is reported as a
// 400, not a routing miss.
type IndexRequest struct {
	OType    string `path:"otype"`
	Position string `path:"position"`
	ViewParams
}

// Validate implements Validatable.
func (r *IndexRequest) Validate() error {
	if err := validateOType(r.OType); err != nil {
		return err
	}
	if err := r.ViewParams.validate(); err != nil {
		return err
	}
	if _, err := r.ParsePosition(); err != nil {
		return err
	}
	return nil
}

// ParsePosition returns the position as a non-negative integer.
func (r *IndexRequest) ParsePosition() (int, error) {
	pos, err := strconv.Atoi(r.Position)
	if err != nil {
		return 0, InvalidFormat("index", "must be an integer")
	}
	if pos < 0 {
		return 0, InvalidFormat("index", "must be a non-negative integer")
	}
	return pos, nil
}

// PositionRequest resolves a record ID to its position in a sorted view.
type PositionRequest struct {
	OType string `path:"otype"`
	OID   string `path:"oid"`
	ViewParams
}

// Validate implements Validatable.
func (r *PositionRequest) Validate() error {
	if err := (&RecordRequest{OType: r.OType, OID: r.OID}).Validate(); err != nil {
		return err
	}
	return r.ViewParams.validate()
}

// CountRequest returns the base result set size.
type CountRequest struct {
	OType   string `path:"otype"`
	Session string `query:"session"`
	Search  string `query:"search"`
}

// Validate implements Validatable.
func (r *CountRequest) Validate() error {
	if err := validateOType(r.OType); err != nil {
		return err
	}
	if r.Session == "" {
		return MissingField("session")
	}
	return nil
}

// OTypeRequest addresses a whole record type (enumeration endpoints).
type OTypeRequest struct {
	OType string `path:"otype"`
}

// Validate implements Validatable.
func (r *OTypeRequest) Validate() error {
	return validateOType(r.OType)
}

// EmptyRequest is for endpoints with no parameters.
type EmptyRequest struct{}

// Validate implements Validatable.
func (r *EmptyRequest) Validate() error {
	return nil
}
