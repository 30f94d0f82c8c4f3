package dto

import "time"

// ContentSummary describes one content entry without its payload.
type ContentSummary struct {
	ContentType string `json:"content-type"`
	Size        int64  `json:"size"`
}

// RecordResponse is the JSON shape of a record.
type RecordResponse struct {
	ID         string                    `json:"id"`
	Attributes map[string]any            `json:"attributes"`
	Tags       []string                  `json:"tags"`
	Content    map[string]ContentSummary `json:"content"`
	Created    time.Time                 `json:"created"`
	Modified   time.Time                 `json:"modified"`
	ModifiedBy string                    `json:"modified-by,omitempty"`
}

// AttributesResponse carries a record's attribute document.
type AttributesResponse struct {
	Attributes map[string]any `json:"attributes"`
}

// TagsResponse carries a tag list, either one record's or a type's distinct set.
type TagsResponse struct {
	Tags []string `json:"tags"`
}

// KeysResponse carries a distinct key enumeration.
type KeysResponse struct {
	Keys []string `json:"keys"`
}

// ArrayMetadata summarizes an array without its data. Statistics are absent
// for empty arrays.
type ArrayMetadata struct {
	DType string   `json:"dtype"`
	NDim  int      `json:"ndim"`
	Shape []int    `json:"shape"`
	Size  int      `json:"size"`
	Min   *float64 `json:"min,omitempty"`
	Mean  *float64 `json:"mean,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Sum   *float64 `json:"sum,omitempty"`
}

// ArrayMetadataResponse wraps one array's metadata.
type ArrayMetadataResponse struct {
	Metadata ArrayMetadata `json:"metadata"`
}

// NamedArrayMetadata is one entry of a collection listing.
type NamedArrayMetadata struct {
	Name string `json:"name"`
	ArrayMetadata
}

// CollectionMetadataResponse lists the arrays in a collection, in stored order.
type CollectionMetadataResponse struct {
	Metadata []NamedArrayMetadata `json:"metadata"`
}

// ArrayDataResponse carries array values as nested JSON lists.
type ArrayDataResponse struct {
	Data any `json:"data"`
}

// ImageMetadataResponse describes an image payload.
type ImageMetadataResponse struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// IndexResponse echoes the view parameters and resolves a position to an ID.
type IndexResponse struct {
	Session   string `json:"session"`
	OType     string `json:"otype"`
	Search    string `json:"search"`
	Sort      string `json:"sort"`
	Direction string `json:"direction"`
	OIndex    int    `json:"oindex"`
	OID       string `json:"oid"`
}

// PositionResponse resolves an ID to its position. OIndex is null when the
// record is not part of the view.
type PositionResponse struct {
	Session   string `json:"session"`
	OType     string `json:"otype"`
	Search    string `json:"search"`
	Sort      string `json:"sort"`
	Direction string `json:"direction"`
	OID       string `json:"oid"`
	OIndex    *int   `json:"oindex"`
}

// CountResponse reports the base result set size.
type CountResponse struct {
	Session string `json:"session"`
	OType   string `json:"otype"`
	Search  string `json:"search"`
	Count   int    `json:"count"`
}

// HealthResponse reports process liveness.
type HealthResponse struct {
	Status string `json:"status"`
}

// EmptyResponse is returned by mutations with nothing to report.
type EmptyResponse struct{}
