// Conversions between storage entities and API response types.

package handlers

import (
	"github.com/tracklab/trove/internal/ndarray"
	"github.com/tracklab/trove/internal/object"
	"github.com/tracklab/trove/internal/server/dto"
)

func recordToDTO(rec *object.Record) *dto.RecordResponse {
	content := make(map[string]dto.ContentSummary, len(rec.Content))
	for key, ref := range rec.Content {
		size, _ := ref.Data.Size()
		content[key] = dto.ContentSummary{
			ContentType: ref.Type.String(),
			Size:        size,
		}
	}
	attrs := rec.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	return &dto.RecordResponse{
		ID:         rec.ID.String(),
		Attributes: attrs,
		Tags:       tags,
		Content:    content,
		Created:    rec.Created,
		Modified:   rec.Modified,
		ModifiedBy: rec.ModifiedBy,
	}
}

func arrayMetadataToDTO(m ndarray.Metadata) dto.ArrayMetadata {
	return dto.ArrayMetadata{
		DType: m.DType,
		NDim:  m.NDim,
		Shape: m.Shape,
		Size:  m.Size,
		Min:   m.Min,
		Mean:  m.Mean,
		Max:   m.Max,
		Sum:   m.Sum,
	}
}
