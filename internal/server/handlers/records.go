// Handles record CRUD, attributes, tags, and per-type enumerations.

package handlers

import (
	"context"

	"github.com/maruel/ksid"
	"github.com/tracklab/trove/internal/object"
	"github.com/tracklab/trove/internal/server/dto"
	"github.com/tracklab/trove/internal/server/reqctx"
)

// RecordHandler handles record endpoints.
type RecordHandler struct {
	store *object.Store
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(store *object.Store) *RecordHandler {
	return &RecordHandler{store: store}
}

// parseOType resolves a path otype that already passed request validation.
func parseOType(otype string) (object.OType, error) {
	ot, err := object.ParseOType(otype)
	if err != nil {
		return "", dto.NotFound("record type").Wrap(err)
	}
	return ot, nil
}

// parseOID resolves a path record ID.
func parseOID(oid string) (ksid.ID, error) {
	id, err := ksid.Parse(oid)
	if err != nil {
		return 0, dto.InvalidFormat("oid", "must be a record ID").Wrap(err)
	}
	return id, nil
}

// GetRecord returns one record, content listed without payloads.
func (h *RecordHandler) GetRecord(ctx context.Context, req *dto.RecordRequest) (*dto.RecordResponse, error) {
	ot, err := parseOType(req.OType)
	if err != nil {
		return nil, err
	}
	id, err := parseOID(req.OID)
	if err != nil {
		return nil, err
	}
	rec, err := h.store.Get(ot, id)
	if err != nil {
		return nil, err
	}
	return recordToDTO(rec), nil
}

// CreateRecord creates a record with the given attributes and tags.
func (h *RecordHandler) CreateRecord(ctx context.Context, req *dto.CreateRecordRequest) (*dto.RecordResponse, error) {
	ot, err := parseOType(req.OType)
	if err != nil {
		return nil, err
	}
	rec, err := h.store.Create(ot, req.Attributes, req.Tags, reqctx.Actor(ctx))
	if err != nil {
		return nil, dto.Storage("create record").Wrap(err)
	}
	return recordToDTO(rec), nil
}

// DeleteRecord removes a record and releases its payloads.
func (h *RecordHandler) DeleteRecord(ctx context.Context, req *dto.RecordRequest) (*dto.EmptyResponse, error) {
	ot, err := parseOType(req.OType)
	if err != nil {
		return nil, err
	}
	id, err := parseOID(req.OID)
	if err != nil {
		return nil, err
	}
	if err := h.store.Delete(ot, id); err != nil {
		return nil, err
	}
	return &dto.EmptyResponse{}, nil
}

// GetAttributes returns a record's attribute document.
func (h *RecordHandler) GetAttributes(ctx context.Context, req *dto.RecordRequest) (*dto.AttributesResponse, error) {
	rec, err := h.GetRecord(ctx, req)
	if err != nil {
		return nil, err
	}
	return &dto.AttributesResponse{Attributes: rec.Attributes}, nil
}

// UpdateAttributes merges attributes into a record and bumps its revision.
func (h *RecordHandler) UpdateAttributes(ctx context.Context, req *dto.UpdateAttributesRequest) (*dto.RecordResponse, error) {
	ot, err := parseOType(req.OType)
	if err != nil {
		return nil, err
	}
	id, err := parseOID(req.OID)
	if err != nil {
		return nil, err
	}
	rec, err := h.store.UpdateAttributes(ot, id, req.Attributes, reqctx.Actor(ctx))
	if err != nil {
		return nil, err
	}
	return recordToDTO(rec), nil
}

// UpdateTags applies add, remove, and toggle tag mutations to a record.
func (h *RecordHandler) UpdateTags(ctx context.Context, req *dto.UpdateTagsRequest) (*dto.RecordResponse, error) {
	ot, err := parseOType(req.OType)
	if err != nil {
		return nil, err
	}
	id, err := parseOID(req.OID)
	if err != nil {
		return nil, err
	}
	rec, err := h.store.UpdateTags(ot, id, req.Add, req.Remove, req.Toggle, reqctx.Actor(ctx))
	if err != nil {
		return nil, err
	}
	return recordToDTO(rec), nil
}

// ListTags returns the distinct tags across all records of a type.
func (h *RecordHandler) ListTags(ctx context.Context, req *dto.OTypeRequest) (*dto.TagsResponse, error) {
	ot, err := parseOType(req.OType)
	if err != nil {
		return nil, err
	}
	return &dto.TagsResponse{Tags: h.store.TagValues(ot)}, nil
}

// ListAttributeKeys returns the distinct attribute keys across a type.
func (h *RecordHandler) ListAttributeKeys(ctx context.Context, req *dto.OTypeRequest) (*dto.KeysResponse, error) {
	ot, err := parseOType(req.OType)
	if err != nil {
		return nil, err
	}
	return &dto.KeysResponse{Keys: h.store.AttributeKeys(ot)}, nil
}

// ListContentKeys returns the distinct content keys across a type.
func (h *RecordHandler) ListContentKeys(ctx context.Context, req *dto.OTypeRequest) (*dto.KeysResponse, error) {
	ot, err := parseOType(req.OType)
	if err != nil {
		return nil, err
	}
	return &dto.KeysResponse{Keys: h.store.ContentKeys(ot)}, nil
}
