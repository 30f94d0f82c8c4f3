// Handles sorted view resolution: position to ID, ID to position, and count.

package handlers

import (
	"context"

	"github.com/maruel/ksid"
	"github.com/tracklab/trove/internal/index"
	"github.com/tracklab/trove/internal/server/dto"
)

// ViewHandler handles the index endpoints backed by the view cache.
type ViewHandler struct {
	cache *index.Cache
}

// NewViewHandler creates a new view handler.
func NewViewHandler(cache *index.Cache) *ViewHandler {
	return &ViewHandler{cache: cache}
}

func parseView(sort, direction string) (index.Sort, index.Direction, error) {
	s, err := index.ParseSort(sort)
	if err != nil {
		return "", "", dto.InvalidFormat("sort", err.Error())
	}
	d, err := index.ParseDirection(direction)
	if err != nil {
		return "", "", dto.InvalidFormat("direction", err.Error())
	}
	return s, d, nil
}

// ResolveIndex maps a position in a sorted view to the record ID there.
func (h *ViewHandler) ResolveIndex(ctx context.Context, req *dto.IndexRequest) (*dto.IndexResponse, error) {
	ot, err := parseOType(req.OType)
	if err != nil {
		return nil, err
	}
	sort, dir, err := parseView(req.Sort, req.Direction)
	if err != nil {
		return nil, err
	}
	position, err := req.ParsePosition()
	if err != nil {
		return nil, err
	}
	id, err := h.cache.IndexOf(req.Session, ot, req.Search, sort, dir, position)
	if err != nil {
		return nil, err
	}
	return &dto.IndexResponse{
		Session:   req.Session,
		OType:     req.OType,
		Search:    req.Search,
		Sort:      string(sort),
		Direction: string(dir),
		OIndex:    position,
		OID:       id.String(),
	}, nil
}

// ResolvePosition maps a record ID to its position in a sorted view. A record
// absent from the view yields a null position, not an error.
func (h *ViewHandler) ResolvePosition(ctx context.Context, req *dto.PositionRequest) (*dto.PositionResponse, error) {
	ot, err := parseOType(req.OType)
	if err != nil {
		return nil, err
	}
	sort, dir, err := parseView(req.Sort, req.Direction)
	if err != nil {
		return nil, err
	}
	resp := &dto.PositionResponse{
		Session:   req.Session,
		OType:     req.OType,
		Search:    req.Search,
		Sort:      string(sort),
		Direction: string(dir),
		OID:       req.OID,
	}
	id, err := ksid.Parse(req.OID)
	if err != nil {
		// A malformed ID is simply not part of any view.
		return resp, nil
	}
	position, found, err := h.cache.PositionOf(req.Session, ot, req.Search, sort, dir, id)
	if err != nil {
		return nil, err
	}
	if found {
		resp.OIndex = &position
	}
	return resp, nil
}

// Count returns the size of the base result set for a session and search.
func (h *ViewHandler) Count(ctx context.Context, req *dto.CountRequest) (*dto.CountResponse, error) {
	ot, err := parseOType(req.OType)
	if err != nil {
		return nil, err
	}
	count, err := h.cache.Count(req.Session, ot, req.Search)
	if err != nil {
		return nil, err
	}
	return &dto.CountResponse{
		Session: req.Session,
		OType:   req.OType,
		Search:  req.Search,
		Count:   count,
	}, nil
}
