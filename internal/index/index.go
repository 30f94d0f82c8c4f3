// Package index implements the object index cache: memoized, sortable,
// searchable ordered views of the record store.
//
// For a fixed (session, otype, search) the base result set is computed once
// and cached; sorting is a pure transform applied over the base set. The
// cache is bounded (capacity and TTL) and concurrent misses for one key
// collapse to a single computation.
package index

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/maruel/ksid"
	"github.com/tracklab/trove/internal/object"
)

// Sort selects the record field that orders a view.
type Sort string

const (
	SortID         Sort = "id"
	SortCreated    Sort = "created"
	SortModified   Sort = "modified"
	SortModifiedBy Sort = "modified-by"
	SortTags       Sort = "tags"
)

// ParseSort validates a sort key. Empty means SortID.
func ParseSort(s string) (Sort, error) {
	if s == "" {
		return SortID, nil
	}
	switch Sort(s) {
	case SortID, SortCreated, SortModified, SortModifiedBy, SortTags:
		return Sort(s), nil
	}
	return "", fmt.Errorf("unknown sort type %q", s)
}

// Direction selects ascending or descending order.
type Direction string

const (
	Ascending  Direction = "ascending"
	Descending Direction = "descending"
)

// ParseDirection validates a sort direction. Empty means Ascending.
func ParseDirection(s string) (Direction, error) {
	if s == "" {
		return Ascending, nil
	}
	switch Direction(s) {
	case Ascending, Descending:
		return Direction(s), nil
	}
	return "", fmt.Errorf("unknown sort direction %q", s)
}

// ErrOutOfRange is returned when a position is past the end of the result set.
var ErrOutOfRange = errors.New("position out of range")

// ErrBadPosition is returned for a negative position.
var ErrBadPosition = errors.New("position must be a non-negative integer")

// Count returns the size of the base result set.
func (c *Cache) Count(session string, otype object.OType, search string) (int, error) {
	e, err := c.base(session, otype, search)
	if err != nil {
		return 0, err
	}
	return len(e.records), nil
}

// IndexOf resolves a zero-based position in the sorted view to a record ID.
func (c *Cache) IndexOf(session string, otype object.OType, search string, sort Sort, dir Direction, position int) (ksid.ID, error) {
	if position < 0 {
		return 0, ErrBadPosition
	}
	e, err := c.base(session, otype, search)
	if err != nil {
		return 0, err
	}
	view := e.sortedView(sort, dir)
	if position >= len(view) {
		return 0, fmt.Errorf("%w: %d (count %d)", ErrOutOfRange, position, len(view))
	}
	return view[position].ID, nil
}

// PositionOf resolves a record ID to its zero-based position in the sorted
// view. The second return is false when the ID is not in the result set.
//
// This is a linear scan: the view keeps no secondary index by ID.
func (c *Cache) PositionOf(session string, otype object.OType, search string, sort Sort, dir Direction, id ksid.ID) (int, bool, error) {
	e, err := c.base(session, otype, search)
	if err != nil {
		return 0, false, err
	}
	for i, rec := range e.sortedView(sort, dir) {
		if rec.ID == id {
			return i, true, nil
		}
	}
	return 0, false, nil
}

// sortRecords stably sorts records by the sort key. Ties keep their relative
// (store) order; descending reverses the ascending result.
func sortRecords(records []*object.Record, sort Sort, dir Direction) []*object.Record {
	out := slices.Clone(records)
	compare := func(a, b *object.Record) int {
		switch sort {
		case SortCreated:
			return a.Created.Compare(b.Created)
		case SortModified:
			return a.Modified.Compare(b.Modified)
		case SortModifiedBy:
			return cmp.Compare(a.ModifiedBy, b.ModifiedBy)
		case SortTags:
			return slices.Compare(a.Tags, b.Tags)
		default: // SortID
			return cmp.Compare(a.ID, b.ID)
		}
	}
	slices.SortStableFunc(out, compare)
	if dir == Descending {
		slices.Reverse(out)
	}
	return out
}
