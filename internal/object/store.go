package object

import (
	"errors"
	"fmt"
	"hash/fnv"
	"iter"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/maruel/ksid"
	"github.com/tracklab/trove/internal/recdb"
)

// ErrNotFound is returned for an unknown record or content key.
var ErrNotFound = errors.New("not found")

// contentLockStripes bounds the number of distinct content-write mutexes.
const contentLockStripes = 64

// Store is the record store: one table per record kind plus a shared
// content-addressed payload store.
//
// The store exclusively owns payload lifecycles. A payload becomes reachable
// only by installing its ref in a record and unreachable only by removing
// that ref; release is ordered so that a partial failure leaves an
// unreferenced payload (swept by GC), never a reference to released bytes.
type Store struct {
	payloads *recdb.PayloadStore
	tables   map[OType]*recdb.Table[*Record]

	// Striped per record: concurrent writers to one content key must not
	// interleave payload install/release, and the ref swap rewrites the whole
	// record row, so all content writes to one record serialize. Writes to
	// different records proceed concurrently (modulo stripe collisions).
	contentLocks [contentLockStripes]sync.Mutex

	// Payloads are content-addressed, so identical bytes stored under
	// several keys share one file. A release must count live references
	// atomically with respect to installs: no install may commit between
	// the count and the unlink.
	payloadMu sync.Mutex
}

// Open opens or creates the record store under dataDir.
func Open(dataDir string) (*Store, error) {
	s := &Store{
		payloads: recdb.NewPayloadStore(filepath.Join(dataDir, "payloads")),
		tables:   make(map[OType]*recdb.Table[*Record], len(OTypes())),
	}
	for _, ot := range OTypes() {
		t, err := recdb.NewTable[*Record](filepath.Join(dataDir, "records", string(ot)+".jsonl"))
		if err != nil {
			return nil, fmt.Errorf("failed to open %s table: %w", ot, err)
		}
		s.tables[ot] = t
	}
	return s, nil
}

// Close shuts down all table feeds.
func (s *Store) Close() {
	for _, t := range s.tables {
		t.Close()
	}
}

// Payloads returns the underlying payload store.
func (s *Store) Payloads() *recdb.PayloadStore {
	return s.payloads
}

// Feed returns the mutation feed for a record kind.
func (s *Store) Feed(ot OType) *recdb.Feed {
	return s.tables[ot].Feed()
}

// Tables returns all tables for filesystem watching.
func (s *Store) Tables() []recdb.Reloadable {
	out := make([]recdb.Reloadable, 0, len(s.tables))
	for _, ot := range OTypes() {
		out = append(out, s.tables[ot])
	}
	return out
}

// Create inserts a new record and returns it.
func (s *Store) Create(ot OType, attributes map[string]any, tags []string, actor string) (*Record, error) {
	if attributes == nil {
		attributes = map[string]any{}
	}
	if tags == nil {
		tags = []string{}
	}
	now := time.Now().UTC()
	rec := &Record{
		ID:         ksid.NewID(),
		Attributes: attributes,
		Tags:       tags,
		Content:    map[string]ContentRef{},
		Created:    now,
		Modified:   now,
		ModifiedBy: actor,
	}
	if err := s.tables[ot].Insert(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Get returns the record with the given ID.
func (s *Store) Get(ot OType, id ksid.ID) (*Record, error) {
	rec, err := s.tables[ot].Get(id)
	if err != nil {
		if errors.Is(err, recdb.ErrRowNotFound) {
			return nil, fmt.Errorf("%s %s: %w", ot, id, ErrNotFound)
		}
		return nil, err
	}
	return rec, nil
}

// All iterates over all records of a kind in store order.
func (s *Store) All(ot OType) iter.Seq[*Record] {
	return s.tables[ot].All()
}

// Len returns the number of records of a kind.
func (s *Store) Len(ot OType) int {
	return s.tables[ot].Len()
}

// Delete removes a record and releases all of its content payloads.
//
// The record row is removed first: once no reference exists, payload release
// failures only leak storage until the next GC, they cannot dangle a ref.
func (s *Store) Delete(ot OType, id ksid.ID) error {
	lock := &s.contentLocks[contentStripe(ot, id)]
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.Get(ot, id)
	if err != nil {
		return err
	}
	if err := s.tables[ot].Delete(id); err != nil {
		if errors.Is(err, recdb.ErrRowNotFound) {
			return fmt.Errorf("%s %s: %w", ot, id, ErrNotFound)
		}
		return err
	}
	s.payloadMu.Lock()
	defer s.payloadMu.Unlock()
	for key, ref := range rec.Content {
		if err := s.releasePayload(ref.Data); err != nil {
			slog.Error("Failed to release payload of deleted record", "otype", ot, "id", id, "key", key, "err", err)
		}
	}
	return nil
}

// UpdateAttributes merges attrs into the record's attributes.
func (s *Store) UpdateAttributes(ot OType, id ksid.ID, attrs map[string]any, actor string) (*Record, error) {
	lock := &s.contentLocks[contentStripe(ot, id)]
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.Get(ot, id)
	if err != nil {
		return nil, err
	}
	for k, v := range attrs {
		rec.Attributes[k] = v
	}
	s.touch(rec, actor)
	if err := s.tables[ot].Update(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateTags applies tag mutations: add, remove, then toggle.
func (s *Store) UpdateTags(ot OType, id ksid.ID, add, remove, toggle []string, actor string) (*Record, error) {
	lock := &s.contentLocks[contentStripe(ot, id)]
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.Get(ot, id)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(rec.Tags))
	for _, t := range rec.Tags {
		set[t] = struct{}{}
	}
	for _, t := range add {
		set[t] = struct{}{}
	}
	for _, t := range remove {
		delete(set, t)
	}
	for _, t := range toggle {
		if _, ok := set[t]; ok {
			delete(set, t)
		} else {
			set[t] = struct{}{}
		}
	}
	rec.Tags = make([]string, 0, len(set))
	for t := range set {
		rec.Tags = append(rec.Tags, t)
	}
	sort.Strings(rec.Tags)
	s.touch(rec, actor)
	if err := s.tables[ot].Update(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ContentValue is the new value for a content key.
type ContentValue struct {
	Type ContentType
	Data []byte
}

// GetContent resolves a record's content key to its typed reference.
func (s *Store) GetContent(ot OType, id ksid.ID, key string) (ContentRef, error) {
	rec, err := s.Get(ot, id)
	if err != nil {
		return ContentRef{}, err
	}
	ref, ok := rec.Content[key]
	if !ok {
		return ContentRef{}, fmt.Errorf("content key %q: %w", key, ErrNotFound)
	}
	return ref, nil
}

// SetContent writes, replaces, or deletes a record's content key.
//
// A nil value deletes the key and releases its payload; deleting an unknown
// key is ErrNotFound. A non-nil value installs the new payload and releases
// the prior one. Identical bytes stored under several keys share one payload
// file; a file is removed only when its last reference is gone. Writes to
// the same (record, key) are serialized; at no observable instant do two
// live payloads exist for one key. Every persisting call updates the
// record's Modified and ModifiedBy fields.
func (s *Store) SetContent(ot OType, id ksid.ID, key string, value *ContentValue, actor string) error {
	lock := &s.contentLocks[contentStripe(ot, id)]
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.Get(ot, id)
	if err != nil {
		return err
	}
	prior, hadPrior := rec.Content[key]

	s.payloadMu.Lock()
	defer s.payloadMu.Unlock()

	if value == nil {
		if !hadPrior {
			return fmt.Errorf("content key %q: %w", key, ErrNotFound)
		}
		// Remove the reference first: a failed release leaves an unreferenced
		// payload for GC, never a live ref to released bytes.
		delete(rec.Content, key)
		s.touch(rec, actor)
		if err := s.tables[ot].Update(rec); err != nil {
			return err
		}
		return s.releasePayload(prior.Data)
	}

	ref, err := s.payloads.Put(value.Data)
	if err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	rec.Content[key] = ContentRef{Type: value.Type, Data: ref}
	s.touch(rec, actor)
	if err := s.tables[ot].Update(rec); err != nil {
		// The new payload is unreferenced; leave it for GC rather than racing
		// a concurrent writer that may have produced the same content hash.
		return err
	}
	// Release the replaced payload once the new ref is committed, unless the
	// content was identical (same hash, same file).
	if hadPrior && prior.Data != ref {
		return s.releasePayload(prior.Data)
	}
	return nil
}

// releasePayload removes the payload file only when no record references it
// anymore. Callers must hold payloadMu.
func (s *Store) releasePayload(ref recdb.Ref) error {
	for _, ot := range OTypes() {
		for rec := range s.All(ot) {
			for _, c := range rec.Content {
				if c.Data == ref {
					return nil
				}
			}
		}
	}
	return s.payloads.Remove(ref)
}

// ContentKeys returns the sorted distinct content keys across a kind.
func (s *Store) ContentKeys(ot OType) []string {
	set := make(map[string]struct{})
	for rec := range s.All(ot) {
		for k := range rec.Content {
			set[k] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// AttributeKeys returns the sorted distinct attribute keys across a kind.
func (s *Store) AttributeKeys(ot OType) []string {
	set := make(map[string]struct{})
	for rec := range s.All(ot) {
		for k := range rec.Attributes {
			set[k] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// TagValues returns the sorted distinct tags across a kind.
func (s *Store) TagValues(ot OType) []string {
	set := make(map[string]struct{})
	for rec := range s.All(ot) {
		for _, t := range rec.Tags {
			set[t] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// GC sweeps payloads that no record references, plus stale temp files.
func (s *Store) GC() error {
	used := make(map[recdb.Ref]int)
	for _, ot := range OTypes() {
		for rec := range s.All(ot) {
			for _, ref := range rec.Content {
				used[ref.Data]++
			}
		}
	}
	return s.payloads.GC(used)
}

func (s *Store) touch(rec *Record, actor string) {
	rec.Modified = time.Now().UTC()
	if actor != "" {
		rec.ModifiedBy = actor
	}
}

func contentStripe(ot OType, id ksid.ID) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ot))
	_, _ = h.Write([]byte(id.String()))
	return h.Sum32() % contentLockStripes
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
