// Package recdb implements the storage layer: JSONL-backed row tables with a
// mutation feed, and a content-addressed payload store for binary data.
//
// Each table holds all rows of one record type in memory, persisted as one
// JSON document per line. Every committed mutation is published on the
// table's [Feed]. [Watch] adds filesystem-level change detection so that
// rows written by external processes flow through the same feed.
package recdb

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maruel/ksid"
)

// Row is implemented by table row types.
type Row[T any] interface {
	// Clone returns a deep copy of the row.
	Clone() T
	// RowID returns the row's unique identifier.
	RowID() ksid.ID
	// RowRev returns the row's last-modified time, used to detect changes
	// when reloading the table from disk.
	RowRev() time.Time
}

// ErrRowNotFound is returned when a row ID is not in the table.
var ErrRowNotFound = errors.New("row not found")

// Table handles storage and in-memory caching for a single table in JSONL format.
type Table[T Row[T]] struct {
	path string
	feed *Feed

	mu    sync.RWMutex
	rows  []T
	index map[ksid.ID]int
}

// NewTable creates a new Table and loads all data from the file.
func NewTable[T Row[T]](path string) (*Table[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	t := &Table[T]{path: path, feed: newFeed()}
	rows, err := t.loadFile()
	if err != nil {
		return nil, err
	}
	t.setRows(rows)
	return t, nil
}

// Path returns the table's backing file path.
func (t *Table[T]) Path() string {
	return t.path
}

// Feed returns the table's mutation feed.
func (t *Table[T]) Feed() *Feed {
	return t.feed
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Get returns a clone of the row with the given ID.
func (t *Table[T]) Get(id ksid.ID) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[id]
	if !ok {
		var zero T
		return zero, ErrRowNotFound
	}
	return t.rows[i].Clone(), nil
}

// All returns an iterator over clones of all rows in store order.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Insert adds a new row to the table, persists it, and publishes an insert
// mutation.
func (t *Table[T]) Insert(row T) error {
	t.mu.Lock()
	if _, ok := t.index[row.RowID()]; ok {
		t.mu.Unlock()
		return fmt.Errorf("row %s already exists", row.RowID())
	}
	if err := t.appendLine(row); err != nil {
		t.mu.Unlock()
		return err
	}
	t.rows = append(t.rows, row.Clone())
	t.index[row.RowID()] = len(t.rows) - 1
	t.mu.Unlock()

	t.feed.publish(Mutation{Op: OpInsert, ID: row.RowID()})
	return nil
}

// Update replaces an existing row, rewrites the file, and publishes an
// update mutation.
func (t *Table[T]) Update(row T) error {
	t.mu.Lock()
	i, ok := t.index[row.RowID()]
	if !ok {
		t.mu.Unlock()
		return ErrRowNotFound
	}
	t.rows[i] = row.Clone()
	if err := t.rewriteFile(); err != nil {
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	t.feed.publish(Mutation{Op: OpUpdate, ID: row.RowID()})
	return nil
}

// Delete removes a row, rewrites the file, and publishes a delete mutation.
func (t *Table[T]) Delete(id ksid.ID) error {
	t.mu.Lock()
	i, ok := t.index[id]
	if !ok {
		t.mu.Unlock()
		return ErrRowNotFound
	}
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	t.reindex()
	if err := t.rewriteFile(); err != nil {
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	t.feed.publish(Mutation{Op: OpDelete, ID: id})
	return nil
}

// Reload reads the backing file and reconciles it with the in-memory rows,
// publishing a mutation for every difference.
//
// After a mutation made through this table, memory and disk already agree
// and Reload publishes nothing, so filesystem watching does not duplicate
// events for the process's own writes.
func (t *Table[T]) Reload() error {
	newRows, err := t.loadFile()
	if err != nil {
		return err
	}

	t.mu.Lock()
	var muts []Mutation
	newIndex := make(map[ksid.ID]int, len(newRows))
	for i, row := range newRows {
		newIndex[row.RowID()] = i
	}
	for id := range t.index {
		if _, ok := newIndex[id]; !ok {
			muts = append(muts, Mutation{Op: OpDelete, ID: id})
		}
	}
	for _, row := range newRows {
		old, ok := t.index[row.RowID()]
		if !ok {
			muts = append(muts, Mutation{Op: OpInsert, ID: row.RowID()})
		} else if !t.rows[old].RowRev().Equal(row.RowRev()) {
			muts = append(muts, Mutation{Op: OpUpdate, ID: row.RowID()})
		}
	}
	t.rows = newRows
	t.index = newIndex
	t.mu.Unlock()

	for _, m := range muts {
		t.feed.publish(m)
	}
	return nil
}

// Close shuts down the table's feed. The table remains readable.
func (t *Table[T]) Close() {
	t.feed.close()
}

func (t *Table[T]) setRows(rows []T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = rows
	t.reindex()
}

// reindex rebuilds the ID index. Caller must hold mu.
func (t *Table[T]) reindex() {
	t.index = make(map[ksid.ID]int, len(t.rows))
	for i, row := range t.rows {
		t.index[row.RowID()] = i
	}
}

func (t *Table[T]) loadFile() ([]T, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("failed to open table file %s: %w", t.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var rows []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("failed to unmarshal row in %s: %w", t.path, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table file %s: %w", t.path, err)
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

// appendLine persists a single new row. Caller must hold mu.
func (t *Table[T]) appendLine(row T) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open table file for append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

// rewriteFile persists all rows. Caller must hold mu.
func (t *Table[T]) rewriteFile() error {
	f, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	writer := bufio.NewWriter(f)
	for _, row := range t.rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal row: %w", err)
		}
		if _, err := writer.Write(data); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	return writer.Flush()
}
