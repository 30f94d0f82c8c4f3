package recdb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maruel/ksid"
)

type testRow struct {
	ID       ksid.ID   `json:"id"`
	Name     string    `json:"name"`
	Modified time.Time `json:"modified"`
}

func (r *testRow) Clone() *testRow {
	c := *r
	return &c
}

func (r *testRow) RowID() ksid.ID {
	return r.ID
}

func (r *testRow) RowRev() time.Time {
	return r.Modified
}

func newTestRow(name string) *testRow {
	return &testRow{ID: ksid.NewID(), Name: name, Modified: time.Now().UTC()}
}

func TestTable(t *testing.T) {
	t.Run("insert and get", func(t *testing.T) {
		tbl, err := NewTable[*testRow](filepath.Join(t.TempDir(), "rows.jsonl"))
		if err != nil {
			t.Fatalf("NewTable() error = %v", err)
		}
		defer tbl.Close()

		row := newTestRow("first")
		if err := tbl.Insert(row); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		got, err := tbl.Get(row.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Name != "first" {
			t.Errorf("Get() name = %q, want %q", got.Name, "first")
		}
		// Mutating the returned clone must not affect the table.
		got.Name = "mutated"
		again, err := tbl.Get(row.ID)
		if err != nil {
			t.Fatal(err)
		}
		if again.Name != "first" {
			t.Error("Get() returned a shared row, not a clone")
		}
	})

	t.Run("duplicate insert", func(t *testing.T) {
		tbl, err := NewTable[*testRow](filepath.Join(t.TempDir(), "rows.jsonl"))
		if err != nil {
			t.Fatal(err)
		}
		defer tbl.Close()

		row := newTestRow("dup")
		if err := tbl.Insert(row); err != nil {
			t.Fatal(err)
		}
		if err := tbl.Insert(row); err == nil {
			t.Error("second Insert() with same ID should fail")
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		tbl, err := NewTable[*testRow](filepath.Join(t.TempDir(), "rows.jsonl"))
		if err != nil {
			t.Fatal(err)
		}
		defer tbl.Close()

		row := newTestRow("before")
		if err := tbl.Insert(row); err != nil {
			t.Fatal(err)
		}
		row.Name = "after"
		if err := tbl.Update(row); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		got, err := tbl.Get(row.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Name != "after" {
			t.Errorf("after Update() name = %q", got.Name)
		}

		if err := tbl.Delete(row.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := tbl.Get(row.ID); !errors.Is(err, ErrRowNotFound) {
			t.Errorf("Get() after Delete() error = %v, want ErrRowNotFound", err)
		}
		if err := tbl.Update(newTestRow("ghost")); !errors.Is(err, ErrRowNotFound) {
			t.Errorf("Update() of unknown row error = %v, want ErrRowNotFound", err)
		}
	})

	t.Run("persistence across reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rows.jsonl")
		tbl, err := NewTable[*testRow](path)
		if err != nil {
			t.Fatal(err)
		}
		r1 := newTestRow("one")
		r2 := newTestRow("two")
		if err := tbl.Insert(r1); err != nil {
			t.Fatal(err)
		}
		if err := tbl.Insert(r2); err != nil {
			t.Fatal(err)
		}
		tbl.Close()

		reopened, err := NewTable[*testRow](path)
		if err != nil {
			t.Fatal(err)
		}
		defer reopened.Close()
		if reopened.Len() != 2 {
			t.Fatalf("Len() after reopen = %d, want 2", reopened.Len())
		}
		var names []string
		for row := range reopened.All() {
			names = append(names, row.Name)
		}
		if len(names) != 2 || names[0] != "one" || names[1] != "two" {
			t.Errorf("All() after reopen = %v, store order not preserved", names)
		}
	})

	t.Run("feed publishes mutations", func(t *testing.T) {
		tbl, err := NewTable[*testRow](filepath.Join(t.TempDir(), "rows.jsonl"))
		if err != nil {
			t.Fatal(err)
		}
		defer tbl.Close()

		muts, cancel := tbl.Feed().Subscribe(16)
		defer cancel()

		row := newTestRow("watched")
		if err := tbl.Insert(row); err != nil {
			t.Fatal(err)
		}
		row.Name = "changed"
		row.Modified = row.Modified.Add(time.Second)
		if err := tbl.Update(row); err != nil {
			t.Fatal(err)
		}
		if err := tbl.Delete(row.ID); err != nil {
			t.Fatal(err)
		}

		want := []Op{OpInsert, OpUpdate, OpDelete}
		for i, op := range want {
			select {
			case m := <-muts:
				if m.Op != op {
					t.Errorf("mutation %d op = %v, want %v", i, m.Op, op)
				}
				if m.ID != row.ID {
					t.Errorf("mutation %d id = %v, want %v", i, m.ID, row.ID)
				}
			case <-time.After(time.Second):
				t.Fatalf("timed out waiting for mutation %d", i)
			}
		}
	})
}

func TestTableReload(t *testing.T) {
	t.Run("diff synthesizes mutations", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "rows.jsonl")

		// Writer represents an external process mutating the same file.
		writer, err := NewTable[*testRow](path)
		if err != nil {
			t.Fatal(err)
		}
		defer writer.Close()
		kept := newTestRow("kept")
		changed := newTestRow("changed")
		removed := newTestRow("removed")
		for _, r := range []*testRow{kept, changed, removed} {
			if err := writer.Insert(r); err != nil {
				t.Fatal(err)
			}
		}

		reader, err := NewTable[*testRow](path)
		if err != nil {
			t.Fatal(err)
		}
		defer reader.Close()
		muts, cancel := reader.Feed().Subscribe(16)
		defer cancel()

		changed.Name = "renamed"
		changed.Modified = changed.Modified.Add(time.Second)
		if err := writer.Update(changed); err != nil {
			t.Fatal(err)
		}
		if err := writer.Delete(removed.ID); err != nil {
			t.Fatal(err)
		}
		added := newTestRow("added")
		if err := writer.Insert(added); err != nil {
			t.Fatal(err)
		}

		if err := reader.Reload(); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}

		got := map[ksid.ID]Op{}
		for range 3 {
			select {
			case m := <-muts:
				got[m.ID] = m.Op
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for synthesized mutations")
			}
		}
		if got[changed.ID] != OpUpdate {
			t.Errorf("changed row op = %v, want OpUpdate", got[changed.ID])
		}
		if got[removed.ID] != OpDelete {
			t.Errorf("removed row op = %v, want OpDelete", got[removed.ID])
		}
		if got[added.ID] != OpInsert {
			t.Errorf("added row op = %v, want OpInsert", got[added.ID])
		}
		if _, ok := got[kept.ID]; ok {
			t.Error("unchanged row produced a mutation")
		}
	})

	t.Run("own writes produce no reload events", func(t *testing.T) {
		tbl, err := NewTable[*testRow](filepath.Join(t.TempDir(), "rows.jsonl"))
		if err != nil {
			t.Fatal(err)
		}
		defer tbl.Close()

		if err := tbl.Insert(newTestRow("mine")); err != nil {
			t.Fatal(err)
		}
		muts, cancel := tbl.Feed().Subscribe(16)
		defer cancel()

		// Memory and disk already agree; Reload must be silent.
		if err := tbl.Reload(); err != nil {
			t.Fatal(err)
		}
		select {
		case m := <-muts:
			t.Errorf("unexpected mutation %v after no-op reload", m)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("missing file means empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rows.jsonl")
		tbl, err := NewTable[*testRow](path)
		if err != nil {
			t.Fatal(err)
		}
		defer tbl.Close()
		if err := tbl.Insert(newTestRow("x")); err != nil {
			t.Fatal(err)
		}
		if err := os.Remove(path); err != nil {
			t.Fatal(err)
		}
		if err := tbl.Reload(); err != nil {
			t.Fatalf("Reload() with missing file error = %v", err)
		}
		if tbl.Len() != 0 {
			t.Errorf("Len() = %d after file removal, want 0", tbl.Len())
		}
	})
}
