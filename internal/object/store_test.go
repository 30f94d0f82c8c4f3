package object

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/maruel/ksid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestStoreRecords(t *testing.T) {
	t.Run("create and get", func(t *testing.T) {
		s := openTestStore(t)
		rec, err := s.Create(Trials, map[string]any{"lr": 0.01}, []string{"baseline"}, "alice")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if rec.ID.IsZero() {
			t.Error("Create() returned zero ID")
		}
		if rec.Created.IsZero() || !rec.Created.Equal(rec.Modified) {
			t.Errorf("Create() timestamps created=%v modified=%v", rec.Created, rec.Modified)
		}

		got, err := s.Get(Trials, rec.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Attributes["lr"] != 0.01 {
			t.Errorf("Get() attributes = %v", got.Attributes)
		}
		if !got.HasTag("baseline") {
			t.Errorf("Get() tags = %v", got.Tags)
		}
		if got.ModifiedBy != "alice" {
			t.Errorf("Get() modified-by = %q", got.ModifiedBy)
		}
	})

	t.Run("get unknown", func(t *testing.T) {
		s := openTestStore(t)
		if _, err := s.Get(Models, ksid.NewID()); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() unknown error = %v, want ErrNotFound", err)
		}
	})

	t.Run("types are isolated", func(t *testing.T) {
		s := openTestStore(t)
		rec, err := s.Create(Observations, nil, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.Get(Deliveries, rec.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("record leaked across types: %v", err)
		}
		if s.Len(Observations) != 1 || s.Len(Deliveries) != 0 {
			t.Errorf("Len() observations=%d deliveries=%d", s.Len(Observations), s.Len(Deliveries))
		}
	})

	t.Run("update attributes merges and bumps modified", func(t *testing.T) {
		s := openTestStore(t)
		rec, err := s.Create(Trials, map[string]any{"lr": 0.01, "epochs": 5}, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		before := rec.Modified
		time.Sleep(time.Millisecond)

		got, err := s.UpdateAttributes(Trials, rec.ID, map[string]any{"epochs": 10, "seed": 7}, "bob")
		if err != nil {
			t.Fatalf("UpdateAttributes() error = %v", err)
		}
		if got.Attributes["lr"] != 0.01 || got.Attributes["epochs"] != 10 || got.Attributes["seed"] != 7 {
			t.Errorf("merged attributes = %v", got.Attributes)
		}
		if !got.Modified.After(before) {
			t.Error("Modified not bumped")
		}
		if got.ModifiedBy != "bob" {
			t.Errorf("modified-by = %q, want bob", got.ModifiedBy)
		}
	})

	t.Run("update tags add remove toggle", func(t *testing.T) {
		s := openTestStore(t)
		rec, err := s.Create(Trials, nil, []string{"keep", "old", "flip"}, "")
		if err != nil {
			t.Fatal(err)
		}
		got, err := s.UpdateTags(Trials, rec.ID, []string{"new"}, []string{"old"}, []string{"flip", "flop"}, "")
		if err != nil {
			t.Fatalf("UpdateTags() error = %v", err)
		}
		want := []string{"flop", "keep", "new"}
		if !slices.Equal(got.Tags, want) {
			t.Errorf("tags = %v, want %v (sorted)", got.Tags, want)
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := openTestStore(t)
		rec, err := s.Create(Trials, nil, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Delete(Trials, rec.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := s.Get(Trials, rec.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() after Delete() = %v, want ErrNotFound", err)
		}
		if err := s.Delete(Trials, rec.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete() = %v, want ErrNotFound", err)
		}
	})
}

func TestStoreContent(t *testing.T) {
	t.Run("set get delete", func(t *testing.T) {
		s := openTestStore(t)
		rec, err := s.Create(Models, nil, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		payload := []byte("model weights")
		if err := s.SetContent(Models, rec.ID, "weights", &ContentValue{Type: TypeOpaque, Data: payload}, ""); err != nil {
			t.Fatalf("SetContent() error = %v", err)
		}

		ref, err := s.GetContent(Models, rec.ID, "weights")
		if err != nil {
			t.Fatalf("GetContent() error = %v", err)
		}
		if ref.Type != TypeOpaque {
			t.Errorf("content type = %v", ref.Type)
		}
		data, err := s.Payloads().ReadAll(ref.Data)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "model weights" {
			t.Errorf("payload = %q", data)
		}

		if err := s.SetContent(Models, rec.ID, "weights", nil, ""); err != nil {
			t.Fatalf("SetContent(nil) error = %v", err)
		}
		if _, err := s.GetContent(Models, rec.ID, "weights"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetContent() after delete = %v, want ErrNotFound", err)
		}
		// The payload itself must be released.
		if _, err := s.Payloads().Open(ref.Data); err == nil {
			t.Error("payload still readable after content delete")
		}
	})

	t.Run("delete unknown key", func(t *testing.T) {
		s := openTestStore(t)
		rec, err := s.Create(Models, nil, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		if err := s.SetContent(Models, rec.ID, "missing", nil, ""); !errors.Is(err, ErrNotFound) {
			t.Errorf("SetContent(nil) on unknown key = %v, want ErrNotFound", err)
		}
	})

	t.Run("overwrite releases prior payload", func(t *testing.T) {
		s := openTestStore(t)
		rec, err := s.Create(Models, nil, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		if err := s.SetContent(Models, rec.ID, "log", &ContentValue{Type: TypeOpaque, Data: []byte("v1")}, ""); err != nil {
			t.Fatal(err)
		}
		first, err := s.GetContent(Models, rec.ID, "log")
		if err != nil {
			t.Fatal(err)
		}
		if err := s.SetContent(Models, rec.ID, "log", &ContentValue{Type: TypeOpaque, Data: []byte("v2")}, ""); err != nil {
			t.Fatal(err)
		}
		second, err := s.GetContent(Models, rec.ID, "log")
		if err != nil {
			t.Fatal(err)
		}
		if first.Data == second.Data {
			t.Fatal("overwrite kept the same ref for different content")
		}
		if _, err := s.Payloads().Open(first.Data); err == nil {
			t.Error("prior payload still readable after overwrite")
		}
		if _, err := s.Payloads().Open(second.Data); err != nil {
			t.Errorf("new payload unreadable: %v", err)
		}
	})

	t.Run("identical overwrite keeps payload", func(t *testing.T) {
		s := openTestStore(t)
		rec, err := s.Create(Models, nil, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		data := []byte("same")
		if err := s.SetContent(Models, rec.ID, "k", &ContentValue{Type: TypeOpaque, Data: data}, ""); err != nil {
			t.Fatal(err)
		}
		if err := s.SetContent(Models, rec.ID, "k", &ContentValue{Type: TypePNG, Data: data}, ""); err != nil {
			t.Fatal(err)
		}
		ref, err := s.GetContent(Models, rec.ID, "k")
		if err != nil {
			t.Fatal(err)
		}
		if ref.Type != TypePNG {
			t.Errorf("type not updated on identical overwrite: %v", ref.Type)
		}
		if _, err := s.Payloads().Open(ref.Data); err != nil {
			t.Errorf("payload lost on identical overwrite: %v", err)
		}
	})

	t.Run("record delete releases payloads", func(t *testing.T) {
		s := openTestStore(t)
		rec, err := s.Create(Models, nil, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		if err := s.SetContent(Models, rec.ID, "a", &ContentValue{Type: TypeOpaque, Data: []byte("aa")}, ""); err != nil {
			t.Fatal(err)
		}
		ref, err := s.GetContent(Models, rec.ID, "a")
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Delete(Models, rec.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Payloads().Open(ref.Data); err == nil {
			t.Error("payload still readable after record delete")
		}
	})

	t.Run("set content bumps modified", func(t *testing.T) {
		s := openTestStore(t)
		rec, err := s.Create(Models, nil, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		before := rec.Modified
		time.Sleep(time.Millisecond)
		if err := s.SetContent(Models, rec.ID, "k", &ContentValue{Type: TypeOpaque, Data: []byte("x")}, "carol"); err != nil {
			t.Fatal(err)
		}
		got, err := s.Get(Models, rec.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Modified.After(before) {
			t.Error("Modified not bumped by SetContent")
		}
		if got.ModifiedBy != "carol" {
			t.Errorf("modified-by = %q", got.ModifiedBy)
		}
	})
}

func TestStoreEnumerations(t *testing.T) {
	s := openTestStore(t)
	r1, err := s.Create(Trials, map[string]any{"lr": 0.1, "seed": 1}, []string{"b", "a"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(Trials, map[string]any{"lr": 0.2, "optimizer": "adam"}, []string{"a", "c"}, ""); err != nil {
		t.Fatal(err)
	}
	if err := s.SetContent(Trials, r1.ID, "curve", &ContentValue{Type: TypeArray, Data: []byte("x")}, ""); err != nil {
		t.Fatal(err)
	}

	t.Run("tags", func(t *testing.T) {
		if got, want := s.TagValues(Trials), []string{"a", "b", "c"}; !slices.Equal(got, want) {
			t.Errorf("TagValues() = %v, want %v", got, want)
		}
	})
	t.Run("attribute keys", func(t *testing.T) {
		if got, want := s.AttributeKeys(Trials), []string{"lr", "optimizer", "seed"}; !slices.Equal(got, want) {
			t.Errorf("AttributeKeys() = %v, want %v", got, want)
		}
	})
	t.Run("content keys", func(t *testing.T) {
		if got, want := s.ContentKeys(Trials), []string{"curve"}; !slices.Equal(got, want) {
			t.Errorf("ContentKeys() = %v, want %v", got, want)
		}
	})
	t.Run("other type is empty", func(t *testing.T) {
		if got := s.TagValues(Models); len(got) != 0 {
			t.Errorf("TagValues(Models) = %v, want empty", got)
		}
	})
}

func TestStoreGC(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.Create(Trials, nil, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetContent(Trials, rec.ID, "k", &ContentValue{Type: TypeOpaque, Data: []byte("live")}, ""); err != nil {
		t.Fatal(err)
	}
	ref, err := s.GetContent(Trials, rec.ID, "k")
	if err != nil {
		t.Fatal(err)
	}
	// An orphan that lost its reference, as after a crash between payload
	// write and ref install.
	orphan, err := s.Payloads().Put([]byte("orphan"))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.GC(); err != nil {
		t.Fatalf("GC() error = %v", err)
	}
	if _, err := s.Payloads().Open(ref.Data); err != nil {
		t.Errorf("live payload swept: %v", err)
	}
	if _, err := s.Payloads().Open(orphan); err == nil {
		t.Error("orphan payload survived GC")
	}
}

func TestStoreSharedPayloads(t *testing.T) {
	// Identical bytes are deduplicated into one payload file, so a release
	// must not unlink while another key still references it.
	data := []byte("shared bytes across keys")

	t.Run("key delete keeps the sibling key readable", func(t *testing.T) {
		s := openTestStore(t)
		rec, err := s.Create(Models, nil, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		for _, key := range []string{"a", "b"} {
			if err := s.SetContent(Models, rec.ID, key, &ContentValue{Type: TypeOpaque, Data: data}, ""); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.SetContent(Models, rec.ID, "a", nil, ""); err != nil {
			t.Fatalf("SetContent(nil) error = %v", err)
		}
		ref, err := s.GetContent(Models, rec.ID, "b")
		if err != nil {
			t.Fatal(err)
		}
		got, err := s.Payloads().ReadAll(ref.Data)
		if err != nil {
			t.Fatalf("surviving key unreadable: %v", err)
		}
		if string(got) != string(data) {
			t.Errorf("payload = %q", got)
		}

		// Last reference out removes the file.
		if err := s.SetContent(Models, rec.ID, "b", nil, ""); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Payloads().Open(ref.Data); err == nil {
			t.Error("unreferenced payload survived release")
		}
	})

	t.Run("record delete keeps other records readable", func(t *testing.T) {
		s := openTestStore(t)
		doomed, err := s.Create(Models, nil, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		keeper, err := s.Create(Trials, nil, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		if err := s.SetContent(Models, doomed.ID, "k", &ContentValue{Type: TypeOpaque, Data: data}, ""); err != nil {
			t.Fatal(err)
		}
		if err := s.SetContent(Trials, keeper.ID, "k", &ContentValue{Type: TypeOpaque, Data: data}, ""); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete(Models, doomed.ID); err != nil {
			t.Fatal(err)
		}
		ref, err := s.GetContent(Trials, keeper.ID, "k")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.Payloads().ReadAll(ref.Data); err != nil {
			t.Errorf("keeper payload unreadable after sibling record delete: %v", err)
		}
	})

	t.Run("overwrite keeps the sibling key readable", func(t *testing.T) {
		s := openTestStore(t)
		rec, err := s.Create(Models, nil, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		for _, key := range []string{"a", "b"} {
			if err := s.SetContent(Models, rec.ID, key, &ContentValue{Type: TypeOpaque, Data: data}, ""); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.SetContent(Models, rec.ID, "a", &ContentValue{Type: TypeOpaque, Data: []byte("new bytes")}, ""); err != nil {
			t.Fatal(err)
		}
		ref, err := s.GetContent(Models, rec.ID, "b")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.Payloads().ReadAll(ref.Data); err != nil {
			t.Errorf("sibling payload unreadable after overwrite: %v", err)
		}
	})
}

func TestContentType(t *testing.T) {
	t.Run("round trip text", func(t *testing.T) {
		for _, ct := range []ContentType{TypeOpaque, TypeJPEG, TypePNG, TypeArray, TypeArrayCollection} {
			text, err := ct.MarshalText()
			if err != nil {
				t.Fatalf("MarshalText(%v) error = %v", ct, err)
			}
			var back ContentType
			if err := back.UnmarshalText(text); err != nil {
				t.Fatalf("UnmarshalText(%q) error = %v", text, err)
			}
			if back != ct {
				t.Errorf("round trip %v -> %q -> %v", ct, text, back)
			}
		}
	})

	t.Run("unknown text", func(t *testing.T) {
		var ct ContentType
		if err := ct.UnmarshalText([]byte("application/x-unknown")); err == nil {
			t.Error("UnmarshalText() accepted unknown content type")
		}
	})

	t.Run("capabilities", func(t *testing.T) {
		if !TypeArray.ArrayViewable() || TypePNG.ArrayViewable() {
			t.Error("ArrayViewable() wrong")
		}
		if !TypeArrayCollection.CollectionViewable() || TypeArray.CollectionViewable() {
			t.Error("CollectionViewable() wrong")
		}
		if !TypeJPEG.ImageViewable() || !TypePNG.ImageViewable() || TypeOpaque.ImageViewable() {
			t.Error("ImageViewable() wrong")
		}
		if !TypeOpaque.ByteServable() {
			t.Error("ByteServable() wrong")
		}
	})
}
