package cache

import (
	"testing"

	"github.com/dukerupert/openline/internal/model"
)

func meetingStore() *Store[model.Meeting] {
	return New(func(m model.Meeting) string { return m.ID })
}

func TestReplaceClearsStaleness(t *testing.T) {
	s := meetingStore()
	if !s.Stale() {
		t.Error("unloaded cache should be stale")
	}

	s.Replace([]model.Meeting{{ID: "a"}})
	if s.Stale() {
		t.Error("cache should be fresh after Replace")
	}

	s.MarkStale()
	if !s.Stale() {
		t.Error("cache should be stale after MarkStale")
	}

	s.Replace([]model.Meeting{{ID: "a"}, {ID: "b"}})
	if s.Stale() {
		t.Error("Replace should clear staleness again")
	}
	if s.Len() != 2 {
		t.Errorf("len = %d, want 2", s.Len())
	}
}

func TestRemoveThenInsertRestoresExactOrder(t *testing.T) {
	s := meetingStore()
	s.Replace([]model.Meeting{{ID: "a"}, {ID: "b"}, {ID: "c"}})

	removed, idx, ok := s.Remove("b")
	if !ok {
		t.Fatal("expected to remove b")
	}
	if idx != 1 {
		t.Errorf("removed index = %d, want 1", idx)
	}
	if s.Len() != 2 {
		t.Errorf("len after remove = %d, want 2", s.Len())
	}

	s.Insert(removed, idx)

	items := s.Items()
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("position %d = %q, want %q", i, items[i].ID, id)
		}
	}
}

func TestRemoveMissing(t *testing.T) {
	s := meetingStore()
	s.Replace([]model.Meeting{{ID: "a"}})

	_, _, ok := s.Remove("nope")
	if ok {
		t.Error("Remove of missing id should report ok=false")
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
}

func TestInsertClampsIndex(t *testing.T) {
	s := meetingStore()
	s.Replace([]model.Meeting{{ID: "a"}})

	s.Insert(model.Meeting{ID: "z"}, 99)
	items := s.Items()
	if items[len(items)-1].ID != "z" {
		t.Error("out-of-range insert should append")
	}

	s.Insert(model.Meeting{ID: "y"}, -5)
	if s.Items()[0].ID != "y" {
		t.Error("negative insert should prepend")
	}
}

func TestUpdateReturnsPrevious(t *testing.T) {
	s := meetingStore()
	s.Replace([]model.Meeting{{ID: "a", Title: "before"}})

	prev, ok := s.Update(model.Meeting{ID: "a", Title: "after"})
	if !ok {
		t.Fatal("expected update to find record")
	}
	if prev.Title != "before" {
		t.Errorf("previous title = %q, want %q", prev.Title, "before")
	}
	got, _ := s.Get("a")
	if got.Title != "after" {
		t.Errorf("title = %q, want %q", got.Title, "after")
	}

	if _, ok := s.Update(model.Meeting{ID: "missing"}); ok {
		t.Error("update of missing id should report ok=false")
	}
}

func TestItemsReturnsCopy(t *testing.T) {
	s := meetingStore()
	s.Replace([]model.Meeting{{ID: "a", Title: "original"}})

	items := s.Items()
	items[0].Title = "mutated"

	got, _ := s.Get("a")
	if got.Title != "original" {
		t.Error("mutating Items result must not affect the cache")
	}
}
