package presence

import (
	"testing"

	"github.com/nerrad567/gray-logic-presence/internal/device"
)

func TestStore_KeepsLatestInFirstEmissionOrder(t *testing.T) {
	s := NewStore()

	s.Put(Record{Name: "band", Confidence: 100})
	s.Put(Record{Name: "phone", Confidence: 0})
	s.Put(Record{Name: "band", Confidence: 95})

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d records, want 2", len(list))
	}
	if list[0].Name != "band" || list[0].Confidence != 95 {
		t.Errorf("List()[0] = %+v, want latest band", list[0])
	}
	if list[1].Name != "phone" {
		t.Errorf("List()[1] = %+v, want phone", list[1])
	}

	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) ok = true")
	}
}

func TestStore_ListIsCopy(t *testing.T) {
	s := NewStore()
	s.Put(Record{Name: "band", State: device.PresenceHome})

	list := s.List()
	list[0].State = device.PresenceNotHome

	got, _ := s.Get("band")
	if got.State != device.PresenceHome {
		t.Error("mutating List() result changed the store")
	}
}

func TestStore_LastCycle(t *testing.T) {
	s := NewStore()

	if _, n := s.LastCycle(); n != 0 {
		t.Errorf("cycles = %d before any cycle", n)
	}

	s.PutCycle(CycleReport{ID: "one"})
	s.PutCycle(CycleReport{ID: "two"})

	last, n := s.LastCycle()
	if n != 2 || last.ID != "two" {
		t.Errorf("LastCycle() = %q, %d, want two, 2", last.ID, n)
	}
}
