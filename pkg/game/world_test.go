package game

import (
	"sync"
	"testing"

	"snapsync/pkg/proto"
)

func TestWorldStartsEmpty(t *testing.T) {
	w := NewWorld()
	w.View(func(s proto.Snapshot) {
		if s == nil || len(s) != 0 {
			t.Fatalf("initial view = %v, want empty", s)
		}
	})
	if w.Version() != 0 {
		t.Fatalf("version = %d", w.Version())
	}
}

func TestWorldReplaceThenView(t *testing.T) {
	w := NewWorld()
	want := proto.Snapshot{{X: 10, Y: 20, Color: proto.Red}, {X: 30, Y: 5, Color: proto.Blue}}
	w.Replace(want)
	w.View(func(s proto.Snapshot) {
		if len(s) != 2 || s[0] != want[0] || s[1] != want[1] {
			t.Fatalf("view = %v, want %v", s, want)
		}
	})
	if w.Version() != 1 {
		t.Fatalf("version = %d, want 1", w.Version())
	}
}

func TestWorldReplaceCopiesInput(t *testing.T) {
	w := NewWorld()
	in := proto.Snapshot{{X: 1, Y: 1, Color: proto.Green}}
	w.Replace(in)
	in[0].X = 99

	got := w.Snapshot()
	if got[0].X != 1 {
		t.Fatalf("cache aliased caller slice: %v", got)
	}
	got[0].Y = 42
	if w.Snapshot()[0].Y != 1 {
		t.Fatalf("Snapshot returned shared storage")
	}
}

// snapshotFor builds a snapshot whose entities all carry the same marker, so
// a torn read shows up as mixed markers or a wrong length.
func snapshotFor(marker int) proto.Snapshot {
	s := make(proto.Snapshot, marker%proto.MaxPlayers+1)
	for i := range s {
		s[i] = proto.Entity{X: float32(marker), Y: float32(marker), Color: proto.Palette[marker%len(proto.Palette)]}
	}
	return s
}

func TestWorldNoTornReads(t *testing.T) {
	w := NewWorld()
	const writes = 5000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= writes; i++ {
			w.Replace(snapshotFor(i))
		}
	}()

	check := func(s proto.Snapshot) {
		if len(s) == 0 {
			return
		}
		marker := int(s[0].X)
		if len(s) != marker%proto.MaxPlayers+1 {
			t.Errorf("marker %d with %d entities", marker, len(s))
			return
		}
		for _, e := range s {
			if int(e.X) != marker || int(e.Y) != marker {
				t.Errorf("mixed snapshot: %v", s)
				return
			}
		}
	}
	for w.Version() < writes {
		w.View(check)
		check(w.Snapshot())
	}
	wg.Wait()

	w.Replace(snapshotFor(7))
	w.View(func(s proto.Snapshot) {
		if len(s) != 8 || s[0].X != 7 {
			t.Fatalf("after final replace view = %v", s)
		}
	})
}
