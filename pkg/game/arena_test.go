package game

import (
	"testing"

	"snapsync/pkg/proto"
)

func TestArenaJoinOrderAndColors(t *testing.T) {
	a := NewArena()
	for pid := uint16(1); pid <= 4; pid++ {
		if !a.OnJoin(pid) {
			t.Fatalf("join %d refused", pid)
		}
	}
	s := a.Snapshot(0)
	if len(s) != 4 {
		t.Fatalf("snapshot has %d entities", len(s))
	}
	want := []proto.Color{proto.Red, proto.Green, proto.Blue, proto.Red}
	for i, e := range s {
		if e.Color != want[i] {
			t.Fatalf("entity %d color %v, want %v", i, e.Color, want[i])
		}
		if e.Y != FloorY {
			t.Fatalf("entity %d spawned at y=%v", i, e.Y)
		}
		if i > 0 && e.X <= s[i-1].X {
			t.Fatalf("spawn x not increasing: %v", s)
		}
	}
}

func TestArenaFull(t *testing.T) {
	a := NewArena()
	for pid := uint16(0); pid < proto.MaxPlayers; pid++ {
		a.OnJoin(pid)
	}
	if a.OnJoin(100) {
		t.Fatalf("join accepted past MaxPlayers")
	}
	a.OnLeave(3)
	if !a.OnJoin(100) {
		t.Fatalf("join refused after a leave")
	}
	if n := len(a.Snapshot(0)); n != proto.MaxPlayers {
		t.Fatalf("snapshot has %d entities", n)
	}
}

func TestArenaCommands(t *testing.T) {
	a := NewArena()
	a.OnJoin(1)
	x0 := a.Snapshot(0)[0].X

	a.ApplyCommands(1, proto.Batch{proto.MoveRight, proto.MoveRight, proto.MoveLeft})
	if x := a.Snapshot(0)[0].X; x != x0+MoveStep {
		t.Fatalf("x = %v, want %v", x, x0+MoveStep)
	}

	a.ApplyCommands(1, proto.Batch{proto.Jump, proto.Jump})
	if y := a.Snapshot(0)[0].Y; y != FloorY-JumpLift {
		t.Fatalf("y after double jump = %v, want %v", y, FloorY-JumpLift)
	}
	for i := 0; i < JumpLift/FallPerTick; i++ {
		a.Tick(uint32(i))
	}
	if y := a.Snapshot(0)[0].Y; y != FloorY {
		t.Fatalf("y after settling = %v, want %v", y, FloorY)
	}

	a.ApplyCommands(2, proto.Batch{proto.Jump})
}

func TestArenaClampsToBounds(t *testing.T) {
	a := NewArena()
	a.OnJoin(1)
	left := make(proto.Batch, ArenaWidth)
	a.ApplyCommands(1, left)
	if x := a.Snapshot(0)[0].X; x != 0 {
		t.Fatalf("x = %v, want 0", x)
	}
	right := make(proto.Batch, ArenaWidth)
	for i := range right {
		right[i] = proto.MoveRight
	}
	a.ApplyCommands(1, right)
	if x := a.Snapshot(0)[0].X; x != ArenaWidth {
		t.Fatalf("x = %v, want %v", x, ArenaWidth)
	}
}
