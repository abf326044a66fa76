package game

import (
	"sync"

	"snapsync/pkg/proto"
)

// 场地参数（单位：屏幕坐标/每 tick）
const (
	ArenaWidth  = 600
	FloorY      = 390
	MoveStep    = 4
	JumpLift    = 40
	FallPerTick = 2
)

type avatar struct {
	x, y  float32
	color proto.Color
}

// Arena 参考服务器的游戏逻辑：每个 peer 一个角色，按指令批次移动，按加入顺序上报。
type Arena struct {
	mu      sync.Mutex
	players map[uint16]*avatar
	order   []uint16
	joined  int
}

func NewArena() *Arena {
	return &Arena{players: make(map[uint16]*avatar)}
}

// OnJoin places a new avatar. It reports false when the arena is full.
func (a *Arena) OnJoin(pid uint16) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.players[pid]; ok {
		return true
	}
	if len(a.players) >= proto.MaxPlayers {
		return false
	}
	slot := a.joined % proto.MaxPlayers
	a.players[pid] = &avatar{
		x:     float32(20 + slot*(ArenaWidth-40)/proto.MaxPlayers),
		y:     FloorY,
		color: proto.Palette[a.joined%len(proto.Palette)],
	}
	a.order = append(a.order, pid)
	a.joined++
	return true
}

func (a *Arena) OnLeave(pid uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.players[pid]; !ok {
		return
	}
	delete(a.players, pid)
	for i, id := range a.order {
		if id == pid {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// ApplyCommands applies every command of the batch in order; duplicates
// apply twice except Jump, which only lifts an avatar standing on the floor.
func (a *Arena) ApplyCommands(pid uint16, batch proto.Batch) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.players[pid]
	if !ok {
		return
	}
	for _, c := range batch {
		switch c {
		case proto.MoveLeft:
			p.x -= MoveStep
			if p.x < 0 {
				p.x = 0
			}
		case proto.MoveRight:
			p.x += MoveStep
			if p.x > ArenaWidth {
				p.x = ArenaWidth
			}
		case proto.Jump:
			if p.y >= FloorY {
				p.y -= JumpLift
			}
		}
	}
}

// Tick 让跳起的角色回落到地面
func (a *Arena) Tick(tick uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.players {
		if p.y < FloorY {
			p.y += FallPerTick
			if p.y > FloorY {
				p.y = FloorY
			}
		}
	}
}

func (a *Arena) Snapshot(tick uint32) proto.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := make(proto.Snapshot, 0, len(a.order))
	for _, pid := range a.order {
		p := a.players[pid]
		s = append(s, proto.Entity{X: p.x, Y: p.y, Color: p.color})
	}
	return s
}

func (a *Arena) NumPlayers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.players)
}
