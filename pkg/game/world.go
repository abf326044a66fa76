package game

import (
	"sync"

	"snapsync/pkg/proto"
)

// World 保存最近收到的快照：接收循环写入，每个 tick 读取一次，每次写入整体替换。
type World struct {
	mu       sync.RWMutex
	entities proto.Snapshot
	version  uint64
}

func NewWorld() *World {
	return &World{entities: proto.Snapshot{}}
}

// Replace 保存 s 的私有拷贝
func (w *World) Replace(s proto.Snapshot) {
	cp := make(proto.Snapshot, len(s))
	copy(cp, s)
	w.mu.Lock()
	w.entities = cp
	w.version++
	w.mu.Unlock()
}

// View calls fn with the current snapshot while holding the read lock.
// fn must not retain or modify the slice.
func (w *World) View(fn func(proto.Snapshot)) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn(w.entities)
}

// Snapshot 返回当前实体列表的拷贝
func (w *World) Snapshot() proto.Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cp := make(proto.Snapshot, len(w.entities))
	copy(cp, w.entities)
	return cp
}

// Version counts successful replaces; zero means nothing has arrived yet.
func (w *World) Version() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.version
}
