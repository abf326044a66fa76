package server

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"snapsync/pkg/proto"
)

// GameLogic 定义可插拔的游戏逻辑接口。
// 服务器只负责收发数据，所有状态都由业务方持有。
type GameLogic interface {
	// OnJoin 在新地址的第一个数据报到达时回调，返回 false 表示拒绝该 peer。
	OnJoin(pid uint16) bool
	// OnLeave 在 peer 超过 PeerTimeout 未发送数据时回调（超时关闭时不会调用）。
	OnLeave(pid uint16)
	// ApplyCommands 在每个成功解码的指令批次到达时调用。
	ApplyCommands(pid uint16, batch proto.Batch)
	// Tick 在每个广播 tick 调用，先于 Snapshot。
	Tick(tick uint32)
	// Snapshot 返回广播给所有 peer 的实体列表。
	Snapshot(tick uint32) proto.Snapshot
}

// ClientPeer 保留 peer 状态（仅以源地址识别）
type ClientPeer struct {
	id       uint16
	addr     *net.UDPAddr
	lastSeen time.Time
}

type Options struct {
	BroadcastHz int
	// PeerTimeout removes peers that sent nothing for this long. Clients
	// only send while a key is pressed, so a positive value also evicts idle
	// but connected players. Zero, the default, keeps peers forever.
	PeerTimeout time.Duration
	Logger      *log.Logger
}

// Server 主体（可插拔游戏逻辑）
type Server struct {
	conn *net.UDPConn
	room struct {
		players map[string]*ClientPeer
		mu      sync.Mutex
	}
	nextID uint16

	tick uint32
	opts Options

	logic  GameLogic
	logger *log.Logger

	closeOnce sync.Once
	quit      chan struct{}
}

// NewServer 创建并绑定 UDP，注入游戏逻辑。
func NewServer(listen string, logic GameLogic, opts Options) (*Server, error) {
	if logic == nil {
		return nil, fmt.Errorf("logic is nil")
	}
	if opts.BroadcastHz <= 0 {
		return nil, fmt.Errorf("broadcast rate must be positive, got %d", opts.BroadcastHz)
	}
	udpAddr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "server> ", log.Ltime|log.Lshortfile)
	}
	s := &Server{
		conn:   conn,
		opts:   opts,
		logic:  logic,
		logger: logger,
		quit:   make(chan struct{}),
	}
	s.room.players = make(map[string]*ClientPeer)
	return s, nil
}

func (s *Server) Addr() net.Addr { return s.conn.LocalAddr() }

func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.quit)
		err = s.conn.Close()
	})
	return err
}

func (s *Server) NumPeers() int {
	s.room.mu.Lock()
	defer s.room.mu.Unlock()
	return len(s.room.players)
}

// registerPeer 注册新 peer（逻辑拒绝时返回 nil）
func (s *Server) registerPeer(addr *net.UDPAddr) *ClientPeer {
	s.room.mu.Lock()
	defer s.room.mu.Unlock()
	key := addr.String()
	if p, ok := s.room.players[key]; ok {
		return p
	}
	id := s.nextID
	if !s.logic.OnJoin(id) {
		return nil
	}
	s.nextID++
	p := &ClientPeer{id: id, addr: addr, lastSeen: time.Now()}
	s.room.players[key] = p
	s.logger.Printf("registered peer id=%d addr=%s", id, key)
	return p
}

func (s *Server) findPeerByAddr(addr *net.UDPAddr) *ClientPeer {
	s.room.mu.Lock()
	defer s.room.mu.Unlock()
	return s.room.players[addr.String()]
}

// ListenLoop 启动接收循环，直到 Close（建议以 goroutine 调用）
func (s *Server) ListenLoop() {
	buf := make([]byte, 4096)
	for {
		n, raddr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Println("recv err:", err)
			continue
		}
		batch, err := proto.DecodeCommandBatch(buf[:n])
		if err != nil {
			s.logger.Printf("bad datagram from %s: %v", raddr, err)
			continue
		}
		peer := s.findPeerByAddr(raddr)
		if peer == nil {
			if peer = s.registerPeer(raddr); peer == nil {
				s.logger.Printf("room full, ignoring %s", raddr)
				continue
			}
		}
		s.room.mu.Lock()
		peer.lastSeen = time.Now()
		s.room.mu.Unlock()
		s.logic.ApplyCommands(peer.id, batch)
	}
}

// BroadcastLoop 按 tick 推进逻辑并向每个 peer 广播快照，直到 Close
func (s *Server) BroadcastLoop() {
	ticker := time.NewTicker(time.Second / time.Duration(s.opts.BroadcastHz))
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case now := <-ticker.C:
			s.step(now)
		}
	}
}

func (s *Server) step(now time.Time) {
	s.tick++
	s.expirePeers(now)
	s.logic.Tick(s.tick)

	payload, err := proto.EncodeWorldSnapshot(s.logic.Snapshot(s.tick))
	if err != nil {
		s.logger.Printf("snapshot error tick=%d err=%v", s.tick, err)
		return
	}
	s.room.mu.Lock()
	defer s.room.mu.Unlock()
	for _, p := range s.room.players {
		if _, err := s.conn.WriteToUDP(payload, p.addr); err != nil {
			s.logger.Printf("send to peer %d: %v", p.id, err)
		}
	}
}

func (s *Server) expirePeers(now time.Time) {
	if s.opts.PeerTimeout <= 0 {
		return
	}
	s.room.mu.Lock()
	defer s.room.mu.Unlock()
	for key, p := range s.room.players {
		if now.Sub(p.lastSeen) > s.opts.PeerTimeout {
			delete(s.room.players, key)
			s.logic.OnLeave(p.id)
			s.logger.Printf("peer %d timed out", p.id)
		}
	}
}
