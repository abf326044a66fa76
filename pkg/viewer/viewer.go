package viewer

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"snapsync/pkg/proto"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 8
)

// Frame is the JSON message pushed to spectators.
type Frame struct {
	Seq      uint64         `json:"seq"`
	Entities proto.Snapshot `json:"entities"`
}

// Viewer mirrors the client's world to websocket spectators. It is a
// Presenter: Present runs inside the world's read lock, so it never blocks
// on the network. Spectators that fall behind are disconnected.
type Viewer struct {
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu      sync.Mutex
	subs    map[*websocket.Conn]chan []byte
	seq     uint64
	last    []byte
	lastMsg []byte
}

func New(logger *log.Logger) *Viewer {
	if logger == nil {
		logger = log.New(os.Stderr, "viewer> ", log.Ltime|log.Lshortfile)
	}
	return &Viewer{
		upgrader: websocket.Upgrader{
			// local spectator tool; any origin may watch
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		subs:   make(map[*websocket.Conn]chan []byte),
	}
}

func (v *Viewer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", v)
	return mux
}

func (v *Viewer) NumSubscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

// Present publishes s when it differs from the last published frame.
func (v *Viewer) Present(s proto.Snapshot) {
	if s == nil {
		s = proto.Snapshot{}
	}
	entities, err := json.Marshal(s)
	if err != nil {
		v.logger.Println("encode frame:", err)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if string(entities) == string(v.last) {
		return
	}
	v.last = entities
	v.seq++
	msg, err := json.Marshal(Frame{Seq: v.seq, Entities: s})
	if err != nil {
		v.logger.Println("encode frame:", err)
		return
	}
	v.lastMsg = msg
	for conn, ch := range v.subs {
		select {
		case ch <- msg:
		default:
			v.logger.Printf("spectator %s too slow, disconnecting", conn.RemoteAddr())
			v.dropLocked(conn)
		}
	}
}

func (v *Viewer) dropLocked(conn *websocket.Conn) {
	if ch, ok := v.subs[conn]; ok {
		delete(v.subs, conn)
		close(ch)
	}
}

func (v *Viewer) drop(conn *websocket.Conn) {
	v.mu.Lock()
	v.dropLocked(conn)
	v.mu.Unlock()
}

func (v *Viewer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := v.upgrader.Upgrade(w, r, nil)
	if err != nil {
		v.logger.Println("upgrade:", err)
		return
	}
	ch := make(chan []byte, sendBuffer)

	v.mu.Lock()
	v.subs[conn] = ch
	if v.lastMsg != nil {
		// new spectators start from the latest frame
		ch <- v.lastMsg
	}
	v.mu.Unlock()

	go v.writeLoop(conn, ch)

	// spectators send nothing; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			v.drop(conn)
			return
		}
	}
}

func (v *Viewer) writeLoop(conn *websocket.Conn, ch <-chan []byte) {
	defer conn.Close()
	for msg := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			v.drop(conn)
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
