package viewer

import (
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"snapsync/pkg/proto"
)

func dialViewer(t *testing.T, v *Viewer) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(v.Handler())
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(time.Second)
	for v.NumSubscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(2 * time.Millisecond)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func TestViewerPushesChangedFrames(t *testing.T) {
	v := New(log.New(io.Discard, "", 0))
	conn := dialViewer(t, v)

	want := proto.Snapshot{{X: 10, Y: 20, Color: proto.Red}, {X: 30, Y: 5, Color: proto.Blue}}
	v.Present(want)
	v.Present(want)
	v.Present(proto.Snapshot{})

	f := readFrame(t, conn)
	if f.Seq != 1 || len(f.Entities) != 2 || f.Entities[0] != want[0] || f.Entities[1] != want[1] {
		t.Fatalf("first frame = %+v", f)
	}
	f = readFrame(t, conn)
	if f.Seq != 2 || len(f.Entities) != 0 {
		t.Fatalf("second frame = %+v, duplicate not suppressed", f)
	}
}

func TestViewerLateJoinerGetsLatestFrame(t *testing.T) {
	v := New(log.New(io.Discard, "", 0))
	v.Present(proto.Snapshot{{X: 1, Y: 2, Color: proto.Green}})

	conn := dialViewer(t, v)
	f := readFrame(t, conn)
	if f.Seq != 1 || len(f.Entities) != 1 || f.Entities[0].Color != proto.Green {
		t.Fatalf("frame = %+v", f)
	}
}

func TestViewerDropsClosedSpectator(t *testing.T) {
	v := New(log.New(io.Discard, "", 0))
	conn := dialViewer(t, v)
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for v.NumSubscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("closed spectator still subscribed")
		}
		time.Sleep(2 * time.Millisecond)
	}
	v.Present(proto.Snapshot{{X: 1}})
}
