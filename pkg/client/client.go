package client

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"snapsync/pkg/game"
	"snapsync/pkg/input"
	"snapsync/pkg/proto"
)

var (
	// ErrBind: the local UDP address could not be acquired.
	ErrBind = errors.New("bind failed")
	// ErrTransportSend: the socket refused this tick's datagram.
	ErrTransportSend = errors.New("transport send failed")
)

// recvBufferSize is twice proto.MaxPayloadSize. A datagram that fills it
// may have been cut short by the kernel and is never decoded.
const recvBufferSize = 2 * proto.MaxPayloadSize

// recvBackoff is the pause after a read error that is not a close.
var recvBackoff = 20 * time.Millisecond

// Transport is the datagram socket used by a Client. *net.UDPConn satisfies it.
type Transport interface {
	ReadFrom(p []byte) (int, net.Addr, error)
	WriteTo(p []byte, addr net.Addr) (int, error)
	LocalAddr() net.Addr
	Close() error
}

// Presenter consumes the world once per tick. The snapshot is only valid
// for the duration of the call.
type Presenter interface {
	Present(s proto.Snapshot)
}

type Options struct {
	// FilterSource drops datagrams that do not come from the server address.
	FilterSource bool
	// Verbose logs every dropped datagram.
	Verbose bool
	Logger  *log.Logger
}

type Stats struct {
	Received uint64
	Applied  uint64
	Dropped  uint64
	Filtered uint64
	Sent     uint64
}

// Client owns the socket and the world cache. RecvLoop writes the world;
// Tick and Run read it.
type Client struct {
	conn       Transport
	serverAddr *net.UDPAddr
	world      *game.World
	opts       Options
	logger     *log.Logger

	received atomic.Uint64
	applied  atomic.Uint64
	dropped  atomic.Uint64
	filtered atomic.Uint64
	sent     atomic.Uint64

	closeOnce sync.Once
	quit      chan struct{}
}

func loggerOrStderr(logger *log.Logger) *log.Logger {
	if logger != nil {
		return logger
	}
	return log.New(os.Stderr, "client> ", log.Ltime|log.Lshortfile)
}

// Dial binds localAddr and targets serverAddr. Failing to bind is fatal for
// the caller and is reported as ErrBind.
func Dial(localAddr, serverAddr string, world *game.World, opts Options) (*Client, error) {
	raddr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve server %q: %w", serverAddr, err)
	}
	laddr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %q: %v", ErrBind, localAddr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBind, err)
	}
	return New(conn, raddr, world, opts), nil
}

func New(conn Transport, serverAddr *net.UDPAddr, world *game.World, opts Options) *Client {
	return &Client{
		conn:       conn,
		serverAddr: serverAddr,
		world:      world,
		opts:       opts,
		logger:     loggerOrStderr(opts.Logger),
		quit:       make(chan struct{}),
	}
}

func (c *Client) World() *game.World { return c.world }

func (c *Client) LocalAddr() net.Addr { return c.conn.LocalAddr() }

func (c *Client) Stats() Stats {
	return Stats{
		Received: c.received.Load(),
		Applied:  c.applied.Load(),
		Dropped:  c.dropped.Load(),
		Filtered: c.filtered.Load(),
		Sent:     c.sent.Load(),
	}
}

// Close closes the socket, which ends RecvLoop, and stops Run.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.quit)
		err = c.conn.Close()
	})
	return err
}

// RecvLoop applies every valid snapshot to the world until the socket is
// closed. Bad or foreign datagrams are dropped; the world keeps its last
// good state, however stale.
func (c *Client) RecvLoop() {
	buf := make([]byte, recvBufferSize)
	failing := false
	for {
		n, raddr, err := c.conn.ReadFrom(buf)
		if err != nil {
			if c.closed() || errors.Is(err, net.ErrClosed) {
				return
			}
			// one line per run of errors
			if !failing {
				c.logger.Println("recv err:", err)
				failing = true
			}
			select {
			case <-c.quit:
				return
			case <-time.After(recvBackoff):
			}
			continue
		}
		failing = false
		c.received.Add(1)
		if c.opts.FilterSource && !c.fromServer(raddr) {
			c.filtered.Add(1)
			if c.opts.Verbose {
				c.logger.Printf("dropping %d bytes from unexpected source %v", n, raddr)
			}
			continue
		}
		if n == len(buf) {
			c.dropped.Add(1)
			if c.opts.Verbose {
				c.logger.Printf("dropping %d bytes from %v: datagram may be truncated", n, raddr)
			}
			continue
		}
		snapshot, err := proto.DecodeWorldSnapshot(buf[:n])
		if err != nil {
			c.dropped.Add(1)
			if c.opts.Verbose {
				c.logger.Printf("dropping %d bytes from %v: %v", n, raddr, err)
			}
			continue
		}
		c.world.Replace(snapshot)
		c.applied.Add(1)
	}
}

func (c *Client) closed() bool {
	select {
	case <-c.quit:
		return true
	default:
		return false
	}
}

func (c *Client) fromServer(addr net.Addr) bool {
	if u, ok := addr.(*net.UDPAddr); ok {
		return u.IP.Equal(c.serverAddr.IP) && u.Port == c.serverAddr.Port
	}
	return addr != nil && addr.String() == c.serverAddr.String()
}

// Tick samples p and sends the resulting batch as one datagram. Nothing is
// sent for an empty batch. The batch never outlives the call.
func (c *Client) Tick(p input.Provider) error {
	batch := input.Sample(p)
	if len(batch) == 0 {
		return nil
	}
	b, err := proto.EncodeCommandBatch(batch)
	if err != nil {
		return err
	}
	if _, err := c.conn.WriteTo(b, c.serverAddr); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportSend, err)
	}
	c.sent.Add(1)
	return nil
}

// Run drives Tick and the presenter at tickHz until Close is called.
// Per-tick errors are logged and the loop continues.
func (c *Client) Run(tickHz int, p input.Provider, pr Presenter) {
	ticker := time.NewTicker(time.Second / time.Duration(tickHz))
	defer ticker.Stop()
	for {
		select {
		case <-c.quit:
			return
		case <-ticker.C:
			if err := c.Tick(p); err != nil {
				c.logger.Println("tick:", err)
			}
			if pr != nil {
				c.world.View(pr.Present)
			}
		}
	}
}
