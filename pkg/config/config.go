package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvLocalAddr    = "SNAPSYNC_LOCAL_ADDR"
	EnvServerAddr   = "SNAPSYNC_SERVER_ADDR"
	EnvListenAddr   = "SNAPSYNC_LISTEN_ADDR"
	EnvTickHz       = "SNAPSYNC_TICK_HZ"
	EnvBroadcastHz  = "SNAPSYNC_BROADCAST_HZ"
	EnvFilterSource = "SNAPSYNC_FILTER_SOURCE"
	EnvViewerAddr   = "SNAPSYNC_VIEWER_ADDR"
	EnvVerbose      = "SNAPSYNC_VERBOSE"
	EnvPeerTimeout  = "SNAPSYNC_PEER_TIMEOUT"
)

type Config struct {
	// Client side.
	LocalAddr    string
	ServerAddr   string
	TickHz       int
	FilterSource bool
	ViewerAddr   string
	Verbose      bool

	// Reference server.
	ListenAddr  string
	BroadcastHz int
	// PeerTimeout of zero never evicts; idle clients send nothing.
	PeerTimeout time.Duration
}

func Default() Config {
	return Config{
		LocalAddr:    "127.0.0.1:3003",
		ServerAddr:   "127.0.0.1:9000",
		TickHz:       60,
		FilterSource: true,
		ListenAddr:   "127.0.0.1:9000",
		BroadcastHz:  20,
	}
}

// Load starts from Default, merges the given .env files (".env" when none
// are named; missing files are skipped) and applies SNAPSYNC_* variables.
// Variables already present in the process environment win over files.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	c := Default()
	if v, err := GetEnvVariable(EnvLocalAddr); err == nil {
		c.LocalAddr = v
	}
	if v, err := GetEnvVariable(EnvServerAddr); err == nil {
		c.ServerAddr = v
	}
	if v, err := GetEnvVariable(EnvListenAddr); err == nil {
		c.ListenAddr = v
	}
	if v, err := GetEnvVariable(EnvViewerAddr); err == nil {
		c.ViewerAddr = v
	}
	var err error
	if c.TickHz, err = envInt(EnvTickHz, c.TickHz); err != nil {
		return Config{}, err
	}
	if c.BroadcastHz, err = envInt(EnvBroadcastHz, c.BroadcastHz); err != nil {
		return Config{}, err
	}
	if c.FilterSource, err = envBool(EnvFilterSource, c.FilterSource); err != nil {
		return Config{}, err
	}
	if c.Verbose, err = envBool(EnvVerbose, c.Verbose); err != nil {
		return Config{}, err
	}
	if v, gerr := GetEnvVariable(EnvPeerTimeout); gerr == nil {
		if c.PeerTimeout, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvPeerTimeout, err)
		}
	}
	return c, nil
}

func GetEnvVariable(v string) (string, error) {
	if v == "" {
		return "", fmt.Errorf("input param empty")
	}
	b := os.Getenv(v)
	if b == "" {
		return "", fmt.Errorf("failed to get variable for %s", v)
	}
	return b, nil
}

func envInt(name string, def int) (int, error) {
	v, err := GetEnvVariable(name)
	if err != nil {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func envBool(name string, def bool) (bool, error) {
	v, err := GetEnvVariable(name)
	if err != nil {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}

// ClientFlags registers client flags on fs, defaulting to the loaded values.
func (c *Config) ClientFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.LocalAddr, "local", c.LocalAddr, "local UDP address to bind")
	fs.StringVar(&c.ServerAddr, "server", c.ServerAddr, "server UDP address")
	fs.IntVar(&c.TickHz, "hz", c.TickHz, "client tick rate")
	fs.BoolVar(&c.FilterSource, "filter", c.FilterSource, "drop datagrams not sent by the server address")
	fs.StringVar(&c.ViewerAddr, "viewer", c.ViewerAddr, "HTTP address for the websocket spectator feed (empty disables)")
	fs.BoolVar(&c.Verbose, "v", c.Verbose, "log dropped datagrams")
}

// ServerFlags registers reference server flags on fs.
func (c *Config) ServerFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ListenAddr, "addr", c.ListenAddr, "server listen address")
	fs.IntVar(&c.BroadcastHz, "hz", c.BroadcastHz, "snapshot broadcast rate")
	fs.DurationVar(&c.PeerTimeout, "peer-timeout", c.PeerTimeout, "drop peers that sent nothing for this long, idle players included (0 keeps them)")
}

func (c Config) ValidateClient() error {
	if c.TickHz <= 0 {
		return fmt.Errorf("tick rate must be positive, got %d", c.TickHz)
	}
	if _, err := net.ResolveUDPAddr("udp", c.LocalAddr); err != nil {
		return fmt.Errorf("local address: %w", err)
	}
	if _, err := net.ResolveUDPAddr("udp", c.ServerAddr); err != nil {
		return fmt.Errorf("server address: %w", err)
	}
	return nil
}

func (c Config) ValidateServer() error {
	if c.BroadcastHz <= 0 {
		return fmt.Errorf("broadcast rate must be positive, got %d", c.BroadcastHz)
	}
	if c.PeerTimeout < 0 {
		return fmt.Errorf("peer timeout must not be negative, got %v", c.PeerTimeout)
	}
	if _, err := net.ResolveUDPAddr("udp", c.ListenAddr); err != nil {
		return fmt.Errorf("listen address: %w", err)
	}
	return nil
}
