package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutEnvFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c != Default() {
		t.Fatalf("config = %+v, want defaults", c)
	}
	if err := c.ValidateClient(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if err := c.ValidateServer(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestDefaultKeepsIdlePeers(t *testing.T) {
	// clients send nothing while no key is held
	if d := Default().PeerTimeout; d != 0 {
		t.Fatalf("default peer timeout = %v, want 0", d)
	}
}

func TestLoadEnvFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	body := "SNAPSYNC_SERVER_ADDR=10.0.0.5:9100\nSNAPSYNC_TICK_HZ=30\nSNAPSYNC_FILTER_SOURCE=false\nSNAPSYNC_PEER_TIMEOUT=2s\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	// Registered with t.Setenv so godotenv's writes are undone after the test.
	t.Setenv(EnvServerAddr, "")
	t.Setenv(EnvFilterSource, "")
	t.Setenv(EnvPeerTimeout, "")
	os.Unsetenv(EnvServerAddr)
	os.Unsetenv(EnvFilterSource)
	os.Unsetenv(EnvPeerTimeout)
	t.Setenv(EnvTickHz, "120")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ServerAddr != "10.0.0.5:9100" {
		t.Fatalf("server addr = %q", c.ServerAddr)
	}
	if c.TickHz != 120 {
		t.Fatalf("tick hz = %d, process env should win over the file", c.TickHz)
	}
	if c.FilterSource {
		t.Fatalf("filter source not disabled")
	}
	if c.PeerTimeout != 2*time.Second {
		t.Fatalf("peer timeout = %v", c.PeerTimeout)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv(EnvBroadcastHz, "fast")
	if _, err := Load(filepath.Join(t.TempDir(), "none")); err == nil {
		t.Fatalf("bad broadcast rate accepted")
	}
}

func TestFlagsOverrideLoadedValues(t *testing.T) {
	c := Default()
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	c.ClientFlags(fs)
	if err := fs.Parse([]string{"-server", "127.0.0.1:7000", "-hz", "0"}); err != nil {
		t.Fatal(err)
	}
	if c.ServerAddr != "127.0.0.1:7000" {
		t.Fatalf("server addr = %q", c.ServerAddr)
	}
	if err := c.ValidateClient(); err == nil {
		t.Fatalf("zero tick rate accepted")
	}
}

func TestGetEnvVariable(t *testing.T) {
	if _, err := GetEnvVariable(""); err == nil {
		t.Fatalf("empty name accepted")
	}
	t.Setenv("SNAPSYNC_TEST_VALUE", "x")
	if v, err := GetEnvVariable("SNAPSYNC_TEST_VALUE"); err != nil || v != "x" {
		t.Fatalf("got %q, %v", v, err)
	}
}
