package main

import (
	"flag"
	"log"
	"os"
	"time"

	"snapsync/pkg/client"
	"snapsync/pkg/config"
	"snapsync/pkg/game"
	"snapsync/pkg/input"
	"snapsync/pkg/proto"
)

// logPresenter reports the world size every interval instead of drawing it.
type logPresenter struct {
	logger   *log.Logger
	every    time.Duration
	lastSeen time.Time
}

func (p *logPresenter) Present(s proto.Snapshot) {
	if time.Since(p.lastSeen) < p.every {
		return
	}
	p.lastSeen = time.Now()
	p.logger.Printf("world has %d entities", len(s))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	cfg.LocalAddr = "127.0.0.1:0"
	cfg.ClientFlags(flag.CommandLine)
	prob := flag.Float64("p", 0.3, "probability that each intent is active per tick")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()
	if err := cfg.ValidateClient(); err != nil {
		log.Fatal(err)
	}

	logger := log.New(os.Stderr, "bot> ", log.Ltime)
	c, err := client.Dial(cfg.LocalAddr, cfg.ServerAddr, game.NewWorld(), client.Options{
		FilterSource: cfg.FilterSource,
		Verbose:      cfg.Verbose,
		Logger:       logger,
	})
	if err != nil {
		log.Fatal(err)
	}
	logger.Printf("bot %s -> %s", c.LocalAddr(), cfg.ServerAddr)

	go c.RecvLoop()
	c.Run(cfg.TickHz, input.NewRandom(*seed, *prob), &logPresenter{logger: logger, every: time.Second})
}
