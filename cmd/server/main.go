package main

import (
	"flag"
	"log"

	"snapsync/pkg/config"
	"snapsync/pkg/game"
	"snapsync/pkg/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	cfg.ServerFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.ValidateServer(); err != nil {
		log.Fatal(err)
	}

	srv, err := server.NewServer(cfg.ListenAddr, game.NewArena(), server.Options{
		BroadcastHz: cfg.BroadcastHz,
		PeerTimeout: cfg.PeerTimeout,
	})
	if err != nil {
		log.Fatal(err)
	}
	log.Println("server listen", srv.Addr())
	go srv.ListenLoop()
	srv.BroadcastLoop()
}
