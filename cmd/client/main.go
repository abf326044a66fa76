package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"snapsync/pkg/client"
	"snapsync/pkg/config"
	"snapsync/pkg/game"
	"snapsync/pkg/input"
	"snapsync/pkg/proto"
	"snapsync/pkg/render"
	"snapsync/pkg/viewer"
)

// fanout presents the same snapshot to several presenters.
type fanout []client.Presenter

func (f fanout) Present(s proto.Snapshot) {
	for _, p := range f {
		p.Present(s)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	cfg.ClientFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.ValidateClient(); err != nil {
		log.Fatal(err)
	}

	logger := log.New(os.Stderr, "client> ", log.Ltime|log.Lshortfile)
	c, err := client.Dial(cfg.LocalAddr, cfg.ServerAddr, game.NewWorld(), client.Options{
		FilterSource: cfg.FilterSource,
		Verbose:      cfg.Verbose,
		Logger:       logger,
	})
	if err != nil {
		log.Fatal(err)
	}

	presenters := fanout{render.NewTerminal(os.Stdout, game.ArenaWidth, game.FloorY+10)}
	if cfg.ViewerAddr != "" {
		v := viewer.New(logger)
		presenters = append(presenters, v)
		go func() {
			if err := http.ListenAndServe(cfg.ViewerAddr, v.Handler()); err != nil {
				logger.Println("viewer:", err)
			}
		}()
	}

	kb, err := input.OpenTerminal(os.Stdin)
	if err != nil {
		log.Fatal(err)
	}
	defer kb.Restore()

	// 原始模式下 Ctrl+C 由键盘读取处理；这里捕获外部信号，确保恢复终端
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
		case <-kb.Done():
		}
		c.Close()
	}()

	go c.RecvLoop()
	c.Run(cfg.TickHz, kb, presenters)

	kb.Restore()
	st := c.Stats()
	log.Printf("bye: received=%d applied=%d dropped=%d filtered=%d sent=%d",
		st.Received, st.Applied, st.Dropped, st.Filtered, st.Sent)
}
