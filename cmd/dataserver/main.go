package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/yanun0323/logs"

	"main/internal/agent"
	"main/internal/dataserver"
	"main/internal/ops"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	listenPath := flag.String("listen", "", "Unix socket path override")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config %s: %v", *configPath, err)
	}
	spec := loaded.DataServer
	if *listenPath != "" {
		spec.ListenPath = *listenPath
	}

	store, err := dataserver.NewPGStore(spec.Postgres)
	if err != nil {
		log.Fatalf("open bar store: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := dataserver.NewServer(spec.ListenPath, store, spec.FeedAddr, spec.BarInterval)
	if err != nil {
		log.Fatalf("start data server: %v", err)
	}

	a := agent.New(ctx)
	srv.Run(a)
	logs.Infof("data server listening on %s", spec.ListenPath)

	<-ctx.Done()
	_ = srv.Close()
	a.Wait()
}
