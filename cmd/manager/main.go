package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/agent"
	"main/internal/manager"
	"main/internal/ops"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	listenPath := flag.String("listen", "", "Unix socket path override")
	dataAddr := flag.String("data", "", "Data server socket path override")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disabled)")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config %s: %v", *configPath, err)
	}
	cfg := loaded.Manager
	if *listenPath != "" {
		cfg.ListenPath = *listenPath
	}
	if *dataAddr != "" {
		cfg.DataAddr = *dataAddr
	}

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trading/manager",
			ServerAddress:   *pyroscopeAddr,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := manager.New(cfg)
	if err != nil {
		log.Fatalf("start manager: %v", err)
	}

	a := agent.New(ctx)
	m.Run(a)
	logs.Infof("manager listening on %s, data server at %s", cfg.ListenPath, cfg.DataAddr)

	<-ctx.Done()
	_ = m.Close()
	a.Wait()

	snap := m.Metrics().Snapshot()
	logs.Infof("manager done: %d accounts opened, %d closed, %d queue drops",
		snap.AccountsOpened, snap.AccountsClosed, snap.QueueDrops)
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
