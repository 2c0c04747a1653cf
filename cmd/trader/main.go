package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/yanun0323/logs"

	"main/internal/ops"
	"main/internal/strategy"
	"main/internal/trader"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	session := flag.String("session", "", "Session ID override")
	managerAddr := flag.String("manager", "", "Manager socket path override")
	printRecord := flag.Bool("print-record", false, "Print the full final ledger as JSON")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config %s: %v", *configPath, err)
	}
	spec := loaded.Trader
	if *session != "" {
		spec.Session = *session
	}
	if *managerAddr != "" {
		spec.ManagerAddr = *managerAddr
	}

	strat, err := buildStrategy(spec)
	if err != nil {
		log.Fatalf("build strategy: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := trader.NewSession(trader.SessionConfig{
		Session:     spec.Session,
		ManagerAddr: spec.ManagerAddr,
		Capital:     spec.Capital,
		Request:     spec.Request,
	}, strat)
	if err != nil {
		log.Fatalf("open session: %v", err)
	}
	defer func() {
		_ = sess.Close()
	}()

	logs.Infof("session %s: strategy %s on %v", spec.Session, strat.Name(), spec.Request.Tickers)
	record, err := sess.Run(ctx)
	if err != nil {
		log.Fatalf("session %s failed: %v", spec.Session, err)
	}

	if *printRecord {
		out, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			log.Fatalf("marshal record: %v", err)
		}
		fmt.Println(string(out))
	}
}

func buildStrategy(spec ops.TraderSpec) (strategy.Strategy, error) {
	switch spec.Strategy {
	case "buy_and_hold":
		return strategy.NewBuyAndHold(), nil
	case "momentum":
		return strategy.NewMomentum(spec.Lookback, spec.TopN), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", spec.Strategy)
	}
}
