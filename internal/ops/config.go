package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/manager"
	"main/internal/schema"
	"main/pkg/conn"
)

// FileConfig mirrors the JSON config layout shared by the three
// processes. Each cmd resolves only its own section.
type FileConfig struct {
	Manager    ManagerConfig    `json:"manager"`
	DataServer DataServerConfig `json:"dataServer"`
	Trader     TraderConfig     `json:"trader"`
}

// ManagerConfig is the portfolio manager section.
type ManagerConfig struct {
	ListenPath     string `json:"listenPath"`
	DataAddr       string `json:"dataAddr"`
	CommissionRate string `json:"commissionRate"`
	MailboxSize    int    `json:"mailboxSize"`
	RequestTimeout string `json:"requestTimeout"`
}

// DataServerConfig is the data server section.
type DataServerConfig struct {
	ListenPath     string         `json:"listenPath"`
	FeedAddr       string         `json:"feedAddr"`
	BarIntervalSec int            `json:"barIntervalSec"`
	Postgres       PostgresConfig `json:"postgres"`
}

// PostgresConfig describes the bar store connection.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// TraderConfig is the strategy client section.
type TraderConfig struct {
	Session     string   `json:"session"`
	ManagerAddr string   `json:"managerAddr"`
	Capital     string   `json:"capital"`
	Broker      string   `json:"broker"`
	Tickers     []string `json:"tickers"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Strategy    string   `json:"strategy"`
	Lookback    int      `json:"lookback"`
	TopN        int      `json:"topN"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Manager    manager.Config
	DataServer DataServerSpec
	Trader     TraderSpec
}

// DataServerSpec is the resolved data server definition.
type DataServerSpec struct {
	ListenPath  string
	FeedAddr    string
	BarInterval time.Duration
	Postgres    conn.Option
}

// TraderSpec is the resolved trader definition.
type TraderSpec struct {
	Session     string
	ManagerAddr string
	Capital     decimal.Decimal
	Request     schema.DataRequest
	Strategy    string
	Lookback    int
	TopN        int
}

// Load reads a JSON config file and resolves every section.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	mgr, err := resolveManager(cfg.Manager)
	if err != nil {
		return Loaded{}, fmt.Errorf("manager config: %w", err)
	}
	ds, err := resolveDataServer(cfg.DataServer)
	if err != nil {
		return Loaded{}, fmt.Errorf("dataServer config: %w", err)
	}
	trader, err := resolveTrader(cfg.Trader)
	if err != nil {
		return Loaded{}, fmt.Errorf("trader config: %w", err)
	}
	return Loaded{Manager: mgr, DataServer: ds, Trader: trader}, nil
}

func resolveManager(cfg ManagerConfig) (manager.Config, error) {
	if cfg.ListenPath == "" {
		return manager.Config{}, fmt.Errorf("listenPath is empty")
	}
	if cfg.DataAddr == "" {
		return manager.Config{}, fmt.Errorf("dataAddr is empty")
	}
	rate := decimal.Zero
	if cfg.CommissionRate != "" {
		parsed, err := decimal.NewFromString(cfg.CommissionRate)
		if err != nil {
			return manager.Config{}, fmt.Errorf("invalid commissionRate %q: %w", cfg.CommissionRate, err)
		}
		if parsed.IsNegative() {
			return manager.Config{}, fmt.Errorf("commissionRate must be >= 0")
		}
		rate = parsed
	}
	var timeout time.Duration
	if cfg.RequestTimeout != "" {
		parsed, err := time.ParseDuration(cfg.RequestTimeout)
		if err != nil {
			return manager.Config{}, fmt.Errorf("invalid requestTimeout %q: %w", cfg.RequestTimeout, err)
		}
		timeout = parsed
	}
	return manager.Config{
		ListenPath:     cfg.ListenPath,
		DataAddr:       cfg.DataAddr,
		CommissionRate: rate,
		MailboxSize:    cfg.MailboxSize,
		RequestTimeout: timeout,
	}, nil
}

func resolveDataServer(cfg DataServerConfig) (DataServerSpec, error) {
	if cfg.ListenPath == "" {
		return DataServerSpec{}, fmt.Errorf("listenPath is empty")
	}
	interval := time.Duration(cfg.BarIntervalSec) * time.Second
	return DataServerSpec{
		ListenPath:  cfg.ListenPath,
		FeedAddr:    cfg.FeedAddr,
		BarInterval: interval,
		Postgres: conn.Option{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		},
	}, nil
}

func resolveTrader(cfg TraderConfig) (TraderSpec, error) {
	if cfg.Session == "" {
		return TraderSpec{}, fmt.Errorf("session is empty")
	}
	if cfg.ManagerAddr == "" {
		return TraderSpec{}, fmt.Errorf("managerAddr is empty")
	}
	if len(cfg.Tickers) == 0 {
		return TraderSpec{}, fmt.Errorf("tickers is empty")
	}
	capital, err := decimal.NewFromString(cfg.Capital)
	if err != nil {
		return TraderSpec{}, fmt.Errorf("invalid capital %q: %w", cfg.Capital, err)
	}
	if !capital.IsPositive() {
		return TraderSpec{}, fmt.Errorf("capital must be > 0")
	}

	var broker schema.BrokerKind
	switch cfg.Broker {
	case "", "simulated":
		broker = schema.BrokerSimulated
	case "live":
		broker = schema.BrokerLive
	default:
		return TraderSpec{}, fmt.Errorf("unknown broker %q", cfg.Broker)
	}

	request := schema.DataRequest{Broker: broker, Tickers: cfg.Tickers}
	if broker == schema.BrokerSimulated {
		start, err := time.Parse(time.RFC3339, cfg.Start)
		if err != nil {
			return TraderSpec{}, fmt.Errorf("invalid start %q: %w", cfg.Start, err)
		}
		end, err := time.Parse(time.RFC3339, cfg.End)
		if err != nil {
			return TraderSpec{}, fmt.Errorf("invalid end %q: %w", cfg.End, err)
		}
		if end.Before(start) {
			return TraderSpec{}, fmt.Errorf("end precedes start")
		}
		request.Start, request.End = start, end
	}

	strategyName := cfg.Strategy
	if strategyName == "" {
		strategyName = "buy_and_hold"
	}
	return TraderSpec{
		Session:     cfg.Session,
		ManagerAddr: cfg.ManagerAddr,
		Capital:     capital,
		Request:     request,
		Strategy:    strategyName,
		Lookback:    cfg.Lookback,
		TopN:        cfg.TopN,
	}, nil
}
