// Command multitoken serves a multi-token ledger over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/xraph/multitoken"
	"github.com/xraph/multitoken/api"
	"github.com/xraph/multitoken/receiver"
	"github.com/xraph/multitoken/store"
	"github.com/xraph/multitoken/store/leveldb"
	"github.com/xraph/multitoken/store/memory"
	"github.com/xraph/multitoken/token"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "multitoken:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "multitoken",
		Usage:   "fungible and non-fungible token ledger",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "store",
				Aliases: []string{"s"},
				EnvVars: []string{"MULTITOKEN_STORE"},
				Value:   "memory",
				Usage:   "storage backend `KIND` [memory|leveldb]",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				EnvVars: []string{"MULTITOKEN_DATA_DIR"},
				Value:   "multitoken.leveldb",
				Usage:   "leveldb `DIR`",
			},
			&cli.StringFlag{
				Name:    "owner",
				Aliases: []string{"o"},
				EnvVars: []string{"MULTITOKEN_OWNER"},
				Usage:   "`ACCOUNT` allowed to mint, required for a new ledger",
			},
			&cli.BoolFlag{
				Name:    "approvals",
				EnvVars: []string{"MULTITOKEN_APPROVALS"},
				Usage:   "enable the approval extension for a new ledger",
			},
			&cli.BoolFlag{
				Name:    "metadata",
				EnvVars: []string{"MULTITOKEN_METADATA"},
				Usage:   "enable the metadata extension for a new ledger",
			},
			&cli.StringFlag{
				Name:    "price-per-byte",
				EnvVars: []string{"MULTITOKEN_PRICE_PER_BYTE"},
				Value:   "0",
				Usage:   "storage deposit `PRICE` per byte",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"MULTITOKEN_LOG_LEVEL"},
				Value:   "info",
				Usage:   "log `LEVEL` [debug|info|warn|error]",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Aliases: []string{"a"},
						EnvVars: []string{"MULTITOKEN_ADDR"},
						Value:   ":8080",
						Usage:   "listen `HOST:PORT`",
					},
					&cli.DurationFlag{
						Name:    "notify-timeout",
						EnvVars: []string{"MULTITOKEN_NOTIFY_TIMEOUT"},
						Value:   multitoken.DefaultNotifyTimeout,
						Usage:   "receiver answer deadline",
					},
					&cli.StringSliceFlag{
						Name:    "webhook",
						Aliases: []string{"w"},
						EnvVars: []string{"MULTITOKEN_WEBHOOKS"},
						Usage:   "notify `ACCOUNT=URL` on transfer calls, repeatable",
					},
				},
				Action: runServe,
			},
			{
				Name:   "probe",
				Usage:  "print storage costs and deposits as JSON",
				Action: runProbe,
			},
		},
	}
}

func runServe(c *cli.Context) error {
	logger, err := newLogger(c.String("log-level"))
	if err != nil {
		return err
	}
	price, err := decimal.NewFromString(c.String("price-per-byte"))
	if err != nil {
		return fmt.Errorf("invalid price-per-byte: %w", err)
	}
	dir, err := webhooks(c.StringSlice("webhook"))
	if err != nil {
		return err
	}

	l, err := openLedger(c, logger,
		multitoken.WithReceivers(dir),
		multitoken.WithNotifyTimeout(c.Duration("notify-timeout")),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Stop(); err != nil {
			logger.Error("failed to stop ledger", "error", err)
		}
	}()

	srv := api.NewServer(c.String("addr"), api.NewHandler(l, price, logger))
	errc := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-c.Context.Done():
	case err := <-errc:
		if err != nil {
			return err
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	return nil
}

type probeOutput struct {
	Owner    token.AccountID     `json:"owner_id"`
	Costs    token.StorageCosts  `json:"costs"`
	Deposits multitoken.Deposits `json:"deposits"`
}

func runProbe(c *cli.Context) error {
	logger, err := newLogger(c.String("log-level"))
	if err != nil {
		return err
	}
	price, err := decimal.NewFromString(c.String("price-per-byte"))
	if err != nil {
		return fmt.Errorf("invalid price-per-byte: %w", err)
	}

	l, err := openLedger(c, logger)
	if err != nil {
		return err
	}
	defer l.Stop()

	costs := l.StorageCosts()
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(probeOutput{
		Owner:    l.Owner(),
		Costs:    costs,
		Deposits: multitoken.StorageDeposit(costs, price),
	})
}

func openLedger(c *cli.Context, logger *slog.Logger, opts ...multitoken.Option) (*multitoken.Ledger, error) {
	s, err := openStore(c.String("store"), c.String("data-dir"))
	if err != nil {
		return nil, err
	}

	base := []multitoken.Option{
		multitoken.WithLogger(logger),
		multitoken.WithApprovals(c.Bool("approvals")),
		multitoken.WithMetadata(c.Bool("metadata")),
	}
	if owner := c.String("owner"); owner != "" {
		base = append(base, multitoken.WithOwner(token.AccountID(owner)))
	}

	l := multitoken.New(s, append(base, opts...)...)
	if err := l.Start(c.Context); err != nil {
		_ = s.Close()
		return nil, err
	}
	return l, nil
}

func openStore(kind, dir string) (store.Store, error) {
	switch kind {
	case "memory":
		return memory.New(), nil
	case "leveldb":
		s, err := leveldb.Open(dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}

func webhooks(specs []string) (*receiver.Directory, error) {
	dir := receiver.NewDirectory()
	for _, spec := range specs {
		account, url, ok := strings.Cut(spec, "=")
		if !ok || url == "" {
			return nil, fmt.Errorf("invalid webhook %q, expected ACCOUNT=URL", spec)
		}
		if err := token.AccountID(account).Validate(); err != nil {
			return nil, err
		}
		dir.Register(token.AccountID(account), receiver.NewWebhook(url))
	}
	return dir, nil
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log-level: %w", err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
