package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mafiaidola/13-8-office-sub005/cmd/ledgerctl/cli"
	"github.com/mafiaidola/13-8-office-sub005/internal/app"
	"github.com/mafiaidola/13-8-office-sub005/internal/sequence"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cli.Deps{
		OpenJobs: func() (cli.JobsOps, error) {
			cfg, err := app.LoadConfig()
			if err != nil {
				return nil, err
			}
			return cli.NewJobsCLI(cfg.QueueRedis())
		},
		OpenLedger: func(ctx context.Context) (cli.LedgerOps, func(), error) {
			cfg, backends, err := open(ctx)
			if err != nil {
				return nil, nil, err
			}
			svc, err := app.NewLedgerService(cfg, backends, quietLogger(cfg), nil)
			if err != nil {
				backends.Close()
				return nil, nil, err
			}
			return svc, backends.Close, nil
		},
		OpenCounters: func(ctx context.Context) (sequence.Sequencer, func(), error) {
			cfg, backends, err := open(ctx)
			if err != nil {
				return nil, nil, err
			}
			seq, err := backends.Counters(cfg)
			if err != nil {
				backends.Close()
				return nil, nil, err
			}
			return seq, backends.Close, nil
		},
	})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		if errors.Is(err, cli.ErrViolations) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func open(ctx context.Context) (*app.Config, *app.Backends, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	backends, err := app.OpenBackends(ctx, cfg, quietLogger(cfg))
	if err != nil {
		return nil, nil, err
	}
	return cfg, backends, nil
}

// quietLogger keeps service logs on stderr so stdout stays machine readable.
func quietLogger(cfg *app.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})).
		With(slog.String("env", cfg.AppEnv))
}
