package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cenkalti/backoff/v4"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"go.uber.org/zap"

	"github.com/CosmosContracts/tokenfactory-contracts/internal/config"
	"github.com/CosmosContracts/tokenfactory-contracts/migrator"
	"github.com/CosmosContracts/tokenfactory-contracts/relay"
	"github.com/CosmosContracts/tokenfactory-contracts/rpc/issuer"
	"github.com/CosmosContracts/tokenfactory-contracts/rpc/legacy"
)

func main() {
	configFile := flag.String("config", "", "Path to the configuration file")
	envPath := flag.String("env", "", "Directory with .env files (default 'config/')")
	replayTx := flag.String("replay", "", "Re-dispatch Issue instructions of the given migrateTokens transaction and exit")

	flag.Parse()

	cfg, err := config.LoadMigratorConfig(*configFile, *envPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, *replayTx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("interrupted")
			return
		}
		logger.Fatal("migration failed", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, logger *zap.Logger, cfg *config.MigratorConfig, replayTx string) error {
	act, c, err := newActor(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	legacyHash, _ := config.ParseHash(cfg.Contracts.Legacy)
	ledger := legacy.New(act, legacyHash)

	st, err := ledger.MigrationStatus()
	if err != nil {
		return fmt.Errorf("get migration status: %w", err)
	}
	if st == legacy.StatusNotConfigured {
		return errors.New("migration is not configured in the legacy contract")
	}

	var r *relay.Relay
	if cfg.Migration.Relay {
		issuerHash, _ := config.ParseHash(cfg.Contracts.Issuer)

		ok, err := issuer.NewReader(act, issuerHash).IsMinter(act.Sender())
		if err != nil {
			return fmt.Errorf("check minter whitelist: %w", err)
		}
		if !ok {
			logger.Warn("signing account is not whitelisted by the issuer, mints will be rejected",
				zap.Stringer("account", act.Sender()))
		}

		r = relay.New(relay.Prm{
			Logger:     logger.Named("relay"),
			Minter:     issuer.New(act, issuerHash),
			Waiter:     act,
			Authority:  issuerHash,
			Account:    act.Sender(),
			NewBackOff: newBackOff(cfg.Retry),
		})
	}

	if replayTx != "" {
		if r == nil {
			return errors.New("replay requires relay to be enabled")
		}
		h, err := util.Uint256DecodeStringLE(strings.TrimPrefix(replayTx, "0x"))
		if err != nil {
			return fmt.Errorf("invalid transaction hash: %w", err)
		}
		appLog, err := c.GetApplicationLog(h, nil)
		if err != nil {
			return fmt.Errorf("get application log of %s: %w", replayTx, err)
		}
		rep, err := r.Replay(ctx, legacyHash, appLog)
		if err != nil {
			return err
		}
		logger.Info("replay finished",
			zap.Int("minted", rep.Minted),
			zap.Int("skipped", rep.Skipped),
			zap.Int("failed", len(rep.Failed)))
		return nil
	}

	prm := migrator.Prm{
		Logger:     logger.Named("migrator"),
		Ledger:     ledger,
		Waiter:     act,
		Limit:      cfg.Migration.BatchLimit,
		MaxBatches: cfg.Migration.MaxBatches,
		NewBackOff: newBackOff(cfg.Retry),
	}
	if r != nil {
		prm.Dispatcher = r
	}

	s, err := migrator.Run(ctx, prm)
	logger.Info("migration run finished",
		zap.Int("batches", s.Batches),
		zap.Int("accounts", s.Accounts),
		zap.Stringer("amount", s.Amount),
		zap.Bool("complete", s.Complete),
		zap.Int("minted", s.Relay.Minted),
		zap.Int("failed", len(s.Relay.Failed)))
	for _, f := range s.Relay.Failed {
		logger.Warn("undelivered instruction",
			zap.Stringer("recipient", f.Instruction.Recipient),
			zap.Stringer("amount", f.Instruction.Amount),
			zap.Stringer("tx", f.Tx),
			zap.String("reason", f.Reason))
	}
	return err
}

// newActor dials Neo RPC server and opens the configured wallet account.
func newActor(ctx context.Context, cfg *config.MigratorConfig) (*actor.Actor, *rpcclient.Client, error) {
	w, err := wallet.NewWalletFromFile(cfg.Wallet.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open wallet: %w", err)
	}

	var acc *wallet.Account
	if cfg.Wallet.Address == "" {
		if len(w.Accounts) == 0 {
			return nil, nil, errors.New("wallet has no accounts")
		}
		acc = w.Accounts[0]
	} else {
		h, err := config.ParseHash(cfg.Wallet.Address)
		if err != nil {
			return nil, nil, fmt.Errorf("wallet.address: %w", err)
		}
		acc = w.GetAccount(h)
		if acc == nil {
			return nil, nil, fmt.Errorf("account %s is missing in the wallet", cfg.Wallet.Address)
		}
	}

	if err := acc.Decrypt(cfg.Wallet.Password, w.Scrypt); err != nil {
		return nil, nil, fmt.Errorf("decrypt account: %w", err)
	}

	c, err := rpcclient.New(ctx, cfg.RPC.Endpoint, rpcclient.Options{
		DialTimeout:    cfg.RPC.DialTimeout,
		RequestTimeout: cfg.RPC.RequestTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("RPC client dial: %w", err)
	}
	if err := c.Init(); err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("RPC client init: %w", err)
	}

	act, err := actor.NewSimple(c, acc)
	if err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("init actor: %w", err)
	}

	return act, c, nil
}

func newBackOff(cfg config.RetryConfig) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = cfg.InitialInterval
		b.MaxInterval = cfg.MaxInterval
		b.MaxElapsedTime = cfg.MaxElapsedTime
		b.Reset()
		if cfg.MaxRetries == 0 {
			return b
		}
		return backoff.WithMaxRetries(b, cfg.MaxRetries)
	}
}
